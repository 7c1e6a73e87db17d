package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// tarLZ4Reader is the secondary backend demonstrating the registry's
// support for more than one container format: an LZ4-framed tar
// stream, decompressed once up front (tar needs to seek by reading
// forward through headers, which lz4.Reader does not support
// natively) and held as a list of name→bytes entries.
type tarLZ4Reader struct {
	entries map[string][]byte // keyed by lower-cased name
	names   []string          // original-case names, in archive order
}

// newTarLZ4Reader must fully decompress each entry to read it at all
// (lz4.Reader is forward-only, so tar can't seek past an oversized
// member the way ZIP's central directory lets it skip one). It checks
// hdr.Size against maxEntrySize before io.ReadAll so an oversized
// entry fails with ErrLimitExceeded before its body is materialised,
// rather than after.
func newTarLZ4Reader(data []byte, maxEntrySize int64) (Reader, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	tr := tar.NewReader(zr)

	r := &tarLZ4Reader{entries: map[string][]byte{}}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: read tar+lz4 entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Size > maxEntrySize {
			return nil, fmt.Errorf("archive: tar+lz4 entry %s: %w", hdr.Name, ErrLimitExceeded)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("archive: read tar+lz4 body %s: %w", hdr.Name, err)
		}
		r.entries[strings.ToLower(hdr.Name)] = body
		r.names = append(r.names, hdr.Name)
	}
	return r, nil
}

func (r *tarLZ4Reader) ListFiles() ([]string, error) {
	return r.names, nil
}

func (r *tarLZ4Reader) FileExists(name string) (bool, error) {
	_, ok := r.entries[strings.ToLower(name)]
	return ok, nil
}

func (r *tarLZ4Reader) Open(name string) (io.ReadCloser, error) {
	body, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return &tarEntryReader{Reader: bytes.NewReader(body), size: int64(len(body))}, nil
}

func (r *tarLZ4Reader) Close() error { return nil }

type tarEntryReader struct {
	*bytes.Reader
	size int64
}

func (t *tarEntryReader) UncompressedSize() int64 { return t.size }
func (t *tarEntryReader) Close() error             { return nil }

// NewTarLZ4Writer returns a Writer that produces an LZ4-framed tar
// archive, the write-side counterpart to the tar+lz4 registered
// backend.
func NewTarLZ4Writer() Writer {
	return &tarLZ4Writer{}
}

type tarLZ4Writer struct {
	entries []zipPendingEntry
	saved   bool
}

func (w *tarLZ4Writer) AddFile(name string, r io.Reader) error {
	if w.saved {
		return fmt.Errorf("archive: AddFile after Save: %w", ErrInvalidUsage)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("archive: read %s: %w", name, err)
	}
	w.entries = append(w.entries, zipPendingEntry{name: name, data: data})
	return nil
}

func (w *tarLZ4Writer) Save(out io.Writer) error {
	if w.saved {
		return fmt.Errorf("archive: Save called twice: %w", ErrInvalidUsage)
	}
	w.saved = true

	zw := lz4.NewWriter(out)
	tw := tar.NewWriter(zw)
	for _, e := range w.entries {
		hdr := &tar.Header{
			Name: e.name,
			Mode: 0644,
			Size: int64(len(e.data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("archive: write tar header %s: %w", e.name, err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return fmt.Errorf("archive: write tar body %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archive: close tar writer: %w", err)
	}
	return zw.Close()
}

package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

func init() {
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
}

// zipReader adapts archive/zip to the Reader contract. Decompression
// itself is handled by compress/flate via the stdlib zip reader;
// github.com/klauspost/compress/flate registers a faster decompressor
// for the same deflate method so large packets still unpack promptly.
type zipReader struct {
	zr *zip.Reader
	// closer releases the backing storage (a bytes.Reader needs none,
	// but keeping a Close hook lets a future disk-backed variant reuse
	// this type without changing its shape).
	closer func() error
}

// newZIPReader ignores maxEntrySize: the ZIP central directory already
// declares each entry's uncompressed size, so Open reports it via
// UncompressedSize and the caller's limitingReader wrapper enforces
// the limit without this backend decompressing anything early.
func newZIPReader(data []byte, _ int64) (Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive: open zip: %w", err)
	}
	return &zipReader{zr: zr, closer: func() error { return nil }}, nil
}

func (z *zipReader) findFile(name string) (*zip.File, bool) {
	for _, f := range z.zr.File {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return nil, false
}

func (z *zipReader) ListFiles() ([]string, error) {
	names := make([]string, 0, len(z.zr.File))
	for _, f := range z.zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

func (z *zipReader) FileExists(name string) (bool, error) {
	_, ok := z.findFile(name)
	return ok, nil
}

func (z *zipReader) Open(name string) (io.ReadCloser, error) {
	f, ok := z.findFile(name)
	if !ok {
		return nil, ErrNotFound
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open zip entry %s: %w", name, err)
	}
	return &zipEntryReader{ReadCloser: rc, uncompressedSize: int64(f.UncompressedSize64)}, nil
}

func (z *zipReader) Close() error { return z.closer() }

// zipEntryReader reports UncompressedSize so limitingReader can reject
// an oversized entry before reading a single body byte, per the
// size-limit guard's "before any body bytes are materialised" rule.
type zipEntryReader struct {
	io.ReadCloser
	uncompressedSize int64
}

func (z *zipEntryReader) UncompressedSize() int64 { return z.uncompressedSize }

// zipWriter adapts archive/zip's Writer to the Writer contract. Each
// AddFile call stores its payload fully in memory before Save, the
// same buffer-then-write-to-the-new-archive shape ziplab's rewrite
// helpers use.
type zipWriter struct {
	entries []zipPendingEntry
	saved   bool
}

type zipPendingEntry struct {
	name string
	data []byte
}

// NewZIPWriter returns a Writer that produces a ZIP archive.
func NewZIPWriter() Writer {
	return &zipWriter{}
}

func (w *zipWriter) AddFile(name string, r io.Reader) error {
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

func (w *zipWriter) Save(out io.Writer) error {
	if w.saved {
		return fmt.Errorf("archive: Save called twice: %w", ErrInvalidUsage)
	}
	w.saved = true

	zw := zip.NewWriter(out)
	for _, e := range w.entries {
		fw, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("archive: create zip entry %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("archive: write zip entry %s: %w", e.name, err)
		}
	}
	return zw.Close()
}

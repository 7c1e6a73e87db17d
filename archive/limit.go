package archive

import "io"

// limitingReader wraps a Reader, enforcing maxEntrySize on every Open
// call by consulting the backend's own size reporting where available
// and otherwise capping the returned stream itself. Every Reader that
// OpenBytes returns passes through it; a backend that only learns an
// entry's size while decompressing (tar+lz4) also checks the limit
// itself during decode.
type limitingReader struct {
	inner        Reader
	maxEntrySize int64
}

func newLimitingReader(inner Reader, maxEntrySize int64) Reader {
	return &limitingReader{inner: inner, maxEntrySize: maxEntrySize}
}

func (l *limitingReader) ListFiles() ([]string, error) { return l.inner.ListFiles() }

func (l *limitingReader) FileExists(name string) (bool, error) { return l.inner.FileExists(name) }

func (l *limitingReader) Open(name string) (io.ReadCloser, error) {
	rc, err := l.inner.Open(name)
	if err != nil {
		return nil, err
	}
	if sized, ok := rc.(interface{ UncompressedSize() int64 }); ok {
		if sized.UncompressedSize() > l.maxEntrySize {
			rc.Close()
			return nil, ErrLimitExceeded
		}
	}
	return &boundedReadCloser{r: rc, remaining: l.maxEntrySize + 1}, nil
}

func (l *limitingReader) Close() error { return l.inner.Close() }

// boundedReadCloser fails with ErrLimitExceeded once more than
// remaining-1 bytes have been read, catching entries whose backend
// cannot report an advertised size up front (or lied about it).
type boundedReadCloser struct {
	r         io.ReadCloser
	remaining int64
}

func (b *boundedReadCloser) Read(p []byte) (int, error) {
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	if len(p) == 0 {
		return 0, ErrLimitExceeded
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func (b *boundedReadCloser) Close() error { return b.r.Close() }

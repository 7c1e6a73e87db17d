package archive

import (
	"sync"

	"github.com/stlalpha/oqwk/internal/logging"
)

// signature is one registered format: a magic byte sequence expected
// at a fixed offset from the start of the archive, and the factory
// that opens data matching it.
type signature struct {
	offset  int
	magic   []byte
	factory Factory
}

var (
	registryMu sync.Mutex
	registry   []signature
)

// Register adds a backend to the process-wide format registry. magic
// is matched against data at offset; the first registered signature
// whose bytes match wins, so callers should register more specific
// formats (longer magic, or a more constrained offset) before generic
// fallbacks. Safe for concurrent use.
func Register(offset int, magic []byte, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	m := make([]byte, len(magic))
	copy(m, magic)
	registry = append(registry, signature{offset: offset, magic: m, factory: factory})
	logging.Debug("registered archive format at offset %d (%d-byte magic)", offset, len(m))
}

func lookup(data []byte) (Factory, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, s := range registry {
		end := s.offset + len(s.magic)
		if end > len(data) {
			continue
		}
		if bytesEqual(data[s.offset:end], s.magic) {
			return s.factory, true
		}
	}
	return nil, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func init() {
	Register(0, []byte{'P', 'K', 0x03, 0x04}, newZIPReader)
	// An empty ZIP archive (no entries) still begins with the
	// end-of-central-directory record rather than a local file header.
	Register(0, []byte{'P', 'K', 0x05, 0x06}, newZIPReader)
	// LZ4 frame magic number (little-endian encoding of 0x184D2204);
	// a tar+lz4 container is the whole archive compressed as one
	// LZ4 frame, so there is no uncompressed "ustar" offset to match
	// until after decompression.
	Register(0, []byte{0x04, 0x22, 0x4D, 0x18}, newTarLZ4Reader)
}

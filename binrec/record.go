package binrec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageRecordSize is the fixed length, in bytes, of one MESSAGES.DAT
// header or body block.
const MessageRecordSize = 128

// IndexRecordSize is the fixed length, in bytes, of one .NDX entry.
const IndexRecordSize = 4

// ReadUint16LE reads a little-endian uint16 from r, wrapping any error
// with field for diagnostics, matching the field-by-field style the
// message-base reader in this codebase uses for its own fixed headers.
func ReadUint16LE(r io.Reader, field string) (uint16, error) {
	var v uint16
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("binrec: read %s: %w", field, err)
	}
	return v, nil
}

// ReadUint32LE reads a little-endian uint32 from r.
func ReadUint32LE(r io.Reader, field string) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("binrec: read %s: %w", field, err)
	}
	return v, nil
}

// WriteUint16LE writes v to w in little-endian order.
func WriteUint16LE(w io.Writer, v uint16, field string) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("binrec: write %s: %w", field, err)
	}
	return nil
}

// WriteUint32LE writes v to w in little-endian order.
func WriteUint32LE(w io.Writer, v uint32, field string) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("binrec: write %s: %w", field, err)
	}
	return nil
}

// ReadFixed reads exactly n raw bytes from r, returning an error that
// names field if the read comes up short — including on a clean EOF,
// since a fixed-width record field is never allowed to be partial.
func ReadFixed(r io.Reader, n int, field string) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("binrec: read %s: %w", field, err)
	}
	return buf, nil
}

// PadRightASCII returns s truncated or space-padded on the right to
// exactly width bytes, the layout every fixed ASCII field in a QWK
// binary record uses.
func PadRightASCII(s string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = ' '
	}
	if len(s) > width {
		s = s[:width]
	}
	copy(out, s)
	return out
}

// TrimRightASCII strips the trailing space padding PadRightASCII adds.
func TrimRightASCII(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// IsZeroBlock reports whether every byte in b is 0x00, the pattern a
// trailing unused MESSAGES.DAT block is padded with.
func IsZeroBlock(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// BlocksForLength returns the number of 128-byte blocks needed to hold
// a body of the given length, rounding up. The header's block-count
// field records this value plus one, since it also counts the header
// block itself.
func BlocksForLength(bodyLen int) int {
	if bodyLen <= 0 {
		return 0
	}
	return (bodyLen + MessageRecordSize - 1) / MessageRecordSize
}

// Package cp437 implements the byte-faithful CP437 codec used by every
// text-bearing field in a QWK/REP/QWKE packet. It wraps
// golang.org/x/text/encoding/charmap.CodePage437 — the same codec the
// BBS terminal layer this library was adapted from uses to talk to a
// real CP437 console — with explicit, caller-selected fallback
// policies instead of a single hard-coded behavior.
//
// The critical invariant this package exists to protect: byte 0xE3
// decodes to U+03C0 (Greek small pi) and U+03C0 re-encodes to 0xE3.
// Every QWK line terminator check in this module operates on that
// rune, never on the superficially similar U+00E3 (Latin small a with
// tilde) that a naive implementation might reach for.
package cp437

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Pi is the decoded form of the QWK line-terminator byte 0xE3.
const Pi = 'π'

// PiByte is the raw QWK line-terminator byte. Decoding it with any
// policy yields Pi; encoding Pi with any policy yields this byte back.
const PiByte = 0xE3

// DecodePolicy selects how Decode reacts to a byte that CP437 cannot
// represent. In practice CP437 is a complete single-byte mapping (every
// value 0x00-0xFF has an assigned rune), so no byte is ever truly
// unmappable; these policies exist for interface symmetry with Encode
// and so that a future non-total charset can plug into the same
// signature without an API break.
type DecodePolicy int

const (
	// DecodeStrict fails if a byte cannot be mapped.
	DecodeStrict DecodePolicy = iota
	// DecodeReplacementQuestion substitutes ASCII '?' for unmappable bytes.
	DecodeReplacementQuestion
	// DecodeReplacementUnicode substitutes U+FFFD for unmappable bytes.
	DecodeReplacementUnicode
	// DecodeBestEffort uses the codec's intrinsic default behavior.
	DecodeBestEffort
)

// EncodePolicy selects how Encode reacts to a rune CP437 cannot represent.
type EncodePolicy int

const (
	// EncodeStrict fails if a rune cannot be represented in CP437.
	EncodeStrict EncodePolicy = iota
	// EncodeReplacementQuestion substitutes ASCII '?' for unrepresentable runes.
	EncodeReplacementQuestion
)

// Decode converts CP437 bytes to a Go string (decoded as a sequence of
// runes, one per input byte). Empty input yields an empty string
// without allocation.
func Decode(data []byte, policy DecodePolicy) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	dec := charmap.CodePage437.NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		switch policy {
		case DecodeReplacementQuestion:
			return decodeBytewiseFallback(data, '?'), nil
		case DecodeReplacementUnicode, DecodeBestEffort:
			return decodeBytewiseFallback(data, '�'), nil
		default:
			return "", fmt.Errorf("cp437: decode: %w", err)
		}
	}
	return string(out), nil
}

// decodeBytewiseFallback decodes one byte at a time, substituting
// replacement for any byte the charmap decoder rejects. CP437 being a
// total single-byte mapping means this path is unreachable in practice,
// but it keeps the documented fallback contract honest if that ever
// changes.
func decodeBytewiseFallback(data []byte, replacement rune) string {
	dec := charmap.CodePage437.NewDecoder()
	runes := make([]rune, 0, len(data))
	for _, b := range data {
		out, err := dec.Bytes([]byte{b})
		if err != nil || len(out) == 0 {
			runes = append(runes, replacement)
			continue
		}
		runes = append(runes, []rune(string(out))...)
	}
	return string(runes)
}

// Encode converts a Go string to CP437 bytes. Empty input yields empty
// output without allocation.
func Encode(s string, policy EncodePolicy) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}

	var enc encoding.Encoding
	switch policy {
	case EncodeReplacementQuestion:
		enc = encoding.ReplaceUnsupported(charmap.CodePage437)
	default:
		enc = charmap.CodePage437
	}

	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("cp437: encode: %w", err)
	}
	return out, nil
}

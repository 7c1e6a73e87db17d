package qwkmsg

import (
	"strings"

	"github.com/stlalpha/oqwk/binrec"
	"github.com/stlalpha/oqwk/cp437"
)

// trimFieldCP437 decodes a fixed-width CP437 field and trims the
// trailing space padding every QWK header string field uses. Decode
// uses BestEffort since a corrupt header field must never abort the
// surrounding parse.
func trimFieldCP437(b []byte) string {
	s, err := cp437.Decode(b, cp437.DecodeBestEffort)
	if err != nil {
		return strings.TrimRight(string(b), " ")
	}
	return strings.TrimRight(s, " ")
}

// encodeFieldCP437 CP437-encodes s and right-pads or truncates it to
// width bytes, the inverse of trimFieldCP437.
func encodeFieldCP437(s string, width int) []byte {
	encoded, err := cp437.Encode(s, cp437.EncodeReplacementQuestion)
	if err != nil {
		encoded = []byte(s)
	}
	return binrec.PadRightASCII(string(encoded), width)
}

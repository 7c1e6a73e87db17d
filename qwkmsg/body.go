package qwkmsg

import (
	"io"

	"github.com/stlalpha/oqwk/binrec"
	"github.com/stlalpha/oqwk/cp437"
	"github.com/stlalpha/oqwk/validate"
)

// Body holds both views of a message's text the round-trip invariant
// requires: the decoded lines (trailing spaces trimmed) and the raw
// decoded text with 0xE3/π terminators still in place.
type Body struct {
	Lines []string
	Raw   string // CP437-decoded text, Pi-separated, before line splitting
}

// ReadBody consumes max(0, header.BlockCount-1) 128-byte blocks from r.
// A short read terminates the message with a warning instead of an
// error; whatever partial blocks were read are still accepted and
// decoded, matching the "partial message over hard failure" policy
// that governs the whole message engine.
func ReadBody(r io.Reader, header Header, vc *validate.Context, msgLoc validate.Location) (Body, error) {
	blockCount := header.BlockCount - 1
	if blockCount < 0 {
		blockCount = 0
	}

	buf := make([]byte, 0, blockCount*binrec.MessageRecordSize)
	block := make([]byte, binrec.MessageRecordSize)
	for i := 0; i < blockCount; i++ {
		n, err := io.ReadFull(r, block)
		if n > 0 {
			buf = append(buf, block[:n]...)
		}
		if err != nil {
			vc.Warnf(msgLoc, "body truncated after %d of %d blocks: %v", i, blockCount, err)
			break
		}
	}

	// A null byte padding the tail of the final block is content space,
	// not a format error: packets commonly pad with nulls instead of
	// spaces.
	for i, b := range buf {
		if b == 0x00 {
			buf[i] = 0x20
		}
	}

	decoded, err := cp437.Decode(buf, cp437.DecodeBestEffort)
	if err != nil {
		return Body{}, err
	}

	lines := cp437.SplitLines(decoded, cp437.StrictQwk)
	return Body{Lines: lines, Raw: decoded}, nil
}

// EncodeBody reassembles lines into padded 128-byte body blocks for
// writing, using Pi as the line separator and ASCII space padding up
// to the next block boundary. It returns the raw bytes and the number
// of 128-byte blocks they occupy.
func EncodeBody(lines []string) (data []byte, blocks int, err error) {
	joined := cp437.JoinLines(lines)
	encoded, err := cp437.Encode(joined, cp437.EncodeReplacementQuestion)
	if err != nil {
		return nil, 0, err
	}

	blocks = binrec.BlocksForLength(len(encoded))
	padded := make([]byte, blocks*binrec.MessageRecordSize)
	copy(padded, encoded)
	for i := len(encoded); i < len(padded); i++ {
		padded[i] = 0x20
	}
	return padded, blocks, nil
}

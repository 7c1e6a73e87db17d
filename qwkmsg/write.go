package qwkmsg

import (
	"fmt"

	"github.com/stlalpha/oqwk/binrec"
)

// WriteParams carries the field values needed to serialise a header;
// it mirrors Header but lets the REP writer supply a block count
// computed from the body it is about to write, rather than one carried
// over from a source packet.
type WriteParams struct {
	Status        byte
	MessageNumber int
	Date          string // 8-char field, written as-is (truncated/padded)
	Time          string // 5-char field, written as-is (truncated/padded)
	To            string
	From          string
	Subject       string
	Password      string
	Reference     string
	BlockCount    int
	Alive         byte
	Conference    uint16
}

// EncodeHeader serialises p into a 128-byte header record.
func EncodeHeader(p WriteParams) ([binrec.MessageRecordSize]byte, error) {
	var out [binrec.MessageRecordSize]byte

	out[offStatus] = p.Status
	copy(out[offMessageNum:offMessageNum+lenMessageNum], rightAlignASCII(fmt.Sprintf("%d", p.MessageNumber), lenMessageNum))
	copy(out[offDate:offDate+lenDate], binrec.PadRightASCII(p.Date, lenDate))
	copy(out[offTime:offTime+lenTime], binrec.PadRightASCII(p.Time, lenTime))
	copy(out[offTo:offTo+lenTo], encodeFieldCP437(p.To, lenTo))
	copy(out[offFrom:offFrom+lenFrom], encodeFieldCP437(p.From, lenFrom))
	copy(out[offSubject:offSubject+lenSubject], encodeFieldCP437(p.Subject, lenSubject))
	copy(out[offPassword:offPassword+lenPassword], encodeFieldCP437(p.Password, lenPassword))
	copy(out[offReference:offReference+lenReference], binrec.PadRightASCII(p.Reference, lenReference))

	blockCount := p.BlockCount
	if blockCount < 1 {
		blockCount = 1
	}
	copy(out[offBlockCount:offBlockCount+lenBlockCount], rightAlignASCII(fmt.Sprintf("%d", blockCount), lenBlockCount))

	alive := p.Alive
	if alive != AliveLive && alive != AliveKilled {
		alive = AliveLive
	}
	out[offAlive] = alive

	out[offConference] = byte(p.Conference)
	out[offConference+1] = byte(p.Conference >> 8)

	for i := offReserved; i < offReserved+lenReserved; i++ {
		out[i] = ' '
	}

	return out, nil
}

// rightAlignASCII right-aligns a decimal string within width bytes,
// space-padding on the left and truncating from the left if it would
// overflow (which should never happen for realistic message counts).
func rightAlignASCII(s string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = ' '
	}
	if len(s) >= width {
		copy(out, s[len(s)-width:])
		return out
	}
	copy(out[width-len(s):], s)
	return out
}

package control

import (
	"fmt"
	"io"

	"github.com/stlalpha/oqwk/cp437"
)

// WriteRawLines serialises rec.RawLines back to CP437 bytes with CRLF
// line endings, the convention real QWK readers emit. This is used by
// the REP writer when it copies a ControlRecord from the source packet
// unchanged rather than reconstructing it field by field, preserving
// every line the original CONTROL.DAT carried. Line endings are always
// written as CRLF, and a rune CP437 cannot encode is written as '?'.
func WriteRawLines(w io.Writer, rec *Record) error {
	for _, line := range rec.RawLines {
		encoded, err := cp437.Encode(line, cp437.EncodeReplacementQuestion)
		if err != nil {
			return fmt.Errorf("control: encode line %q: %w", line, err)
		}
		if _, err := w.Write(encoded); err != nil {
			return fmt.Errorf("control: write line: %w", err)
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return fmt.Errorf("control: write line terminator: %w", err)
		}
	}
	return nil
}

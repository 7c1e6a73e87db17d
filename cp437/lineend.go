package cp437

import "strings"

// LineEndMode selects how QWK's 0xE3/π line separator is rendered when
// decoding to text, and which separator encoding targets when
// re-assembling QWK body bytes.
type LineEndMode int

const (
	// Preserve treats 0xE3 as a line break. SplitLines handles it the
	// same way as NormaliseToLf: CR and LF sequences already present in
	// the content are line breaks too, and "\n" is used regardless of
	// the host platform.
	Preserve LineEndMode = iota
	// NormaliseToLf converts 0xE3 (and any CR/LF already present) to "\n".
	NormaliseToLf
	// NormaliseToCrLf converts 0xE3 (and any CR/LF already present) to "\r\n".
	NormaliseToCrLf
	// StrictQwk treats only 0xE3/π as a separator; literal CR and LF
	// bytes already present in the content are left exactly as-is.
	StrictQwk
)

// SplitLines splits decoded CP437 text (containing Pi as the QWK line
// separator) into lines per mode, trimming trailing spaces from each
// line the way QWK body padding requires. StrictQwk splits on Pi only;
// every other mode also splits on CRLF, lone CR, and lone LF.
func SplitLines(decoded string, mode LineEndMode) []string {
	var lines []string
	switch mode {
	case StrictQwk:
		lines = strings.Split(decoded, string(Pi))
	default:
		normalised := strings.ReplaceAll(decoded, string(Pi), "\n")
		normalised = strings.ReplaceAll(normalised, "\r\n", "\n")
		normalised = strings.ReplaceAll(normalised, "\r", "\n")
		lines = strings.Split(normalised, "\n")
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}

// JoinLines reassembles already-split body lines into QWK body text,
// using Pi (U+03C0) as the line separator. The result is ready for
// cp437.Encode, which maps Pi back to byte 0xE3.
func JoinLines(lines []string) string {
	return strings.Join(lines, string(Pi))
}

// NormalizeToTerminator converts any CRLF, LF, or CR sequence already
// present in text to the QWK terminator rune — in that order, so a
// CRLF pair is never double-converted into two terminators. When
// targetIsCP437 is true the terminator is Pi (U+03C0), which Encode
// maps to byte 0xE3; otherwise it is U+00E3 (the raw Latin-1 code point
// QWK software targeting a non-CP437 output would use instead).
func NormalizeToTerminator(text string, targetIsCP437 bool) string {
	term := string(Pi)
	if !targetIsCP437 {
		term = "ã"
	}
	text = strings.ReplaceAll(text, "\r\n", term)
	text = strings.ReplaceAll(text, "\n", term)
	text = strings.ReplaceAll(text, "\r", term)
	return text
}

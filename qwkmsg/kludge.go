package qwkmsg

import "strings"

// Kludge is a single (key, value, raw-line) triple extracted from the
// top of a message body.
type Kludge struct {
	Key     string
	Value   string
	RawLine string
}

// qwkeKeys lists the QWKE extended-header keys, matched
// case-insensitively against the text before the first colon.
var qwkeKeys = map[string]bool{
	"to":      true,
	"from":    true,
	"subject": true,
}

// ExtractKludges scans lines from the top, recognising two
// conventions: QWKE extended headers ("To:", "From:", "Subject:", case
// insensitive, one leading space trimmed from the value) and
// Synchronet @-kludges (a line starting with '@', an identifier with
// no spaces, then ':'; the stored key retains the leading '@').
// Scanning stops unconditionally at the first line matching neither
// convention or at a blank line. A blank line is consumed (removed
// from the returned body) only if at least one kludge was already
// extracted — this is what keeps reply attributions like "Re:" and
// "By:", and URLs containing a colon, from being misread as kludges
// once scanning has already stopped short of them.
func ExtractKludges(lines []string) (kludges []Kludge, body []string) {
	i := 0
	for i < len(lines) {
		line := lines[i]

		if line == "" {
			if len(kludges) > 0 {
				i++
			}
			break
		}

		if k, ok := matchQWKEKludge(line); ok {
			kludges = append(kludges, k)
			i++
			continue
		}
		if k, ok := matchSynchronetKludge(line); ok {
			kludges = append(kludges, k)
			i++
			continue
		}
		break
	}

	return kludges, lines[i:]
}

func matchQWKEKludge(line string) (Kludge, bool) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return Kludge{}, false
	}
	key := line[:colon]
	if !qwkeKeys[strings.ToLower(key)] {
		return Kludge{}, false
	}
	value := strings.TrimPrefix(line[colon+1:], " ")
	return Kludge{Key: key, Value: value, RawLine: line}, true
}

func matchSynchronetKludge(line string) (Kludge, bool) {
	if len(line) < 2 || line[0] != '@' {
		return Kludge{}, false
	}
	colon := strings.IndexByte(line, ':')
	if colon < 1 {
		return Kludge{}, false
	}
	ident := line[1:colon]
	if ident == "" || strings.ContainsAny(ident, " \t") {
		return Kludge{}, false
	}
	value := strings.TrimPrefix(line[colon+1:], " ")
	return Kludge{Key: line[:colon], Value: value, RawLine: line}, true
}

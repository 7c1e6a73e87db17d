// Package qwke implements the two QWKE extensions this library
// supports beyond a bare QWK packet: surfacing the long To/From/Subject
// headers carried as in-body kludges, and the whitespace-separated
// command streams in TOREADER.EXT and TODOOR.EXT.
package qwke

import (
	"bufio"
	"io"
	"strings"

	"github.com/stlalpha/oqwk/cp437"
	"github.com/stlalpha/oqwk/qwkmsg"
)

// LongHeaders holds the advisory override values a QWKE long header
// supplies. A nil field (as opposed to an empty string) means no such
// kludge was present — callers distinguish "absent" from "explicitly
// empty".
type LongHeaders struct {
	To      *string
	From    *string
	Subject *string
}

// ExtractLongHeaders surfaces the first To/From/Subject kludge value
// found in kludges as the QWKE "extended" header fields. "First wins":
// a later kludge with the same key is ignored. These are advisory —
// callers may prefer them over the message's 25-byte fixed fields when
// present.
func ExtractLongHeaders(kludges []qwkmsg.Kludge) LongHeaders {
	var lh LongHeaders
	for _, k := range kludges {
		switch strings.ToLower(k.Key) {
		case "to":
			if lh.To == nil {
				v := k.Value
				lh.To = &v
			}
		case "from":
			if lh.From == nil {
				v := k.Value
				lh.From = &v
			}
		case "subject":
			if lh.Subject == nil {
				v := k.Value
				lh.Subject = &v
			}
		}
	}
	return lh
}

// Command is one line from a TOREADER.EXT or TODOOR.EXT file: a
// command name, its parameters (the text after the first run of
// whitespace), and the raw source line.
type Command struct {
	Name       string
	Parameters string
	RawLine    string
}

// ParseCommands reads a line-oriented command stream. Each non-blank
// line splits on the first space or tab into (command, parameters);
// surrounding whitespace on the line is trimmed first. Blank and
// whitespace-only lines are skipped. Command names are not validated
// against any known set.
func ParseCommands(r io.Reader) ([]Command, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	decoded, err := cp437.Decode(raw, cp437.DecodeBestEffort)
	if err != nil {
		return nil, err
	}

	var commands []Command
	scanner := bufio.NewScanner(strings.NewReader(decoded))
	for scanner.Scan() {
		rawLine := scanner.Text()
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		i := strings.IndexAny(line, " \t")
		if i < 0 {
			commands = append(commands, Command{Name: line, RawLine: rawLine})
			continue
		}
		name := line[:i]
		params := strings.TrimSpace(line[i+1:])
		commands = append(commands, Command{Name: name, Parameters: params, RawLine: rawLine})
	}
	return commands, scanner.Err()
}

package qwkmsg

import (
	"bufio"
	"io"
	"strings"

	"github.com/stlalpha/oqwk/cp437"
)

// DoorIDEntry is one raw "key=value" line from a DOOR.ID file.
type DoorIDEntry struct {
	Key   string
	Value string
}

// DoorID is the parsed contents of an optional DOOR.ID file.
type DoorID struct {
	Name         string
	Version      string
	Capabilities map[string]bool
	Entries      []DoorIDEntry
}

// ParseDoorID reads a DOOR.ID stream of "key=value" lines. Recognised
// keys populate Name/Version/Capabilities; every line, recognised or
// not, is retained in Entries in file order.
func ParseDoorID(r io.Reader) (*DoorID, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	decoded, err := cp437.Decode(raw, cp437.DecodeBestEffort)
	if err != nil {
		return nil, err
	}

	d := &DoorID{Capabilities: map[string]bool{}}
	scanner := bufio.NewScanner(strings.NewReader(decoded))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			d.Entries = append(d.Entries, DoorIDEntry{Key: line})
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		d.Entries = append(d.Entries, DoorIDEntry{Key: key, Value: value})

		switch strings.ToUpper(key) {
		case "DOOR", "NAME":
			d.Name = value
		case "VERSION", "VER":
			d.Version = value
		case "CAPABILITIES", "CAPS":
			for _, capName := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
				if capName != "" {
					d.Capabilities[strings.ToUpper(capName)] = true
				}
			}
		}
	}
	return d, nil
}

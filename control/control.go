// Package control implements the CONTROL.DAT text-record parser: BBS
// identity fields, the creation timestamp with its four tolerated
// date-format variants, the conference list, and the trailing optional
// file names. Every line is preserved verbatim alongside the parsed
// fields, so a round-trip write never loses information the parse
// step discarded.
package control

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stlalpha/oqwk/cp437"
	"github.com/stlalpha/oqwk/validate"
)

// Sentinel errors surfaced by Parse in validate.Strict mode.
var (
	ErrMissingRequiredLines = errors.New("control: fewer than 11 required lines")
	ErrInvalidDate          = errors.New("control: creation date/time unparseable")
)

// defaultBBSName is substituted for field 0 in Lenient/Salvage mode
// when the line is missing.
const defaultBBSName = "Unknown BBS"

// ConferenceInfo names one message conference declared in CONTROL.DAT.
type ConferenceInfo struct {
	Number uint16
	Name   string // trailing whitespace preserved exactly as written
}

// Record is the fully parsed contents of a CONTROL.DAT file.
type Record struct {
	BBSName          string
	City             string
	Phone            string
	Sysop            string
	Registration     string
	BBSID            string // 1-8 chars, second half of field 4
	Created          time.Time
	UserName         string
	MenuFile         string
	NetMailConf      uint16
	TotalMessages    int32
	ConferenceCount  int32 // as stored: conference-count-minus-one
	Conferences      []ConferenceInfo
	WelcomeFile      string
	NewsFile         string
	GoodbyeFile      string

	// RawLines is the original line sequence, decoded but otherwise
	// untouched. It must be preserved for round-trip fidelity even when
	// individual fields above were substituted with defaults.
	RawLines []string
}

const requiredLineCount = 11

// Parse reads a CONTROL.DAT byte stream (CP437 text, CRLF- or
// LF-terminated lines) and produces a Record. Diagnostics are recorded
// in vc; in validate.Strict mode a structural failure also returns a
// non-nil error.
func Parse(r io.Reader, vc *validate.Context) (*Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("control: read: %w", err)
	}

	decoded, err := cp437.Decode(raw, cp437.DecodeBestEffort)
	if err != nil {
		return nil, fmt.Errorf("control: decode: %w", err)
	}

	lines := splitRawLines(decoded)
	rec := &Record{RawLines: lines}

	if len(lines) < requiredLineCount {
		vc.Errorf(validate.Location{File: "CONTROL.DAT"}, "only %d lines present, need at least %d", len(lines), requiredLineCount)
		if vc.Mode == validate.Strict {
			return nil, ErrMissingRequiredLines
		}
		applyDefaults(rec, lines)
		return rec, nil
	}

	rec.BBSName = fieldOrDefault(lines, 0, defaultBBSName)
	rec.City = fieldOrDefault(lines, 1, "")
	rec.Phone = fieldOrDefault(lines, 2, "")
	rec.Sysop = fieldOrDefault(lines, 3, "")

	reg, bbsID := splitRegistration(lines[4])
	rec.Registration = reg
	rec.BBSID = bbsID

	created, dateErr := parseDateTime(lines[5], vc)
	rec.Created = created
	if dateErr != nil && vc.Mode == validate.Strict {
		return nil, ErrInvalidDate
	}

	rec.UserName = fieldOrDefault(lines, 6, "")
	rec.MenuFile = fieldOrDefault(lines, 7, "")
	rec.NetMailConf = parseU16(lines[8], vc, "net-mail conference")
	rec.TotalMessages = parseI32(lines[9], vc, "total messages")
	rec.ConferenceCount = parseI32(lines[10], vc, "conference count")

	confCount := int(rec.ConferenceCount) + 1
	if confCount < 0 {
		vc.Warnf(validate.Location{File: "CONTROL.DAT", Line: 11}, "negative conference count %d, treating as 0", rec.ConferenceCount)
		confCount = 0
	}

	idx := requiredLineCount
	for i := 0; i < confCount; i++ {
		if idx+1 >= len(lines) {
			vc.Warnf(validate.Location{File: "CONTROL.DAT", Line: idx + 1}, "conference %d truncated: missing number/name pair", i)
			break
		}
		num := parseU16(lines[idx], vc, "conference number")
		name := lines[idx+1]
		rec.Conferences = append(rec.Conferences, ConferenceInfo{Number: num, Name: name})
		idx += 2
	}

	optionals := []*string{&rec.WelcomeFile, &rec.NewsFile, &rec.GoodbyeFile}
	for _, dest := range optionals {
		if idx >= len(lines) {
			break
		}
		*dest = lines[idx]
		idx++
	}

	return rec, nil
}

// splitRawLines splits decoded text on LF, first stripping a trailing
// CR from each line so both CRLF- and LF-terminated files normalise to
// the same line vector.
func splitRawLines(decoded string) []string {
	parts := strings.Split(decoded, "\n")
	// A trailing empty element from a final newline is not a line.
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}

func applyDefaults(rec *Record, lines []string) {
	rec.BBSName = fieldOrDefault(lines, 0, defaultBBSName)
	rec.City = fieldOrDefault(lines, 1, "")
	rec.Phone = fieldOrDefault(lines, 2, "")
	rec.Sysop = fieldOrDefault(lines, 3, "")
	rec.Created = dateSentinel()
}

func fieldOrDefault(lines []string, i int, def string) string {
	if i < 0 || i >= len(lines) {
		return def
	}
	return lines[i]
}

// splitRegistration splits field 4's "registration,bbs-id" form on the
// first comma. A missing comma yields the whole field as registration
// and an empty BBS ID.
func splitRegistration(field string) (registration, bbsID string) {
	i := strings.IndexByte(field, ',')
	if i < 0 {
		return field, ""
	}
	return field[:i], field[i+1:]
}

func parseU16(s string, vc *validate.Context, field string) uint16 {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		vc.Warnf(validate.Location{File: "CONTROL.DAT"}, "%s %q unparseable, defaulting to 0", field, s)
		return 0
	}
	return uint16(v)
}

func parseI32(s string, vc *validate.Context, field string) int32 {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		vc.Warnf(validate.Location{File: "CONTROL.DAT"}, "%s %q unparseable, defaulting to 0", field, s)
		return 0
	}
	return int32(v)
}

// parseDateTime handles the four tolerated date-format variants, all
// paired with time via a comma: MM-DD-YY, MM/DD/YY, MM-DD-YYYY,
// MM/DD/YYYY, each followed by ",HH:MM" or ",HH:MM:SS".
func parseDateTime(line string, vc *validate.Context) (time.Time, error) {
	loc := validate.Location{File: "CONTROL.DAT", Line: 6}
	datePart, timePart, ok := strings.Cut(line, ",")
	if !ok {
		err := fmt.Errorf("missing comma between date and time")
		vc.Violationf(loc, "creation line %q: %v", line, err)
		return dateSentinel(), err
	}

	month, day, year, err := parseDateVariant(datePart)
	if err != nil {
		vc.Violationf(loc, "creation date %q: %v", datePart, err)
		return dateSentinel(), err
	}

	hour, minute, second, err := parseTimeOfDay(timePart, vc, loc)
	if err != nil {
		vc.Violationf(loc, "creation time %q: %v", timePart, err)
		return dateSentinel(), err
	}

	if month < 1 || month > 12 {
		err := fmt.Errorf("month %d out of range 1-12", month)
		vc.Violationf(loc, "%v", err)
		return dateSentinel(), err
	}
	if day < 1 || day > daysInMonth(year, month) {
		err := fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
		vc.Violationf(loc, "%v", err)
		return dateSentinel(), err
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local), nil
}

// dateSentinel is the unix-epoch value substituted for a creation
// timestamp that fails to parse.
func dateSentinel() time.Time {
	return time.Unix(0, 0).UTC()
}

// parseDateVariant accepts MM-DD-YY, MM/DD/YY, MM-DD-YYYY, or
// MM/DD/YYYY. Both delimiters in the date must match (both '-' or
// both '/'). A 2-digit year maps 0-49 to 2000-2049 and 50-99 to
// 1950-1999; a 4-digit year must fall within 1980-2099.
func parseDateVariant(s string) (month, day, year int, err error) {
	var delim byte
	switch {
	case strings.ContainsRune(s, '-'):
		delim = '-'
	case strings.ContainsRune(s, '/'):
		delim = '/'
	default:
		return 0, 0, 0, fmt.Errorf("no recognised date delimiter")
	}

	parts := strings.Split(s, string(delim))
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected MM%cDD%cYY[YY], got %q", delim, delim, s)
	}

	month, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad month: %w", err)
	}
	day, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad day: %w", err)
	}
	yearRaw, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad year: %w", err)
	}

	switch len(parts[2]) {
	case 2:
		if yearRaw <= 49 {
			year = 2000 + yearRaw
		} else {
			year = 1900 + yearRaw
		}
	case 4:
		year = yearRaw
		if year < 1980 || year > 2099 {
			return 0, 0, 0, fmt.Errorf("4-digit year %d out of range 1980-2099", year)
		}
	default:
		return 0, 0, 0, fmt.Errorf("year field %q is neither 2 nor 4 digits", parts[2])
	}

	return month, day, year, nil
}

// parseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (24-hour). An
// out-of-range second clamps to 59 with a warning rather than failing.
func parseTimeOfDay(s string, vc *validate.Context, loc validate.Location) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected HH:MM or HH:MM:SS, got %q", s)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad hour: %w", err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad minute: %w", err)
	}
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("bad second: %w", err)
		}
	}

	if hour < 0 || hour > 23 {
		return 0, 0, 0, fmt.Errorf("hour %d out of range 0-23", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, 0, fmt.Errorf("minute %d out of range 0-59", minute)
	}
	if second > 59 {
		vc.Warnf(loc, "second %d out of range, clamping to 59", second)
		second = 59
	}
	if second < 0 {
		return 0, 0, 0, fmt.Errorf("second %d out of range 0-59", second)
	}

	return hour, minute, second, nil
}

var daysInMonthTable = [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func daysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 31
	}
	if month == 2 && isLeapYear(year) {
		return 29
	}
	return daysInMonthTable[month-1]
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// NewScanner is a convenience for callers that want to stream
// CONTROL.DAT without reading it fully into memory first, matching the
// bufio.Scanner idiom the rest of the codebase uses for line-oriented
// text. Parse itself reads the whole stream because the raw-line
// invariant requires retaining every line regardless of size.
func NewScanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}

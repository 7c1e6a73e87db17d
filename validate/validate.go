// Package validate provides the shared diagnostic context threaded
// through every packet parser. Parsers never abort recoverable work;
// instead they record an Issue and, outside Strict mode, substitute a
// documented default and keep going.
package validate

import "fmt"

// Mode controls how strictly a parser reacts to format violations.
type Mode int

const (
	// Strict fails the surrounding operation on the first Error.
	Strict Mode = iota
	// Lenient records diagnostics and substitutes defaults, never fails.
	Lenient
	// Salvage is accepted wherever Lenient is; every parser in this
	// module handles it exactly as Lenient (both substitute a minimal
	// synthetic record for a missing CONTROL.DAT, for example).
	Salvage
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	case Salvage:
		return "salvage"
	default:
		return "unknown"
	}
}

// Severity classifies an Issue.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Location pinpoints where an Issue was found, for diagnostics only.
// Any field may be zero/empty when not applicable.
type Location struct {
	File   string // e.g. "CONTROL.DAT", "MESSAGES.DAT"
	Line   int    // 1-based text line, when parsing a line-oriented file
	Offset int64  // byte offset, when parsing a binary file
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:line %d", l.File, l.Line)
	}
	if l.Offset > 0 {
		return fmt.Sprintf("%s:offset %d", l.File, l.Offset)
	}
	return l.File
}

// Issue is a single diagnostic recorded by a parser.
type Issue struct {
	Severity Severity
	Message  string
	Location Location
}

func (i Issue) String() string {
	loc := i.Location.String()
	if loc == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Severity, i.Message, loc)
}

// Report is the immutable, partitioned view of a completed Context.
type Report struct {
	Errors   []Issue
	Warnings []Issue
	Infos    []Issue
}

// IsValid reports whether the parse produced neither errors nor warnings.
func (r Report) IsValid() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0
}

// Context accumulates Issues across every parser invoked while opening
// or writing a single packet. It is not safe for concurrent use — a
// packet open runs on a single goroutine.
type Context struct {
	Mode   Mode
	issues []Issue
}

// New creates a Context for the given strictness mode.
func New(mode Mode) *Context {
	return &Context{Mode: mode}
}

// Add records an Issue regardless of mode.
func (c *Context) Add(severity Severity, location Location, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	})
}

// Errorf records an Error-severity issue.
func (c *Context) Errorf(location Location, format string, args ...any) {
	c.Add(Error, location, format, args...)
}

// Warnf records a Warning-severity issue.
func (c *Context) Warnf(location Location, format string, args ...any) {
	c.Add(Warning, location, format, args...)
}

// Infof records an Info-severity issue.
func (c *Context) Infof(location Location, format string, args ...any) {
	c.Add(Info, location, format, args...)
}

// Violationf records a format violation at Error severity in Strict
// mode and at Warning severity otherwise — the "Strict surfaces an
// error, Lenient/Salvage record a warning and continue" policy most
// parsers apply to recoverable field-level corruption.
func (c *Context) Violationf(location Location, format string, args ...any) {
	if c.Mode == Strict {
		c.Errorf(location, format, args...)
		return
	}
	c.Warnf(location, format, args...)
}

// HasErrors reports whether any Error-severity issue has been recorded.
func (c *Context) HasErrors() bool {
	for _, i := range c.issues {
		if i.Severity == Error {
			return true
		}
	}
	return false
}

// FirstError returns the first recorded Error, or nil if there is none.
func (c *Context) FirstError() *Issue {
	for i := range c.issues {
		if c.issues[i].Severity == Error {
			return &c.issues[i]
		}
	}
	return nil
}

// Report partitions the accumulated issues into a Report, preserving
// discovery order within each partition. That order is approximately
// source order but is not guaranteed to be strictly monotone across
// subsystems.
func (c *Context) Report() Report {
	var r Report
	for _, i := range c.issues {
		switch i.Severity {
		case Error:
			r.Errors = append(r.Errors, i)
		case Warning:
			r.Warnings = append(r.Warnings, i)
		default:
			r.Infos = append(r.Infos, i)
		}
	}
	return r
}

// Package logging provides the package-level debug logger used
// throughout oqwk: narration of structural/background events (loaded
// conference count, skipped corrupt MESSAGES.DAT block) at INFO or DEBUG
// level, gated by a single bool a host application owns.
package logging

import "log"

// DebugEnabled controls whether Debug() produces output. Host
// applications toggle this from whatever flag or environment variable
// they use (e.g. a -debug flag or OQWK_DEBUG=1); the codec itself
// never reads the environment.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Info logs a structural/background event unconditionally — the
// codec narrates what it did (not what went wrong; that belongs in a
// ValidationReport), the same way a caller piping packets through a
// batch job would want a trail without turning on debug output.
func Info(format string, args ...any) {
	log.Printf("INFO: "+format, args...)
}

package scheduler

import "github.com/rs/zerolog"

// resolveLogger returns *l if the caller configured one, or a fully
// disabled logger otherwise (logiface-zerolog's injected-logger
// convention - see SPEC_FULL.md §1).
func resolveLogger(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}

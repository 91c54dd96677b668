//go:build !stdlog && !nolog
// +build !stdlog,!nolog

package build

// LoggingType is a log type that routes through the caller's backend.
const LoggingType = LogTypeDefault

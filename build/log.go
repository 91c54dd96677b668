// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package build holds the compile time choices that decide where the
// subsystem loggers of the ledger, gateway and command line tool write.
package build

import (
	"os"

	"github.com/btcsuite/btclog"
)

// LogType selects the logging output, set through the nolog and stdlog
// build tags.
type LogType byte

const (
	// LogTypeNone disables all logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut writes every subsystem straight to stdout. Unit tests
	// use it.
	LogTypeStdOut

	// LogTypeDefault routes subsystems through the sub logger constructor
	// handed in by the caller, usually the backend owned by cmd/pjctl.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdOut:
		return "stdout"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// NewSubLogger returns the logger for subsystem. Production builds always use
// genSubLogger, development builds consult LoggingType. A nil genSubLogger
// disables the subsystem unless stdout logging was compiled in.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if Deployment == Development && LoggingType == LogTypeStdOut {
		return stdoutLogger(subsystem)
	}
	if Deployment == Development && LoggingType == LogTypeNone {
		return btclog.Disabled
	}

	if genSubLogger == nil {
		return btclog.Disabled
	}
	return genSubLogger(subsystem)
}

// stdoutLogger returns a logger for subsystem on its own stdout backend at
// LogLevel. Sharing a backend does not matter since all output goes to the
// same file descriptor.
func stdoutLogger(subsystem string) btclog.Logger {
	logger := btclog.NewBackend(os.Stdout).Logger(subsystem)

	level, _ := btclog.LevelFromString(LogLevel)
	logger.SetLevel(level)

	return logger
}

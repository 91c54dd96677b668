// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific gateway Error.
const (
	// ErrConnection indicates the daemon session could not be
	// established or broke. A gateway that returned this error must be
	// discarded and a new one opened.
	ErrConnection ErrorCode = iota

	// ErrDaemonRejected indicates bitcoind returned an error, an
	// unacceptable warning or a malformed result. The Err field carries
	// the daemon's message. These calls are never retried.
	ErrDaemonRejected

	// ErrDuplicateOutput indicates an input refers to an output that is
	// already committed to another transaction.
	ErrDuplicateOutput

	// ErrPersistence indicates the output ledger could not be read or
	// rewritten, so the reuse guard may be unreliable for the affected
	// outputs.
	ErrPersistence

	// ErrValidation indicates malformed identifiers, addresses or amounts
	// detected before any network call.
	ErrValidation
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrConnection:      "ErrConnection",
	ErrDaemonRejected:  "ErrDaemonRejected",
	ErrDuplicateOutput: "ErrDuplicateOutput",
	ErrPersistence:     "ErrPersistence",
	ErrValidation:      "ErrValidation",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors returned by the Gateway.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// gatewayError creates an Error given a set of arguments.
func gatewayError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether err is, or wraps, a gateway Error with a matching
// error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}

// errGatewayClosed is the cause of connection errors after Close.
var errGatewayClosed = errors.New("gateway closed")

// errWarning is the cause of rejections due to a daemon warning on an
// otherwise successful call.
var errWarning = errors.New("daemon returned a warning")

// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ledger Error.
const (
	// ErrPersistence indicates the backing store could not be opened,
	// read or rewritten. When this error code is set, the Err field of
	// the Error will be set to the underlying error. Outputs involved in
	// a failed insert must be treated as not durably recorded.
	ErrPersistence ErrorCode = iota

	// ErrInvalidOutPoint indicates a malformed transaction id or outpoint
	// string.
	ErrInvalidOutPoint
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrPersistence:     "ErrPersistence",
	ErrInvalidOutPoint: "ErrInvalidOutPoint",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ErrLedgerClosed is the cause attached to persistence errors returned after
// Close.
var ErrLedgerClosed = errors.New("ledger closed")

// Error provides a single type for errors that can happen during ledger
// operation.
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

// ledgerError creates an Error given a set of arguments.
func ledgerError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether err is, or wraps, a ledger Error with a matching
// error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}

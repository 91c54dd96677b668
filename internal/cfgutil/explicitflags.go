// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

// ExplicitString is a string option that remembers whether it was set from
// the command line or a config file, as opposed to left at its default.
// pjctl uses it to tell an explicit --rpccookie from the default cookie and
// an explicit --configfile from the default one.
type ExplicitString struct {
	Value         string
	explicitlySet bool
}

// NewExplicitString returns an unset option holding defaultValue.
func NewExplicitString(defaultValue string) *ExplicitString {
	return &ExplicitString{Value: defaultValue}
}

// ExplicitlySet reports whether UnmarshalFlag was called.
func (e *ExplicitString) ExplicitlySet() bool {
	return e.explicitlySet
}

// String returns the current value.
func (e *ExplicitString) String() string {
	return e.Value
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (e *ExplicitString) MarshalFlag() (string, error) {
	return e.Value, nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (e *ExplicitString) UnmarshalFlag(value string) error {
	e.Value = value
	e.explicitlySet = true
	return nil
}

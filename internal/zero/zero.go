// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero contains functions to clear data from byte slices once a
// secret, such as a wallet passphrase, is no longer needed.
package zero

// Bytes sets all bytes in the passed slice to zero.  This is used to
// explicitly clear sensitive material from memory.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// String returns a copy of b as a string and clears b.  The returned string
// cannot itself be cleared, so this is only used at the boundary with APIs
// that insist on strings.
func String(b []byte) string {
	s := string(b)
	Bytes(b)

	return s
}

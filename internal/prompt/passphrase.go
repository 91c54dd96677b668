// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcpj/internal/zero"
)

// maxAttempts bounds how often the user is asked again after an empty or
// mismatched passphrase.
const maxAttempts = 3

// ErrNoPassphrase is returned when the user fails to enter a usable
// passphrase within maxAttempts tries.
var ErrNoPassphrase = errors.New("no passphrase entered")

// passPrompt implements PassPrompt on top of an arbitrary secret reader so it
// can run without a terminal.
func passPrompt(readPass func() ([]byte, error), w io.Writer, prefix string,
	confirm bool) ([]byte, error) {

	for i := 0; i < maxAttempts; i++ {
		fmt.Fprintf(w, "%s: ", prefix)
		pass, err := readPass()
		if err != nil {
			return nil, err
		}
		fmt.Fprint(w, "\n")
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Fprint(w, "Confirm passphrase: ")
		again, err := readPass()
		if err != nil {
			zero.Bytes(pass)
			return nil, err
		}
		fmt.Fprint(w, "\n")
		again = bytes.TrimSpace(again)
		match := bytes.Equal(pass, again)
		zero.Bytes(again)
		if !match {
			zero.Bytes(pass)
			fmt.Fprintln(w, "The entered passphrases do not match")
			continue
		}

		return pass, nil
	}

	return nil, ErrNoPassphrase
}

// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !js
// +build !js

package prompt

import (
	"os"

	"golang.org/x/term"
)

// PassPrompt prompts the user for a passphrase with the given prefix.  The
// function will ask the user to confirm the passphrase and will repeat the
// prompts until they enter a matching response.
func PassPrompt(prefix string, confirm bool) ([]byte, error) {
	readPass := func() ([]byte, error) {
		return term.ReadPassword(int(os.Stdin.Fd()))
	}

	return passPrompt(readPass, os.Stdout, prefix, confirm)
}

// WalletPassphrase prompts for the encryption passphrase of a wallet that is
// about to be created.
func WalletPassphrase() ([]byte, error) {
	return PassPrompt("Enter the passphrase for the new wallet", true)
}

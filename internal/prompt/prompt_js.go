// Copyright (c) 2015-2021 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build js
// +build js

package prompt

import "fmt"

func PassPrompt(_ string, _ bool) ([]byte, error) {
	return nil, fmt.Errorf("prompt not supported in WebAssembly")
}

func WalletPassphrase() ([]byte, error) {
	return nil, fmt.Errorf("prompt not supported in WebAssembly")
}

// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Auth is the way the gateway authenticates to bitcoind's RPC server. It is
// either a CookieFile or a UserPass.
type Auth interface {
	// credentials returns the credential source used by the RPC client.
	credentials() credentialSource
}

// CookieFile authenticates with the cookie bitcoind writes to its data
// directory. The file is re-read when it changes, so a bitcoind restart
// does not break the gateway.
type CookieFile struct {
	Path string
}

func (c CookieFile) credentials() credentialSource {
	return &cookieCredentials{path: c.Path}
}

// UserPass authenticates with an rpcuser/rpcpassword pair.
type UserPass struct {
	User string
	Pass string
}

func (u UserPass) credentials() credentialSource {
	return staticCredentials{user: u.User, pass: u.Pass}
}

// LedgerBackend selects how the output ledger is persisted.
type LedgerBackend string

const (
	// LedgerJSON stores the ledger as a JSON array rewritten on every
	// change.
	LedgerJSON LedgerBackend = "json"

	// LedgerBolt stores the ledger in a bbolt database.
	LedgerBolt LedgerBackend = "bolt"
)

// Config contains all of the parameters required to open a Gateway.
type Config struct {
	// Host is the IP address and port of bitcoind's RPC server.
	Host string

	// Auth holds the RPC credentials.
	Auth Auth

	// ChainParams are the parameters of the network bitcoind is expected
	// to run on. Addresses are validated against them.
	ChainParams *chaincfg.Params

	// LedgerPath is the location of the output ledger.
	LedgerPath string

	// LedgerBackend selects the ledger format. The empty value means
	// LedgerJSON.
	LedgerBackend LedgerBackend
}

// validate checks the config for missing or inconsistent values.
func (c *Config) validate() error {
	switch {
	case c.Host == "":
		return gatewayError(ErrValidation, "missing RPC host", nil)

	case c.Auth == nil:
		return gatewayError(ErrValidation, "missing RPC credentials", nil)

	case c.ChainParams == nil:
		return gatewayError(ErrValidation, "missing chain params", nil)

	case c.LedgerPath == "":
		return gatewayError(ErrValidation, "missing ledger path", nil)
	}

	switch c.LedgerBackend {
	case "", LedgerJSON, LedgerBolt:
	default:
		str := fmt.Sprintf("unknown ledger backend %q", c.LedgerBackend)
		return gatewayError(ErrValidation, str, nil)
	}

	if cookie, ok := c.Auth.(CookieFile); ok && cookie.Path == "" {
		return gatewayError(ErrValidation, "empty RPC cookie path", nil)
	}

	return nil
}

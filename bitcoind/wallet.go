// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// walletResult is the result of loadwallet and createwallet. Older bitcoind
// releases report a single warning string, newer ones a list.
type walletResult struct {
	Name     string   `json:"name"`
	Warning  string   `json:"warning"`
	Warnings []string `json:"warnings"`
}

// warning returns all non-empty warnings joined, or "" if there are none.
func (r *walletResult) warning() string {
	var all []string
	if r.Warning != "" {
		all = append(all, r.Warning)
	}
	for _, w := range r.Warnings {
		if w != "" && w != r.Warning {
			all = append(all, w)
		}
	}

	return strings.Join(all, "; ")
}

// CreateWalletOptions are the optional createwallet arguments. Unset options
// take bitcoind's defaults.
type CreateWalletOptions struct {
	// DisablePrivateKeys creates a watch-only wallet.
	DisablePrivateKeys fn.Option[bool]

	// Blank creates a wallet without keys or HD seed.
	Blank fn.Option[bool]

	// Passphrase encrypts the wallet.
	Passphrase fn.Option[string]

	// AvoidReuse enables address reuse avoidance.
	AvoidReuse fn.Option[bool]
}

// LoadWallet asks bitcoind to load the wallet called name and returns the
// name of the loaded wallet.
//
// A warning on an otherwise successful load is treated as a failure, the
// same as an error. This rejects some benign cases, such as wallets created
// by older releases, but an ambiguous result is never reported as success.
func (g *Gateway) LoadWallet(name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if name == "" {
		return "", gatewayError(ErrValidation, "empty wallet name", nil)
	}

	raw, err := g.request("loadwallet", name)
	if err != nil {
		return "", err
	}

	return g.checkWalletResult("loadwallet", name, raw)
}

// CreateWallet asks bitcoind to create the wallet called name and returns
// its name. The same strict warning policy as LoadWallet applies.
func (g *Gateway) CreateWallet(name string,
	opts CreateWalletOptions) (string, error) {

	g.mu.Lock()
	defer g.mu.Unlock()

	if name == "" {
		return "", gatewayError(ErrValidation, "empty wallet name", nil)
	}

	raw, err := g.request(
		"createwallet", name,
		opts.DisablePrivateKeys.UnwrapOr(false),
		opts.Blank.UnwrapOr(false),
		opts.Passphrase.UnwrapOr(""),
		opts.AvoidReuse.UnwrapOr(false),
	)
	if err != nil {
		return "", err
	}

	return g.checkWalletResult("createwallet", name, raw)
}

// checkWalletResult decodes a wallet result and applies the warning policy.
func (g *Gateway) checkWalletResult(method, name string,
	raw []byte) (string, error) {

	var res walletResult
	if err := decodeResult(method, raw, &res); err != nil {
		return "", err
	}

	if w := res.warning(); w != "" {
		log.Warnf("bitcoind %s of wallet %q returned warning: %s",
			method, name, w)
		str := fmt.Sprintf("%s of wallet %q: %s", method, name, w)
		return "", gatewayError(ErrDaemonRejected, str, errWarning)
	}

	if res.Name == "" {
		res.Name = name
	}

	log.Infof("bitcoind %s of wallet %q succeeded", method, res.Name)

	return res.Name, nil
}

// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// AddressType is the script type of a receiving address.
type AddressType uint8

const (
	// AddressLegacy is a pay-to-pubkey-hash address.
	AddressLegacy AddressType = iota

	// AddressP2SHSegwit is a P2WPKH output nested in pay-to-script-hash.
	AddressP2SHSegwit

	// AddressBech32 is a native segwit v0 pay-to-witness-pubkey-hash
	// address.
	AddressBech32

	// AddressBech32m is a native segwit v1 (taproot) address.
	AddressBech32m
)

// addressTypeNames maps address types to the names bitcoind uses.
var addressTypeNames = map[AddressType]string{
	AddressLegacy:     "legacy",
	AddressP2SHSegwit: "p2sh-segwit",
	AddressBech32:     "bech32",
	AddressBech32m:    "bech32m",
}

// String returns the bitcoind name of the address type.
func (t AddressType) String() string {
	if s, ok := addressTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ParseAddressType returns the address type bitcoind calls name.
func ParseAddressType(name string) (AddressType, error) {
	for t, s := range addressTypeNames {
		if s == name {
			return t, nil
		}
	}

	str := fmt.Sprintf("unknown address type %q", name)
	return 0, gatewayError(ErrValidation, str, nil)
}

// matches reports whether addr is of type t.
func (t AddressType) matches(addr btcutil.Address) bool {
	switch addr.(type) {
	case *btcutil.AddressPubKeyHash:
		return t == AddressLegacy
	case *btcutil.AddressScriptHash:
		return t == AddressP2SHSegwit
	case *btcutil.AddressWitnessPubKeyHash:
		return t == AddressBech32
	case *btcutil.AddressTaproot:
		return t == AddressBech32m
	default:
		return false
	}
}

// NewAddress asks the loaded wallet for a fresh receiving address. The result
// is checked to belong to the gateway's network and, if addrType is set, to
// be of that type.
func (g *Gateway) NewAddress(label fn.Option[string],
	addrType fn.Option[AddressType]) (btcutil.Address, error) {

	g.mu.Lock()
	defer g.mu.Unlock()

	var params []interface{}
	switch {
	case addrType.IsSome():
		t := addrType.UnwrapOr(AddressBech32)
		if _, ok := addressTypeNames[t]; !ok {
			str := fmt.Sprintf("unknown address type %v", t)
			return nil, gatewayError(ErrValidation, str, nil)
		}
		params = []interface{}{label.UnwrapOr(""), t.String()}

	case label.IsSome():
		params = []interface{}{label.UnwrapOr("")}
	}

	raw, err := g.request("getnewaddress", params...)
	if err != nil {
		return nil, err
	}

	var encoded string
	if err := decodeResult("getnewaddress", raw, &encoded); err != nil {
		return nil, err
	}

	addr, err := g.decodeAddress(encoded)
	if err != nil {
		return nil, err
	}

	var mismatch error
	addrType.WhenSome(func(t AddressType) {
		if !t.matches(addr) {
			str := fmt.Sprintf("bitcoind returned %T %s, want "+
				"%v address", addr, encoded, t)
			mismatch = gatewayError(ErrValidation, str, nil)
		}
	})
	if mismatch != nil {
		return nil, mismatch
	}

	log.Debugf("New address %s", addr)

	return addr, nil
}

// decodeAddress parses addr and checks it belongs to the gateway's network.
func (g *Gateway) decodeAddress(addr string) (btcutil.Address, error) {
	decoded, err := btcutil.DecodeAddress(addr, g.params)
	if err != nil {
		str := fmt.Sprintf("invalid address %q", addr)
		return nil, gatewayError(ErrValidation, str, err)
	}

	if !decoded.IsForNet(g.params) {
		str := fmt.Sprintf("address %s is not for network %s", addr,
			g.params.Name)
		return nil, gatewayError(ErrValidation, str, nil)
	}

	return decoded, nil
}

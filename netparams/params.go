// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params

	// RPCServerPort is bitcoind's default JSON-RPC port on the network.
	RPCServerPort string

	// DataDirName is the subdirectory of bitcoind's data directory that
	// holds the network's files, including the RPC cookie.
	DataDirName string
}

// MainNetParams contains parameters specific to running against bitcoind on
// the main network (wire.MainNet).
var MainNetParams = Params{
	Params:        &chaincfg.MainNetParams,
	RPCServerPort: "8332",
	DataDirName:   "",
}

// TestNet3Params contains parameters specific to running against bitcoind on
// the test network (version 3) (wire.TestNet3).
var TestNet3Params = Params{
	Params:        &chaincfg.TestNet3Params,
	RPCServerPort: "18332",
	DataDirName:   "testnet3",
}

// RegressionNetParams contains parameters specific to running against a
// bitcoind regtest node (wire.TestNet).
var RegressionNetParams = Params{
	Params:        &chaincfg.RegressionNetParams,
	RPCServerPort: "18443",
	DataDirName:   "regtest",
}

// SigNetParams contains parameters specific to running against bitcoind on
// the default signet (wire.SigNet).
var SigNetParams = Params{
	Params:        &chaincfg.SigNetParams,
	RPCServerPort: "38332",
	DataDirName:   "signet",
}

// ByName returns the parameters of the network called name, using the names
// bitcoind reports in getblockchaininfo.
func ByName(name string) (*Params, error) {
	switch name {
	case "main", "mainnet":
		return &MainNetParams, nil
	case "test", "testnet", "testnet3":
		return &TestNet3Params, nil
	case "regtest":
		return &RegressionNetParams, nil
	case "signet":
		return &SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bitcoind provides a gateway to a bitcoind node that builds unsigned
// transactions for collaborative (payjoin) spends while guarding against
// committing the same output twice.
//
// A Gateway owns exactly one RPC session and serializes every call on it.
// It shares an output ledger with the rest of the process: inputs are checked
// against the ledger before a transaction template is requested and recorded
// durably before success is reported. Locks are always taken in the order
// gateway mutex, then ledger mutex.
package bitcoind

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcpj/ledger"
	"github.com/davecgh/go-spew/spew"
)

// Gateway mediates all access to a bitcoind node. Daemon errors are never
// retried. A transport failure breaks the gateway; every later call fails
// with ErrConnection and a new Gateway must be opened.
//
// NOTE: All methods are safe for concurrent access. Calls are serialized.
type Gateway struct {
	// mu guards the RPC session for the full duration of each call.
	mu sync.Mutex

	client rpcClient
	params *chaincfg.Params
	ledger *ledger.Ledger

	// broken is the transport error that made the session unusable, or
	// errGatewayClosed after Close.
	broken error
}

// Open connects to bitcoind, checks that it runs on cfg.ChainParams and loads
// the output ledger. Connection failures are returned as ErrConnection and no
// gateway is created.
func Open(cfg *Config) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := newRPCClient(cfg)
	if err := verifyNetwork(client, cfg.ChainParams); err != nil {
		client.Shutdown()
		return nil, err
	}

	var (
		l   *ledger.Ledger
		err error
	)
	switch cfg.LedgerBackend {
	case LedgerBolt:
		l, err = ledger.LoadBolt(cfg.LedgerPath)
	default:
		l, err = ledger.Load(cfg.LedgerPath)
	}
	if err != nil {
		client.Shutdown()
		return nil, gatewayError(ErrPersistence,
			"unable to load output ledger", err)
	}

	log.Infof("Connected to bitcoind at %s on %s, ledger %s", cfg.Host,
		cfg.ChainParams.Name, cfg.LedgerPath)

	return newGateway(client, cfg.ChainParams, l), nil
}

// newGateway assembles a gateway around an established client.
func newGateway(client rpcClient, params *chaincfg.Params,
	l *ledger.Ledger) *Gateway {

	return &Gateway{
		client: client,
		params: params,
		ledger: l,
	}
}

// Ledger returns the output ledger shared by the gateway. Other writers may
// release outputs or record them; BuildUnsignedTx rechecks its inputs when it
// records them, so an output recorded elsewhere mid-build fails the build with
// ErrDuplicateOutput.
func (g *Gateway) Ledger() *ledger.Ledger {
	return g.ledger
}

// Close shuts down the RPC session and closes the ledger.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.broken == errGatewayClosed {
		return nil
	}
	g.broken = errGatewayClosed

	g.client.Shutdown()
	if err := g.ledger.Close(); err != nil {
		return gatewayError(ErrPersistence,
			"unable to close output ledger", err)
	}

	return nil
}

// request sends one RPC and classifies its failure.
//
// NOTE: The caller must hold g.mu.
func (g *Gateway) request(method string,
	params ...interface{}) (json.RawMessage, error) {

	if g.broken != nil {
		return nil, gatewayError(ErrConnection,
			"bitcoind session unusable", g.broken)
	}

	raw, err := marshalParams(params)
	if err != nil {
		str := fmt.Sprintf("unable to encode %s params", method)
		return nil, gatewayError(ErrValidation, str, err)
	}

	log.Tracef("Sending %s: %v", method, NewLogClosure(func() string {
		return spew.Sdump(params)
	}))

	result, err := g.client.RawRequest(method, raw)
	switch {
	case err == nil:
		return result, nil

	case isRPCError(err):
		log.Debugf("bitcoind rejected %s: %v", method, err)
		str := fmt.Sprintf("bitcoind rejected %s", method)
		return nil, gatewayError(ErrDaemonRejected, str, err)

	default:
		log.Errorf("bitcoind session broken during %s: %v", method, err)
		g.broken = err
		str := fmt.Sprintf("%s failed", method)
		return nil, gatewayError(ErrConnection, str, err)
	}
}

// decodeResult unmarshals an RPC result, treating undecodable results as a
// daemon fault.
func decodeResult(method string, raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		str := fmt.Sprintf("malformed %s result", method)
		return gatewayError(ErrDaemonRejected, str, err)
	}

	return nil
}

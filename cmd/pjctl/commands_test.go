// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcpj/bitcoind"
	"github.com/btcsuite/btcpj/ledger"
	"github.com/btcsuite/btcpj/netparams"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

var testTxid = strings.Repeat("ab", 32)

// TestParseInput checks the txid:vout[:sequence] form.
func TestParseInput(t *testing.T) {
	t.Parallel()

	in, err := parseInput(testTxid + ":3")
	require.NoError(t, err)
	require.Equal(t, bitcoind.Input{Txid: testTxid, Vout: 3}, in)

	in, err = parseInput(strings.ToUpper(testTxid) + ":0:4294967293")
	require.NoError(t, err)
	require.Equal(t, testTxid, in.Txid)
	require.Equal(t, fn.Some(uint32(4294967293)), in.Sequence)

	for _, bad := range []string{
		testTxid,
		testTxid + ":x",
		testTxid + ":1:-1",
		testTxid + ":1:4294967296",
		testTxid + ":1:2:3",
		"abcd:0",
	} {
		_, err := parseInput(bad)
		require.Errorf(t, err, bad)
	}
}

// TestParseOutput checks the address=amount form is parsed exactly.
func TestParseOutput(t *testing.T) {
	t.Parallel()

	addr, amt, err := parseOutput("bcrt1qexample=0.00012345")
	require.NoError(t, err)
	require.Equal(t, "bcrt1qexample", addr)
	require.Equal(t, btcutil.Amount(12345), amt)

	_, amt, err = parseOutput("addr=21000000 BTC")
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(btcutil.MaxSatoshi), amt)

	for _, bad := range []string{
		"addr", "=1", "addr=", "addr=1e-8", "addr=0.000000001",
		"addr=one",
	} {
		_, _, err := parseOutput(bad)
		require.Errorf(t, err, bad)
	}
}

// testLedgerConfig returns a config using a temporary ledger file.
func testLedgerConfig(t *testing.T, backend bitcoind.LedgerBackend) *config {
	t.Helper()

	cfg := defaultConfig()
	cfg.LedgerBackend = string(backend)
	cfg.LedgerFile.Value = filepath.Join(t.TempDir(), "net", "ledger")
	cfg.activeNet = &netparams.RegressionNetParams

	return &cfg
}

// TestReleaseAndList checks outputs can be listed and released without a
// node.
func TestReleaseAndList(t *testing.T) {
	t.Parallel()

	for _, backend := range []bitcoind.LedgerBackend{
		bitcoind.LedgerJSON, bitcoind.LedgerBolt,
	} {
		backend := backend
		t.Run(string(backend), func(t *testing.T) {
			t.Parallel()

			cfg := testLedgerConfig(t, backend)

			l, err := openLedger(cfg)
			require.NoError(t, err)
			a, err := ledger.NewOutPoint(testTxid, 0)
			require.NoError(t, err)
			b, err := ledger.NewOutPoint(testTxid, 1)
			require.NoError(t, err)
			require.NoError(t, l.InsertAll([]ledger.OutPoint{a, b}))
			require.NoError(t, l.Close())

			var out bytes.Buffer
			require.NoError(t, (&listCommittedCmd{}).run(cfg, &out))
			require.Equal(t, a.String()+"\n"+b.String()+"\n",
				out.String())

			release := &releaseCmd{}
			release.Args.Outputs = []string{a.String()}
			require.NoError(t, release.run(cfg, &out))

			out.Reset()
			require.NoError(t, (&listCommittedCmd{}).run(cfg, &out))
			require.Equal(t, b.String()+"\n", out.String())

			release.Args.Outputs = []string{"nope"}
			require.Error(t, release.run(cfg, &out))
		})
	}
}

// TestLoadWalletCommand runs loadwallet against a minimal JSON-RPC server.
func TestLoadWalletCommand(t *testing.T) {
	t.Parallel()

	genesis := netparams.RegressionNetParams.GenesisHash.String()
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Method string          `json:"method"`
				ID     json.RawMessage `json:"id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			var result interface{}
			switch req.Method {
			case "getblockhash":
				result = genesis
			case "loadwallet":
				result = map[string]string{"name": "pj", "warning": ""}
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id": req.ID, "result": result, "error": nil,
			})
		},
	))
	defer srv.Close()

	cfg := testLedgerConfig(t, bitcoind.LedgerJSON)
	cfg.RPCConnect = strings.TrimPrefix(srv.URL, "http://")
	cfg.RPCUser, cfg.RPCPass = "user", "pass"

	cmd := &loadWalletCmd{}
	cmd.Args.Wallet = "pj"

	var out bytes.Buffer
	require.NoError(t, cmd.run(cfg, &out))
	require.Equal(t, "pj\n", out.String())
	require.FileExists(t, cfg.LedgerFile.Value)
}

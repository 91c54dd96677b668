// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcpj/ledger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testParams = &chaincfg.RegressionNetParams

	_ rpcClient = (*mockRPCClient)(nil)
	_ rpcClient = (*fakeNode)(nil)
)

// mockRPCClient is a testify mock of the bitcoind RPC client.
type mockRPCClient struct {
	mock.Mock
}

func (m *mockRPCClient) RawRequest(method string,
	params []json.RawMessage) (json.RawMessage, error) {

	args := m.Called(method, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockRPCClient) GetBlockHash(height int64) (*chainhash.Hash, error) {
	args := m.Called(height)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*chainhash.Hash), args.Error(1)
}

func (m *mockRPCClient) Shutdown() {
	m.Called()
}

// fakeNode answers createpsbt with a template spending exactly the
// requested inputs and records how many calls were in flight at once.
type fakeNode struct {
	inFlight    int32
	maxInFlight int32
	calls       int32

	mu      sync.Mutex
	methods []string
}

func (f *fakeNode) RawRequest(method string,
	params []json.RawMessage) (json.RawMessage, error) {

	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	atomic.AddInt32(&f.calls, 1)
	for {
		cur := atomic.LoadInt32(&f.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&f.maxInFlight, cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.methods = append(f.methods, method)
	f.mu.Unlock()

	var inputs []psbtInput
	if err := json.Unmarshal(params[0], &inputs); err != nil {
		return nil, err
	}

	return rawPSBT(inputs)
}

func (f *fakeNode) GetBlockHash(int64) (*chainhash.Hash, error) {
	return testParams.GenesisHash, nil
}

func (f *fakeNode) Shutdown() {}

// rawPSBT returns the JSON encoded base64 PSBT that spends inputs to a
// single dummy output.
func rawPSBT(inputs []psbtInput) (json.RawMessage, error) {
	var (
		prevOuts  = make([]*wire.OutPoint, 0, len(inputs))
		sequences = make([]uint32, 0, len(inputs))
	)
	for _, in := range inputs {
		hash, err := chainhash.NewHashFromStr(in.Txid)
		if err != nil {
			return nil, err
		}
		prevOuts = append(prevOuts, wire.NewOutPoint(hash, in.Vout))

		seq := uint32(wire.MaxTxInSequenceNum)
		if in.Sequence != nil {
			seq = *in.Sequence
		}
		sequences = append(sequences, seq)
	}

	txOut := wire.NewTxOut(1000, []byte{0x51})
	packet, err := psbt.New(
		prevOuts, []*wire.TxOut{txOut}, 2, 0, sequences,
	)
	if err != nil {
		return nil, err
	}
	b64, err := packet.B64Encode()
	if err != nil {
		return nil, err
	}

	return json.Marshal(b64)
}

// testTxid returns a valid txid made of the hex byte b repeated.
func testTxid(b string) string {
	return strings.Repeat(b, 32)
}

// testAddress returns a P2WPKH regtest address whose program is filled with
// b.
func testAddress(t *testing.T, b byte) string {
	t.Helper()

	prog := make([]byte, 20)
	for i := range prog {
		prog[i] = b
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(prog, testParams)
	require.NoError(t, err)

	return addr.EncodeAddress()
}

// newTestLedger returns a ledger backed by a file in a temp dir.
func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()

	l, err := ledger.Load(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l
}

// newMockGateway returns a gateway around a mock client and a fresh ledger.
func newMockGateway(t *testing.T) (*Gateway, *mockRPCClient) {
	t.Helper()

	client := &mockRPCClient{}
	t.Cleanup(func() { client.AssertExpectations(t) })

	return newGateway(client, testParams, newTestLedger(t)), client
}

// rawJSON marshals v for use as a mocked RPC result.
func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)

	return b
}

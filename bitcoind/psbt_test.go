// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcpj/ledger"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// psbtFor returns the createpsbt result a node would give for inputs.
func psbtFor(t *testing.T, inputs ...Input) json.RawMessage {
	t.Helper()

	_, req, err := validateInputs(inputs)
	require.NoError(t, err)
	raw, err := rawPSBT(req)
	require.NoError(t, err)

	return raw
}

// mustOutPoint returns the outpoint for txid:vout.
func mustOutPoint(t *testing.T, txid string, vout uint32) ledger.OutPoint {
	t.Helper()

	op, err := ledger.NewOutPoint(txid, vout)
	require.NoError(t, err)

	return op
}

// TestBuildUnsignedTx checks a successful build sends the expected
// arguments, returns the template and records every input.
func TestBuildUnsignedTx(t *testing.T) {
	t.Parallel()

	g, client := newMockGateway(t)

	inputs := []Input{
		{Txid: testTxid("aa"), Vout: 0},
		{Txid: testTxid("BB"), Vout: 1, Sequence: fn.Some(uint32(0xfffffffd))},
	}
	addr := testAddress(t, 0x01)
	outputs := map[string]btcutil.Amount{addr: 12345}

	var seen []json.RawMessage
	client.On("RawRequest", "createpsbt", mock.Anything).Run(
		func(args mock.Arguments) {
			seen = args.Get(1).([]json.RawMessage)
		},
	).Return(psbtFor(t, inputs...), nil).Once()

	tx, err := g.BuildUnsignedTx(
		inputs, outputs, fn.None[uint32](), fn.Some(true),
	)
	require.NoError(t, err)

	require.Len(t, seen, 4)
	require.JSONEq(t, fmt.Sprintf(`[
		{"txid": %q, "vout": 0},
		{"txid": %q, "vout": 1, "sequence": 4294967293}
	]`, testTxid("aa"), testTxid("bb")), string(seen[0]))
	require.Equal(t, fmt.Sprintf(`{%q:0.00012345}`, addr), string(seen[1]))
	require.Equal(t, `0`, string(seen[2]))
	require.Equal(t, `true`, string(seen[3]))

	want := []ledger.OutPoint{
		mustOutPoint(t, testTxid("aa"), 0),
		mustOutPoint(t, testTxid("bb"), 1),
	}
	require.Equal(t, want, tx.Inputs)
	require.NotEmpty(t, tx.Base64)
	require.Len(t, tx.Packet.UnsignedTx.TxIn, 2)
	require.Equal(t, uint32(0xfffffffd), tx.Packet.UnsignedTx.TxIn[1].Sequence)

	require.Equal(t, want, g.Ledger().Outputs())
}

// TestBuildUnsignedTxOptionalParams checks the trailing createpsbt
// arguments.
func TestBuildUnsignedTxOptionalParams(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		locktime    fn.Option[uint32]
		replaceable fn.Option[bool]
		want        []string
	}{
		{
			name: "neither",
		},
		{
			name:     "locktime",
			locktime: fn.Some(uint32(500)),
			want:     []string{`500`},
		},
		{
			name:        "replaceable",
			replaceable: fn.Some(false),
			want:        []string{`0`, `false`},
		},
		{
			name:        "both",
			locktime:    fn.Some(uint32(800000)),
			replaceable: fn.Some(true),
			want:        []string{`800000`, `true`},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g, client := newMockGateway(t)
			inputs := []Input{{Txid: testTxid("01"), Vout: 3}}

			var seen []json.RawMessage
			client.On("RawRequest", "createpsbt", mock.Anything).Run(
				func(args mock.Arguments) {
					seen = args.Get(1).([]json.RawMessage)
				},
			).Return(psbtFor(t, inputs...), nil).Once()

			_, err := g.BuildUnsignedTx(inputs, map[string]btcutil.Amount{
				testAddress(t, 0x02): btcutil.SatoshiPerBitcoin,
			}, tc.locktime, tc.replaceable)
			require.NoError(t, err)

			require.Len(t, seen, 2+len(tc.want))
			for i, w := range tc.want {
				require.Equal(t, w, string(seen[2+i]))
			}
		})
	}
}

// TestBuildUnsignedTxCommitted checks that an input already in the ledger is
// rejected without contacting the node.
func TestBuildUnsignedTxCommitted(t *testing.T) {
	t.Parallel()

	g, client := newMockGateway(t)
	committed := mustOutPoint(t, testTxid("cc"), 7)
	require.NoError(t, g.Ledger().InsertAll([]ledger.OutPoint{committed}))

	_, err := g.BuildUnsignedTx([]Input{
		{Txid: testTxid("dd"), Vout: 0},
		{Txid: testTxid("CC"), Vout: 7},
	}, map[string]btcutil.Amount{
		testAddress(t, 0x03): 1000,
	}, fn.None[uint32](), fn.None[bool]())
	require.True(t, IsError(err, ErrDuplicateOutput))
	require.Contains(t, err.Error(), committed.String())

	client.AssertNotCalled(t, "RawRequest", mock.Anything, mock.Anything)
	require.Equal(t, 1, g.Ledger().Len())
}

// TestBuildUnsignedTxReuse checks that a second build spending an output of
// the first is refused.
func TestBuildUnsignedTxReuse(t *testing.T) {
	t.Parallel()

	g, client := newMockGateway(t)
	first := []Input{
		{Txid: testTxid("10"), Vout: 0},
		{Txid: testTxid("10"), Vout: 1},
	}
	outputs := map[string]btcutil.Amount{testAddress(t, 0x04): 5000}

	client.On("RawRequest", "createpsbt", mock.Anything).Return(
		psbtFor(t, first...), nil,
	).Once()

	_, err := g.BuildUnsignedTx(
		first, outputs, fn.None[uint32](), fn.None[bool](),
	)
	require.NoError(t, err)

	_, err = g.BuildUnsignedTx([]Input{
		{Txid: testTxid("20"), Vout: 0},
		{Txid: testTxid("10"), Vout: 1},
	}, outputs, fn.None[uint32](), fn.None[bool]())
	require.True(t, IsError(err, ErrDuplicateOutput))

	client.AssertNumberOfCalls(t, "RawRequest", 1)
	require.Equal(t, 2, g.Ledger().Len())
}

// TestBuildUnsignedTxReleased checks a released output can be spent again.
func TestBuildUnsignedTxReleased(t *testing.T) {
	t.Parallel()

	g, client := newMockGateway(t)
	inputs := []Input{{Txid: testTxid("30"), Vout: 2}}
	outputs := map[string]btcutil.Amount{testAddress(t, 0x05): 5000}

	client.On("RawRequest", "createpsbt", mock.Anything).Return(
		psbtFor(t, inputs...), nil,
	).Twice()

	_, err := g.BuildUnsignedTx(
		inputs, outputs, fn.None[uint32](), fn.None[bool](),
	)
	require.NoError(t, err)

	op := mustOutPoint(t, testTxid("30"), 2)
	require.NoError(t, g.Ledger().Release([]ledger.OutPoint{op}))
	require.False(t, g.Ledger().Contains(op))

	_, err = g.BuildUnsignedTx(
		inputs, outputs, fn.None[uint32](), fn.None[bool](),
	)
	require.NoError(t, err)
	require.True(t, g.Ledger().Contains(op))
}

// TestBuildUnsignedTxValidation checks malformed requests are refused before
// any network call.
func TestBuildUnsignedTxValidation(t *testing.T) {
	t.Parallel()

	validInput := []Input{{Txid: testTxid("40"), Vout: 0}}
	validAddr := testAddress(t, 0x06)
	mainNetAddr := "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"

	testCases := []struct {
		name    string
		inputs  []Input
		outputs map[string]btcutil.Amount
	}{
		{
			name:    "short txid",
			inputs:  []Input{{Txid: "abcd", Vout: 0}},
			outputs: map[string]btcutil.Amount{validAddr: 1},
		},
		{
			name:    "non hex txid",
			inputs:  []Input{{Txid: testTxid("zz"), Vout: 0}},
			outputs: map[string]btcutil.Amount{validAddr: 1},
		},
		{
			name: "repeated input",
			inputs: []Input{
				{Txid: testTxid("41"), Vout: 1},
				{Txid: testTxid("41"), Vout: 1},
			},
			outputs: map[string]btcutil.Amount{validAddr: 1},
		},
		{
			name:   "no outputs",
			inputs: validInput,
		},
		{
			name:    "bad address",
			inputs:  validInput,
			outputs: map[string]btcutil.Amount{"bcrt1nope": 1},
		},
		{
			name:    "other network address",
			inputs:  validInput,
			outputs: map[string]btcutil.Amount{mainNetAddr: 1},
		},
		{
			name:    "zero amount",
			inputs:  validInput,
			outputs: map[string]btcutil.Amount{validAddr: 0},
		},
		{
			name:    "negative amount",
			inputs:  validInput,
			outputs: map[string]btcutil.Amount{validAddr: -1},
		},
		{
			name:   "amount above supply",
			inputs: validInput,
			outputs: map[string]btcutil.Amount{
				validAddr: btcutil.MaxSatoshi + 1,
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g, client := newMockGateway(t)

			_, err := g.BuildUnsignedTx(
				tc.inputs, tc.outputs, fn.None[uint32](),
				fn.None[bool](),
			)
			require.Truef(t, IsError(err, ErrValidation), "err %v", err)

			client.AssertNotCalled(
				t, "RawRequest", mock.Anything, mock.Anything,
			)
			require.Zero(t, g.Ledger().Len())
		})
	}
}

// TestBuildUnsignedTxNotRecorded checks that no input is recorded when the
// node fails or returns an unusable template.
func TestBuildUnsignedTxNotRecorded(t *testing.T) {
	t.Parallel()

	inputs := []Input{
		{Txid: testTxid("50"), Vout: 0},
		{Txid: testTxid("51"), Vout: 4},
	}

	testCases := []struct {
		name     string
		result   json.RawMessage
		err      error
		wantCode ErrorCode
	}{
		{
			name: "daemon error",
			err: &btcjson.RPCError{
				Code:    btcjson.ErrRPCInvalidParameter,
				Message: "Invalid amount",
			},
			wantCode: ErrDaemonRejected,
		},
		{
			name:     "transport error",
			err:      errors.New("EOF"),
			wantCode: ErrConnection,
		},
		{
			name:     "not a string",
			result:   json.RawMessage(`{"psbt": "x"}`),
			wantCode: ErrDaemonRejected,
		},
		{
			name:     "not a psbt",
			result:   rawJSON(t, "cHNidP8="),
			wantCode: ErrDaemonRejected,
		},
		{
			name:     "missing input",
			result:   psbtFor(t, inputs[0]),
			wantCode: ErrDaemonRejected,
		},
		{
			name:     "reordered inputs",
			result:   psbtFor(t, inputs[1], inputs[0]),
			wantCode: ErrDaemonRejected,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g, client := newMockGateway(t)
			client.On("RawRequest", "createpsbt", mock.Anything).Return(
				tc.result, tc.err,
			).Once()

			tx, err := g.BuildUnsignedTx(inputs, map[string]btcutil.Amount{
				testAddress(t, 0x07): 2500,
			}, fn.None[uint32](), fn.None[bool]())
			require.Truef(t, IsError(err, tc.wantCode), "err %v", err)
			require.Nil(t, tx)
			require.Zero(t, g.Ledger().Len())
		})
	}
}

// TestBuildUnsignedTxPersistenceFailure checks that a template is withheld
// when its inputs cannot be recorded.
func TestBuildUnsignedTxPersistenceFailure(t *testing.T) {
	t.Parallel()

	g, client := newMockGateway(t)
	inputs := []Input{{Txid: testTxid("60"), Vout: 0}}
	client.On("RawRequest", "createpsbt", mock.Anything).Return(
		psbtFor(t, inputs...), nil,
	).Once()

	require.NoError(t, g.Ledger().Close())

	tx, err := g.BuildUnsignedTx(inputs, map[string]btcutil.Amount{
		testAddress(t, 0x08): 2500,
	}, fn.None[uint32](), fn.None[bool]())
	require.True(t, IsError(err, ErrPersistence))
	require.ErrorIs(t, err, ledger.ErrLedgerClosed)
	require.Nil(t, tx)
}

// TestBuildUnsignedTxCommittedElsewhere checks that an input recorded by
// another ledger writer while the node builds the template fails the build.
func TestBuildUnsignedTxCommittedElsewhere(t *testing.T) {
	t.Parallel()

	g, client := newMockGateway(t)
	inputs := []Input{
		{Txid: testTxid("61"), Vout: 0},
		{Txid: testTxid("62"), Vout: 1},
	}
	other := mustOutPoint(t, testTxid("62"), 1)
	client.On("RawRequest", "createpsbt", mock.Anything).Run(
		func(mock.Arguments) {
			err := g.Ledger().InsertAll([]ledger.OutPoint{other})
			require.NoError(t, err)
		},
	).Return(psbtFor(t, inputs...), nil).Once()

	tx, err := g.BuildUnsignedTx(inputs, map[string]btcutil.Amount{
		testAddress(t, 0x08): 2500,
	}, fn.None[uint32](), fn.None[bool]())
	require.True(t, IsError(err, ErrDuplicateOutput), "err %v", err)
	require.Nil(t, tx)
	require.Equal(t, []ledger.OutPoint{other}, g.Ledger().Outputs())
}

// TestBuildUnsignedTxConcurrent checks that concurrent builds are
// serialized on the session and the ledger ends up with every input.
func TestBuildUnsignedTxConcurrent(t *testing.T) {
	t.Parallel()

	const numBuilds = 16

	node := &fakeNode{}
	g := newGateway(node, testParams, newTestLedger(t))
	addr := testAddress(t, 0x09)

	var eg errgroup.Group
	for i := 0; i < numBuilds; i++ {
		txid := fmt.Sprintf("%064x", i+1)
		eg.Go(func() error {
			_, err := g.BuildUnsignedTx([]Input{
				{Txid: txid, Vout: 0},
				{Txid: txid, Vout: 1},
			}, map[string]btcutil.Amount{addr: 1000},
				fn.None[uint32](), fn.None[bool]())

			return err
		})
	}
	require.NoError(t, eg.Wait())

	require.EqualValues(t, 1, node.maxInFlight)
	require.EqualValues(t, numBuilds, node.calls)
	require.Equal(t, 2*numBuilds, g.Ledger().Len())
}

// TestBuildUnsignedTxContended checks that only one of several concurrent
// builds spending the same output succeeds.
func TestBuildUnsignedTxContended(t *testing.T) {
	t.Parallel()

	const numBuilds = 8

	node := &fakeNode{}
	g := newGateway(node, testParams, newTestLedger(t))
	addr := testAddress(t, 0x0a)

	results := make(chan error, numBuilds)
	var eg errgroup.Group
	for i := 0; i < numBuilds; i++ {
		eg.Go(func() error {
			_, err := g.BuildUnsignedTx([]Input{
				{Txid: testTxid("70"), Vout: 0},
			}, map[string]btcutil.Amount{addr: 1000},
				fn.None[uint32](), fn.None[bool]())
			results <- err

			return nil
		})
	}
	require.NoError(t, eg.Wait())
	close(results)

	var succeeded, duplicate int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case IsError(err, ErrDuplicateOutput):
			duplicate++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, numBuilds-1, duplicate)
	require.EqualValues(t, 1, node.calls)
}

// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoind

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcpj/ledger"
	"github.com/btcsuite/btcpj/pkg/unit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Input is a candidate spend source for BuildUnsignedTx.
type Input struct {
	// Txid is the hex id of the transaction holding the output.
	Txid string

	// Vout is the output index.
	Vout uint32

	// Sequence is the input's nSequence. If unset bitcoind picks one
	// based on the locktime and replaceability.
	Sequence fn.Option[uint32]
}

// UnsignedTx is a transaction template returned by BuildUnsignedTx.
type UnsignedTx struct {
	// Base64 is the PSBT as returned by bitcoind.
	Base64 string

	// Packet is the decoded PSBT.
	Packet *psbt.Packet

	// Inputs are the outpoints now recorded in the ledger.
	Inputs []ledger.OutPoint
}

// psbtInput is a createpsbt input object.
type psbtInput struct {
	Txid     string  `json:"txid"`
	Vout     uint32  `json:"vout"`
	Sequence *uint32 `json:"sequence,omitempty"`
}

// BuildUnsignedTx asks bitcoind for a PSBT spending inputs to outputs, where
// outputs maps addresses to amounts. Inputs already recorded in the ledger
// are rejected with ErrDuplicateOutput before bitcoind is contacted. On
// success every input is recorded durably before the template is returned;
// if that fails the call returns ErrPersistence and the template must not be
// used.
//
// A caller that gets no response must treat the inputs as possibly
// committed.
func (g *Gateway) BuildUnsignedTx(inputs []Input,
	outputs map[string]btcutil.Amount, locktime fn.Option[uint32],
	replaceable fn.Option[bool]) (*UnsignedTx, error) {

	g.mu.Lock()
	defer g.mu.Unlock()

	ops, reqInputs, err := validateInputs(inputs)
	if err != nil {
		return nil, err
	}
	reqOutputs, err := g.validateOutputs(outputs)
	if err != nil {
		return nil, err
	}

	if op, ok := g.ledger.FirstCommitted(ops); ok {
		str := fmt.Sprintf("output %v already committed", op)
		return nil, gatewayError(ErrDuplicateOutput, str, nil)
	}

	params := []interface{}{reqInputs, reqOutputs}
	if locktime.IsSome() || replaceable.IsSome() {
		params = append(params, locktime.UnwrapOr(0))
	}
	replaceable.WhenSome(func(r bool) {
		params = append(params, r)
	})

	raw, err := g.request("createpsbt", params...)
	if err != nil {
		return nil, err
	}

	var encoded string
	if err := decodeResult("createpsbt", raw, &encoded); err != nil {
		return nil, err
	}
	packet, err := decodePacket(encoded, ops)
	if err != nil {
		return nil, err
	}

	// Writers outside the gateway may have recorded an input while the
	// node was building the template.
	op, ok, err := g.ledger.CommitIfAbsent(ops)
	switch {
	case err != nil:
		return nil, gatewayError(ErrPersistence,
			"unable to record committed outputs", err)

	case !ok:
		str := fmt.Sprintf("output %v committed during build", op)
		return nil, gatewayError(ErrDuplicateOutput, str, nil)
	}

	log.Infof("Built unsigned transaction %v spending %d %s",
		packet.UnsignedTx.TxHash(), len(ops),
		pickNoun(len(ops), "input", "inputs"))

	return &UnsignedTx{
		Base64: encoded,
		Packet: packet,
		Inputs: ops,
	}, nil
}

// validateInputs converts inputs to outpoints and createpsbt objects,
// rejecting malformed txids and repeated outpoints.
func validateInputs(inputs []Input) ([]ledger.OutPoint, []psbtInput, error) {
	var (
		ops  = make([]ledger.OutPoint, 0, len(inputs))
		req  = make([]psbtInput, 0, len(inputs))
		seen = make(map[ledger.OutPoint]struct{}, len(inputs))
	)
	for i, in := range inputs {
		op, err := ledger.NewOutPoint(in.Txid, in.Vout)
		if err != nil {
			str := fmt.Sprintf("input %d", i)
			return nil, nil, gatewayError(ErrValidation, str, err)
		}
		if _, ok := seen[op]; ok {
			str := fmt.Sprintf("input %v listed twice", op)
			return nil, nil, gatewayError(ErrValidation, str, nil)
		}
		seen[op] = struct{}{}

		p := psbtInput{Txid: op.Txid, Vout: op.Vout}
		in.Sequence.WhenSome(func(seq uint32) {
			p.Sequence = &seq
		})

		ops = append(ops, op)
		req = append(req, p)
	}

	return ops, req, nil
}

// validateOutputs checks every address and amount and returns the createpsbt
// outputs object keyed by canonical address.
func (g *Gateway) validateOutputs(
	outputs map[string]btcutil.Amount) (map[string]json.Number, error) {

	if len(outputs) == 0 {
		return nil, gatewayError(ErrValidation, "no outputs", nil)
	}

	req := make(map[string]json.Number, len(outputs))
	for addr, amt := range outputs {
		decoded, err := g.decodeAddress(addr)
		if err != nil {
			return nil, err
		}
		if amt <= 0 || amt > btcutil.MaxSatoshi {
			str := fmt.Sprintf("amount %d for %s out of range",
				int64(amt), addr)
			return nil, gatewayError(ErrValidation, str, nil)
		}

		key := decoded.EncodeAddress()
		if _, ok := req[key]; ok {
			str := fmt.Sprintf("address %s listed twice", key)
			return nil, gatewayError(ErrValidation, str, nil)
		}
		req[key] = unit.FormatBTC(amt)
	}

	return req, nil
}

// decodePacket parses the PSBT bitcoind returned and checks that it spends
// exactly ops, in order.
func decodePacket(encoded string, ops []ledger.OutPoint) (*psbt.Packet,
	error) {

	packet, err := psbt.NewFromRawBytes(strings.NewReader(encoded), true)
	if err != nil {
		return nil, gatewayError(ErrDaemonRejected,
			"malformed createpsbt result", err)
	}

	txIn := packet.UnsignedTx.TxIn
	if len(txIn) != len(ops) {
		str := fmt.Sprintf("createpsbt returned %d inputs, want %d",
			len(txIn), len(ops))
		return nil, gatewayError(ErrDaemonRejected, str, nil)
	}
	for i, op := range ops {
		want, err := op.WireOutPoint()
		if err != nil {
			return nil, gatewayError(ErrValidation, "input", err)
		}
		if txIn[i].PreviousOutPoint != want {
			str := fmt.Sprintf("createpsbt input %d spends %v, "+
				"want %v", i, txIn[i].PreviousOutPoint, op)
			return nil, gatewayError(ErrDaemonRejected, str, nil)
		}
	}

	return packet, nil
}

// pickNoun returns the singular or plural form of a noun depending
// on the count n.
func pickNoun(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

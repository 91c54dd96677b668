// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// OutPoint identifies a spendable output by the originating transaction id
// and the output's index within that transaction. It is a comparable value
// and is used directly as the ledger's set key.
type OutPoint struct {
	// Txid is the lower case, 64 character hex transaction id in the
	// byte-reversed display order used by bitcoind.
	Txid string `json:"txid"`

	// Vout is the index of the referenced output.
	Vout uint32 `json:"vout"`
}

// NewOutPoint validates txid and returns the outpoint it forms with vout.
func NewOutPoint(txid string, vout uint32) (OutPoint, error) {
	if len(txid) != chainhash.MaxHashStringSize {
		str := fmt.Sprintf("txid %q must be %d hex characters", txid,
			chainhash.MaxHashStringSize)
		return OutPoint{}, ledgerError(ErrInvalidOutPoint, str, nil)
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		str := fmt.Sprintf("txid %q is not hex", txid)
		return OutPoint{}, ledgerError(ErrInvalidOutPoint, str, err)
	}

	return OutPoint{Txid: strings.ToLower(txid), Vout: vout}, nil
}

// ParseOutPoint parses the txid:vout form produced by String.
func ParseOutPoint(s string) (OutPoint, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		str := fmt.Sprintf("outpoint %q is not of the form txid:vout", s)
		return OutPoint{}, ledgerError(ErrInvalidOutPoint, str, nil)
	}

	vout, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		str := fmt.Sprintf("outpoint %q has an invalid index", s)
		return OutPoint{}, ledgerError(ErrInvalidOutPoint, str, err)
	}

	return NewOutPoint(s[:i], uint32(vout))
}

// WireOutPoint converts the outpoint to its wire representation.
func (op OutPoint) WireOutPoint() (wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(op.Txid)
	if err != nil {
		str := fmt.Sprintf("txid %q is not hex", op.Txid)
		return wire.OutPoint{}, ledgerError(ErrInvalidOutPoint, str, err)
	}

	return wire.OutPoint{Hash: *hash, Index: op.Vout}, nil
}

// String returns the outpoint as txid:vout.
func (op OutPoint) String() string {
	return op.Txid + ":" + strconv.FormatUint(uint64(op.Vout), 10)
}

// fromWire converts a wire outpoint back to the ledger representation.
func fromWire(op wire.OutPoint) OutPoint {
	return OutPoint{Txid: op.Hash.String(), Vout: op.Index}
}

// less orders outpoints by txid, then index.
func less(a, b OutPoint) bool {
	if a.Txid != b.Txid {
		return a.Txid < b.Txid
	}
	return a.Vout < b.Vout
}

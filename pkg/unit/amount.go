// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package unit converts between integer satoshi amounts and the fixed point
// BTC decimal strings spoken by bitcoind's JSON-RPC interface. Conversions
// use integer arithmetic only, so a round trip never loses a satoshi.
package unit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// satsPerBTC is the number of satoshis in one bitcoin.
	satsPerBTC = btcutil.SatoshiPerBitcoin

	// btcDecimals is the number of fractional digits in a BTC amount.
	btcDecimals = 8
)

var (
	// ErrInvalidAmount is returned when a BTC string is not a plain
	// decimal with at most eight fractional digits.
	ErrInvalidAmount = errors.New("invalid btc amount")

	// ErrAmountRange is returned when a BTC string exceeds the total
	// supply.
	ErrAmountRange = errors.New("btc amount out of range")
)

// FormatBTC renders a as a BTC decimal with exactly eight fractional digits.
func FormatBTC(a btcutil.Amount) json.Number {
	sign := ""
	sats := uint64(a)
	if a < 0 {
		sign = "-"
		sats = uint64(-a)
	}

	return json.Number(fmt.Sprintf("%s%d.%0*d", sign, sats/satsPerBTC,
		btcDecimals, sats%satsPerBTC))
}

// ParseBTC parses a BTC decimal such as "0.00012" into satoshis. Exponents,
// more than eight fractional digits and values beyond the total supply are
// rejected.
func ParseBTC(s string) (btcutil.Amount, error) {
	str := strings.TrimSpace(s)

	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}

	whole, frac, hasFrac := strings.Cut(str, ".")
	if whole == "" || (hasFrac && frac == "") || len(frac) > btcDecimals {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil || w > btcutil.MaxSatoshi/satsPerBTC {
		return 0, fmt.Errorf("%w: %q", ErrAmountRange, s)
	}

	var f uint64
	if frac != "" {
		frac += strings.Repeat("0", btcDecimals-len(frac))
		f, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	sats := w*satsPerBTC + f
	if sats > btcutil.MaxSatoshi {
		return 0, fmt.Errorf("%w: %q", ErrAmountRange, s)
	}
	if neg {
		return -btcutil.Amount(sats), nil
	}

	return btcutil.Amount(sats), nil
}

// isDigits reports whether s only holds ASCII decimal digits.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

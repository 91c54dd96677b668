// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcpj/bitcoind"
	"github.com/btcsuite/btcpj/internal/cfgutil"
	"github.com/btcsuite/btcpj/internal/prompt"
	"github.com/btcsuite/btcpj/internal/zero"
	"github.com/btcsuite/btcpj/ledger"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// command is a pjctl subcommand.  Its exported fields are parsed by go-flags.
type command interface {
	run(cfg *config, w io.Writer) error
}

// addCommands registers every subcommand with parser and returns them keyed
// by name.
func addCommands(parser *flags.Parser) (map[string]command, error) {
	cmds := []struct {
		name, short, long string
		cmd               command
	}{{
		name:  "loadwallet",
		short: "Load a bitcoind wallet",
		long:  "Ask bitcoind to load the named wallet. Warnings are errors.",
		cmd:   &loadWalletCmd{},
	}, {
		name:  "createwallet",
		short: "Create a bitcoind wallet",
		long:  "Ask bitcoind to create the named wallet. Warnings are errors.",
		cmd:   &createWalletCmd{},
	}, {
		name:  "getnewaddress",
		short: "Get a new receiving address",
		long:  "Ask the loaded wallet for a fresh address on the network.",
		cmd:   &getNewAddressCmd{},
	}, {
		name:  "createpsbt",
		short: "Build an unsigned transaction",
		long: "Build an unsigned PSBT spending the given inputs and " +
			"record the inputs as committed. Inputs that are " +
			"already committed are refused.",
		cmd: &createPSBTCmd{},
	}, {
		name:  "listcommitted",
		short: "List committed outputs",
		long:  "Print every output recorded in the ledger.",
		cmd:   &listCommittedCmd{},
	}, {
		name:  "release",
		short: "Release committed outputs",
		long: "Remove outputs from the ledger after the transaction " +
			"spending them was abandoned.",
		cmd: &releaseCmd{},
	}}

	byName := make(map[string]command, len(cmds))
	for _, c := range cmds {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.cmd)
		if err != nil {
			return nil, err
		}
		byName[c.name] = c.cmd
	}

	return byName, nil
}

// openGateway connects to bitcoind with the configured options.
func openGateway(cfg *config) (*bitcoind.Gateway, error) {
	gwCfg, err := cfg.gatewayConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(gwCfg.LedgerPath), 0700); err != nil {
		return nil, err
	}

	return bitcoind.Open(gwCfg)
}

// openLedger opens the configured ledger without contacting bitcoind.
func openLedger(cfg *config) (*ledger.Ledger, error) {
	path := cfg.LedgerFile.Value
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	if cfg.LedgerBackend == string(bitcoind.LedgerBolt) {
		return ledger.LoadBolt(path)
	}
	return ledger.Load(path)
}

type loadWalletCmd struct {
	Args struct {
		Wallet string `positional-arg-name:"wallet"`
	} `positional-args:"yes" required:"yes"`
}

func (c *loadWalletCmd) run(cfg *config, w io.Writer) error {
	g, err := openGateway(cfg)
	if err != nil {
		return err
	}
	defer g.Close()

	name, err := g.LoadWallet(c.Args.Wallet)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, name)
	return err
}

type createWalletCmd struct {
	DisablePrivateKeys bool `long:"disableprivatekeys" description:"Create a watch-only wallet"`
	Blank              bool `long:"blank" description:"Create a wallet without keys or HD seed"`
	Passphrase         bool `long:"passphrase" description:"Prompt for a passphrase to encrypt the wallet"`
	AvoidReuse         bool `long:"avoidreuse" description:"Avoid spending from dirty addresses"`

	Args struct {
		Wallet string `positional-arg-name:"wallet"`
	} `positional-args:"yes" required:"yes"`
}

func (c *createWalletCmd) run(cfg *config, w io.Writer) error {
	opts := bitcoind.CreateWalletOptions{}
	if c.DisablePrivateKeys {
		opts.DisablePrivateKeys = fn.Some(true)
	}
	if c.Blank {
		opts.Blank = fn.Some(true)
	}
	if c.AvoidReuse {
		opts.AvoidReuse = fn.Some(true)
	}
	if c.Passphrase {
		pass, err := prompt.WalletPassphrase()
		if err != nil {
			return err
		}
		opts.Passphrase = fn.Some(zero.String(pass))
	}

	g, err := openGateway(cfg)
	if err != nil {
		return err
	}
	defer g.Close()

	name, err := g.CreateWallet(c.Args.Wallet, opts)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, name)
	return err
}

type getNewAddressCmd struct {
	Label       string `long:"label" description:"Label for the address"`
	AddressType string `long:"addresstype" description:"Address type, default chosen by bitcoind" choice:"legacy" choice:"p2sh-segwit" choice:"bech32" choice:"bech32m"`
}

func (c *getNewAddressCmd) run(cfg *config, w io.Writer) error {
	label := fn.None[string]()
	if c.Label != "" {
		label = fn.Some(c.Label)
	}
	addrType := fn.None[bitcoind.AddressType]()
	if c.AddressType != "" {
		t, err := bitcoind.ParseAddressType(c.AddressType)
		if err != nil {
			return err
		}
		addrType = fn.Some(t)
	}

	g, err := openGateway(cfg)
	if err != nil {
		return err
	}
	defer g.Close()

	addr, err := g.NewAddress(label, addrType)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, addr.EncodeAddress())
	return err
}

type createPSBTCmd struct {
	Inputs      []string `short:"i" long:"input" description:"Output to spend as txid:vout[:sequence] (may be repeated)"`
	Outputs     []string `short:"o" long:"output" description:"Payment as address=amount in BTC (may be repeated)" required:"yes"`
	LockTime    string   `long:"locktime" description:"Transaction locktime"`
	Replaceable string   `long:"replaceable" description:"Signal BIP125 replaceability, default chosen by bitcoind" choice:"true" choice:"false"`
}

func (c *createPSBTCmd) run(cfg *config, w io.Writer) error {
	inputs := make([]bitcoind.Input, 0, len(c.Inputs))
	for _, s := range c.Inputs {
		in, err := parseInput(s)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}

	outputs := make(map[string]btcutil.Amount, len(c.Outputs))
	for _, s := range c.Outputs {
		addr, amt, err := parseOutput(s)
		if err != nil {
			return err
		}
		if _, ok := outputs[addr]; ok {
			return fmt.Errorf("output address %s listed twice", addr)
		}
		outputs[addr] = amt
	}

	locktime := fn.None[uint32]()
	if c.LockTime != "" {
		lt, err := strconv.ParseUint(c.LockTime, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid locktime: %w", err)
		}
		locktime = fn.Some(uint32(lt))
	}
	replaceable := fn.None[bool]()
	if c.Replaceable != "" {
		replaceable = fn.Some(c.Replaceable == "true")
	}

	g, err := openGateway(cfg)
	if err != nil {
		return err
	}
	defer g.Close()

	tx, err := g.BuildUnsignedTx(inputs, outputs, locktime, replaceable)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, tx.Base64)
	return err
}

// parseInput parses an input given as txid:vout[:sequence].
func parseInput(s string) (bitcoind.Input, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return bitcoind.Input{}, fmt.Errorf("input %q is not "+
			"txid:vout[:sequence]", s)
	}

	op, err := ledger.ParseOutPoint(parts[0] + ":" + parts[1])
	if err != nil {
		return bitcoind.Input{}, err
	}
	in := bitcoind.Input{Txid: op.Txid, Vout: op.Vout}

	if len(parts) == 3 {
		seq, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return bitcoind.Input{}, fmt.Errorf("input %q has "+
				"invalid sequence: %w", s, err)
		}
		in.Sequence = fn.Some(uint32(seq))
	}

	return in, nil
}

// parseOutput parses an output given as address=amount, with the amount in
// BTC.
func parseOutput(s string) (string, btcutil.Amount, error) {
	addr, value, ok := strings.Cut(s, "=")
	if !ok || addr == "" {
		return "", 0, fmt.Errorf("output %q is not address=amount", s)
	}

	var amt cfgutil.AmountFlag
	if err := amt.UnmarshalFlag(value); err != nil {
		return "", 0, fmt.Errorf("output %q: %w", s, err)
	}

	return addr, amt.Amount, nil
}

type listCommittedCmd struct{}

func (c *listCommittedCmd) run(cfg *config, w io.Writer) error {
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	for _, op := range l.Outputs() {
		if _, err := fmt.Fprintln(w, op); err != nil {
			return err
		}
	}

	return nil
}

type releaseCmd struct {
	Args struct {
		Outputs []string `positional-arg-name:"txid:vout" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *releaseCmd) run(cfg *config, w io.Writer) error {
	ops := make([]ledger.OutPoint, 0, len(c.Args.Outputs))
	for _, s := range c.Args.Outputs {
		op, err := ledger.ParseOutPoint(s)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.Release(ops); err != nil {
		return err
	}

	log.Infof("Released %d %s", len(ops), pickNoun(len(ops), "output",
		"outputs"))

	return nil
}

// pickNoun returns the singular or plural form of a noun depending
// on the count n.
func pickNoun(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

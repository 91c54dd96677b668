// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// pjctl builds unsigned payjoin transactions through a bitcoind node while
// keeping a ledger of the outputs already committed to a transaction.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

func main() {
	if err := pjctlMain(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(flagsErr.Message)
			os.Exit(0)
		}
		fatalf("%v", err)
	}
}

// pjctlMain is the real main function for pjctl.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func pjctlMain(args []string) error {
	cfg, cmd, err := loadConfig(args)
	if err != nil {
		return err
	}

	logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
	if err := initLogRotator(logFile); err != nil {
		return err
	}
	defer logRotator.Close()

	log.Debugf("Using network %s, ledger %s", cfg.activeNet.Name,
		cfg.LedgerFile.Value)

	return cmd.run(cfg, os.Stdout)
}

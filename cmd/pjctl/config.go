// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcpj/bitcoind"
	"github.com/btcsuite/btcpj/internal/cfgutil"
	"github.com/btcsuite/btcpj/netparams"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "pjctl.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "pjctl.log"
	defaultRPCHost        = "localhost"
	defaultCookieFilename = ".cookie"

	ledgerJSONFilename = "committed_outputs.json"
	ledgerBoltFilename = "committed_outputs.db"
)

var (
	pjctlHomeDir      = btcutil.AppDataDir("pjctl", false)
	bitcoindHomeDir   = btcutil.AppDataDir("bitcoin", false)
	defaultConfigFile = filepath.Join(pjctlHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(pjctlHomeDir, defaultLogDirname)
)

// errNoCredentials is returned when neither a cookie nor a username and
// password for bitcoind could be found.
var errNoCredentials = errors.New("no bitcoind RPC credentials: set " +
	"--rpccookie or --rpcuser and --rpcpass")

type config struct {
	// General application behavior
	ConfigFile  *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool                    `short:"V" long:"version" description:"Display version information and exit"`
	TestNet3    bool                    `long:"testnet" description:"Use the test Bitcoin network (version 3) (default mainnet)"`
	RegTest     bool                    `long:"regtest" description:"Use the regression test network (default mainnet)"`
	SigNet      bool                    `long:"signet" description:"Use the signet test network (default mainnet)"`
	DebugLevel  string                  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir      string                  `long:"logdir" description:"Directory to log output."`

	// Ledger options
	LedgerFile    *cfgutil.ExplicitString `long:"ledgerfile" description:"File recording outputs committed to transactions (default: <appdata>/<network>/committed_outputs.{json,db})"`
	LedgerBackend string                  `long:"ledgerbackend" description:"Ledger storage format" choice:"json" choice:"bolt"`

	// bitcoind RPC options
	RPCConnect  string                  `short:"c" long:"rpcconnect" description:"Hostname/IP and port of bitcoind RPC server to connect to (default localhost with the network's RPC port)"`
	RPCUser     string                  `short:"u" long:"rpcuser" description:"Username for bitcoind RPC authentication"`
	RPCPass     string                  `short:"P" long:"rpcpass" default-mask:"-" description:"Password for bitcoind RPC authentication"`
	RPCCookie   *cfgutil.ExplicitString `long:"rpccookie" description:"Cookie file for bitcoind RPC authentication, takes precedence over --rpcuser (default: <bitcoinddir>/<network>/.cookie)"`
	BitcoindDir string                  `long:"bitcoinddir" description:"bitcoind data directory, used to locate the default cookie"`

	activeNet *netparams.Params
}

// defaultConfig returns a config with every option at its default value.
func defaultConfig() config {
	return config{
		ConfigFile:    cfgutil.NewExplicitString(defaultConfigFile),
		DebugLevel:    defaultLogLevel,
		LogDir:        defaultLogDir,
		LedgerFile:    cfgutil.NewExplicitString(""),
		LedgerBackend: string(bitcoind.LedgerJSON),
		RPCConnect:    defaultRPCHost,
		RPCCookie:     cfgutil.NewExplicitString(""),
		BitcoindDir:   bitcoindHomeDir,
		activeNet:     &netparams.MainNetParams,
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options, registering the commands with the parser.  It returns the
// config and the command selected on the command line.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig(args []string) (*config, command, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Command names and options
	// are not known to this parser and are left for the second pass.
	preCfg := defaultConfig()
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, nil, err
	}

	if preCfg.ShowVersion {
		fmt.Println(appName(), "version", version())
		os.Exit(0)
	}

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	cmds, err := addCommands(parser)
	if err != nil {
		return nil, nil, err
	}

	// Load additional config from file.  A missing file is only an error
	// when it was named explicitly.
	var configFileError error
	configFile := cfgutil.CleanAndExpandPath(preCfg.ConfigFile.Value)
	err = flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) || preCfg.ConfigFile.ExplicitlySet() {
			return nil, nil, fmt.Errorf("unable to read config "+
				"file %s: %w", configFile, err)
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Debugf("%v", configFileError)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, err
	}

	// Choose the active network params based on the selected network.
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	if cfg.TestNet3 {
		cfg.activeNet = &netparams.TestNet3Params
		numNets++
	}
	if cfg.RegTest {
		cfg.activeNet = &netparams.RegressionNetParams
		numNets++
	}
	if cfg.SigNet {
		cfg.activeNet = &netparams.SigNetParams
		numNets++
	}
	if numNets > 1 {
		return nil, nil, errors.New("the testnet, regtest and signet " +
			"params can't be used together -- choose one")
	}

	cfg.RPCConnect, err = cfgutil.NormalizeAddress(
		cfg.RPCConnect, cfg.activeNet.RPCServerPort,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid rpcconnect address: %w",
			err)
	}

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cfgutil.CleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.activeNet.Name)

	cfg.BitcoindDir = cfgutil.CleanAndExpandPath(cfg.BitcoindDir)
	cfg.RPCCookie.Value = cfgutil.CleanAndExpandPath(cfg.RPCCookie.Value)

	if cfg.LedgerFile.ExplicitlySet() {
		cfg.LedgerFile.Value = cfgutil.CleanAndExpandPath(
			cfg.LedgerFile.Value,
		)
	} else {
		name := ledgerJSONFilename
		if cfg.LedgerBackend == string(bitcoind.LedgerBolt) {
			name = ledgerBoltFilename
		}
		cfg.LedgerFile.Value = filepath.Join(
			pjctlHomeDir, cfg.activeNet.Name, name,
		)
	}

	cmd, ok := cmds[parser.Active.Name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown command %q",
			parser.Active.Name)
	}

	return &cfg, cmd, nil
}

// rpcAuth selects the bitcoind credentials.  An explicit cookie file takes
// precedence over a username and password, which take precedence over the
// cookie in the default bitcoind data directory.
func (c *config) rpcAuth() (bitcoind.Auth, error) {
	if c.RPCCookie.ExplicitlySet() {
		return bitcoind.CookieFile{Path: c.RPCCookie.Value}, nil
	}

	if c.RPCUser != "" || c.RPCPass != "" {
		return bitcoind.UserPass{User: c.RPCUser, Pass: c.RPCPass}, nil
	}

	cookie := filepath.Join(
		c.BitcoindDir, c.activeNet.DataDirName, defaultCookieFilename,
	)
	exists, err := cfgutil.FileExists(cookie)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNoCredentials
	}

	return bitcoind.CookieFile{Path: cookie}, nil
}

// gatewayConfig returns the config used to open a bitcoind gateway.
func (c *config) gatewayConfig() (*bitcoind.Config, error) {
	auth, err := c.rpcAuth()
	if err != nil {
		return nil, err
	}

	return &bitcoind.Config{
		Host:          c.RPCConnect,
		Auth:          auth,
		ChainParams:   c.activeNet.Params,
		LedgerPath:    c.LedgerFile.Value,
		LedgerBackend: bitcoind.LedgerBackend(c.LedgerBackend),
	}, nil
}

// appName returns the name of the running binary.
func appName() string {
	name := filepath.Base(os.Args[0])
	return name[:len(name)-len(filepath.Ext(name))]
}

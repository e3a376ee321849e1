// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcrelay/corenode/chaincfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "shellnode.conf"
	defaultDataDirname    = "data"
	defaultLogFilename    = "shellnode.log"
	defaultMaxPeers       = 8
	defaultLogLevel       = "info"
)

var (
	defaultHomeDir    = appHomeDir()
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, "logs")
)

// config defines the node's runtime configuration, populated from
// shellnode.conf and overridden by whatever flags are also given on the
// command line (go-flags parses both against the same struct tags).
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store header chain and peer address data"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	Debuglevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`

	TestNet3       bool `long:"testnet" description:"Use the test network"`
	RegressionTest bool `long:"regtest" description:"Use the regression test network"`
	SigNet         bool `long:"signet" description:"Use the signet test network"`

	Listeners      []string `long:"listen" description:"Add an interface/port to listen for inbound connections (default all interfaces, default port for the active network)"`
	ConnectPeers   []string `long:"connect" description:"Connect only to the specified peers at startup"`
	AddPeers       []string `long:"addpeer" description:"Add a peer to connect to in addition to normal address discovery"`
	MaxPeers       int      `long:"maxpeers" description:"Max number of inbound and outbound peers"`
	DisableDNSSeed bool     `long:"nodnsseed" description:"Disable DNS seeding for peer address discovery"`
	DisableListen  bool     `long:"nolisten" description:"Disable listening for inbound connections"`

	Proxy     string `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser string `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass string `long:"proxypass" description:"Password for proxy server"`

	UserAgentComment string `long:"uacomment" description:"Comment to add to the user agent -- See BIP 14 for more information"`

	// WatchScripts is an SPV client's output scripts to match against a
	// Bloom filter; nil/empty means the node downloads full blocks
	// instead of filtered ones. Key derivation and wallet bookkeeping
	// for what populates this list live outside this package.
	WatchScripts []string `long:"watchscript" description:"Hex-encoded output script to watch via a Bloom filter (may be given multiple times); omit to sync full blocks"`

	chainParams *chaincfg.Params
}

// appHomeDir returns the OS-appropriate per-user application data
// directory shellnode defaults its config/data/log paths under.
func appHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".shellnode")
	}
	return "."
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// netName returns the subdirectory holding this network's data, so that
// mainnet/testnet/regtest/signet don't share a data directory.
func netName(params *chaincfg.Params) string {
	return params.Name
}

// loadConfig reads shellnode.conf (if present), applies command line flags
// on top of it, validates the result, and resolves the active network's
// chaincfg.Params.
func loadConfig() (*config, error) {
	cfg := config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		Debuglevel: defaultLogLevel,
		MaxPeers:   defaultMaxPeers,
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default|flags.IgnoreUnknown)
	if _, err := preParser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}
	if preCfg.ConfigFile != defaultConfigFile {
		cfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", cfg.ConfigFile, err)
		}
	}
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	numNets := 0
	cfg.chainParams = &chaincfg.MainNetParams
	if cfg.TestNet3 {
		numNets++
		cfg.chainParams = &chaincfg.TestNet3Params
	}
	if cfg.RegressionTest {
		numNets++
		cfg.chainParams = &chaincfg.RegressionNetParams
	}
	if cfg.SigNet {
		numNets++
		cfg.chainParams = &chaincfg.SigNetParams
	}
	if numNets > 1 {
		return nil, errors.New("shellnode: testnet, regtest, and signet are mutually exclusive")
	}

	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir), netName(cfg.chainParams))
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), netName(cfg.chainParams))
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("shellnode: create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("shellnode: create log directory: %w", err)
	}

	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = defaultMaxPeers
	}

	if len(cfg.ConnectPeers) > 0 {
		cfg.DisableDNSSeed = true
	}

	if cfg.Proxy != "" {
		if _, _, err := net.SplitHostPort(cfg.Proxy); err != nil {
			return nil, fmt.Errorf("shellnode: invalid --proxy %q: %w", cfg.Proxy, err)
		}
	}

	if len(cfg.Listeners) == 0 && !cfg.DisableListen {
		cfg.Listeners = []string{net.JoinHostPort("", cfg.chainParams.DefaultPort)}
	}

	return &cfg, nil
}

package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/slog"
	"github.com/jessevdk/go-flags"

	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

const (
	defaultConfigFilename = "communityhub.conf"
	defaultLogDirname     = "logs"
	defaultMaxLogZips     = 8
)

var (
	defaultHomeDir    = dcrutil.AppDataDir("communityhub", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
)

type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	HomeDir     string `short:"A" long:"appdata" description:"Path to application home directory"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	MaxLogZips  int    `long:"maxlogzips" description:"The number of zipped log files created by the log rotator to be retained. Setting to 0 will keep all."`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogStderr   bool   `long:"logstderr" description:"Mirror log output on standard error"`

	Network  string `long:"network" description:"Network to use {unstable, localnet}"`
	Contract string `long:"contract" description:"CommunityHub contract address, required where no deployment is known"`
	RPCURL   string `long:"rpcurl" description:"JSON-RPC endpoint overriding the network default"`
	Explorer string `long:"explorer" description:"Block explorer base URL overriding the network default"`
	ChainID  int64  `long:"chainid" description:"Chain id overriding the network default"`
	From     uint64 `long:"from" description:"First proposal id mirrored"`
	To       uint64 `long:"to" description:"Last proposal id mirrored"`
	Keystore string `long:"keystore" description:"Directory holding the encrypted account keys"`

	Yes        bool   `short:"y" long:"yes" description:"Approve every wallet prompt without asking"`
	Passphrase string `long:"passphrase" env:"COMMUNITYHUB_PASSPHRASE" description:"Account passphrase used with --yes"`
}

func defaultConfig() config {
	return config{
		HomeDir:    defaultHomeDir,
		ConfigFile: defaultConfigFile,
		LogDir:     defaultLogDir,
		MaxLogZips: defaultMaxLogZips,
		DebugLevel: utils.DefaultLogLevel,
		Network:    string(utils.Unstable),
		From:       1,
		To:         100,
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		if home, err := os.UserHomeDir(); err == nil {
			homeDir = home
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//
// The command line is parsed a final time by the returned parser so that its
// options take precedence over the config file, and the selected command
// runs.
func loadConfig() (*config, *flags.Parser, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			preCfg.ShowVersion = false
		} else {
			return nil, nil, err
		}
	}

	if preCfg.ShowVersion {
		fmt.Printf("communityhub version %s\n", Version)
		os.Exit(0)
	}

	if preCfg.HomeDir != defaultHomeDir {
		cfg.HomeDir = cleanAndExpandPath(preCfg.HomeDir)
		if preCfg.ConfigFile == defaultConfigFile {
			preCfg.ConfigFile = filepath.Join(cfg.HomeDir, defaultConfigFilename)
		}
		cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
	}
	cfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)

	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		if err := flags.IniParse(cfg.ConfigFile, &cfg); err != nil {
			return nil, nil, fmt.Errorf("error parsing config file: %v", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, err
	}

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	return &cfg, parser, nil
}

// validate normalizes the parsed options.
func (cfg *config) validate() error {
	cfg.HomeDir = cleanAndExpandPath(cfg.HomeDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.Keystore = cleanAndExpandPath(cfg.Keystore)

	if _, ok := slog.LevelFromString(cfg.DebugLevel); !ok {
		return fmt.Errorf("the specified debug level [%v] is invalid", cfg.DebugLevel)
	}
	if cfg.MaxLogZips < 0 {
		return fmt.Errorf("maxlogzips must not be negative")
	}

	netType := utils.ToNetworkType(cfg.Network)
	if netType == utils.Unknown {
		return fmt.Errorf("network type is not supported: %s", cfg.Network)
	}
	if _, known := utils.DefaultContractAddresses[netType]; !known && cfg.Contract == "" {
		return fmt.Errorf("no CommunityHub deployment known on %s, set --contract", netType.Display())
	}
	if cfg.From == 0 || cfg.To < cfg.From {
		return fmt.Errorf("invalid proposal range %d..%d", cfg.From, cfg.To)
	}
	if cfg.ChainID < 0 {
		return fmt.Errorf("chain id must be positive")
	}
	return nil
}

// network returns the network parameters with the command line overrides
// applied.
func (cfg *config) network() (*utils.ChainParams, error) {
	params, err := utils.ETHChainParams(utils.ToNetworkType(cfg.Network))
	if err != nil {
		return nil, err
	}
	if cfg.ChainID > 0 {
		params.ChainID = big.NewInt(cfg.ChainID)
	}
	if cfg.RPCURL != "" {
		params.RPCURL = cfg.RPCURL
	}
	if cfg.Explorer != "" {
		params.ExplorerURL = cfg.Explorer
	}
	return params, params.Validate()
}

func (cfg *config) proposalRange() hub.Range {
	return hub.Range{From: cfg.From, To: cfg.To}
}

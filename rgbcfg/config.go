package rgbcfg

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/jessevdk/go-flags"
	"github.com/lightninglabs/rgbwallet/rgbdb"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
)

const (
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultConfigFileName = "rgbwallet.conf"
	defaultWalletName     = "default"

	// defaultFeeRate is the default fee rate of witness transactions in
	// sat/kvB.
	defaultFeeRate = 2000

	// defaultMinAmount is the default amount of bitcoin sent to witness
	// beneficiaries, which must be above the dust limit of a taproot
	// output.
	defaultMinAmount = 2000
)

var (
	// DefaultRgbDir is the default directory where the wallet tries to
	// find its configuration file and store its data. This is a directory
	// in the user's application data, for example:
	//   C:\Users\<username>\AppData\Local\Rgbwallet on Windows
	//   ~/.rgbwallet on Linux
	//   ~/Library/Application Support/Rgbwallet on MacOS
	DefaultRgbDir = btcutil.AppDataDir("rgbwallet", false)

	// DefaultConfigFile is the default full path of the configuration
	// file.
	DefaultConfigFile = filepath.Join(DefaultRgbDir, defaultConfigFileName)

	defaultNetwork = "testnet"

	defaultDataDir = filepath.Join(DefaultRgbDir, defaultDataDirname)

	// defaultSqliteDatabasePath is the default path under which we store
	// the SQLite database file.
	defaultSqliteDatabasePath = filepath.Join(
		defaultDataDir, defaultNetwork, rgbdb.DefaultDatabaseFileName,
	)

	// ErrInvalidFeeRate is returned when the fee rate is below the relay
	// fee.
	ErrInvalidFeeRate = errors.New("fee rate below minimum relay fee")

	// ErrDustMinAmount is returned when the beneficiary amount would
	// create a dust output.
	ErrDustMinAmount = errors.New("beneficiary amount is dust")
)

// ChainConfig houses the configuration options that govern which
// chain/network we operate on.
type ChainConfig struct {
	Network string `long:"network" description:"network to run on" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"simnet" choice:"signet"`

	SigNetChallenge string `long:"signetchallenge" description:"Connect to a custom signet network defined by this challenge instead of using the global default signet test network"`
}

// WalletConfig houses the options of the wallet paying invoices.
type WalletConfig struct {
	Name string `long:"name" description:"The name the wallet descriptor is stored under"`

	Descriptor string `long:"descriptor" description:"The wallet descriptor, either wpkh(KEY) or tr(KEY) where KEY is an origin prefixed extended public key. Only needed when creating the wallet"`

	FeeRate uint64 `long:"feerate" description:"The fee rate of witness transactions in sat/kvB"`

	MinAmount uint64 `long:"minamount" description:"The amount of satoshis sent to every witness beneficiary"`
}

// Config is the main config of the RGB wallet runtime.
type Config struct {
	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,..."`

	RgbDir     string `long:"rgbdir" description:"The base directory that contains the wallet's data, configuration file, etc."`
	ConfigFile string `long:"configfile" description:"Path to configuration file"`
	DataDir    string `long:"datadir" description:"The directory to store the wallet's data within"`

	ChainConf *ChainConfig  `group:"chain" namespace:"chain"`
	Wallet    *WalletConfig `group:"wallet" namespace:"wallet"`

	Sqlite *rgbdb.SqliteConfig `group:"sqlite" namespace:"sqlite"`

	// ActiveNetParams contains parameters of the target chain.
	ActiveNetParams chaincfg.Params

	// LogLevels is the parsed form of DebugLevel.
	LogLevels *LogLevels

	// networkDir is the path to the directory of the currently active
	// network.
	networkDir string
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		RgbDir:     DefaultRgbDir,
		ConfigFile: DefaultConfigFile,
		DataDir:    defaultDataDir,
		DebugLevel: defaultLogLevel,
		ChainConf: &ChainConfig{
			Network: defaultNetwork,
		},
		Wallet: &WalletConfig{
			Name:      defaultWalletName,
			FeeRate:   defaultFeeRate,
			MinAmount: defaultMinAmount,
		},
		Sqlite: &rgbdb.SqliteConfig{
			DatabaseFileName: defaultSqliteDatabasePath,
		},
	}
}

// NetworkDir returns the directory holding the data of the active network.
func (c *Config) NetworkDir() string {
	return c.networkDir
}

// LoadConfig initializes and parses the config using a config file and the
// given command line arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	// If the user modified the base directory but not the config file,
	// the config file is looked up within the base directory but doesn't
	// have to exist.
	configFileDir := CleanAndExpandPath(preCfg.RgbDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	switch {
	case configFileDir != DefaultRgbDir &&
		configFilePath == DefaultConfigFile:

		configFilePath = filepath.Join(
			configFileDir, defaultConfigFileName,
		)

	// User did specify an explicit --configfile, so we check that it does
	// exist under that path to avoid surprises.
	case configFilePath != DefaultConfigFile:
		if !fileExists(configFilePath) {
			return nil, fmt.Errorf("specified config file does "+
				"not exist in %s", configFilePath)
		}
	}

	// Next, load any additional configuration options from the file.
	cfg := preCfg
	fileParser := flags.NewParser(&cfg, flags.Default)
	err := flags.NewIniParser(fileParser).ParseFile(configFilePath)
	if err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	flagParser := flags.NewParser(&cfg, flags.Default)
	if _, err := flagParser.ParseArgs(args); err != nil {
		return nil, err
	}

	return ValidateConfig(cfg)
}

// ValidateConfig check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set. All file system paths are
// normalized and the network directory is created. The cleaned up config is
// returned on success.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided base directory is not the default, we'll modify the
	// path to the data directory living within it.
	rgbDir := CleanAndExpandPath(cfg.RgbDir)
	if rgbDir != DefaultRgbDir && cfg.DataDir == defaultDataDir {
		cfg.DataDir = filepath.Join(rgbDir, defaultDataDirname)
	}

	mkErr := func(format string, args ...interface{}) error {
		return fmt.Errorf("ValidateConfig: "+format, args...)
	}

	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.Sqlite.DatabaseFileName = CleanAndExpandPath(
		cfg.Sqlite.DatabaseFileName,
	)

	switch cfg.ChainConf.Network {
	case "mainnet":
		cfg.ActiveNetParams = chaincfg.MainNetParams
	case "testnet":
		cfg.ActiveNetParams = chaincfg.TestNet3Params
	case "regtest":
		cfg.ActiveNetParams = chaincfg.RegressionNetParams
	case "simnet":
		cfg.ActiveNetParams = chaincfg.SimNetParams
	case "signet":
		sigNetChallenge := chaincfg.DefaultSignetChallenge
		if cfg.ChainConf.SigNetChallenge != "" {
			challenge, err := hex.DecodeString(
				cfg.ChainConf.SigNetChallenge,
			)
			if err != nil {
				return nil, mkErr("invalid signet challenge, "+
					"hex decode failed: %v", err)
			}
			sigNetChallenge = challenge
		}

		cfg.ActiveNetParams = chaincfg.CustomSignetParams(
			sigNetChallenge, chaincfg.DefaultSignetDNSSeeds,
		)
	default:
		return nil, mkErr("invalid network: %v", cfg.ChainConf.Network)
	}

	logLevels, err := ParseLogLevels(cfg.DebugLevel)
	if err != nil {
		return nil, mkErr("%v", err)
	}
	cfg.LogLevels = logLevels

	feeRate := btcutil.Amount(cfg.Wallet.FeeRate)
	if feeRate < txrules.DefaultRelayFeePerKb {
		return nil, mkErr("%w: %v < %v", ErrInvalidFeeRate, feeRate,
			txrules.DefaultRelayFeePerKb)
	}

	// Beneficiaries may be paid to any output type, taproot being the
	// largest script we expect.
	minAmount := btcutil.Amount(cfg.Wallet.MinAmount)
	p2trScript := make([]byte, txsizes.P2TRPkScriptSize)
	p2trScript[0] = txscript.OP_1
	p2trScript[1] = txscript.OP_DATA_32
	if txrules.IsDustOutput(
		wire.NewTxOut(int64(minAmount), p2trScript),
		txrules.DefaultRelayFeePerKb,
	) {

		return nil, mkErr("%w: %v", ErrDustMinAmount, minAmount)
	}

	if cfg.Wallet.Name == "" {
		return nil, mkErr("wallet name must be set")
	}
	if cfg.Wallet.Descriptor != "" {
		_, err := rgbdescr.ParseRgbDescr(cfg.Wallet.Descriptor)
		if err != nil {
			return nil, mkErr("invalid wallet descriptor: %v", err)
		}
	}

	// We'll now construct the network directory which will be where we
	// store all the data specific to this chain/network.
	cfg.networkDir = filepath.Join(cfg.DataDir, cfg.ChainConf.Network)
	if err := os.MkdirAll(cfg.networkDir, 0700); err != nil {
		return nil, mkErr("failed to create network directory "+
			"'%s': %v", cfg.networkDir, err)
	}

	// We'll also update the database file location as well, if it wasn't
	// set.
	if cfg.Sqlite.DatabaseFileName == defaultSqliteDatabasePath {
		cfg.Sqlite.DatabaseFileName = filepath.Join(
			cfg.networkDir, rgbdb.DefaultDatabaseFileName,
		)
	}

	return &cfg, nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// LogLevels are the parsed log levels of the debuglevel option.
type LogLevels struct {
	// Global is the level of all subsystems without their own level.
	Global btclogv1.Level

	// Subsystems are the levels of individual subsystems.
	Subsystems map[string]btclogv1.Level
}

// Level returns the level of the given subsystem.
func (l *LogLevels) Level(subsystem string) btclogv1.Level {
	if level, ok := l.Subsystems[subsystem]; ok {
		return level
	}

	return l.Global
}

// ParseLogLevels parses a debug level string of the form
// <global-level>,<subsystem>=<level>,... where either part may be omitted.
func ParseLogLevels(s string) (*LogLevels, error) {
	levels := &LogLevels{
		Global:     btclogv1.LevelInfo,
		Subsystems: make(map[string]btclogv1.Level),
	}

	globalSet := false
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		subsystem, levelStr, found := strings.Cut(part, "=")
		if !found {
			if globalSet {
				return nil, fmt.Errorf("global log level "+
					"specified twice: %v", s)
			}

			level, ok := btclogv1.LevelFromString(part)
			if !ok {
				return nil, fmt.Errorf("invalid log level: %v",
					part)
			}
			levels.Global = level
			globalSet = true

			continue
		}

		level, ok := btclogv1.LevelFromString(levelStr)
		if subsystem == "" || !ok {
			return nil, fmt.Errorf("invalid subsystem log level: "+
				"%v", part)
		}
		levels.Subsystems[subsystem] = level
	}

	return levels, nil
}

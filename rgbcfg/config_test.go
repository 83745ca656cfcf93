package rgbcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	btclogv1 "github.com/btcsuite/btclog"
	"github.com/lightninglabs/rgbwallet/rgbdb"
	"github.com/stretchr/testify/require"
)

// testConfig returns a default config with its data stored in a temporary
// directory.
func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.ChainConf.Network = "regtest"

	return cfg
}

// TestValidateConfig checks the validation of the individual options.
func TestValidateConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr error
		errStr  string
	}{{
		name:   "valid",
		modify: func(*Config) {},
	}, {
		name: "invalid network",
		modify: func(cfg *Config) {
			cfg.ChainConf.Network = "foonet"
		},
		errStr: "invalid network",
	}, {
		name: "invalid signet challenge",
		modify: func(cfg *Config) {
			cfg.ChainConf.Network = "signet"
			cfg.ChainConf.SigNetChallenge = "xyz"
		},
		errStr: "invalid signet challenge",
	}, {
		name: "fee rate below relay fee",
		modify: func(cfg *Config) {
			cfg.Wallet.FeeRate = 999
		},
		wantErr: ErrInvalidFeeRate,
	}, {
		name: "dust beneficiary amount",
		modify: func(cfg *Config) {
			cfg.Wallet.MinAmount = 100
		},
		wantErr: ErrDustMinAmount,
	}, {
		name: "invalid log level",
		modify: func(cfg *Config) {
			cfg.DebugLevel = "loud"
		},
		errStr: "invalid log level",
	}, {
		name: "empty wallet name",
		modify: func(cfg *Config) {
			cfg.Wallet.Name = ""
		},
		errStr: "wallet name",
	}, {
		name: "invalid descriptor",
		modify: func(cfg *Config) {
			cfg.Wallet.Descriptor = "sh(foo)"
		},
		errStr: "invalid wallet descriptor",
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t)
			tc.modify(&cfg)

			cleanCfg, err := ValidateConfig(cfg)
			switch {
			case tc.wantErr != nil:
				require.ErrorIs(t, err, tc.wantErr)
				return

			case tc.errStr != "":
				require.ErrorContains(t, err, tc.errStr)
				return
			}

			require.NoError(t, err)
			require.Equal(
				t, chaincfg.RegressionNetParams.Name,
				cleanCfg.ActiveNetParams.Name,
			)
			require.DirExists(t, cleanCfg.NetworkDir())
			require.Equal(
				t, filepath.Join(
					cleanCfg.NetworkDir(),
					rgbdb.DefaultDatabaseFileName,
				), cleanCfg.Sqlite.DatabaseFileName,
			)
		})
	}
}

// TestParseLogLevels checks the global and per subsystem log levels.
func TestParseLogLevels(t *testing.T) {
	t.Parallel()

	levels, err := ParseLogLevels("debug,FRTR=trace, RGDB=warn")
	require.NoError(t, err)
	require.Equal(t, btclogv1.LevelDebug, levels.Global)
	require.Equal(t, btclogv1.LevelTrace, levels.Level("FRTR"))
	require.Equal(t, btclogv1.LevelWarn, levels.Level("RGDB"))
	require.Equal(t, btclogv1.LevelDebug, levels.Level("RPBT"))

	levels, err = ParseLogLevels("FRTR=error")
	require.NoError(t, err)
	require.Equal(t, btclogv1.LevelInfo, levels.Global)
	require.Equal(t, btclogv1.LevelError, levels.Level("FRTR"))

	_, err = ParseLogLevels("info,debug")
	require.ErrorContains(t, err, "specified twice")

	_, err = ParseLogLevels("=debug")
	require.ErrorContains(t, err, "invalid subsystem log level")

	_, err = ParseLogLevels("FRTR=loud")
	require.ErrorContains(t, err, "invalid subsystem log level")
}

// TestLoadConfig makes sure options are read from the config file and the
// command line takes precedence over it.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configFile := filepath.Join(dir, "test.conf")
	conf := "[chain]\n" +
		"chain.network=regtest\n" +
		"\n" +
		"[wallet]\n" +
		"wallet.feerate=5000\n" +
		"wallet.minamount=3000\n"
	require.NoError(t, os.WriteFile(configFile, []byte(conf), 0600))

	cfg, err := LoadConfig([]string{
		"--configfile=" + configFile,
		"--datadir=" + filepath.Join(dir, "data"),
		"--wallet.minamount=4000",
		"--debuglevel=trace",
	})
	require.NoError(t, err)

	require.Equal(
		t, chaincfg.RegressionNetParams.Name, cfg.ActiveNetParams.Name,
	)
	require.EqualValues(t, 5000, cfg.Wallet.FeeRate)
	require.EqualValues(t, 4000, cfg.Wallet.MinAmount)
	require.Equal(t, btclogv1.LevelTrace, cfg.LogLevels.Global)
	require.Equal(
		t, filepath.Join(dir, "data", "regtest",
			rgbdb.DefaultDatabaseFileName),
		cfg.Sqlite.DatabaseFileName,
	)

	_, err = LoadConfig([]string{
		"--configfile=" + filepath.Join(dir, "missing.conf"),
	})
	require.ErrorContains(t, err, "does not exist")
}

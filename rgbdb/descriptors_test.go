package rgbdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/internal/test"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var testAccountPath = []uint32{
	hdkeychain.HardenedKeyStart + 86,
	hdkeychain.HardenedKeyStart + 1,
	hdkeychain.HardenedKeyStart,
}

// newTestSqliteStore creates a fresh database in a temporary directory that
// is removed once the test finishes.
func newTestSqliteStore(t *testing.T) *SqliteStore {
	t.Helper()

	store, err := NewSqliteStore(&SqliteConfig{
		DatabaseFileName: filepath.Join(t.TempDir(), "tmp.db"),
	}, clock.NewTestClock(time.Unix(1700000000, 0)))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func testAccount(t *testing.T) *rgbdescr.XpubDerivable {
	t.Helper()

	master := test.RandMasterKey(t, &chaincfg.RegressionNetParams)
	account, err := rgbdescr.DeriveAccount(master, testAccountPath)
	require.NoError(t, err)

	return account
}

func testCommitment(fill byte) dbc.TapretCommitment {
	var mpc dbc.MpcCommitment
	for i := range mpc {
		mpc[i] = fill
	}

	return dbc.NewTapretCommitment(mpc)
}

// TestDescriptorRoundTrip makes sure a taproot descriptor comes back with all
// its tweaks, deriving the very same scripts.
func TestDescriptorRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestSqliteStore(t)

	descr := rgbdescr.NewRgbDescr(rgbdescr.NewTapretKey(testAccount(t)))
	tweaked := []rgbdescr.Terminal{
		{Keychain: rgbdescr.Tapret, Index: 0},
		{Keychain: rgbdescr.Tapret, Index: 5},
	}
	for i, terminal := range tweaked {
		err := descr.AddTapretTweak(
			terminal, testCommitment(byte(i+1)),
		)
		require.NoError(t, err)
	}

	require.NoError(t, store.StoreDescriptor(ctx, "main", descr))

	// A third tweak is only added to the database.
	late := rgbdescr.Terminal{Keychain: rgbdescr.Tapret, Index: 2}
	err := store.AddTapretTweak(ctx, "main", late, testCommitment(9))
	require.NoError(t, err)
	require.NoError(t, descr.AddTapretTweak(late, testCommitment(9)))

	dbDescr, err := store.FetchDescriptor(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, descr.String(), dbDescr.String())

	dbKey, ok := dbDescr.TapretKey()
	require.True(t, ok)
	memKey, _ := descr.TapretKey()
	require.ElementsMatch(t, memKey.Tweaks(), dbKey.Tweaks())

	for _, idx := range []uint32{0, 1, 2, 5} {
		want, err := descr.Derive(rgbdescr.Tapret, idx)
		require.NoError(t, err)
		got, err := dbDescr.Derive(rgbdescr.Tapret, idx)
		require.NoError(t, err)

		require.Equal(t, want.PkScript, got.PkScript)
	}

	names, err := store.ListDescriptors(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"main"}, names)
}

// TestTapretTweakOnce makes sure a persisted terminal can't be tweaked a
// second time and the first commitment survives.
func TestTapretTweakOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestSqliteStore(t)

	descr := rgbdescr.NewRgbDescr(rgbdescr.NewTapretKey(testAccount(t)))
	require.NoError(t, store.StoreDescriptor(ctx, "main", descr))

	terminal := rgbdescr.Terminal{Keychain: rgbdescr.Tapret, Index: 1}
	first := testCommitment(1)
	require.NoError(t, store.AddTapretTweak(ctx, "main", terminal, first))

	err := store.AddTapretTweak(ctx, "main", terminal, testCommitment(2))
	require.ErrorIs(t, err, rgbdescr.ErrTweakAlreadyAssigned)

	var alreadyErr *rgbdescr.TweakAlreadyAssignedError
	require.ErrorAs(t, err, &alreadyErr)
	require.Equal(t, terminal, alreadyErr.Terminal)

	dbDescr, err := store.FetchDescriptor(ctx, "main")
	require.NoError(t, err)
	dbKey, _ := dbDescr.TapretKey()
	require.Equal(t, []rgbdescr.TapretTweak{{
		Terminal:   terminal,
		Commitment: first,
	}}, dbKey.Tweaks())
}

// TestDescriptorErrors checks the failure modes of the descriptor store.
func TestDescriptorErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestSqliteStore(t)

	_, err := store.FetchDescriptor(ctx, "unknown")
	require.ErrorIs(t, err, ErrDescriptorNotFound)

	terminal := rgbdescr.Terminal{Keychain: rgbdescr.Tapret, Index: 1}
	err = store.AddTapretTweak(ctx, "unknown", terminal, testCommitment(1))
	require.ErrorIs(t, err, ErrDescriptorNotFound)

	wpkh := rgbdescr.NewRgbDescr(rgbdescr.NewWpkh(testAccount(t)))
	require.NoError(t, store.StoreDescriptor(ctx, "wpkh", wpkh))

	err = store.StoreDescriptor(ctx, "wpkh", wpkh)
	require.True(t, IsUniqueConstraintViolation(err))

	dbDescr, err := store.FetchDescriptor(ctx, "wpkh")
	require.NoError(t, err)
	require.Equal(t, wpkh.String(), dbDescr.String())
	require.Equal(t, dbc.OpretFirst, dbDescr.SealCloseMethod())
}

// TestReopen makes sure the migrations can be applied to an existing
// database.
func TestReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := &SqliteConfig{
		DatabaseFileName: filepath.Join(t.TempDir(), "tmp.db"),
	}

	store, err := NewSqliteStore(cfg, clock.NewDefaultClock())
	require.NoError(t, err)

	descr := rgbdescr.NewRgbDescr(rgbdescr.NewTapretKey(testAccount(t)))
	require.NoError(t, store.StoreDescriptor(ctx, "main", descr))
	require.NoError(t, store.Close())

	store, err = NewSqliteStore(cfg, clock.NewDefaultClock())
	require.NoError(t, err)
	defer store.Close()

	names, err := store.ListDescriptors(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"main"}, names)
}

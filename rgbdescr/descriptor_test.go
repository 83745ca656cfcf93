package rgbdescr

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/stretchr/testify/require"
)

var testAccountPath = []uint32{
	hdkeychain.HardenedKeyStart + 86,
	hdkeychain.HardenedKeyStart + 1,
	hdkeychain.HardenedKeyStart,
}

func testAccount(t *testing.T) *XpubDerivable {
	t.Helper()

	seed := bytes.Repeat([]byte{0x42}, hdkeychain.RecommendedSeedLen)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	account, err := DeriveAccount(master, testAccountPath)
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

// TestTapretTweakWriteOnce makes sure a terminal can only be tweaked once and
// the first tweak survives a second attempt.
func TestTapretTweakWriteOnce(t *testing.T) {
	t.Parallel()

	descr := NewRgbDescr(NewTapretKey(testAccount(t)))
	terminal := Terminal{Keychain: Tapret, Index: 3}

	first := testCommitment(1)
	require.NoError(t, descr.AddTapretTweak(terminal, first))

	err := descr.AddTapretTweak(terminal, testCommitment(2))
	require.ErrorIs(t, err, ErrTweakAlreadyAssigned)

	var alreadyErr *TweakAlreadyAssignedError
	require.ErrorAs(t, err, &alreadyErr)
	require.Equal(t, terminal, alreadyErr.Terminal)

	tk, ok := descr.TapretKey()
	require.True(t, ok)
	require.Equal(t, first, tk.Tweak(terminal).UnwrapOr(dbc.TapretCommitment{}))

	// A vacant terminal always accepts a tweak.
	other := Terminal{Keychain: Tapret, Index: 4}
	require.NoError(t, descr.AddTapretTweak(other, testCommitment(2)))
	require.Len(t, tk.Tweaks(), 2)
	require.Equal(t, terminal, tk.Tweaks()[0].Terminal)
}

// TestTapretDerive makes sure derivation switches to the committed script
// exactly for the tweaked terminal.
func TestTapretDerive(t *testing.T) {
	t.Parallel()

	account := testAccount(t)
	descr := NewRgbDescr(NewTapretKey(account))
	terminal := Terminal{Keychain: Tapret, Index: 7}

	before, err := descr.Derive(Tapret, 7)
	require.NoError(t, err)
	require.True(t, before.IsTaproot())
	require.True(t, before.Commitment.IsNone())

	internalKey, err := account.Derive(terminal)
	require.NoError(t, err)
	keyOnly, err := dbc.KeyOnlyPkScript(internalKey)
	require.NoError(t, err)
	require.Equal(t, keyOnly, before.PkScript)

	neighbour, err := descr.Derive(Tapret, 8)
	require.NoError(t, err)

	commitment := testCommitment(9)
	require.NoError(t, descr.AddTapretTweak(terminal, commitment))

	after, err := descr.Derive(Tapret, 7)
	require.NoError(t, err)
	require.True(t, after.Commitment.IsSome())
	require.NotEqual(t, before.PkScript, after.PkScript)

	root := commitment.TapscriptRoot()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, root[:])
	require.Equal(t, schnorr.SerializePubKey(outputKey), after.PkScript[2:])

	// Derivation is pure, deriving twice gives the same script.
	again, err := descr.Derive(Tapret, 7)
	require.NoError(t, err)
	require.Equal(t, after.PkScript, again.PkScript)

	// Other terminals are unaffected.
	neighbourAfter, err := descr.Derive(Tapret, 8)
	require.NoError(t, err)
	require.Equal(t, neighbour.PkScript, neighbourAfter.PkScript)

	// The same index on another keychain never commits.
	rgb, err := descr.Derive(Rgb, 7)
	require.NoError(t, err)
	require.True(t, rgb.Commitment.IsNone())

	_, err = descr.Derive(Tapret, hdkeychain.HardenedKeyStart)
	require.ErrorIs(t, err, ErrHardenedIndex)
}

// TestRgbDescrDispatch tests the per variant behavior of the descriptor.
func TestRgbDescrDispatch(t *testing.T) {
	t.Parallel()

	account := testAccount(t)

	testCases := []struct {
		name            string
		descr           *RgbDescr
		class           SpkClass
		method          dbc.Method
		defaultKeychain Keychain
		numKeychains    int
		scriptLen       int
	}{{
		name:            "wpkh",
		descr:           NewRgbDescr(NewWpkh(account)),
		class:           P2wpkh,
		method:          dbc.OpretFirst,
		defaultKeychain: External,
		numKeychains:    3,
		scriptLen:       22,
	}, {
		name:            "tapret key",
		descr:           NewRgbDescr(NewTapretKey(account)),
		class:           P2tr,
		method:          dbc.TapretFirst,
		defaultKeychain: Rgb,
		numKeychains:    4,
		scriptLen:       34,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.class, tc.descr.Class())
			require.Equal(t, tc.method, tc.descr.SealCloseMethod())
			require.Equal(
				t, tc.defaultKeychain, tc.descr.DefaultKeychain(),
			)
			require.Len(t, tc.descr.Keychains(), tc.numKeychains)
			require.Len(t, tc.descr.Xpubs(), 1)

			derived, err := tc.descr.Derive(External, 0)
			require.NoError(t, err)
			require.Len(t, derived.PkScript, tc.scriptLen)

			terminal := Terminal{Keychain: External}
			compr, err := tc.descr.ComprKeyset(terminal)
			require.NoError(t, err)
			xonly, err := tc.descr.XOnlyKeyset(terminal)
			require.NoError(t, err)
			require.Equal(t, 1, len(compr)+len(xonly))

			parsed, err := ParseRgbDescr(tc.descr.String())
			require.NoError(t, err)
			require.Equal(t, tc.descr.String(), parsed.String())
		})
	}
}

// TestWpkhTweakPanics makes sure adding a tweak to a wpkh descriptor panics.
func TestWpkhTweakPanics(t *testing.T) {
	t.Parallel()

	descr := NewRgbDescr(NewWpkh(testAccount(t)))
	require.Panics(t, func() {
		_ = descr.AddTapretTweak(
			Terminal{Keychain: Tapret}, testCommitment(1),
		)
	})
}

// TestXOnlyKeysetPath makes sure the derivation path of a terminal ends with
// the keychain and index.
func TestXOnlyKeysetPath(t *testing.T) {
	t.Parallel()

	account := testAccount(t)
	tk := NewTapretKey(account)
	terminal := Terminal{Keychain: Tapret, Index: 5}

	keyset, err := tk.XOnlyKeyset(terminal)
	require.NoError(t, err)
	require.Len(t, keyset, 1)

	derivation := keyset[0]
	require.Equal(
		t, account.Origin().MasterKeyFingerprint,
		derivation.MasterKeyFingerprint,
	)
	require.Len(t, derivation.Bip32Path, len(testAccountPath)+2)

	fromPath, err := TerminalFromPath(derivation.Bip32Path)
	require.NoError(t, err)
	require.Equal(t, terminal, fromPath)
}

// TestTerminalText tests the text form of terminals and keychains.
func TestTerminalText(t *testing.T) {
	t.Parallel()

	terminal := Terminal{Keychain: Tapret, Index: 3}
	require.Equal(t, "&10/3", terminal.String())

	parsed, err := ParseTerminal("&10/3")
	require.NoError(t, err)
	require.Equal(t, terminal, parsed)

	for _, invalid := range []string{"10/3", "&10", "&a/3", "&10/2147483648"} {
		_, err := ParseTerminal(invalid)
		require.Error(t, err, invalid)
	}

	k, err := ParseKeychain("1")
	require.NoError(t, err)
	require.Equal(t, Internal, k)

	_, err = ParseKeychain("9")
	require.ErrorIs(t, err, ErrNonStandardKeychain)

	require.True(t, Tapret.IsSeal())
	require.True(t, Rgb.IsSeal())
	require.False(t, External.IsSeal())
	require.True(t, ContainsRgb(10))
	require.False(t, ContainsRgb(1))
	require.Equal(t, Tapret, ForMethod(dbc.TapretFirst))
	require.Equal(t, Rgb, ForMethod(dbc.OpretFirst))
}

// TestKeyOriginText tests the key origin text round trip.
func TestKeyOriginText(t *testing.T) {
	t.Parallel()

	origin, err := ParseKeyOrigin("d34db33f/86h/1'/0h/5")
	require.NoError(t, err)
	require.Equal(t, []uint32{
		hdkeychain.HardenedKeyStart + 86,
		hdkeychain.HardenedKeyStart + 1,
		hdkeychain.HardenedKeyStart,
		5,
	}, origin.Path)
	require.Equal(t, "d34db33f/86h/1h/0h/5", origin.String())

	_, err = ParseKeyOrigin("d34d/86h")
	require.Error(t, err)

	_, err = ParseRgbDescr("sh(" + testAccount(t).String() + ")")
	require.ErrorIs(t, err, ErrUnsupportedDescriptor)
}

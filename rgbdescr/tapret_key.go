package rgbdescr

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// TapretTweak is a single entry of the tweak table of a TapretKey.
type TapretTweak struct {
	Terminal   Terminal
	Commitment dbc.TapretCommitment
}

// TapretKey is a single key taproot descriptor whose outputs on the Tapret
// keychain may commit to a tapret commitment. Each terminal can be tweaked at
// most once, the table only ever grows.
type TapretKey struct {
	internalKey *XpubDerivable

	tweaks map[Terminal]dbc.TapretCommitment
}

// NewTapretKey creates a tapret descriptor without any tweaks.
func NewTapretKey(internalKey *XpubDerivable) *TapretKey {
	return &TapretKey{
		internalKey: internalKey,
		tweaks:      make(map[Terminal]dbc.TapretCommitment),
	}
}

func (k *TapretKey) sealed() {}

// InternalKey returns the account key internal keys are derived from.
func (k *TapretKey) InternalKey() *XpubDerivable {
	return k.internalKey
}

// Class returns P2tr.
func (k *TapretKey) Class() SpkClass {
	return P2tr
}

// DefaultKeychain returns the Rgb keychain.
func (k *TapretKey) DefaultKeychain() Keychain {
	return Rgb
}

// Keychains returns the standard and the RGB keychains.
func (k *TapretKey) Keychains() []Keychain {
	return []Keychain{External, Internal, Rgb, Tapret}
}

// Derive derives the P2TR script at the given terminal. On the Tapret
// keychain a terminal with a recorded tweak derives the output committing to
// the single-leaf tapret tree, every other terminal derives a BIP-0086 key
// spend only output.
func (k *TapretKey) Derive(keychain Keychain, index uint32) (*DerivedScript,
	error) {

	t, err := NewTerminal(keychain, index)
	if err != nil {
		return nil, err
	}

	internalKey, err := k.internalKey.Derive(t)
	if err != nil {
		return nil, err
	}

	derived := &DerivedScript{
		Terminal:   t,
		Class:      P2tr,
		Key:        internalKey,
		Commitment: fn.None[dbc.TapretCommitment](),
	}

	if tweak, ok := k.tweaks[t]; ok && keychain == Tapret {
		derived.Commitment = fn.Some(tweak)
		derived.PkScript, err = tweak.PkScript(internalKey)
	} else {
		derived.PkScript, err = dbc.KeyOnlyPkScript(internalKey)
	}
	if err != nil {
		return nil, err
	}

	return derived, nil
}

// SealCloseMethod returns the tapret-first method.
func (k *TapretKey) SealCloseMethod() dbc.Method {
	return dbc.TapretFirst
}

// Xpubs returns the internal key of the descriptor.
func (k *TapretKey) Xpubs() []*XpubDerivable {
	return []*XpubDerivable{k.internalKey}
}

// ComprKeyset returns no keys, taproot only uses x-only keys.
func (k *TapretKey) ComprKeyset(Terminal) ([]*psbt.Bip32Derivation, error) {
	return nil, nil
}

// XOnlyKeyset returns the taproot derivation of the internal key at the
// given terminal.
func (k *TapretKey) XOnlyKeyset(
	t Terminal) ([]*psbt.TaprootBip32Derivation, error) {

	key, err := k.internalKey.Derive(t)
	if err != nil {
		return nil, err
	}

	return []*psbt.TaprootBip32Derivation{{
		XOnlyPubKey:          schnorr.SerializePubKey(key),
		LeafHashes:           make([][]byte, 0),
		MasterKeyFingerprint: k.internalKey.Origin().MasterKeyFingerprint,
		Bip32Path:            k.internalKey.FullPath(t),
	}}, nil
}

// AddTapretTweak records the commitment for the given terminal if it has no
// tweak yet. Otherwise a TweakAlreadyAssignedError is returned and the table
// stays unchanged.
func (k *TapretKey) AddTapretTweak(t Terminal,
	commitment dbc.TapretCommitment) error {

	if _, ok := k.tweaks[t]; ok {
		return &TweakAlreadyAssignedError{Terminal: t}
	}
	k.tweaks[t] = commitment

	return nil
}

// Tweak returns the tweak recorded for the given terminal.
func (k *TapretKey) Tweak(t Terminal) fn.Option[dbc.TapretCommitment] {
	tweak, ok := k.tweaks[t]
	if !ok {
		return fn.None[dbc.TapretCommitment]()
	}

	return fn.Some(tweak)
}

// Tweaks returns all recorded tweaks ordered by terminal.
func (k *TapretKey) Tweaks() []TapretTweak {
	tweaks := make([]TapretTweak, 0, len(k.tweaks))
	for t, c := range k.tweaks {
		tweaks = append(tweaks, TapretTweak{
			Terminal:   t,
			Commitment: c,
		})
	}
	sort.Slice(tweaks, func(i, j int) bool {
		ti, tj := tweaks[i].Terminal, tweaks[j].Terminal
		if ti.Keychain != tj.Keychain {
			return ti.Keychain < tj.Keychain
		}

		return ti.Index < tj.Index
	})

	return tweaks
}

// String returns the descriptor text form.
func (k *TapretKey) String() string {
	return fmt.Sprintf("tr(%v)", k.internalKey)
}

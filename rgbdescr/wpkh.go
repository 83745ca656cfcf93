package rgbdescr

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Wpkh is a plain single key segwit v0 descriptor. Seals on its outputs are
// closed with the opret-first method.
type Wpkh struct {
	key *XpubDerivable
}

// NewWpkh creates a new wpkh descriptor for the given key.
func NewWpkh(key *XpubDerivable) *Wpkh {
	return &Wpkh{
		key: key,
	}
}

func (w *Wpkh) sealed() {}

// Class returns P2wpkh.
func (w *Wpkh) Class() SpkClass {
	return P2wpkh
}

// DefaultKeychain returns the external keychain.
func (w *Wpkh) DefaultKeychain() Keychain {
	return External
}

// Keychains returns the standard keychains and the Rgb keychain opret seals
// are derived on.
func (w *Wpkh) Keychains() []Keychain {
	return []Keychain{External, Internal, Rgb}
}

// Derive derives the P2WPKH script at the given terminal.
func (w *Wpkh) Derive(keychain Keychain, index uint32) (*DerivedScript,
	error) {

	t, err := NewTerminal(keychain, index)
	if err != nil {
		return nil, err
	}

	key, err := w.key.Derive(t)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(key.SerializeCompressed())).
		Script()
	if err != nil {
		return nil, err
	}

	return &DerivedScript{
		Terminal:   t,
		Class:      P2wpkh,
		Key:        key,
		Commitment: fn.None[dbc.TapretCommitment](),
		PkScript:   pkScript,
	}, nil
}

// SealCloseMethod returns the opret-first method.
func (w *Wpkh) SealCloseMethod() dbc.Method {
	return dbc.OpretFirst
}

// Xpubs returns the single key of the descriptor.
func (w *Wpkh) Xpubs() []*XpubDerivable {
	return []*XpubDerivable{w.key}
}

// ComprKeyset returns the derivation of the key at the given terminal.
func (w *Wpkh) ComprKeyset(t Terminal) ([]*psbt.Bip32Derivation, error) {
	key, err := w.key.Derive(t)
	if err != nil {
		return nil, err
	}

	return []*psbt.Bip32Derivation{{
		PubKey:               key.SerializeCompressed(),
		MasterKeyFingerprint: w.key.Origin().MasterKeyFingerprint,
		Bip32Path:            w.key.FullPath(t),
	}}, nil
}

// XOnlyKeyset returns no keys, wpkh doesn't use x-only keys.
func (w *Wpkh) XOnlyKeyset(Terminal) ([]*psbt.TaprootBip32Derivation, error) {
	return nil, nil
}

// String returns the descriptor text form.
func (w *Wpkh) String() string {
	return fmt.Sprintf("wpkh(%v)", w.key)
}

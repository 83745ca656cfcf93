package rgbdescr

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// SpkClass is the class of output script a descriptor derives.
type SpkClass uint8

const (
	// P2wpkh is a segwit v0 pay-to-witness-pubkey-hash script.
	P2wpkh SpkClass = iota

	// P2tr is a segwit v1 pay-to-taproot script.
	P2tr
)

// String returns the name of the script class.
func (c SpkClass) String() string {
	switch c {
	case P2wpkh:
		return "p2wpkh"

	case P2tr:
		return "p2tr"

	default:
		return fmt.Sprintf("UnknownClass(%d)", uint8(c))
	}
}

// DerivedScript is the output script derived at a single terminal.
type DerivedScript struct {
	// Terminal is the terminal the script was derived at.
	Terminal Terminal

	// Class is the class of the script.
	Class SpkClass

	// Key is the derived key. For taproot scripts this is the internal
	// key.
	Key *btcec.PublicKey

	// Commitment is the tapret commitment the script commits to in its
	// single-leaf script tree, if any.
	Commitment fn.Option[dbc.TapretCommitment]

	// PkScript is the output script.
	PkScript []byte
}

// IsTaproot returns true if the script is a taproot output.
func (d *DerivedScript) IsTaproot() bool {
	return d.Class == P2tr
}

// Variant is one of the closed set of descriptors an RgbDescr can wrap. The
// set is sealed, only Wpkh and TapretKey implement it.
type Variant interface {
	// Class returns the class of scripts the descriptor derives.
	Class() SpkClass

	// DefaultKeychain returns the keychain used when none is given.
	DefaultKeychain() Keychain

	// Keychains returns the keychains the descriptor derives on.
	Keychains() []Keychain

	// Derive derives the output script at the given keychain and index.
	Derive(keychain Keychain, index uint32) (*DerivedScript, error)

	// SealCloseMethod returns the method used to close seals defined on
	// outputs of this descriptor.
	SealCloseMethod() dbc.Method

	// Xpubs returns the extended keys of the descriptor.
	Xpubs() []*XpubDerivable

	// ComprKeyset returns the BIP-0032 derivations of the compressed
	// keys used at the given terminal.
	ComprKeyset(t Terminal) ([]*psbt.Bip32Derivation, error)

	// XOnlyKeyset returns the taproot BIP-0032 derivations of the x-only
	// keys used at the given terminal.
	XOnlyKeyset(t Terminal) ([]*psbt.TaprootBip32Derivation, error)

	// String returns the descriptor text form.
	String() string

	sealed()
}

// RgbDescr is a wallet descriptor that can be used for RGB seals. It
// dispatches every operation to the variant it wraps.
type RgbDescr struct {
	variant Variant
}

// NewRgbDescr wraps the given variant.
func NewRgbDescr(variant Variant) *RgbDescr {
	return &RgbDescr{
		variant: variant,
	}
}

// Variant returns the wrapped variant.
func (d *RgbDescr) Variant() Variant {
	return d.variant
}

// TapretKey returns the wrapped tapret descriptor, if the descriptor is one.
func (d *RgbDescr) TapretKey() (*TapretKey, bool) {
	tk, ok := d.variant.(*TapretKey)
	return tk, ok
}

// Class returns the class of scripts the descriptor derives.
func (d *RgbDescr) Class() SpkClass {
	switch v := d.variant.(type) {
	case *Wpkh:
		return v.Class()

	case *TapretKey:
		return v.Class()
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// DefaultKeychain returns the keychain used when none is given.
func (d *RgbDescr) DefaultKeychain() Keychain {
	switch v := d.variant.(type) {
	case *Wpkh:
		return v.DefaultKeychain()

	case *TapretKey:
		return v.DefaultKeychain()
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// Keychains returns the keychains the descriptor derives on.
func (d *RgbDescr) Keychains() []Keychain {
	switch v := d.variant.(type) {
	case *Wpkh:
		return v.Keychains()

	case *TapretKey:
		return v.Keychains()
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// Derive derives the output script at the given keychain and index.
func (d *RgbDescr) Derive(keychain Keychain,
	index uint32) (*DerivedScript, error) {

	switch v := d.variant.(type) {
	case *Wpkh:
		return v.Derive(keychain, index)

	case *TapretKey:
		return v.Derive(keychain, index)
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// SealCloseMethod returns the method used to close seals defined on outputs
// of this descriptor.
func (d *RgbDescr) SealCloseMethod() dbc.Method {
	switch v := d.variant.(type) {
	case *Wpkh:
		return dbc.OpretFirst

	case *TapretKey:
		return v.SealCloseMethod()
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// Xpubs returns the extended keys of the descriptor.
func (d *RgbDescr) Xpubs() []*XpubDerivable {
	switch v := d.variant.(type) {
	case *Wpkh:
		return v.Xpubs()

	case *TapretKey:
		return v.Xpubs()
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// ComprKeyset returns the BIP-0032 derivations of the compressed keys used at
// the given terminal.
func (d *RgbDescr) ComprKeyset(t Terminal) ([]*psbt.Bip32Derivation, error) {
	switch v := d.variant.(type) {
	case *Wpkh:
		return v.ComprKeyset(t)

	case *TapretKey:
		return v.ComprKeyset(t)
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// XOnlyKeyset returns the taproot BIP-0032 derivations of the x-only keys
// used at the given terminal.
func (d *RgbDescr) XOnlyKeyset(
	t Terminal) ([]*psbt.TaprootBip32Derivation, error) {

	switch v := d.variant.(type) {
	case *Wpkh:
		return v.XOnlyKeyset(t)

	case *TapretKey:
		return v.XOnlyKeyset(t)
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// AddTapretTweak records the tapret commitment for the given terminal. Adding
// a tweak to a descriptor that can't hold tapret commitments is a programming
// error and panics.
func (d *RgbDescr) AddTapretTweak(t Terminal,
	commitment dbc.TapretCommitment) error {

	switch v := d.variant.(type) {
	case *Wpkh:
		panic("adding tapret tweak to non-taproot descriptor")

	case *TapretKey:
		return v.AddTapretTweak(t, commitment)
	}

	panic(fmt.Sprintf("unknown descriptor variant %T", d.variant))
}

// String returns the descriptor text form.
func (d *RgbDescr) String() string {
	return d.variant.String()
}

// ParseRgbDescr parses a standard single key descriptor and converts it into
// its RGB variant: wpkh(KEY) becomes Wpkh and tr(KEY) becomes a TapretKey
// without tweaks. KEY is an origin prefixed extended key.
func ParseRgbDescr(s string) (*RgbDescr, error) {
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDescriptor, s)
	}

	key, err := ParseXpubDerivable(s[open+1 : len(s)-1])
	if err != nil {
		return nil, err
	}

	switch s[:open] {
	case "wpkh":
		return NewRgbDescr(NewWpkh(key)), nil

	case "tr":
		return NewRgbDescr(NewTapretKey(key)), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDescriptor,
			s[:open])
	}
}

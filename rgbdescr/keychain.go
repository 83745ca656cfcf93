package rgbdescr

import (
	"fmt"
	"strconv"

	"github.com/lightninglabs/rgbwallet/dbc"
)

// Keychain is the derivation bucket right below the account level of a
// descriptor.
type Keychain uint8

const (
	// External is the standard receive keychain.
	External Keychain = 0

	// Internal is the standard change keychain.
	Internal Keychain = 1

	// Rgb is the keychain for outputs used as seals that commit with the
	// opret-first method. Never used by standard wallets.
	Rgb Keychain = 9

	// Tapret is the keychain for taproot outputs that may carry a tapret
	// commitment. Never used by standard wallets.
	Tapret Keychain = 10
)

// RgbAll lists the keychains reserved for seal outputs.
var RgbAll = [...]Keychain{Rgb, Tapret}

// String returns the numeral of the keychain.
func (k Keychain) String() string {
	return strconv.FormatUint(uint64(k), 10)
}

// IsSeal returns true if outputs derived on this keychain carry RGB seals.
func (k Keychain) IsSeal() bool {
	return k == Rgb || k == Tapret
}

// ContainsRgb returns true if the given raw keychain value, as found in a
// BIP-0032 derivation path, is one of the RGB reserved keychains.
func ContainsRgb(keychain uint32) bool {
	return keychain == uint32(Rgb) || keychain == uint32(Tapret)
}

// ForMethod returns the keychain used for seal outputs closed with the given
// commitment method.
func ForMethod(method dbc.Method) Keychain {
	switch method {
	case dbc.TapretFirst:
		return Tapret

	default:
		return Rgb
	}
}

// ParseKeychain parses a keychain as given by a user. Only the standard
// keychains are accepted, the RGB keychains are never exposed for direct
// use.
func ParseKeychain(s string) (Keychain, error) {
	k, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid keychain %q: %w", s, err)
	}

	if k > uint64(Internal) {
		return 0, fmt.Errorf("%w: %d is outside the standard range "+
			"[0, 1]", ErrNonStandardKeychain, k)
	}

	return Keychain(k), nil
}

package rgbdescr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Terminal identifies a single derivation path below the account level of a
// descriptor: the keychain and the normal (non-hardened) index within it.
type Terminal struct {
	// Keychain is the keychain the index belongs to.
	Keychain Keychain

	// Index is the non-hardened BIP-0032 index.
	Index uint32
}

// NewTerminal creates a new terminal, making sure the index is a normal
// index.
func NewTerminal(keychain Keychain, index uint32) (Terminal, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return Terminal{}, fmt.Errorf("%w: %d", ErrHardenedIndex, index)
	}

	return Terminal{
		Keychain: keychain,
		Index:    index,
	}, nil
}

// String returns the text form of the terminal, for example "&10/3".
func (t Terminal) String() string {
	return fmt.Sprintf("&%d/%d", t.Keychain, t.Index)
}

// Path returns the two path elements the terminal adds to the account
// derivation path.
func (t Terminal) Path() []uint32 {
	return []uint32{uint32(t.Keychain), t.Index}
}

// TerminalFromPath extracts the terminal from the last two elements of a full
// BIP-0032 derivation path.
func TerminalFromPath(path []uint32) (Terminal, error) {
	if len(path) < 2 {
		return Terminal{}, fmt.Errorf("derivation path too short for "+
			"terminal: %v", path)
	}

	keychain, index := path[len(path)-2], path[len(path)-1]
	if keychain > 0xff {
		return Terminal{}, fmt.Errorf("keychain %d out of range",
			keychain)
	}

	return NewTerminal(Keychain(keychain), index)
}

// ParseTerminal parses the text form of a terminal. Any keychain numeral is
// accepted here since tweak tables are keyed by RGB keychains.
func ParseTerminal(s string) (Terminal, error) {
	if !strings.HasPrefix(s, "&") {
		return Terminal{}, fmt.Errorf("terminal %q must start with &", s)
	}

	parts := strings.Split(s[1:], "/")
	if len(parts) != 2 {
		return Terminal{}, fmt.Errorf("invalid terminal %q", s)
	}

	keychain, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Terminal{}, fmt.Errorf("invalid terminal keychain: %w",
			err)
	}
	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Terminal{}, fmt.Errorf("invalid terminal index: %w", err)
	}

	return NewTerminal(Keychain(keychain), uint32(index))
}

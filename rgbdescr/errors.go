package rgbdescr

import (
	"errors"
	"fmt"
)

var (
	// ErrTweakAlreadyAssigned is matched by TweakAlreadyAssignedError.
	ErrTweakAlreadyAssigned = errors.New("terminal already has a tapret " +
		"tweak assigned")

	// ErrNonStandardKeychain is returned when a user supplied keychain is
	// not one of the standard keychains.
	ErrNonStandardKeychain = errors.New("non-standard keychain")

	// ErrHardenedIndex is returned when a terminal index is hardened.
	ErrHardenedIndex = errors.New("terminal index must not be hardened")

	// ErrUnknownKeychain is returned when deriving on a keychain the
	// descriptor doesn't support.
	ErrUnknownKeychain = errors.New("keychain not supported by descriptor")

	// ErrUnsupportedDescriptor is returned when parsing a descriptor type
	// that has no RGB variant.
	ErrUnsupportedDescriptor = errors.New("unsupported descriptor")
)

// TweakAlreadyAssignedError is returned when a tapret tweak is added for a
// terminal that already has one. The existing tweak is left untouched.
type TweakAlreadyAssignedError struct {
	// Terminal is the occupied terminal.
	Terminal Terminal
}

// Error returns the error message.
func (e *TweakAlreadyAssignedError) Error() string {
	return fmt.Sprintf("terminal derivation %v already has a taptweak "+
		"assigned", e.Terminal)
}

// Is allows errors.Is to match the error against ErrTweakAlreadyAssigned.
func (e *TweakAlreadyAssignedError) Is(target error) bool {
	return target == ErrTweakAlreadyAssigned
}

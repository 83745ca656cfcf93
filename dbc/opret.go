package dbc

import (
	"errors"

	"github.com/btcsuite/btcd/txscript"
)

var (
	// ErrNotOpretScript is returned when an output script isn't an
	// OP_RETURN output carrying a multi-protocol commitment.
	ErrNotOpretScript = errors.New("script is not an opret commitment")
)

// OpretHostScript returns the placeholder script of an opret host output
// before the commitment is embedded: a bare OP_RETURN.
func OpretHostScript() []byte {
	return []byte{txscript.OP_RETURN}
}

// IsOpretScript returns true if the script is an OP_RETURN output, with or
// without a commitment pushed.
func IsOpretScript(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}

// OpretScript returns the OP_RETURN output script that commits to the given
// multi-protocol commitment.
func OpretScript(c MpcCommitment) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(c[:]).
		Script()
}

// ParseOpretScript extracts the commitment from an opret output script.
func ParseOpretScript(script []byte) (MpcCommitment, error) {
	var c MpcCommitment

	// OP_RETURN OP_DATA_32 <32 bytes>.
	if len(script) != 2+MpcCommitmentSize ||
		script[0] != txscript.OP_RETURN ||
		script[1] != txscript.OP_DATA_32 {

		return c, ErrNotOpretScript
	}
	copy(c[:], script[2:])

	return c, nil
}

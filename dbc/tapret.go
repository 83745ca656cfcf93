package dbc

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// tapretReservedOps is the number of OP_RESERVED opcodes that prefix
	// the tapret leaf script. They make the leaf unspendable and pad the
	// script to exactly 64 bytes so it can't be confused with a branch.
	tapretReservedOps = 29

	// TapretCommitmentSize is the size of a serialized tapret commitment:
	// the 32-byte mpc commitment followed by a single nonce byte.
	TapretCommitmentSize = MpcCommitmentSize + 1

	// TapretLeafScriptSize is the size of the tapret leaf script:
	//
	//	- 29 bytes of OP_RESERVED
	//	- 1 byte OP_RETURN
	//	- 1 byte OP_DATA_33
	//	- 33 bytes of commitment
	TapretLeafScriptSize = tapretReservedOps + 2 + TapretCommitmentSize
)

var (
	// ErrNotTapretScript is returned when a leaf script doesn't have the
	// shape of a tapret commitment.
	ErrNotTapretScript = errors.New("script is not a tapret commitment")
)

// TapretCommitment is the commitment that is placed into a tapscript leaf of
// a taproot output to close the seals it is spending.
type TapretCommitment struct {
	// Mpc is the multi-protocol commitment root.
	Mpc MpcCommitment

	// Nonce is used to place the leaf at the right-most position of an
	// existing script tree. It's zero for single-leaf trees.
	Nonce uint8
}

// NewTapretCommitment creates a tapret commitment for a single-leaf tree.
func NewTapretCommitment(mpc MpcCommitment) TapretCommitment {
	return TapretCommitment{
		Mpc: mpc,
	}
}

// Bytes returns the 33-byte serialization of the commitment.
func (c TapretCommitment) Bytes() []byte {
	b := make([]byte, 0, TapretCommitmentSize)
	b = append(b, c.Mpc[:]...)

	return append(b, c.Nonce)
}

// TapretCommitmentFromBytes parses a 33-byte serialized tapret commitment.
func TapretCommitmentFromBytes(b []byte) (TapretCommitment, error) {
	var c TapretCommitment
	if len(b) != TapretCommitmentSize {
		return c, fmt.Errorf("invalid tapret commitment length: %d",
			len(b))
	}

	copy(c.Mpc[:], b[:MpcCommitmentSize])
	c.Nonce = b[MpcCommitmentSize]

	return c, nil
}

// String returns the text form <mpc hex>:<nonce> of the commitment.
func (c TapretCommitment) String() string {
	return fmt.Sprintf("%s:%d", c.Mpc, c.Nonce)
}

// ParseTapretCommitment parses the text form of a tapret commitment.
func ParseTapretCommitment(s string) (TapretCommitment, error) {
	var c TapretCommitment

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return c, fmt.Errorf("invalid tapret commitment: %v", s)
	}

	mpc, err := ParseMpcCommitment(parts[0])
	if err != nil {
		return c, err
	}
	nonce, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return c, fmt.Errorf("invalid tapret nonce: %w", err)
	}

	return TapretCommitment{
		Mpc:   mpc,
		Nonce: uint8(nonce),
	}, nil
}

// LeafScript returns the tapscript leaf script carrying the commitment.
func (c TapretCommitment) LeafScript() []byte {
	script := make([]byte, 0, TapretLeafScriptSize)
	for i := 0; i < tapretReservedOps; i++ {
		script = append(script, txscript.OP_RESERVED)
	}
	script = append(script, txscript.OP_RETURN, txscript.OP_DATA_33)

	return append(script, c.Bytes()...)
}

// TapLeaf returns the tapscript leaf carrying the commitment.
func (c TapretCommitment) TapLeaf() txscript.TapLeaf {
	return txscript.NewBaseTapLeaf(c.LeafScript())
}

// TapscriptRoot returns the root of the single-leaf script tree that only
// contains the commitment leaf.
func (c TapretCommitment) TapscriptRoot() chainhash.Hash {
	tree := txscript.AssembleTaprootScriptTree(c.TapLeaf())

	return tree.RootNode.TapHash()
}

// OutputKey returns the taproot output key that commits to the tapret leaf
// under the given internal key.
func (c TapretCommitment) OutputKey(
	internalKey *btcec.PublicKey) *btcec.PublicKey {

	root := c.TapscriptRoot()

	return txscript.ComputeTaprootOutputKey(internalKey, root[:])
}

// PkScript returns the P2TR output script of the committed output.
func (c TapretCommitment) PkScript(internalKey *btcec.PublicKey) ([]byte,
	error) {

	return PayToTaprootScript(c.OutputKey(internalKey))
}

// IsTapretLeafScript returns true if the script has the shape of a tapret
// commitment leaf.
func IsTapretLeafScript(script []byte) bool {
	_, err := ParseTapretLeafScript(script)
	return err == nil
}

// ParseTapretLeafScript extracts the commitment from a tapret leaf script.
func ParseTapretLeafScript(script []byte) (TapretCommitment, error) {
	if len(script) != TapretLeafScriptSize {
		return TapretCommitment{}, ErrNotTapretScript
	}

	reserved := bytes.Repeat([]byte{txscript.OP_RESERVED}, tapretReservedOps)
	if !bytes.Equal(script[:tapretReservedOps], reserved) {
		return TapretCommitment{}, ErrNotTapretScript
	}
	if script[tapretReservedOps] != txscript.OP_RETURN ||
		script[tapretReservedOps+1] != txscript.OP_DATA_33 {

		return TapretCommitment{}, ErrNotTapretScript
	}

	return TapretCommitmentFromBytes(script[tapretReservedOps+2:])
}

// KeyOnlyPkScript returns the BIP-0086 key spend only P2TR output script for
// the given internal key.
func KeyOnlyPkScript(internalKey *btcec.PublicKey) ([]byte, error) {
	return PayToTaprootScript(
		txscript.ComputeTaprootKeyNoScript(internalKey),
	)
}

// PayToTaprootScript creates a pk script for a pay-to-taproot output key.
func PayToTaprootScript(taprootKey *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(schnorr.SerializePubKey(taprootKey)).
		Script()
}

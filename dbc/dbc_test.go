package dbc

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func randMpc(t *testing.T, fill byte) MpcCommitment {
	t.Helper()

	var c MpcCommitment
	for i := range c {
		c[i] = fill + byte(i)
	}

	return c
}

// TestTapretLeafScript makes sure the tapret leaf script has the expected
// layout and can be parsed back.
func TestTapretLeafScript(t *testing.T) {
	t.Parallel()

	c := TapretCommitment{
		Mpc:   randMpc(t, 7),
		Nonce: 3,
	}
	script := c.LeafScript()
	require.Len(t, script, TapretLeafScriptSize)
	require.Len(t, script, 64)

	for i := 0; i < tapretReservedOps; i++ {
		require.Equal(t, byte(txscript.OP_RESERVED), script[i])
	}
	require.Equal(t, byte(txscript.OP_RETURN), script[29])
	require.Equal(t, byte(txscript.OP_DATA_33), script[30])

	parsed, err := ParseTapretLeafScript(script)
	require.NoError(t, err)
	require.Equal(t, c, parsed)

	// Any change to the prefix makes the script unrecognizable.
	script[0] = txscript.OP_NOP
	require.False(t, IsTapretLeafScript(script))
	_, err = ParseTapretLeafScript(script[:40])
	require.ErrorIs(t, err, ErrNotTapretScript)
}

// TestTapretCommitmentText checks the text round trip of a commitment.
func TestTapretCommitmentText(t *testing.T) {
	t.Parallel()

	c := TapretCommitment{
		Mpc:   randMpc(t, 1),
		Nonce: 255,
	}
	parsed, err := ParseTapretCommitment(c.String())
	require.NoError(t, err)
	require.Equal(t, c, parsed)

	_, err = ParseTapretCommitment("abcd")
	require.Error(t, err)
	_, err = ParseTapretCommitment(c.Mpc.String() + ":256")
	require.Error(t, err)

	fromBytes, err := TapretCommitmentFromBytes(c.Bytes())
	require.NoError(t, err)
	require.Equal(t, c, fromBytes)
}

// TestTapretOutputKey makes sure the committed output key differs from the
// key-only output key and matches a manual taproot tweak.
func TestTapretOutputKey(t *testing.T) {
	t.Parallel()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	internalKey := privKey.PubKey()

	c := NewTapretCommitment(randMpc(t, 9))
	leaf := txscript.NewBaseTapLeaf(c.LeafScript())
	leafHash := leaf.TapHash()
	root := c.TapscriptRoot()
	require.Equal(t, leafHash, root)

	expectedKey := txscript.ComputeTaprootOutputKey(internalKey, root[:])
	require.Equal(
		t, schnorr.SerializePubKey(expectedKey),
		schnorr.SerializePubKey(c.OutputKey(internalKey)),
	)

	committed, err := c.PkScript(internalKey)
	require.NoError(t, err)
	keyOnly, err := KeyOnlyPkScript(internalKey)
	require.NoError(t, err)
	require.NotEqual(t, committed, keyOnly)
	require.Len(t, committed, 34)
	require.Equal(t, byte(txscript.OP_1), committed[0])
}

// TestOpretScript checks the opret script round trip.
func TestOpretScript(t *testing.T) {
	t.Parallel()

	c := randMpc(t, 42)
	script, err := OpretScript(c)
	require.NoError(t, err)
	require.True(t, IsOpretScript(script))
	require.True(t, IsOpretScript(OpretHostScript()))

	parsed, err := ParseOpretScript(script)
	require.NoError(t, err)
	require.Equal(t, c, parsed)

	_, err = ParseOpretScript(OpretHostScript())
	require.ErrorIs(t, err, ErrNotOpretScript)
}

// TestMerkleTreeDeterministic makes sure the multi-protocol commitment only
// depends on the set of messages and the entropy.
func TestMerkleTreeDeterministic(t *testing.T) {
	t.Parallel()

	_, err := NewMerkleTree(0, nil)
	require.ErrorIs(t, err, ErrEmptyMpcTree)

	messages := make(map[ProtocolID]Message)
	for i := byte(0); i < 5; i++ {
		messages[ProtocolID{i, 1}] = Message{i, 2}
	}

	tree1, err := NewMerkleTree(99, messages)
	require.NoError(t, err)
	tree2, err := NewMerkleTree(99, messages)
	require.NoError(t, err)
	require.Equal(t, tree1.Commit(), tree2.Commit())
	require.Equal(t, 5, tree1.Width())

	msg, err := tree1.Message(ProtocolID{3, 1})
	require.NoError(t, err)
	require.Equal(t, Message{3, 2}, msg)
	_, err = tree1.Message(ProtocolID{9})
	require.ErrorIs(t, err, ErrUnknownProtocol)

	// Entropy changes the commitment but not the root.
	tree3, err := NewMerkleTree(100, messages)
	require.NoError(t, err)
	require.Equal(t, tree1.Root(), tree3.Root())
	require.NotEqual(t, tree1.Commit(), tree3.Commit())

	// A different message changes the root.
	messages[ProtocolID{0, 1}] = Message{0xff}
	tree4, err := NewMerkleTree(99, messages)
	require.NoError(t, err)
	require.NotEqual(t, tree1.Root(), tree4.Root())
}

// TestMethodSet tests the method set helpers.
func TestMethodSet(t *testing.T) {
	t.Parallel()

	var s MethodSet
	require.True(t, s.IsEmpty())

	s = s.With(TapretFirst)
	require.True(t, s.HasTapretFirst())
	require.False(t, s.HasOpretFirst())

	s = NewMethodSet(OpretFirst, TapretFirst)
	require.True(t, s.HasTapretFirst())
	require.True(t, s.HasOpretFirst())
	require.Equal(t, "{opret1st, tapret1st}", s.String())

	m, err := ParseMethod("tapret1st")
	require.NoError(t, err)
	require.Equal(t, TapretFirst, m)
	_, err = ParseMethod("sigret")
	require.Error(t, err)
}

package test

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func RandPrivKey(t testing.TB) *btcec.PrivateKey {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return privKey
}

func SchnorrPubKey(t testing.TB, privKey *btcec.PrivateKey) *btcec.PublicKey {
	key, err := schnorr.ParsePubKey(schnorr.SerializePubKey(privKey.PubKey()))
	require.NoError(t, err)
	return key
}

func RandPubKey(t testing.TB) *btcec.PublicKey {
	return SchnorrPubKey(t, RandPrivKey(t))
}

func RandBytes(num int) []byte {
	randBytes := make([]byte, num)
	_, _ = rand.Read(randBytes)
	return randBytes
}

// RandHash returns a random 32-byte hash.
func RandHash() chainhash.Hash {
	var hash chainhash.Hash
	copy(hash[:], RandBytes(chainhash.HashSize))
	return hash
}

// RandOutPoint returns a random outpoint with a small output index.
func RandOutPoint(t testing.TB) wire.OutPoint {
	return wire.OutPoint{
		Hash:  RandHash(),
		Index: uint32(rand.Int31n(16)),
	}
}

// RandTaprootAddress returns a key spend only P2TR address of a random key.
func RandTaprootAddress(t testing.TB,
	params *chaincfg.Params) *btcutil.AddressTaproot {

	outputKey := RandPubKey(t)
	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(outputKey), params,
	)
	require.NoError(t, err)

	return addr
}

// RandMasterKey returns a random BIP-0032 master key for the given network.
func RandMasterKey(t testing.TB,
	params *chaincfg.Params) *hdkeychain.ExtendedKey {

	master, err := hdkeychain.NewMaster(
		RandBytes(hdkeychain.RecommendedSeedLen), params,
	)
	require.NoError(t, err)

	return master
}

package rgbpsbt

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// mpcTree builds the multi-protocol commitment tree over the bundle ids of
// the given bundles.
func mpcTree(bundles []*rgbstd.TransitionBundle,
	entropy uint64) (*dbc.MerkleTree, error) {

	messages := make(map[dbc.ProtocolID]dbc.Message, len(bundles))
	for _, bundle := range bundles {
		protocol := bundle.ContractID.ProtocolID()
		if _, ok := messages[protocol]; ok {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateContract,
				bundle.ContractID)
		}

		bundleID, err := bundle.BundleID()
		if err != nil {
			return nil, fmt.Errorf("unable to compute bundle id: %w",
				err)
		}
		messages[protocol] = bundleID
	}

	return dbc.NewMerkleTree(entropy, messages)
}

// hostInternalKey parses the taproot internal key of a tapret host output.
func hostInternalKey(pOut *psbt.POutput) (*btcec.PublicKey, error) {
	if len(pOut.TaprootInternalKey) == 0 {
		return nil, ErrNoInternalKey
	}

	internalKey, err := schnorr.ParsePubKey(pOut.TaprootInternalKey)
	if err != nil {
		return nil, fmt.Errorf("invalid tapret host internal key: %w",
			err)
	}

	return internalKey, nil
}

// encodeTapTree serializes a script tree consisting of a single leaf the way
// BIP-0371 defines the PSBT_OUT_TAP_TREE field: depth, leaf version and the
// length prefixed script.
func encodeTapTree(leaf txscript.TapLeaf) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(0)
	b.WriteByte(byte(leaf.LeafVersion))
	if err := wire.WriteVarBytes(&b, 0, leaf.Script); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// tapretEmbedding is the change a tapret commitment applies to its host.
type tapretEmbedding struct {
	idx        uint32
	commitment dbc.TapretCommitment
	pkScript   []byte
	tapTree    []byte
}

// prepareTapret computes the committed script of the tapret host without
// modifying the PSBT.
func prepareTapret(pkt *psbt.Packet,
	mpc dbc.MpcCommitment) (*tapretEmbedding, error) {

	idx, err := TapretHost(pkt).UnwrapOrErr(ErrNoTapretHost)
	if err != nil {
		return nil, err
	}
	pOut, txOut, err := output(pkt, idx)
	if err != nil {
		return nil, err
	}

	internalKey, err := hostInternalKey(pOut)
	if err != nil {
		return nil, err
	}

	// The host must still be a plain key spend output of its internal
	// key, otherwise the commitment would replace whatever the output
	// committed to before.
	keyOnly, err := dbc.KeyOnlyPkScript(internalKey)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(keyOnly, txOut.PkScript) {
		return nil, fmt.Errorf("%w: tapret host %d isn't a key spend "+
			"output of its internal key", ErrCommitmentMismatch,
			idx)
	}

	commitment := dbc.NewTapretCommitment(mpc)
	pkScript, err := commitment.PkScript(internalKey)
	if err != nil {
		return nil, err
	}
	tapTree, err := encodeTapTree(commitment.TapLeaf())
	if err != nil {
		return nil, err
	}

	return &tapretEmbedding{
		idx:        idx,
		commitment: commitment,
		pkScript:   pkScript,
		tapTree:    tapTree,
	}, nil
}

// Embed commits to the batch in the host outputs of the PSBT. The bundles and
// the entropy are stored in the PSBT so the commitment can be extracted again
// after the transaction was signed. Either all changes are applied or, if any
// check fails, the PSBT is left untouched.
func Embed(pkt *psbt.Packet, batch *rgbstd.Batch, entropy uint64) error {
	if !IsConstructionComplete(pkt) {
		return ErrConstructionIncomplete
	}
	if hasCustomField(pkt.Unknowns, PsbtKeyTypeGlobalRgbBundles) {
		return ErrAlreadyEmbedded
	}
	if len(batch.Bundles) == 0 {
		return ErrEmptyBatch
	}

	spent := fn.NewSet[wire.OutPoint]()
	for _, txIn := range pkt.UnsignedTx.TxIn {
		spent.Add(txIn.PreviousOutPoint)
	}
	for _, bundle := range batch.Bundles {
		for _, input := range bundle.Inputs() {
			if !spent.Contains(input) {
				return fmt.Errorf("%w: %v closes %v",
					ErrInputNotSpent, bundle.ContractID,
					input)
			}
		}
	}

	tree, err := mpcTree(batch.Bundles, entropy)
	if err != nil {
		return err
	}
	mpc := tree.Commit()
	methods := batch.CloseMethods()

	var tapret *tapretEmbedding
	if methods.HasTapretFirst() {
		tapret, err = prepareTapret(pkt, mpc)
		if err != nil {
			return err
		}
	}

	var (
		opretIdx    uint32
		opretScript []byte
	)
	if methods.HasOpretFirst() {
		opretIdx, err = OpretHost(pkt).UnwrapOrErr(ErrNoOpretHost)
		if err != nil {
			return err
		}
		opretScript, err = dbc.OpretScript(mpc)
		if err != nil {
			return err
		}
	}

	bundleBytes, err := rgbstd.EncodeBundles(batch.Bundles)
	if err != nil {
		return fmt.Errorf("unable to encode bundles: %w", err)
	}

	// Every check passed, we can now modify the PSBT.
	pkt.Unknowns = setCustomField(
		pkt.Unknowns, PsbtKeyTypeGlobalRgbBundles, bundleBytes,
	)
	pkt.Unknowns = setCustomField(
		pkt.Unknowns, PsbtKeyTypeGlobalRgbMpcEntropy,
		uint64Value(entropy),
	)

	if tapret != nil {
		pOut := &pkt.Outputs[tapret.idx]
		pOut.TaprootTapTree = tapret.tapTree
		pOut.Unknowns = setCustomField(
			pOut.Unknowns, PsbtKeyTypeOutputRgbTapretCommitment,
			tapret.commitment.Bytes(),
		)
		pkt.UnsignedTx.TxOut[tapret.idx].PkScript = tapret.pkScript

		log.Debugf("Embedded tapret commitment %v into output %d",
			tapret.commitment, tapret.idx)
	}

	if opretScript != nil {
		pOut := &pkt.Outputs[opretIdx]
		pOut.Unknowns = setCustomField(
			pOut.Unknowns, PsbtKeyTypeOutputRgbOpretCommitment,
			mpc[:],
		)
		pkt.UnsignedTx.TxOut[opretIdx].PkScript = opretScript

		log.Debugf("Embedded opret commitment %v into output %d", mpc,
			opretIdx)
	}

	log.Infof("Committed to %d bundles with methods %v", len(batch.Bundles),
		methods)
	log.Tracef("Embedded batch: %v", limitSpewer.Sdump(batch))

	return nil
}

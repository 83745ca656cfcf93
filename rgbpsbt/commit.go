package rgbpsbt

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Bundles returns the bundles embedded into the PSBT.
func Bundles(pkt *psbt.Packet) ([]*rgbstd.TransitionBundle, error) {
	field, err := findCustomField(
		pkt.Unknowns, PsbtKeyTypeGlobalRgbBundles,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEmbedded, err)
	}

	return rgbstd.DecodeBundles(field.Value)
}

// TapretCommitment returns the tapret commitment recorded for the output.
func TapretCommitment(pOut *psbt.POutput) (dbc.TapretCommitment, error) {
	field, err := findCustomField(
		pOut.Unknowns, PsbtKeyTypeOutputRgbTapretCommitment,
	)
	if err != nil {
		return dbc.TapretCommitment{}, err
	}

	return dbc.TapretCommitmentFromBytes(field.Value)
}

// TerminalDerivation recovers the terminal an output was derived at from its
// taproot BIP-0032 derivation info. Exactly one terminal on an RGB keychain
// must be present.
func TerminalDerivation(pOut *psbt.POutput) (rgbdescr.Terminal, error) {
	terminals := fn.NewSet[rgbdescr.Terminal]()
	for _, derivation := range pOut.TaprootBip32Derivation {
		terminal, err := rgbdescr.TerminalFromPath(derivation.Bip32Path)
		if err != nil {
			continue
		}
		if !terminal.Keychain.IsSeal() {
			continue
		}
		terminals.Add(terminal)
	}

	if terminals.Size() != 1 {
		return rgbdescr.Terminal{}, fmt.Errorf("%w: found %d RGB "+
			"terminals", ErrInconclusiveDerivation, terminals.Size())
	}

	return terminals.ToSlice()[0], nil
}

// Commit extracts the fascia from a PSBT a batch was embedded into. The
// commitment is recomputed from the stored bundles and checked against the
// scripts of the host outputs, so any modification of the hosts after the
// embedding is detected. The witness transaction id is the id of the unsigned
// transaction, which signing doesn't change.
func Commit(pkt *psbt.Packet) (*rgbstd.Fascia, error) {
	bundles, err := Bundles(pkt)
	if err != nil {
		return nil, err
	}

	entropyField, err := findCustomField(
		pkt.Unknowns, PsbtKeyTypeGlobalRgbMpcEntropy,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEmbedded, err)
	}
	entropy, err := parseUint64Value(entropyField.Value)
	if err != nil {
		return nil, err
	}

	tree, err := mpcTree(bundles, entropy)
	if err != nil {
		return nil, err
	}
	mpc := tree.Commit()

	methods := (&rgbstd.Batch{Bundles: bundles}).CloseMethods()
	anchor := rgbstd.Anchor{
		Txid:    pkt.UnsignedTx.TxHash(),
		Mpc:     mpc,
		Entropy: entropy,
		Methods: methods,
		Tapret:  fn.None[dbc.TapretCommitment](),
	}

	if methods.HasTapretFirst() {
		commitment, err := verifyTapret(pkt, mpc)
		if err != nil {
			return nil, err
		}
		anchor.Tapret = fn.Some(commitment)
	}

	if methods.HasOpretFirst() {
		if err := verifyOpret(pkt, mpc); err != nil {
			return nil, err
		}
	}

	log.Debugf("Extracted fascia of witness tx %v with %d bundles",
		anchor.Txid, len(bundles))

	return &rgbstd.Fascia{
		Anchor:  anchor,
		Bundles: bundles,
	}, nil
}

// verifyTapret checks the tapret host commits to the given mpc commitment
// and returns the tapret commitment.
func verifyTapret(pkt *psbt.Packet,
	mpc dbc.MpcCommitment) (dbc.TapretCommitment, error) {

	var empty dbc.TapretCommitment

	idx, err := TapretHost(pkt).UnwrapOrErr(ErrNoTapretHost)
	if err != nil {
		return empty, err
	}
	pOut, txOut, err := output(pkt, idx)
	if err != nil {
		return empty, err
	}

	commitment, err := TapretCommitment(pOut)
	if err != nil {
		return empty, err
	}
	if commitment.Mpc != mpc {
		return empty, fmt.Errorf("%w: tapret commitment of output %d "+
			"doesn't commit to bundles", ErrCommitmentMismatch, idx)
	}

	internalKey, err := hostInternalKey(pOut)
	if err != nil {
		return empty, err
	}
	pkScript, err := commitment.PkScript(internalKey)
	if err != nil {
		return empty, err
	}
	if !bytes.Equal(pkScript, txOut.PkScript) {
		return empty, fmt.Errorf("%w: tapret host %d",
			ErrCommitmentMismatch, idx)
	}

	return commitment, nil
}

// verifyOpret checks the opret host commits to the given mpc commitment.
func verifyOpret(pkt *psbt.Packet, mpc dbc.MpcCommitment) error {
	idx, err := OpretHost(pkt).UnwrapOrErr(ErrNoOpretHost)
	if err != nil {
		return err
	}
	_, txOut, err := output(pkt, idx)
	if err != nil {
		return err
	}

	committed, err := dbc.ParseOpretScript(txOut.PkScript)
	if err != nil {
		return fmt.Errorf("opret host %d: %w", idx, err)
	}
	if committed != mpc {
		return fmt.Errorf("%w: opret host %d", ErrCommitmentMismatch,
			idx)
	}

	return nil
}

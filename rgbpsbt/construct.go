package rgbpsbt

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// IsConstructionComplete returns true if the inputs and outputs of the PSBT
// are final.
func IsConstructionComplete(pkt *psbt.Packet) bool {
	return hasCustomField(pkt.Unknowns, PsbtKeyTypeGlobalRgbComplete)
}

// CompleteConstruction locks the structure of the PSBT. Commitments can only
// be embedded after this, since moving outputs around afterwards would
// invalidate the seals the commitment assigns state to.
func CompleteConstruction(pkt *psbt.Packet) {
	pkt.Unknowns = setCustomField(
		pkt.Unknowns, PsbtKeyTypeGlobalRgbComplete, trueAsBytes,
	)
}

// checkModifiable returns an error if the construction of the PSBT was
// already completed.
func checkModifiable(pkt *psbt.Packet) error {
	if IsConstructionComplete(pkt) {
		return ErrConstructionComplete
	}

	return nil
}

// output returns the PSBT and wire output at the given index.
func output(pkt *psbt.Packet, idx uint32) (*psbt.POutput, *wire.TxOut,
	error) {

	if int(idx) >= len(pkt.Outputs) ||
		int(idx) >= len(pkt.UnsignedTx.TxOut) {

		return nil, nil, fmt.Errorf("%w: %d of %d", ErrInvalidOutputIndex,
			idx, len(pkt.UnsignedTx.TxOut))
	}

	return &pkt.Outputs[idx], pkt.UnsignedTx.TxOut[idx], nil
}

// ConstructOutput appends a new output to the PSBT and returns its index.
func ConstructOutput(pkt *psbt.Packet, pkScript []byte,
	value int64) (uint32, error) {

	if err := checkModifiable(pkt); err != nil {
		return 0, err
	}

	pkt.UnsignedTx.AddTxOut(wire.NewTxOut(value, pkScript))
	pkt.Outputs = append(pkt.Outputs, psbt.POutput{})

	return uint32(len(pkt.Outputs) - 1), nil
}

// IsTapretHost returns true if the output is flagged as tapret host.
func IsTapretHost(pOut *psbt.POutput) bool {
	return hasCustomField(pOut.Unknowns, PsbtKeyTypeOutputRgbTapretHost)
}

// IsOpretHost returns true if the output is flagged as opret host.
func IsOpretHost(pOut *psbt.POutput) bool {
	return hasCustomField(pOut.Unknowns, PsbtKeyTypeOutputRgbOpretHost)
}

// findHost returns the index of the first output matching the predicate.
func findHost(pkt *psbt.Packet,
	isHost func(*psbt.POutput) bool) fn.Option[uint32] {

	for idx := range pkt.Outputs {
		if isHost(&pkt.Outputs[idx]) {
			return fn.Some(uint32(idx))
		}
	}

	return fn.None[uint32]()
}

// TapretHost returns the index of the tapret host output, if any.
func TapretHost(pkt *psbt.Packet) fn.Option[uint32] {
	return findHost(pkt, IsTapretHost)
}

// OpretHost returns the index of the opret host output, if any.
func OpretHost(pkt *psbt.Packet) fn.Option[uint32] {
	return findHost(pkt, IsOpretHost)
}

// SetTapretHost flags the taproot output at the given index as the host of
// the tapret commitment. Only one output can be the tapret host.
func SetTapretHost(pkt *psbt.Packet, idx uint32) error {
	if err := checkModifiable(pkt); err != nil {
		return err
	}

	pOut, txOut, err := output(pkt, idx)
	if err != nil {
		return err
	}
	if !txscript.IsPayToTaproot(txOut.PkScript) {
		return fmt.Errorf("%w: output %d", ErrNotTaprootOutput, idx)
	}

	host := TapretHost(pkt)
	if host.IsSome() && host.UnwrapOr(idx) != idx {
		return fmt.Errorf("%w: tapret host is output %d",
			ErrHostAlreadySet, host.UnwrapOr(idx))
	}

	pOut.Unknowns = setCustomField(
		pOut.Unknowns, PsbtKeyTypeOutputRgbTapretHost, trueAsBytes,
	)

	return nil
}

// SetOpretHost flags the OP_RETURN output at the given index as the host of
// the opret commitment. Only one output can be the opret host.
func SetOpretHost(pkt *psbt.Packet, idx uint32) error {
	if err := checkModifiable(pkt); err != nil {
		return err
	}

	pOut, txOut, err := output(pkt, idx)
	if err != nil {
		return err
	}
	if !dbc.IsOpretScript(txOut.PkScript) {
		return fmt.Errorf("%w: output %d", ErrNotOpretOutput, idx)
	}

	host := OpretHost(pkt)
	if host.IsSome() && host.UnwrapOr(idx) != idx {
		return fmt.Errorf("%w: opret host is output %d",
			ErrHostAlreadySet, host.UnwrapOr(idx))
	}

	pOut.Unknowns = setCustomField(
		pOut.Unknowns, PsbtKeyTypeOutputRgbOpretHost, trueAsBytes,
	)

	return nil
}

// SortOutputsBy reorders the outputs of the PSBT so that all outputs for
// which last returns false come before the ones for which it returns true.
// The relative order within both groups is preserved. The wire outputs and
// the PSBT outputs are moved together.
func SortOutputsBy(pkt *psbt.Packet, last func(*psbt.POutput) bool) error {
	if err := checkModifiable(pkt); err != nil {
		return err
	}

	numOutputs := len(pkt.Outputs)
	if numOutputs != len(pkt.UnsignedTx.TxOut) {
		return fmt.Errorf("PSBT has %d outputs but transaction has %d",
			numOutputs, len(pkt.UnsignedTx.TxOut))
	}

	isLast := make([]bool, numOutputs)
	order := make([]int, numOutputs)
	for idx := range order {
		order[idx] = idx
		isLast[idx] = last(&pkt.Outputs[idx])
	}
	sort.SliceStable(order, func(i, j int) bool {
		return !isLast[order[i]] && isLast[order[j]]
	})

	pOuts := make([]psbt.POutput, numOutputs)
	txOuts := make([]*wire.TxOut, numOutputs)
	for newIdx, oldIdx := range order {
		pOuts[newIdx] = pkt.Outputs[oldIdx]
		txOuts[newIdx] = pkt.UnsignedTx.TxOut[oldIdx]
	}
	pkt.Outputs = pOuts
	pkt.UnsignedTx.TxOut = txOuts

	return nil
}

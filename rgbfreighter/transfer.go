package rgbfreighter

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
	"github.com/lightninglabs/rgbwallet/rgbpsbt"
	"github.com/lightninglabs/rgbwallet/rgbstd"
)

// contractInvoices are the invoices paying a single contract.
type contractInvoices struct {
	id       rgbstd.ContractID
	invoices []int
}

// groupByContract groups the invoice indexes by contract, keeping the order
// in which the contracts first appear.
func groupByContract(invoices []*invoice.Invoice) ([]*contractInvoices,
	error) {

	var groups []*contractInvoices
	byID := make(map[rgbstd.ContractID]*contractInvoices)
	for i, inv := range invoices {
		id, err := inv.Contract.UnwrapOrErr(ErrNoContract)
		if err != nil {
			return nil, err
		}

		group, ok := byID[id]
		if !ok {
			group = &contractInvoices{id: id}
			byID[id] = group
			groups = append(groups, group)
		}
		group.invoices = append(group.invoices, i)
	}

	return groups, nil
}

// recordTapretTweak recovers the terminal and the commitment of the tapret
// host and records the commitment in the wallet descriptor.
func recordTapretTweak(wallet WalletAnchor, pkt *psbt.Packet) error {
	idx, err := rgbpsbt.TapretHost(pkt).UnwrapOrErr(
		rgbpsbt.ErrNoTapretHost,
	)
	if err != nil {
		return completionErr(ErrInconclusiveDerivation, err)
	}
	pOut := &pkt.Outputs[idx]

	terminal, err := rgbpsbt.TerminalDerivation(pOut)
	if err != nil {
		return completionErr(ErrInconclusiveDerivation, err)
	}
	commitment, err := rgbpsbt.TapretCommitment(pOut)
	if err != nil {
		return completionErr(nil, err)
	}

	err = wallet.AddTapretTweak(terminal, commitment)
	switch {
	case errors.Is(err, rgbdescr.ErrTweakAlreadyAssigned):
		return completionErr(ErrMultipleTweaks, err)

	case err != nil:
		return completionErr(nil, err)
	}

	log.Infof("Recorded tapret tweak %v at terminal %v", commitment,
		terminal)

	return nil
}

// Transfer finalizes a transfer composed by ConstructPsbt. The PSBT may
// already be signed. The realized tapret commitment is recorded in the
// wallet descriptor, the fascia is consumed by the inventory and one
// transfer is returned for every contract paid by the invoices, in the
// order in which the contracts first appear. Any error is returned as a
// *CompletionError.
//
// The tweak is recorded before the fascia is consumed and is not rolled back
// if consuming fails. Calling Transfer again with the same PSBT then fails
// with ErrMultipleTweaks, the PSBT must be composed anew.
func (p *Porter) Transfer(ctx context.Context, wallet WalletAnchor,
	stock inventory.Inventory, invoices []*invoice.Invoice,
	pkt *psbt.Packet) ([]*rgbstd.Transfer, error) {

	groups, err := groupByContract(invoices)
	if err != nil {
		return nil, completionErr(err, nil)
	}

	fascia, err := rgbpsbt.Commit(pkt)
	if err != nil {
		return nil, completionErr(nil, fmt.Errorf("unable to extract "+
			"commitment: %w", err))
	}

	// Every paid contract must have a bundle in the fascia, otherwise the
	// PSBT wasn't composed for these invoices.
	for _, group := range groups {
		if _, ok := fascia.Bundle(group.id); !ok {
			return nil, completionErr(ErrNoContract, fmt.Errorf(
				"no bundle for contract %v", group.id,
			))
		}
	}

	// The beneficiary outputs are resolved before anything is recorded,
	// so a PSBT that doesn't pay the invoices leaves no trace.
	vouts, err := beneficiaryVouts(pkt.UnsignedTx, invoices)
	if err != nil {
		return nil, completionErr(nil, err)
	}

	if fascia.Anchor.Methods.HasTapretFirst() {
		if err := recordTapretTweak(wallet, pkt); err != nil {
			return nil, err
		}
	}

	if err := stock.ConsumeFascia(ctx, fascia); err != nil {
		return nil, completionErr(nil, fmt.Errorf("unable to consume "+
			"fascia: %w", err))
	}

	witnessTxid := fascia.Anchor.Txid
	transfers := make([]*rgbstd.Transfer, 0, len(groups))
	for _, group := range groups {
		bundle, _ := fascia.Bundle(group.id)

		var (
			witnessSeals []rgbstd.OutputSeal
			blindedSeals []rgbstd.SecretSeal
		)
		for _, i := range group.invoices {
			beneficiary := invoices[i].Beneficiary
			switch beneficiary.Kind {
			case invoice.WitnessVout:
				vout, err := vouts[i].UnwrapOrErr(
					ErrNoBeneficiaryOutput,
				)
				if err != nil {
					return nil, completionErr(err, nil)
				}

				witnessSeals = append(
					witnessSeals, rgbstd.NewOutputSeal(
						bundle.Method, wire.OutPoint{
							Hash:  witnessTxid,
							Index: vout,
						},
					),
				)

			default:
				blindedSeals = append(
					blindedSeals, beneficiary.Seal,
				)
			}
		}

		transfer, err := stock.Transfer(
			ctx, group.id, witnessSeals, blindedSeals,
		)
		if err != nil {
			return nil, completionErr(nil, fmt.Errorf("unable to "+
				"create transfer of %v: %w", group.id, err))
		}
		transfers = append(transfers, transfer)
	}

	log.Infof("Completed transfer %v for %d contracts", witnessTxid,
		len(transfers))

	return transfers, nil
}

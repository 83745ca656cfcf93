package rgbfreighter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/bpwallet"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
	"github.com/lightninglabs/rgbwallet/rgbpsbt"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrNoInvoices is returned when a transfer without any invoice is requested.
var ErrNoInvoices = errors.New("no invoices to pay")

// beneficiaryScripts returns the output scripts of all witness beneficiaries.
func beneficiaryScripts(invoices []*invoice.Invoice) (fn.Set[string],
	error) {

	scripts := fn.NewSet[string]()
	for _, inv := range invoices {
		if inv.Beneficiary.Kind != invoice.WitnessVout {
			continue
		}

		pkScript, err := inv.Beneficiary.PkScript()
		if err != nil {
			return nil, err
		}
		scripts.Add(string(pkScript))
	}

	return scripts, nil
}

// beneficiaryVouts finds the output paying each witness beneficiary. The
// result is aligned with the invoices and empty for blinded beneficiaries.
// Every output is assigned to at most one beneficiary, so invoices paying
// the same address get one output each.
func beneficiaryVouts(tx *wire.MsgTx,
	invoices []*invoice.Invoice) ([]fn.Option[uint32], error) {

	claimed := fn.NewSet[uint32]()
	vouts := make([]fn.Option[uint32], len(invoices))
	for i, inv := range invoices {
		vouts[i] = fn.None[uint32]()
		if inv.Beneficiary.Kind != invoice.WitnessVout {
			continue
		}

		pkScript, err := inv.Beneficiary.PkScript()
		if err != nil {
			return nil, err
		}

		found := false
		for idx, txOut := range tx.TxOut {
			vout := uint32(idx)
			if claimed.Contains(vout) ||
				!bytes.Equal(txOut.PkScript, pkScript) {

				continue
			}

			claimed.Add(vout)
			vouts[i] = fn.Some(vout)
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("%w: %v", ErrNoBeneficiaryOutput,
				inv.Beneficiary)
		}
	}

	return vouts, nil
}

// tagTapretHost marks the first taproot output that doesn't pay a
// beneficiary as the tapret host. Nothing is tagged if there is no such
// output.
func tagTapretHost(pkt *psbt.Packet, beneficiaries fn.Set[string]) error {
	for idx, txOut := range pkt.UnsignedTx.TxOut {
		if !txscript.IsPayToTaproot(txOut.PkScript) ||
			beneficiaries.Contains(string(txOut.PkScript)) {

			continue
		}

		return rgbpsbt.SetTapretHost(pkt, uint32(idx))
	}

	return nil
}

// findOutput returns the index of the first output with the given script.
func findOutput(tx *wire.MsgTx, pkScript []byte) fn.Option[uint32] {
	for idx, txOut := range tx.TxOut {
		if bytes.Equal(txOut.PkScript, pkScript) {
			return fn.Some(uint32(idx))
		}
	}

	return fn.None[uint32]()
}

// ConstructPsbt selects the seals paying the invoices, constructs the
// witness transaction and embeds the batch of state transitions into it.
// The tapret host, if any, is moved behind all other outputs and the change
// index of the returned meta data points to the change output after the
// move. The PSBT is locked, so only signatures may be added to it. Any error
// is returned as a *CompositionError.
func (p *Porter) ConstructPsbt(ctx context.Context, wallet WalletAnchor,
	stock inventory.Inventory, invoices []*invoice.Invoice,
	method dbc.Method, params TransferParams) (*psbt.Packet,
	*bpwallet.PsbtMeta, error) {

	if len(invoices) == 0 {
		return nil, nil, compositionErr(ErrNoInvoices, nil)
	}

	now := p.cfg.Clock.Now()

	var (
		beneficiaries []bpwallet.Beneficiary
		sealSet       = fn.NewSet[rgbstd.OutputSeal]()
		selected      = make(selectionSet)
	)
	for _, inv := range invoices {
		selection, err := selectForInvoice(
			ctx, wallet, stock, inv, now, selected,
		)
		if err != nil {
			return nil, nil, err
		}
		for _, seal := range selection.seals {
			sealSet.Add(seal)
		}

		if inv.Beneficiary.Kind == invoice.WitnessVout {
			beneficiaries = append(
				beneficiaries, bpwallet.Beneficiary{
					Address: inv.Beneficiary.Address,
					Amount:  params.MinAmount,
				},
			)
		}
	}

	prevSeals := sealSet.ToSlice()
	sort.Slice(prevSeals, func(i, j int) bool {
		return prevSeals[i].Less(prevSeals[j])
	})

	// A seal is spent by spending its outpoint, no matter the close
	// method.
	spent := fn.NewSet[wire.OutPoint]()
	prevOutpoints := make([]wire.OutPoint, 0, len(prevSeals))
	for _, seal := range prevSeals {
		if spent.Contains(seal.Outpoint) {
			continue
		}
		spent.Add(seal.Outpoint)
		prevOutpoints = append(prevOutpoints, seal.Outpoint)
	}

	txParams := params.Tx
	txParams.ChangeKeychain = rgbdescr.ForMethod(method)
	pkt, meta, err := wallet.ConstructPsbt(
		ctx, prevOutpoints, beneficiaries, txParams,
	)
	if err != nil {
		return nil, nil, compositionErr(nil, fmt.Errorf("unable to "+
			"construct witness tx: %w", err))
	}

	scripts, err := beneficiaryScripts(invoices)
	if err != nil {
		return nil, nil, compositionErr(nil, err)
	}
	if err := tagTapretHost(pkt, scripts); err != nil {
		return nil, nil, compositionErr(nil, err)
	}

	// The outputs are reordered first and the change output is then
	// looked up again by its script. Its value can't be used, a host
	// output may hold the same value.
	var changeScript []byte
	meta.ChangeVout.WhenSome(func(vout uint32) {
		changeScript = bytes.Clone(pkt.UnsignedTx.TxOut[vout].PkScript)
	})
	err = rgbpsbt.SortOutputsBy(pkt, rgbpsbt.IsTapretHost)
	if err != nil {
		return nil, nil, compositionErr(nil, err)
	}
	if changeScript != nil {
		meta.ChangeVout = findOutput(pkt.UnsignedTx, changeScript)
	}

	vouts, err := beneficiaryVouts(pkt.UnsignedTx, invoices)
	if err != nil {
		return nil, nil, compositionErr(nil, err)
	}
	for _, vout := range vouts {
		if vout.IsSome() && vout == meta.ChangeVout {
			return nil, nil, compositionErr(nil, fmt.Errorf("change "+
				"output %d pays a beneficiary",
				vout.UnwrapOr(0)))
		}
	}

	changeResolver := func(rgbstd.ContractID, string) fn.Option[uint32] {
		return meta.ChangeVout
	}
	batch, err := stock.Compose(
		ctx, invoices, prevSeals, method, vouts, changeResolver,
	)
	if err != nil {
		return nil, nil, compositionErr(nil, fmt.Errorf("unable to "+
			"compose batch: %w", err))
	}

	if batch.CloseMethods().HasOpretFirst() {
		idx, err := rgbpsbt.ConstructOutput(
			pkt, dbc.OpretHostScript(), 0,
		)
		if err != nil {
			return nil, nil, compositionErr(nil, err)
		}
		if err := rgbpsbt.SetOpretHost(pkt, idx); err != nil {
			return nil, nil, compositionErr(nil, err)
		}
	}

	rgbpsbt.CompleteConstruction(pkt)

	entropy, err := p.cfg.Entropy()
	if err != nil {
		return nil, nil, compositionErr(nil, fmt.Errorf("unable to "+
			"generate entropy: %w", err))
	}

	err = rgbpsbt.Embed(pkt, batch, entropy)
	switch {
	case errors.Is(err, rgbpsbt.ErrNoTapretHost):
		return nil, nil, compositionErr(ErrTapretRequired, err)

	case err != nil:
		return nil, nil, compositionErr(nil, fmt.Errorf("unable to "+
			"embed batch: %w", err))
	}

	log.Infof("Composed transfer paying %d invoices with %d bundles, "+
		"spending %d seals in tx %v", len(invoices), len(batch.Bundles),
		len(prevSeals), pkt.UnsignedTx.TxHash())
	log.Tracef("Composed transfer PSBT: %v", limitSpewer.Sdump(pkt))

	return pkt, meta, nil
}

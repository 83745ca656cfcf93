package bpwallet

import (
	"context"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Beneficiary is an output the constructed transaction must pay to.
type Beneficiary struct {
	// Address is the address to pay to.
	Address btcutil.Address

	// Amount is the value of the output.
	Amount btcutil.Amount
}

// TxParams are the parameters of a constructed transaction.
type TxParams struct {
	// FeeRate is the fee rate in satoshis per 1000 virtual bytes.
	FeeRate btcutil.Amount

	// ChangeKeychain is the keychain the change output is derived on.
	ChangeKeychain rgbdescr.Keychain
}

// PsbtMeta describes a PSBT constructed by the wallet.
type PsbtMeta struct {
	// ChangeVout is the index of the change output, if one was created.
	ChangeVout fn.Option[uint32]

	// ChangeTerminal is the terminal the change output was derived at.
	ChangeTerminal fn.Option[rgbdescr.Terminal]

	// Fee is the absolute fee paid by the transaction.
	Fee btcutil.Amount
}

// scriptAddress returns the address of a derived script.
func scriptAddress(derived *rgbdescr.DerivedScript,
	params *chaincfg.Params) (btcutil.Address, error) {

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		derived.PkScript, params,
	)
	if err != nil {
		return nil, err
	}
	if len(addrs) != 1 {
		return nil, fmt.Errorf("script at %v has %d addresses",
			derived.Terminal, len(addrs))
	}

	return addrs[0], nil
}

// changeScriptSize returns the size of change scripts of the descriptor.
func changeScriptSize(class rgbdescr.SpkClass) int {
	if class == rgbdescr.P2tr {
		return txsizes.P2TRPkScriptSize
	}

	return txsizes.P2WPKHPkScriptSize
}

// makeInputSource creates an input source that always spends all required
// coins and then adds the eligible coins in order until the target is
// reached.
func makeInputSource(required, eligible []*Coin) txauthor.InputSource {
	var (
		currentTotal       btcutil.Amount
		currentInputs      []*wire.TxIn
		currentScripts     [][]byte
		currentInputValues []btcutil.Amount
	)

	add := func(coin *Coin) {
		outpoint := coin.OutPoint
		currentTotal += btcutil.Amount(coin.Value)
		currentInputs = append(
			currentInputs, wire.NewTxIn(&outpoint, nil, nil),
		)
		currentScripts = append(currentScripts, coin.PkScript)
		currentInputValues = append(
			currentInputValues, btcutil.Amount(coin.Value),
		)
	}
	for _, coin := range required {
		add(coin)
	}

	return func(target btcutil.Amount) (btcutil.Amount, []*wire.TxIn,
		[]btcutil.Amount, [][]byte, error) {

		for currentTotal < target && len(eligible) != 0 {
			add(eligible[0])
			eligible = eligible[1:]
		}

		return currentTotal, currentInputs, currentInputValues,
			currentScripts, nil
	}
}

// ConstructPsbt constructs an unsigned transaction spending all the given
// outpoints and paying the beneficiaries. More coins are added, largest
// first, if the given outpoints don't cover the beneficiaries and the fee.
// Any change goes to a fresh output on the change keychain. The change output
// carries its taproot internal key and derivation so its terminal can be
// recovered from the PSBT.
func (w *Wallet) ConstructPsbt(ctx context.Context,
	prevOutpoints []wire.OutPoint, beneficiaries []Beneficiary,
	params TxParams) (*psbt.Packet, *PsbtMeta, error) {

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if params.FeeRate == 0 {
		return nil, nil, ErrMissingFeeRate
	}
	if len(prevOutpoints) == 0 && len(beneficiaries) == 0 {
		return nil, nil, ErrNoBeneficiaries
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// All outpoints given by the caller must be spent, so they are added
	// to the transaction no matter the amount needed.
	requiredSet := make(map[wire.OutPoint]struct{}, len(prevOutpoints))
	required := make([]*Coin, 0, len(prevOutpoints))
	for _, op := range prevOutpoints {
		if _, ok := requiredSet[op]; ok {
			continue
		}
		coin, ok := w.coins[op]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnknownCoin, op)
		}
		requiredSet[op] = struct{}{}
		required = append(required, coin)
	}

	eligible := make([]*Coin, 0, len(w.coins))
	for op, coin := range w.coins {
		if _, ok := requiredSet[op]; !ok {
			eligible = append(eligible, coin)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Value != eligible[j].Value {
			return eligible[i].Value > eligible[j].Value
		}

		return outpointLess(eligible[i].OutPoint, eligible[j].OutPoint)
	})

	outputs := make([]*wire.TxOut, 0, len(beneficiaries))
	for _, b := range beneficiaries {
		pkScript, err := txscript.PayToAddrScript(b.Address)
		if err != nil {
			return nil, nil, err
		}

		output := wire.NewTxOut(int64(b.Amount), pkScript)
		err = txrules.CheckOutput(output, txrules.DefaultRelayFeePerKb)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid beneficiary "+
				"output to %v: %w", b.Address, err)
		}
		outputs = append(outputs, output)
	}

	// The change script is only marked as used once the transaction was
	// created with a change output.
	change, err := w.peekNext(params.ChangeKeychain)
	if err != nil {
		return nil, nil, err
	}
	changeSource := &txauthor.ChangeSource{
		ScriptSize: changeScriptSize(w.descr.Class()),
		NewScript: func() ([]byte, error) {
			return change.PkScript, nil
		},
	}

	tx, err := txauthor.NewUnsignedTransaction(
		outputs, params.FeeRate, makeInputSource(required, eligible),
		changeSource,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create transaction: %w",
			err)
	}

	pkt, err := psbt.NewFromUnsignedTx(tx.Tx)
	if err != nil {
		return nil, nil, err
	}
	for idx, txIn := range tx.Tx.TxIn {
		coin := w.coins[txIn.PreviousOutPoint]
		if err := w.decorateInput(&pkt.Inputs[idx], coin); err != nil {
			return nil, nil, err
		}
	}

	meta := &PsbtMeta{
		ChangeVout:     fn.None[uint32](),
		ChangeTerminal: fn.None[rgbdescr.Terminal](),
	}

	var totalOutput btcutil.Amount
	for _, txOut := range tx.Tx.TxOut {
		totalOutput += btcutil.Amount(txOut.Value)
	}
	meta.Fee = tx.TotalInput - totalOutput

	if tx.ChangeIndex >= 0 {
		changeIdx := uint32(tx.ChangeIndex)
		err := w.decorateOutput(&pkt.Outputs[changeIdx], change)
		if err != nil {
			return nil, nil, err
		}
		w.registerScript(change)

		meta.ChangeVout = fn.Some(changeIdx)
		meta.ChangeTerminal = fn.Some(change.Terminal)
	}

	log.Infof("Constructed tx %v with %d inputs, %d outputs, fee %v",
		tx.Tx.TxHash(), len(tx.Tx.TxIn), len(tx.Tx.TxOut), meta.Fee)
	log.Tracef("Constructed PSBT: %v", limitSpewer.Sdump(pkt))

	return pkt, meta, nil
}

// decorateInput adds the UTXO and derivation info of the spent coin to the
// PSBT input.
func (w *Wallet) decorateInput(pIn *psbt.PInput, coin *Coin) error {
	txOut := coin.TxOut
	pIn.WitnessUtxo = &txOut

	derived, err := w.descr.Derive(
		coin.Terminal.Keychain, coin.Terminal.Index,
	)
	if err != nil {
		return err
	}

	if !derived.IsTaproot() {
		pIn.Bip32Derivation, err = w.descr.ComprKeyset(coin.Terminal)
		return err
	}

	pIn.TaprootInternalKey = schnorr.SerializePubKey(derived.Key)
	pIn.TaprootBip32Derivation, err = w.descr.XOnlyKeyset(coin.Terminal)
	if err != nil {
		return err
	}

	// A coin on a tweaked terminal is spent with the tweaked key, the
	// signer needs the script root to compute the tweak.
	derived.Commitment.WhenSome(func(c dbc.TapretCommitment) {
		root := c.TapscriptRoot()
		pIn.TaprootMerkleRoot = root[:]
	})

	return nil
}

// decorateOutput adds the key and derivation info of a wallet output to the
// PSBT output.
func (w *Wallet) decorateOutput(pOut *psbt.POutput,
	derived *rgbdescr.DerivedScript) error {

	var err error
	if !derived.IsTaproot() {
		pOut.Bip32Derivation, err = w.descr.ComprKeyset(derived.Terminal)
		return err
	}

	pOut.TaprootInternalKey = schnorr.SerializePubKey(derived.Key)
	pOut.TaprootBip32Derivation, err = w.descr.XOnlyKeyset(
		derived.Terminal,
	)

	return err
}

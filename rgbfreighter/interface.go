package rgbfreighter

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/bpwallet"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
)

// WalletAnchor is the bitcoin wallet that funds the witness transaction of a
// transfer and owns the seals state is spent from.
type WalletAnchor interface {
	inventory.OutpointFilter

	// ConstructPsbt constructs an unsigned PSBT spending all given
	// outpoints and paying the beneficiaries, adding more coins and a
	// change output as needed.
	ConstructPsbt(ctx context.Context, prevOutpoints []wire.OutPoint,
		beneficiaries []bpwallet.Beneficiary,
		params bpwallet.TxParams) (*psbt.Packet, *bpwallet.PsbtMeta,
		error)

	// SealCloseMethod returns the method seals on wallet outputs are
	// closed with.
	SealCloseMethod() dbc.Method

	// AddTapretTweak records the tapret commitment of a wallet output at
	// the given terminal.
	AddTapretTweak(terminal rgbdescr.Terminal,
		commitment dbc.TapretCommitment) error
}

// A compile-time assertion to make sure the descriptor wallet can anchor
// transfers.
var _ WalletAnchor = (*bpwallet.Wallet)(nil)

// TransferParams are the parameters of a transfer.
type TransferParams struct {
	// Tx are the parameters of the witness transaction. The change
	// keychain is always overwritten with the keychain matching the close
	// method of the transfer.
	Tx bpwallet.TxParams

	// MinAmount is the value of the outputs created for witness
	// beneficiaries.
	MinAmount btcutil.Amount
}

// NewTransferParams creates transfer parameters for the given fee rate in
// sat/kvB and beneficiary output value.
func NewTransferParams(feeRate, minAmount btcutil.Amount) TransferParams {
	return TransferParams{
		Tx: bpwallet.TxParams{
			FeeRate: feeRate,
		},
		MinAmount: minAmount,
	}
}

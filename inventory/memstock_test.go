package inventory

import (
	"context"
	"os"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog/v2"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/internal/test"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

const (
	testIface      = "RGB20"
	testOperation  = "transfer"
	testAssignment = "assetOwner"
)

func init() {
	logger := btclog.NewSLogger(btclog.NewDefaultHandler(os.Stdout))
	UseLogger(logger.SubSystem(Subsystem))
}

func testInterface() *rgbstd.Interface {
	return &rgbstd.Interface{
		Name:             testIface,
		DefaultOperation: fn.Some(testOperation),
		Transitions: map[string]rgbstd.TransitionIface{
			testOperation: {
				DefaultAssignment: fn.Some(testAssignment),
				Assignments:       []string{testAssignment},
			},
		},
	}
}

func testAllocation(op wire.OutPoint, amount rgbstd.Amount) rgbstd.FungibleAllocation {
	return rgbstd.FungibleAllocation{
		Seal:       rgbstd.NewOutputSeal(dbc.TapretFirst, op),
		Assignment: testAssignment,
		Amount:     amount,
	}
}

func newTestStock(t *testing.T) *MemStock {
	stock := NewMemStock()
	stock.ImportIface(testInterface())

	return stock
}

func testInvoice(t *testing.T, id rgbstd.ContractID,
	amount rgbstd.Amount) *invoice.Invoice {

	return &invoice.Invoice{
		Contract: fn.Some(id),
		Iface:    fn.Some(testIface),
		State:    invoice.AmountState(amount),
		Beneficiary: invoice.NewWitnessBeneficiary(
			test.RandTaprootAddress(t, &chaincfg.RegressionNetParams),
		),
	}
}

func changeAt(vout uint32) ChangeResolver {
	return func(rgbstd.ContractID, string) fn.Option[uint32] {
		return fn.Some(vout)
	}
}

// TestMemStockFungible makes sure fungible queries honor the filter.
func TestMemStockFungible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stock := newTestStock(t)

	id := rgbstd.ContractID{1}
	op1, op2 := test.RandOutPoint(t), test.RandOutPoint(t)
	require.NoError(t, stock.ImportContract(id, []string{testIface},
		[]rgbstd.FungibleAllocation{
			testAllocation(op1, 10), testAllocation(op2, 20),
		},
	))

	_, err := stock.ContractIface(ctx, id, "RGB21")
	require.ErrorIs(t, err, ErrIfaceNotImplemented)
	_, err = stock.ContractIface(ctx, rgbstd.ContractID{2}, testIface)
	require.ErrorIs(t, err, ErrUnknownContract)

	contract, err := stock.ContractIface(ctx, id, testIface)
	require.NoError(t, err)

	all, err := contract.Fungible(ctx, testAssignment, AllFilter)
	require.NoError(t, err)
	require.Len(t, all, 2)

	only1, err := contract.Fungible(
		ctx, testAssignment, SetFilter(fn.NewSet(op1)),
	)
	require.NoError(t, err)
	require.Len(t, only1, 1)
	require.EqualValues(t, 10, only1[0].Amount)

	none, err := contract.Fungible(ctx, testAssignment, AndFilter(
		SetFilter(fn.NewSet(op1)), SetFilter(fn.NewSet(op2)),
	))
	require.NoError(t, err)
	require.Empty(t, none)

	outpoints, err := stock.ContractOutpoints(ctx, id)
	require.NoError(t, err)
	require.True(t, outpoints.Contains(op1))
	require.True(t, outpoints.Contains(op2))
}

// TestMemStockComposeConsume walks through compose, consume and transfer.
func TestMemStockComposeConsume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stock := newTestStock(t)

	paid, other := rgbstd.ContractID{1}, rgbstd.ContractID{2}
	op1, op2 := test.RandOutPoint(t), test.RandOutPoint(t)
	require.NoError(t, stock.ImportContract(paid, []string{testIface},
		[]rgbstd.FungibleAllocation{
			testAllocation(op1, 30), testAllocation(op2, 80),
		},
	))

	// The other contract shares a seal with the paid one, so it needs a
	// blank transition.
	require.NoError(t, stock.ImportContract(other, []string{testIface},
		[]rgbstd.FungibleAllocation{testAllocation(op2, 5)},
	))

	inv := testInvoice(t, paid, 50)
	prevSeals := []rgbstd.OutputSeal{
		rgbstd.NewOutputSeal(dbc.TapretFirst, op2),
	}

	// Without a change output the remaining 30 can't be assigned.
	_, err := stock.Compose(
		ctx, []*invoice.Invoice{inv}, prevSeals, dbc.TapretFirst,
		[]fn.Option[uint32]{fn.Some[uint32](0)},
		func(rgbstd.ContractID, string) fn.Option[uint32] {
			return fn.None[uint32]()
		},
	)
	require.ErrorIs(t, err, ErrNoChangeOutput)

	// Paying more than the inputs hold fails.
	_, err = stock.Compose(
		ctx, []*invoice.Invoice{testInvoice(t, paid, 81)}, prevSeals,
		dbc.TapretFirst, []fn.Option[uint32]{fn.Some[uint32](0)},
		changeAt(1),
	)
	require.ErrorIs(t, err, ErrInsufficientInputs)

	batch, err := stock.Compose(
		ctx, []*invoice.Invoice{inv}, prevSeals, dbc.TapretFirst,
		[]fn.Option[uint32]{fn.Some[uint32](0)}, changeAt(1),
	)
	require.NoError(t, err)
	require.Len(t, batch.Bundles, 2)
	require.Equal(t, paid, batch.Bundles[0].ContractID)
	require.Equal(t, other, batch.Bundles[1].ContractID)

	transition := batch.Bundles[0].Transitions[0]
	require.Equal(t, testOperation, transition.Operation)
	require.Equal(t, []wire.OutPoint{op2}, transition.Inputs)
	require.Len(t, transition.Assignments, 2)
	require.EqualValues(t, 50, transition.Assignments[0].Amount)
	require.EqualValues(t, 0, transition.Assignments[0].Seal.Vout)
	require.EqualValues(t, 30, transition.Assignments[1].Amount)
	require.EqualValues(t, 1, transition.Assignments[1].Seal.Vout)

	blank := batch.Bundles[1].Transitions[0]
	require.Equal(t, blankOperation, blank.Operation)
	require.EqualValues(t, 5, blank.TotalAmount(testAssignment))

	txid := test.RandHash()
	fascia := &rgbstd.Fascia{
		Anchor:  rgbstd.Anchor{Txid: txid},
		Bundles: batch.Bundles,
	}
	require.NoError(t, stock.ConsumeFascia(ctx, fascia))
	require.ErrorIs(
		t, stock.ConsumeFascia(ctx, fascia), ErrFasciaAlreadyConsumed,
	)

	// The spent seal is gone, op1 is untouched and the witness outputs
	// hold the new state.
	allocations := stock.Allocations(paid)
	require.Len(t, allocations, 3)
	var total rgbstd.Amount
	for _, a := range allocations {
		require.NotEqual(t, op2, a.Seal.Outpoint)
		total += a.Amount
	}
	require.EqualValues(t, 110, total)

	beneficiary := rgbstd.NewOutputSeal(dbc.TapretFirst, wire.OutPoint{
		Hash: txid, Index: 0,
	})
	transfer, err := stock.Transfer(
		ctx, paid, []rgbstd.OutputSeal{beneficiary}, nil,
	)
	require.NoError(t, err)
	require.Equal(t, txid, transfer.WitnessTxid)
	require.Equal(t, paid, transfer.ContractID)

	// A seal the bundle didn't assign to is rejected.
	unknown := rgbstd.NewOutputSeal(dbc.TapretFirst, wire.OutPoint{
		Hash: chainhash.Hash{}, Index: 0,
	})
	_, err = stock.Transfer(ctx, paid, []rgbstd.OutputSeal{unknown}, nil)
	require.ErrorIs(t, err, ErrUnknownBeneficiary)

	_, err = stock.Transfer(
		ctx, paid, nil, []rgbstd.SecretSeal{{1}},
	)
	require.ErrorIs(t, err, ErrUnknownBeneficiary)
}

// TestMemStockConsumeUnknownContract makes sure a fascia with an unknown
// contract doesn't change any state.
func TestMemStockConsumeUnknownContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stock := newTestStock(t)

	id := rgbstd.ContractID{1}
	op := test.RandOutPoint(t)
	require.NoError(t, stock.ImportContract(id, []string{testIface},
		[]rgbstd.FungibleAllocation{testAllocation(op, 10)},
	))

	fascia := &rgbstd.Fascia{
		Anchor: rgbstd.Anchor{Txid: test.RandHash()},
		Bundles: []*rgbstd.TransitionBundle{{
			ContractID: id,
			Transitions: []*rgbstd.Transition{{
				ContractID: id,
				Inputs:     []wire.OutPoint{op},
			}},
		}, {
			ContractID: rgbstd.ContractID{9},
		}},
	}
	require.ErrorIs(t, stock.ConsumeFascia(ctx, fascia), ErrUnknownContract)
	require.Len(t, stock.Allocations(id), 1)

	_, err := stock.Transfer(ctx, id, nil, nil)
	require.ErrorIs(t, err, ErrNoAnchoredBundle)
}

package rgbfreighter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// sealState is the fungible state of one assignment summed up per seal.
type sealState struct {
	seal rgbstd.OutputSeal
	sum  rgbstd.Amount
}

// groupBySeal sums up the allocations per seal. The result is ordered
// ascending by sum, seals with equal sums are ordered by outpoint.
func groupBySeal(allocations []rgbstd.FungibleAllocation) []sealState {
	sums := make(map[rgbstd.OutputSeal]rgbstd.Amount)
	for _, a := range allocations {
		sums[a.Seal] += a.Amount
	}

	states := make([]sealState, 0, len(sums))
	for seal, sum := range sums {
		states = append(states, sealState{seal: seal, sum: sum})
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].sum != states[j].sum {
			return states[i].sum < states[j].sum
		}

		return states[i].seal.Less(states[j].seal)
	})

	return states
}

// SelectSeals selects the seals to spend to cover the given amount. Seals are
// taken largest first until their total reaches the amount. The order among
// seals holding the same amount is an implementation detail.
func SelectSeals(allocations []rgbstd.FungibleAllocation,
	amount rgbstd.Amount) ([]rgbstd.OutputSeal, error) {

	states := groupBySeal(allocations)

	var (
		total    rgbstd.Amount
		selected []rgbstd.OutputSeal
	)
	for i := len(states) - 1; i >= 0 && total < amount; i-- {
		total += states[i].sum
		selected = append(selected, states[i].seal)
	}

	if total < amount {
		return nil, fmt.Errorf("%w: need %d, have %d",
			ErrInsufficientState, amount, total)
	}

	return selected, nil
}

// invoiceSelection is the state selected to pay a single invoice.
type invoiceSelection struct {
	contract   rgbstd.ContractID
	assignment string
	seals      []rgbstd.OutputSeal
}

// selectionKey identifies the state of one assignment of a contract.
type selectionKey struct {
	contract   rgbstd.ContractID
	assignment string
}

// pendingSelection is the state of one assignment selected by the invoices
// of a transfer so far.
type pendingSelection struct {
	demand rgbstd.Amount
	seals  fn.Set[rgbstd.OutputSeal]
}

// selectionSet tracks the seals selected per contract assignment while the
// invoices of a transfer are processed, so invoices paying from the same
// assignment are covered by their combined demand.
type selectionSet map[selectionKey]*pendingSelection

// selectFor adds the amount to the demand of the assignment and selects
// further seals from the allocations if the seals selected so far no longer
// cover it. Only the newly selected seals are returned.
func (s selectionSet) selectFor(key selectionKey,
	allocations []rgbstd.FungibleAllocation,
	amount rgbstd.Amount) ([]rgbstd.OutputSeal, error) {

	pending, ok := s[key]
	if !ok {
		pending = &pendingSelection{
			seals: fn.NewSet[rgbstd.OutputSeal](),
		}
		s[key] = pending
	}

	var (
		covered rgbstd.Amount
		rest    []rgbstd.FungibleAllocation
	)
	for _, a := range allocations {
		if pending.seals.Contains(a.Seal) {
			covered += a.Amount
			continue
		}
		rest = append(rest, a)
	}

	demand := pending.demand + amount
	if covered >= demand {
		pending.demand = demand
		return nil, nil
	}

	seals, err := SelectSeals(rest, demand-covered)
	if err != nil {
		return nil, err
	}

	pending.demand = demand
	for _, seal := range seals {
		pending.seals.Add(seal)
	}

	return seals, nil
}

// selectForInvoice resolves the contract, interface, operation and
// assignment of the invoice and selects the wallet seals paying it. Seals
// already selected for earlier invoices of the transfer are taken into
// account through the selection set.
func selectForInvoice(ctx context.Context, wallet WalletAnchor,
	stock inventory.Inventory, inv *invoice.Invoice, now time.Time,
	selected selectionSet) (*invoiceSelection, error) {

	id, err := inv.Contract.UnwrapOrErr(ErrNoContract)
	if err != nil {
		return nil, compositionErr(err, nil)
	}
	ifaceName, err := inv.Iface.UnwrapOrErr(ErrNoIface)
	if err != nil {
		return nil, compositionErr(err, nil)
	}

	iface, err := stock.Iface(ctx, ifaceName)
	if err != nil {
		return nil, compositionErr(nil, err)
	}
	contract, err := stock.ContractIface(ctx, id, ifaceName)
	if err != nil {
		return nil, compositionErr(nil, err)
	}

	operation, err := inventory.DefaultOperation(iface, inv).UnwrapOrErr(
		ErrNoOperation,
	)
	if err != nil {
		return nil, compositionErr(err, nil)
	}
	assignment, err := inventory.DefaultAssignment(
		iface, operation, inv,
	).UnwrapOrErr(ErrNoAssignment)
	if err != nil {
		return nil, compositionErr(err, nil)
	}

	if inv.IsExpired(now) {
		return nil, compositionErr(ErrInvoiceExpired, nil)
	}
	if inv.State.Kind != invoice.StateAmount {
		return nil, compositionErr(ErrUnsupported, fmt.Errorf("invoice "+
			"requests %v state", inv.State.Kind))
	}
	if err := inv.Validate(); err != nil {
		return nil, compositionErr(nil, err)
	}

	filter, err := ContractOutpointsFilter(ctx, wallet, stock, id)
	if err != nil {
		return nil, compositionErr(nil, err)
	}
	allocations, err := contract.Fungible(ctx, assignment, filter)
	if err != nil {
		return nil, compositionErr(nil, err)
	}

	key := selectionKey{contract: id, assignment: assignment}
	seals, err := selected.selectFor(key, allocations, inv.State.Amount)
	if err != nil {
		return nil, compositionErr(nil, fmt.Errorf("contract %v: %w",
			id, err))
	}

	log.Debugf("Selected %d seals holding %v of contract %v for %d",
		len(seals), assignment, id, inv.State.Amount)

	return &invoiceSelection{
		contract:   id,
		assignment: assignment,
		seals:      seals,
	}, nil
}

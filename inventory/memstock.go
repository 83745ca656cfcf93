package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// blankOperation is the operation used for transitions that only move state
// of contracts that aren't paid but live on spent seals.
const blankOperation = "blank"

// anchoredBundle is a bundle together with the anchor it was consumed with.
type anchoredBundle struct {
	bundle *rgbstd.TransitionBundle
	anchor rgbstd.Anchor
}

// memContract is the state of a single contract kept by the MemStock.
type memContract struct {
	ifaces      fn.Set[string]
	allocations []rgbstd.FungibleAllocation

	// latest is the witness transaction of the most recently consumed
	// fascia touching the contract.
	latest  fn.Option[chainhash.Hash]
	anchors map[chainhash.Hash]anchoredBundle
}

// MemStock is an in-memory Inventory.
type MemStock struct {
	mu sync.RWMutex

	ifaces    map[string]*rgbstd.Interface
	contracts map[rgbstd.ContractID]*memContract
	consumed  fn.Set[chainhash.Hash]
}

// A compile-time assertion to make sure MemStock satisfies the Inventory
// interface.
var _ Inventory = (*MemStock)(nil)

// NewMemStock creates an empty in-memory inventory.
func NewMemStock() *MemStock {
	return &MemStock{
		ifaces:    make(map[string]*rgbstd.Interface),
		contracts: make(map[rgbstd.ContractID]*memContract),
		consumed:  fn.NewSet[chainhash.Hash](),
	}
}

// ImportIface adds an interface to the inventory, replacing any interface
// with the same name.
func (s *MemStock) ImportIface(iface *rgbstd.Interface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ifaces[iface.Name] = iface
}

// ImportContract adds a contract implementing the given interfaces with its
// known allocations.
func (s *MemStock) ImportContract(id rgbstd.ContractID, ifaces []string,
	allocations []rgbstd.FungibleAllocation) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range ifaces {
		if _, ok := s.ifaces[name]; !ok {
			return fmt.Errorf("%w: %v", ErrUnknownIface, name)
		}
	}

	if _, ok := s.contracts[id]; ok {
		return fmt.Errorf("contract %v already imported", id)
	}

	s.contracts[id] = &memContract{
		ifaces: fn.NewSet(ifaces...),
		allocations: append(
			[]rgbstd.FungibleAllocation(nil), allocations...,
		),
		latest:  fn.None[chainhash.Hash](),
		anchors: make(map[chainhash.Hash]anchoredBundle),
	}

	log.Debugf("Imported contract %v with %d allocations", id,
		len(allocations))

	return nil
}

// Allocations returns a copy of all known allocations of a contract.
func (s *MemStock) Allocations(
	id rgbstd.ContractID) []rgbstd.FungibleAllocation {

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil
	}

	return append([]rgbstd.FungibleAllocation(nil), c.allocations...)
}

// Iface returns the interface with the given name.
func (s *MemStock) Iface(_ context.Context,
	name string) (*rgbstd.Interface, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	iface, ok := s.ifaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownIface, name)
	}

	return iface, nil
}

// ContractIface returns a view of the contract through the given interface.
func (s *MemStock) ContractIface(_ context.Context, id rgbstd.ContractID,
	iface string) (ContractIface, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownContract, id)
	}
	if !c.ifaces.Contains(iface) {
		return nil, fmt.Errorf("%w: %v", ErrIfaceNotImplemented, iface)
	}

	return &memContractIface{
		stock: s,
		id:    id,
		iface: s.ifaces[iface],
	}, nil
}

// ContractOutpoints returns all outpoints holding state of the contract.
func (s *MemStock) ContractOutpoints(_ context.Context,
	id rgbstd.ContractID) (fn.Set[wire.OutPoint], error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownContract, id)
	}

	outpoints := fn.NewSet[wire.OutPoint]()
	for _, a := range c.allocations {
		outpoints.Add(a.Seal.Outpoint)
	}

	return outpoints, nil
}

// invoiceGroup collects the invoices paying a single contract.
type invoiceGroup struct {
	id       rgbstd.ContractID
	invoices []*invoice.Invoice
	vouts    []fn.Option[uint32]
}

// Compose builds one bundle per paid contract, plus a blank bundle for every
// other contract with state on the spent seals. All state on spent seals
// that isn't paid to a beneficiary is assigned to the change output.
func (s *MemStock) Compose(_ context.Context, invoices []*invoice.Invoice,
	prevSeals []rgbstd.OutputSeal, method dbc.Method,
	beneficiaryVouts []fn.Option[uint32],
	change ChangeResolver) (*rgbstd.Batch, error) {

	if len(beneficiaryVouts) != len(invoices) {
		return nil, fmt.Errorf("got %d beneficiary outputs for %d "+
			"invoices", len(beneficiaryVouts), len(invoices))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	spent := fn.NewSet[wire.OutPoint]()
	for _, seal := range prevSeals {
		spent.Add(seal.Outpoint)
	}

	// Group the invoices by contract, keeping the order in which the
	// contracts first appear.
	var groups []*invoiceGroup
	groupIdx := make(map[rgbstd.ContractID]int)
	for i, inv := range invoices {
		id, err := inv.Contract.UnwrapOrErr(
			fmt.Errorf("invoice %d has no contract", i),
		)
		if err != nil {
			return nil, err
		}

		idx, ok := groupIdx[id]
		if !ok {
			idx = len(groups)
			groupIdx[id] = idx
			groups = append(groups, &invoiceGroup{id: id})
		}
		groups[idx].invoices = append(groups[idx].invoices, inv)
		groups[idx].vouts = append(
			groups[idx].vouts, beneficiaryVouts[i],
		)
	}

	batch := &rgbstd.Batch{}
	for _, g := range groups {
		bundle, err := s.composeBundle(g, spent, method, change)
		if err != nil {
			return nil, err
		}
		batch.Bundles = append(batch.Bundles, bundle)
	}

	// Every other contract with state on a spent seal gets a blank
	// transition so its state isn't destroyed with the seal.
	blankIDs := make([]rgbstd.ContractID, 0)
	for id, c := range s.contracts {
		if _, ok := groupIdx[id]; ok {
			continue
		}
		for _, a := range c.allocations {
			if spent.Contains(a.Seal.Outpoint) {
				blankIDs = append(blankIDs, id)
				break
			}
		}
	}
	sort.Slice(blankIDs, func(i, j int) bool {
		return blankIDs[i].String() < blankIDs[j].String()
	})
	for _, id := range blankIDs {
		bundle, err := s.composeBlank(id, spent, method, change)
		if err != nil {
			return nil, err
		}
		batch.Bundles = append(batch.Bundles, bundle)
	}

	log.Debugf("Composed batch with %d bundles (%d blank) spending %d "+
		"seals", len(batch.Bundles), len(blankIDs), spent.Size())
	log.Tracef("Composed batch: %v", limitSpewer.Sdump(batch))

	return batch, nil
}

// spentInputs returns the outpoints and the per assignment sums of the
// contract's allocations on spent seals.
func spentInputs(c *memContract, spent fn.Set[wire.OutPoint]) ([]wire.OutPoint,
	map[string]rgbstd.Amount) {

	inputSet := fn.NewSet[wire.OutPoint]()
	sums := make(map[string]rgbstd.Amount)
	for _, a := range c.allocations {
		if !spent.Contains(a.Seal.Outpoint) {
			continue
		}
		inputSet.Add(a.Seal.Outpoint)
		sums[a.Assignment] += a.Amount
	}

	inputs := inputSet.ToSlice()
	sort.Slice(inputs, func(i, j int) bool {
		return rgbstd.NewOutputSeal(0, inputs[i]).Less(
			rgbstd.NewOutputSeal(0, inputs[j]),
		)
	})

	return inputs, sums
}

// changeAssignments assigns the remaining sums to the change output.
func changeAssignments(id rgbstd.ContractID, method dbc.Method,
	remaining map[string]rgbstd.Amount,
	change ChangeResolver) ([]rgbstd.Assignment, error) {

	names := make([]string, 0, len(remaining))
	for name, amount := range remaining {
		if amount > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	assignments := make([]rgbstd.Assignment, 0, len(names))
	for _, name := range names {
		vout, err := change(id, name).UnwrapOrErr(fmt.Errorf("%w: "+
			"contract %v, assignment %v", ErrNoChangeOutput, id,
			name))
		if err != nil {
			return nil, err
		}

		assignments = append(assignments, rgbstd.Assignment{
			Name:   name,
			Seal:   rgbstd.WitnessVoutSeal(method, vout),
			Amount: remaining[name],
		})
	}

	return assignments, nil
}

func (s *MemStock) composeBundle(g *invoiceGroup, spent fn.Set[wire.OutPoint],
	method dbc.Method, change ChangeResolver) (*rgbstd.TransitionBundle,
	error) {

	c, ok := s.contracts[g.id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownContract, g.id)
	}

	inputs, remaining := spentInputs(c, spent)

	var (
		operation   string
		assignments []rgbstd.Assignment
	)
	for i, inv := range g.invoices {
		ifaceName, err := inv.Iface.UnwrapOrErr(
			fmt.Errorf("%w: invoice without interface",
				ErrUnknownIface),
		)
		if err != nil {
			return nil, err
		}
		iface, ok := s.ifaces[ifaceName]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnknownIface,
				ifaceName)
		}

		op := DefaultOperation(iface, inv).UnwrapOr("")
		if operation == "" {
			operation = op
		}
		name := DefaultAssignment(iface, op, inv).UnwrapOr("")
		if name == "" {
			return nil, fmt.Errorf("no assignment for operation "+
				"%q of %v", op, g.id)
		}

		amount := inv.State.Amount
		if remaining[name] < amount {
			return nil, fmt.Errorf("%w: contract %v needs %d of "+
				"%v, inputs hold %d", ErrInsufficientInputs,
				g.id, amount, name, remaining[name])
		}
		remaining[name] -= amount

		var seal rgbstd.AssignedSeal
		switch inv.Beneficiary.Kind {
		case invoice.WitnessVout:
			vout, err := g.vouts[i].UnwrapOrErr(
				ErrMissingBeneficiaryVout,
			)
			if err != nil {
				return nil, err
			}
			seal = rgbstd.WitnessVoutSeal(method, vout)

		default:
			seal = rgbstd.ConcealedSeal(inv.Beneficiary.Seal)
		}

		assignments = append(assignments, rgbstd.Assignment{
			Name:   name,
			Seal:   seal,
			Amount: amount,
		})
	}

	changeOut, err := changeAssignments(g.id, method, remaining, change)
	if err != nil {
		return nil, err
	}

	return &rgbstd.TransitionBundle{
		ContractID: g.id,
		Method:     method,
		Transitions: []*rgbstd.Transition{{
			ContractID:  g.id,
			Operation:   operation,
			Inputs:      inputs,
			Assignments: append(assignments, changeOut...),
		}},
	}, nil
}

func (s *MemStock) composeBlank(id rgbstd.ContractID,
	spent fn.Set[wire.OutPoint], method dbc.Method,
	change ChangeResolver) (*rgbstd.TransitionBundle, error) {

	inputs, remaining := spentInputs(s.contracts[id], spent)
	assignments, err := changeAssignments(id, method, remaining, change)
	if err != nil {
		return nil, err
	}

	return &rgbstd.TransitionBundle{
		ContractID: id,
		Method:     method,
		Transitions: []*rgbstd.Transition{{
			ContractID:  id,
			Operation:   blankOperation,
			Inputs:      inputs,
			Assignments: assignments,
		}},
	}, nil
}

// ConsumeFascia removes the state on the seals closed by the fascia and adds
// the state assigned to outputs of the witness transaction. Nothing is
// changed if any bundle references an unknown contract.
func (s *MemStock) ConsumeFascia(_ context.Context,
	fascia *rgbstd.Fascia) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	txid := fascia.Anchor.Txid
	if s.consumed.Contains(txid) {
		return fmt.Errorf("%w: %v", ErrFasciaAlreadyConsumed, txid)
	}
	for _, bundle := range fascia.Bundles {
		if _, ok := s.contracts[bundle.ContractID]; !ok {
			return fmt.Errorf("%w: %v", ErrUnknownContract,
				bundle.ContractID)
		}
	}

	for _, bundle := range fascia.Bundles {
		c := s.contracts[bundle.ContractID]

		closed := fn.NewSet(bundle.Inputs()...)
		kept := c.allocations[:0]
		for _, a := range c.allocations {
			if !closed.Contains(a.Seal.Outpoint) {
				kept = append(kept, a)
			}
		}
		c.allocations = kept

		for _, t := range bundle.Transitions {
			for _, a := range t.Assignments {
				seal := a.Seal.Resolve(txid)
				if seal.IsNone() {
					continue
				}

				c.allocations = append(
					c.allocations, rgbstd.FungibleAllocation{
						Seal: seal.UnwrapOr(
							rgbstd.OutputSeal{},
						),
						Assignment: a.Name,
						Amount:     a.Amount,
					},
				)
			}
		}

		c.anchors[txid] = anchoredBundle{
			bundle: bundle,
			anchor: fascia.Anchor,
		}
		c.latest = fn.Some(txid)
	}
	s.consumed.Add(txid)

	log.Infof("Consumed fascia of witness tx %v with %d bundles", txid,
		len(fascia.Bundles))

	return nil
}

// Transfer creates the transfer of the most recently anchored bundle of the
// contract for the given beneficiaries.
func (s *MemStock) Transfer(_ context.Context, id rgbstd.ContractID,
	witnessSeals []rgbstd.OutputSeal,
	blindedSeals []rgbstd.SecretSeal) (*rgbstd.Transfer, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownContract, id)
	}

	txid, err := c.latest.UnwrapOrErr(
		fmt.Errorf("%w: %v", ErrNoAnchoredBundle, id),
	)
	if err != nil {
		return nil, err
	}
	anchored := c.anchors[txid]

	assigned := fn.NewSet[rgbstd.AssignedSeal]()
	for _, t := range anchored.bundle.Transitions {
		for _, a := range t.Assignments {
			assigned.Add(a.Seal)
		}
	}

	for _, seal := range witnessSeals {
		vout := rgbstd.WitnessVoutSeal(seal.Method, seal.Outpoint.Index)
		if seal.Outpoint.Hash != txid || !assigned.Contains(vout) {
			return nil, fmt.Errorf("%w: %v", ErrUnknownBeneficiary,
				seal)
		}
	}
	for _, secret := range blindedSeals {
		if !assigned.Contains(rgbstd.ConcealedSeal(secret)) {
			return nil, fmt.Errorf("%w: %v", ErrUnknownBeneficiary,
				secret)
		}
	}

	return &rgbstd.Transfer{
		ContractID:   id,
		WitnessTxid:  txid,
		WitnessSeals: witnessSeals,
		BlindedSeals: blindedSeals,
		Bundle:       anchored.bundle,
		Anchor:       anchored.anchor,
	}, nil
}

// memContractIface is the ContractIface of a MemStock contract.
type memContractIface struct {
	stock *MemStock
	id    rgbstd.ContractID
	iface *rgbstd.Interface
}

// ContractID returns the id of the contract.
func (m *memContractIface) ContractID() rgbstd.ContractID {
	return m.id
}

// Iface returns the interface the contract is viewed through.
func (m *memContractIface) Iface() *rgbstd.Interface {
	return m.iface
}

// Fungible returns the allocations of the assignment accepted by the filter,
// ordered by seal.
func (m *memContractIface) Fungible(_ context.Context, assignment string,
	filter OutpointFilter) ([]rgbstd.FungibleAllocation, error) {

	m.stock.mu.RLock()
	defer m.stock.mu.RUnlock()

	c, ok := m.stock.contracts[m.id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownContract, m.id)
	}

	var allocations []rgbstd.FungibleAllocation
	for _, a := range c.allocations {
		if a.Assignment != assignment {
			continue
		}
		if !filter.IncludeOutpoint(a.Seal.Outpoint) {
			continue
		}
		allocations = append(allocations, a)
	}
	sort.SliceStable(allocations, func(i, j int) bool {
		return allocations[i].Seal.Less(allocations[j].Seal)
	})

	return allocations, nil
}

package inventory

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrUnknownIface is returned when an interface isn't known to the
	// inventory.
	ErrUnknownIface = errors.New("unknown interface")

	// ErrUnknownContract is returned when a contract isn't known to the
	// inventory.
	ErrUnknownContract = errors.New("unknown contract")

	// ErrIfaceNotImplemented is returned when a contract doesn't
	// implement the requested interface.
	ErrIfaceNotImplemented = errors.New("contract doesn't implement " +
		"interface")

	// ErrInsufficientInputs is returned when the state on the seals
	// passed to compose doesn't cover the invoiced amounts.
	ErrInsufficientInputs = errors.New("input state doesn't cover " +
		"invoiced amount")

	// ErrNoChangeOutput is returned when a transition needs a change
	// seal but no change output is available.
	ErrNoChangeOutput = errors.New("no output available for change")

	// ErrMissingBeneficiaryVout is returned when a witness beneficiary has
	// no output index assigned.
	ErrMissingBeneficiaryVout = errors.New("witness beneficiary without " +
		"output index")

	// ErrFasciaAlreadyConsumed is returned when a fascia for the same
	// witness transaction is consumed twice.
	ErrFasciaAlreadyConsumed = errors.New("fascia already consumed")

	// ErrUnknownBeneficiary is returned when a transfer is requested for
	// a seal the anchored bundle didn't assign state to.
	ErrUnknownBeneficiary = errors.New("seal not assigned in bundle")

	// ErrNoAnchoredBundle is returned when a transfer is requested for a
	// contract without a consumed fascia.
	ErrNoAnchoredBundle = errors.New("no anchored bundle for contract")
)

// OutpointFilter selects the outpoints whose state is visible to a query.
type OutpointFilter interface {
	// IncludeOutpoint returns true if state on the outpoint should be
	// included.
	IncludeOutpoint(op wire.OutPoint) bool
}

// ChangeResolver returns the output index state of the given contract and
// assignment that isn't paid to a beneficiary should be returned to.
type ChangeResolver func(id rgbstd.ContractID,
	assignment string) fn.Option[uint32]

// ContractIface is a view on a contract through one of its interfaces.
type ContractIface interface {
	// ContractID returns the id of the contract.
	ContractID() rgbstd.ContractID

	// Iface returns the interface the contract is viewed through.
	Iface() *rgbstd.Interface

	// Fungible returns all fungible allocations of the given assignment
	// on outpoints accepted by the filter.
	Fungible(ctx context.Context, assignment string,
		filter OutpointFilter) ([]rgbstd.FungibleAllocation, error)
}

// Inventory is the store of contracts, interfaces and the state known to
// the wallet.
type Inventory interface {
	// Iface returns the interface with the given name.
	Iface(ctx context.Context, name string) (*rgbstd.Interface, error)

	// ContractIface returns a view of the contract through the given
	// interface.
	ContractIface(ctx context.Context, id rgbstd.ContractID,
		iface string) (ContractIface, error)

	// ContractOutpoints returns all outpoints holding state of the given
	// contract.
	ContractOutpoints(ctx context.Context,
		id rgbstd.ContractID) (fn.Set[wire.OutPoint], error)

	// Compose builds the batch of state transitions paying the invoices
	// from the state on the given seals. The beneficiary output indexes
	// are aligned with the invoices and only set for witness
	// beneficiaries.
	Compose(ctx context.Context, invoices []*invoice.Invoice,
		prevSeals []rgbstd.OutputSeal, method dbc.Method,
		beneficiaryVouts []fn.Option[uint32],
		change ChangeResolver) (*rgbstd.Batch, error)

	// ConsumeFascia records the anchored bundles. Each fascia can only be
	// consumed once.
	ConsumeFascia(ctx context.Context, fascia *rgbstd.Fascia) error

	// Transfer creates the transfer of the most recently anchored bundle
	// of the contract for the given beneficiaries.
	Transfer(ctx context.Context, id rgbstd.ContractID,
		witnessSeals []rgbstd.OutputSeal,
		blindedSeals []rgbstd.SecretSeal) (*rgbstd.Transfer, error)
}

// DefaultOperation returns the operation of the invoice, falling back to the
// default operation of the interface.
func DefaultOperation(iface *rgbstd.Interface,
	inv *invoice.Invoice) fn.Option[string] {

	return inv.Operation.Alt(iface.DefaultOperation)
}

// DefaultAssignment returns the assignment of the invoice, falling back to the
// default assignment of the given operation.
func DefaultAssignment(iface *rgbstd.Interface, operation string,
	inv *invoice.Invoice) fn.Option[string] {

	if inv.Assignment.IsSome() {
		return inv.Assignment
	}

	transition, ok := iface.Transition(operation)
	if !ok {
		return fn.None[string]()
	}

	return transition.DefaultAssignment
}

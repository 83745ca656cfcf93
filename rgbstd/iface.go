package rgbstd

import (
	"github.com/lightningnetwork/lnd/fn/v2"
)

// TransitionIface describes a single state transition operation exposed by
// an interface.
type TransitionIface struct {
	// DefaultAssignment is the assignment used when an invoice doesn't
	// name one.
	DefaultAssignment fn.Option[string]

	// Assignments lists the names of the fungible assignments the
	// operation can create.
	Assignments []string
}

// HasAssignment returns true if the operation knows the given assignment.
func (t TransitionIface) HasAssignment(name string) bool {
	for _, a := range t.Assignments {
		if a == name {
			return true
		}
	}

	return false
}

// Interface is the standardized API a contract exposes to wallets.
type Interface struct {
	// Name is the name the interface is registered under.
	Name string

	// DefaultOperation is the operation used when an invoice doesn't name
	// one.
	DefaultOperation fn.Option[string]

	// Transitions maps the operation names to their description.
	Transitions map[string]TransitionIface
}

// Transition returns the description of the given operation.
func (i *Interface) Transition(op string) (TransitionIface, bool) {
	t, ok := i.Transitions[op]
	return t, ok
}

// FungibleAllocation is a quantity of fungible state assigned to a seal.
type FungibleAllocation struct {
	// Seal is the seal owning the state.
	Seal OutputSeal

	// Assignment is the name of the assignment.
	Assignment string

	// Amount is the amount assigned.
	Amount Amount
}

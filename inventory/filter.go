package inventory

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// FilterFunc adapts a plain predicate to an OutpointFilter.
type FilterFunc func(op wire.OutPoint) bool

// IncludeOutpoint calls the predicate.
func (f FilterFunc) IncludeOutpoint(op wire.OutPoint) bool {
	return f(op)
}

// SetFilter includes exactly the outpoints of a set.
type SetFilter fn.Set[wire.OutPoint]

// IncludeOutpoint returns true if the outpoint is in the set.
func (s SetFilter) IncludeOutpoint(op wire.OutPoint) bool {
	return fn.Set[wire.OutPoint](s).Contains(op)
}

// AllFilter includes every outpoint.
var AllFilter = FilterFunc(func(wire.OutPoint) bool {
	return true
})

// andFilter includes an outpoint only if all its filters do.
type andFilter []OutpointFilter

// AndFilter combines filters so an outpoint is only included if every one of
// them includes it.
func AndFilter(filters ...OutpointFilter) OutpointFilter {
	return andFilter(filters)
}

// IncludeOutpoint returns true if all filters include the outpoint.
func (a andFilter) IncludeOutpoint(op wire.OutPoint) bool {
	for _, f := range a {
		if !f.IncludeOutpoint(op) {
			return false
		}
	}

	return true
}

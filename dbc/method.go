package dbc

import (
	"fmt"
	"strings"
)

// Method is a deterministic bitcoin commitment method, i.e. the way a seal
// closing transaction commits to the state transitions it closes seals for.
type Method uint8

const (
	// OpretFirst commits into the first OP_RETURN output of a transaction.
	OpretFirst Method = 0

	// TapretFirst commits into a dedicated tapscript leaf of the first
	// taproot output that is flagged as the commitment host.
	TapretFirst Method = 1
)

// String returns the canonical name of the method.
func (m Method) String() string {
	switch m {
	case OpretFirst:
		return "opret1st"

	case TapretFirst:
		return "tapret1st"

	default:
		return fmt.Sprintf("UnknownMethod(%d)", uint8(m))
	}
}

// ParseMethod parses the canonical name of a commitment method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "opret1st", "opret":
		return OpretFirst, nil

	case "tapret1st", "tapret":
		return TapretFirst, nil

	default:
		return 0, fmt.Errorf("unknown commitment method: %v", s)
	}
}

// MethodSet is a small set of commitment methods used by a batch of state
// transitions.
type MethodSet uint8

const (
	methodOpretBit  MethodSet = 1 << 0
	methodTapretBit MethodSet = 1 << 1
)

// NewMethodSet creates a method set containing the given methods.
func NewMethodSet(methods ...Method) MethodSet {
	var s MethodSet
	for _, m := range methods {
		s = s.With(m)
	}

	return s
}

// With returns a copy of the set that also contains the given method.
func (s MethodSet) With(m Method) MethodSet {
	switch m {
	case OpretFirst:
		return s | methodOpretBit

	case TapretFirst:
		return s | methodTapretBit
	}

	return s
}

// HasOpretFirst returns true if the set contains the opret-first method.
func (s MethodSet) HasOpretFirst() bool {
	return s&methodOpretBit != 0
}

// HasTapretFirst returns true if the set contains the tapret-first method.
func (s MethodSet) HasTapretFirst() bool {
	return s&methodTapretBit != 0
}

// IsEmpty returns true if no method is contained in the set.
func (s MethodSet) IsEmpty() bool {
	return s == 0
}

// String returns a human-readable list of the methods in the set.
func (s MethodSet) String() string {
	var names []string
	if s.HasOpretFirst() {
		names = append(names, OpretFirst.String())
	}
	if s.HasTapretFirst() {
		names = append(names, TapretFirst.String())
	}

	return "{" + strings.Join(names, ", ") + "}"
}

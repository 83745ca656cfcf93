package rgbstd

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

var (
	// transitionTag is the tag of the transition id hash.
	transitionTag = []byte("urn:lnp-bp:rgb:transition")

	// bundleTag is the tag of the bundle id hash.
	bundleTag = []byte("urn:lnp-bp:rgb:bundle")
)

// SealKind is the kind of seal state is assigned to.
type SealKind uint8

const (
	// SealWitnessVout is a seal on an output of the witness transaction
	// that closes the input seals. The outpoint is only known once the
	// witness transaction is final.
	SealWitnessVout SealKind = 0

	// SealConcealed is a seal the receiver only revealed in concealed
	// form.
	SealConcealed SealKind = 1
)

// AssignedSeal is the seal a transition assigns state to.
type AssignedSeal struct {
	// Kind is the kind of seal.
	Kind SealKind

	// Method is the close method of a witness vout seal.
	Method dbc.Method

	// Vout is the output index inside the witness transaction of a
	// witness vout seal.
	Vout uint32

	// Secret is the concealed seal.
	Secret SecretSeal
}

// WitnessVoutSeal creates a seal on the given output of the witness
// transaction.
func WitnessVoutSeal(method dbc.Method, vout uint32) AssignedSeal {
	return AssignedSeal{
		Kind:   SealWitnessVout,
		Method: method,
		Vout:   vout,
	}
}

// ConcealedSeal creates a seal from a concealed blind seal.
func ConcealedSeal(secret SecretSeal) AssignedSeal {
	return AssignedSeal{
		Kind:   SealConcealed,
		Secret: secret,
	}
}

// Resolve returns the output seal of a witness vout seal once the witness
// transaction id is known.
func (s AssignedSeal) Resolve(witnessTxid chainhash.Hash) fn.Option[OutputSeal] {
	if s.Kind != SealWitnessVout {
		return fn.None[OutputSeal]()
	}

	return fn.Some(NewOutputSeal(s.Method, wire.OutPoint{
		Hash:  witnessTxid,
		Index: s.Vout,
	}))
}

// Assignment assigns an amount of fungible state to a seal.
type Assignment struct {
	// Name is the name of the assignment type.
	Name string

	// Seal is the seal receiving the state.
	Seal AssignedSeal

	// Amount is the amount assigned.
	Amount Amount
}

// Transition is a state transition of a single contract. It closes the seals
// defined on its inputs and assigns state to new seals.
type Transition struct {
	// ContractID is the contract the transition belongs to.
	ContractID ContractID

	// Operation is the interface operation name.
	Operation string

	// Inputs are the outpoints of the seals closed by the transition.
	Inputs []wire.OutPoint

	// Assignments are the newly created state assignments.
	Assignments []Assignment
}

// ID returns the unique identifier of the transition.
func (t *Transition) ID() (chainhash.Hash, error) {
	var b bytes.Buffer
	if err := t.Encode(&b); err != nil {
		return chainhash.Hash{}, err
	}

	return *chainhash.TaggedHash(transitionTag, b.Bytes()), nil
}

// TotalAmount returns the sum of all amounts assigned with the given name.
func (t *Transition) TotalAmount(name string) Amount {
	var total Amount
	for _, a := range t.Assignments {
		if a.Name == name {
			total += a.Amount
		}
	}

	return total
}

func (t *Transition) encodeRecords() []tlv.Record {
	return []tlv.Record{
		newContractIDRecord(transitionContractIDType, &t.ContractID),
		newStringRecord(transitionOperationType, &t.Operation),
		newOutPointsRecord(transitionInputsType, &t.Inputs),
		newAssignmentsRecord(transitionAssignmentsType, &t.Assignments),
	}
}

// Encode encodes the transition as a TLV stream.
func (t *Transition) Encode(w io.Writer) error {
	stream, err := tlv.NewStream(t.encodeRecords()...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode decodes a transition from a TLV stream.
func (t *Transition) Decode(r io.Reader) error {
	return tlvStrictDecode(r, t.encodeRecords()...)
}

// TransitionBundle bundles all transitions of a single contract that are
// anchored in the same witness transaction.
type TransitionBundle struct {
	// ContractID is the contract of all transitions in the bundle.
	ContractID ContractID

	// Method is the method used to close the seals of the bundle.
	Method dbc.Method

	// Transitions are the transitions of the bundle.
	Transitions []*Transition
}

// BundleID returns the id of the bundle which is the message the contract
// commits to in a multi-protocol commitment.
func (b *TransitionBundle) BundleID() (dbc.Message, error) {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return dbc.Message{}, err
	}

	return dbc.Message(*chainhash.TaggedHash(bundleTag, buf.Bytes())), nil
}

// Inputs returns the deduplicated and ordered outpoints of the seals the
// bundle closes.
func (b *TransitionBundle) Inputs() []wire.OutPoint {
	seen := make(map[wire.OutPoint]struct{})
	var inputs []wire.OutPoint
	for _, t := range b.Transitions {
		for _, in := range t.Inputs {
			if _, ok := seen[in]; ok {
				continue
			}
			seen[in] = struct{}{}
			inputs = append(inputs, in)
		}
	}
	sort.Slice(inputs, func(i, j int) bool {
		return NewOutputSeal(0, inputs[i]).Less(
			NewOutputSeal(0, inputs[j]),
		)
	})

	return inputs
}

func (b *TransitionBundle) encodeRecords() []tlv.Record {
	return []tlv.Record{
		newContractIDRecord(bundleContractIDType, &b.ContractID),
		tlv.MakePrimitiveRecord(
			bundleMethodType, (*uint8)(&b.Method),
		),
		newTransitionsRecord(bundleTransitionsType, &b.Transitions),
	}
}

// Encode encodes the bundle as a TLV stream.
func (b *TransitionBundle) Encode(w io.Writer) error {
	stream, err := tlv.NewStream(b.encodeRecords()...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode decodes a bundle from a TLV stream.
func (b *TransitionBundle) Decode(r io.Reader) error {
	return tlvStrictDecode(r, b.encodeRecords()...)
}

// Batch is the set of bundles that are committed to in a single witness
// transaction.
type Batch struct {
	// Bundles holds one bundle per contract.
	Bundles []*TransitionBundle
}

// CloseMethods returns the set of methods the bundles of the batch use.
func (b *Batch) CloseMethods() dbc.MethodSet {
	var methods dbc.MethodSet
	for _, bundle := range b.Bundles {
		methods = methods.With(bundle.Method)
	}

	return methods
}

// Bundle returns the bundle of the given contract.
func (b *Batch) Bundle(id ContractID) (*TransitionBundle, bool) {
	for _, bundle := range b.Bundles {
		if bundle.ContractID == id {
			return bundle, true
		}
	}

	return nil, false
}

// Anchor binds a set of bundles to a witness transaction.
type Anchor struct {
	// Txid is the id of the witness transaction.
	Txid chainhash.Hash

	// Mpc is the multi-protocol commitment over all bundles.
	Mpc dbc.MpcCommitment

	// Entropy is the entropy used for the multi-protocol commitment.
	Entropy uint64

	// Methods are the methods the commitment was embedded with.
	Methods dbc.MethodSet

	// Tapret is the tapret commitment, if the tapret-first method was
	// used.
	Tapret fn.Option[dbc.TapretCommitment]
}

// Fascia is the set of bundles anchored in a final witness transaction. It
// is consumed into the inventory once.
type Fascia struct {
	// Anchor is the anchor of the bundles.
	Anchor Anchor

	// Bundles are the anchored bundles.
	Bundles []*TransitionBundle
}

// Bundle returns the bundle of the given contract.
func (f *Fascia) Bundle(id ContractID) (*TransitionBundle, bool) {
	for _, bundle := range f.Bundles {
		if bundle.ContractID == id {
			return bundle, true
		}
	}

	return nil, false
}

// Transfer is what a payer hands to the beneficiaries of a single contract:
// the anchored bundle together with the seals it assigned state to.
type Transfer struct {
	// ContractID is the contract the transfer belongs to.
	ContractID ContractID

	// WitnessTxid is the id of the witness transaction.
	WitnessTxid chainhash.Hash

	// WitnessSeals are the beneficiary seals on outputs of the witness
	// transaction.
	WitnessSeals []OutputSeal

	// BlindedSeals are the beneficiary seals given in concealed form.
	BlindedSeals []SecretSeal

	// Bundle is the anchored bundle of the contract.
	Bundle *TransitionBundle

	// Anchor is the anchor of the bundle.
	Anchor Anchor
}

// String returns a short description of the transfer.
func (t *Transfer) String() string {
	return fmt.Sprintf("Transfer(contract=%v, witness=%v, "+
		"witness_seals=%d, blinded_seals=%d)", t.ContractID,
		t.WitnessTxid, len(t.WitnessSeals), len(t.BlindedSeals))
}

package invoice

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrWrongNetwork is returned when the beneficiary address of an
	// invoice belongs to another network than the invoice.
	ErrWrongNetwork = errors.New("beneficiary address is for another " +
		"network")

	// ErrNoBeneficiary is returned when an invoice has no valid
	// beneficiary.
	ErrNoBeneficiary = errors.New("invoice has no beneficiary")
)

// StateKind is the kind of owned state an invoice requests.
type StateKind uint8

const (
	// StateVoid requests no particular state.
	StateVoid StateKind = iota

	// StateAmount requests a quantity of fungible state.
	StateAmount

	// StateData requests non-fungible data state.
	StateData
)

// String returns the name of the state kind.
func (k StateKind) String() string {
	switch k {
	case StateVoid:
		return "void"

	case StateAmount:
		return "amount"

	case StateData:
		return "data"

	default:
		return fmt.Sprintf("UnknownStateKind(%d)", uint8(k))
	}
}

// State is the owned state an invoice requests.
type State struct {
	// Kind is the kind of state requested.
	Kind StateKind

	// Amount is the requested amount of a StateAmount request.
	Amount rgbstd.Amount
}

// AmountState returns a request for the given amount of fungible state.
func AmountState(amount rgbstd.Amount) State {
	return State{
		Kind:   StateAmount,
		Amount: amount,
	}
}

// BeneficiaryKind is the kind of seal a beneficiary receives state on.
type BeneficiaryKind uint8

const (
	// BlindedSeal beneficiaries receive state on a concealed seal they
	// defined themselves.
	BlindedSeal BeneficiaryKind = iota

	// WitnessVout beneficiaries receive state on a new output of the
	// witness transaction paying to their address.
	WitnessVout
)

// Beneficiary is the receiver of the state requested by an invoice.
type Beneficiary struct {
	// Kind is the kind of the beneficiary.
	Kind BeneficiaryKind

	// Seal is the concealed seal of a BlindedSeal beneficiary.
	Seal rgbstd.SecretSeal

	// Address is the address of a WitnessVout beneficiary.
	Address btcutil.Address
}

// NewBlindedBeneficiary creates a beneficiary receiving on a concealed seal.
func NewBlindedBeneficiary(seal rgbstd.SecretSeal) Beneficiary {
	return Beneficiary{
		Kind: BlindedSeal,
		Seal: seal,
	}
}

// NewWitnessBeneficiary creates a beneficiary receiving on a new output
// paying to the given address.
func NewWitnessBeneficiary(addr btcutil.Address) Beneficiary {
	return Beneficiary{
		Kind:    WitnessVout,
		Address: addr,
	}
}

// PkScript returns the output script of a WitnessVout beneficiary.
func (b Beneficiary) PkScript() ([]byte, error) {
	if b.Kind != WitnessVout || b.Address == nil {
		return nil, fmt.Errorf("%w: not a witness beneficiary",
			ErrNoBeneficiary)
	}

	return txscript.PayToAddrScript(b.Address)
}

// String returns the text form of the beneficiary.
func (b Beneficiary) String() string {
	if b.Kind == WitnessVout && b.Address != nil {
		return b.Address.EncodeAddress()
	}

	return b.Seal.String()
}

// Invoice is a request to transfer contract state to a beneficiary. All
// optional fields may be left empty by the receiver, the payer then falls
// back to the defaults of the interface where possible.
type Invoice struct {
	// Contract is the contract the state is requested for.
	Contract fn.Option[rgbstd.ContractID]

	// Iface is the name of the interface to use for the transfer.
	Iface fn.Option[string]

	// Operation is the interface operation to use.
	Operation fn.Option[string]

	// Assignment is the name of the assignment to create.
	Assignment fn.Option[string]

	// State is the requested owned state.
	State State

	// Beneficiary receives the state.
	Beneficiary Beneficiary

	// Expiry is the time after which the invoice must not be paid.
	Expiry fn.Option[time.Time]

	// Network is the network the invoice is for.
	Network *chaincfg.Params
}

// IsExpired returns true if the invoice has an expiry that lies before the
// given time.
func (i *Invoice) IsExpired(now time.Time) bool {
	return fn.MapOptionZ(i.Expiry, func(expiry time.Time) bool {
		return now.After(expiry)
	})
}

// Validate checks that the beneficiary is consistent with the invoice.
func (i *Invoice) Validate() error {
	switch i.Beneficiary.Kind {
	case BlindedSeal:
		return nil

	case WitnessVout:
		if i.Beneficiary.Address == nil {
			return ErrNoBeneficiary
		}
		if i.Network != nil &&
			!i.Beneficiary.Address.IsForNet(i.Network) {

			return fmt.Errorf("%w: %v", ErrWrongNetwork,
				i.Network.Name)
		}

		return nil

	default:
		return fmt.Errorf("%w: unknown beneficiary kind %d",
			ErrNoBeneficiary, i.Beneficiary.Kind)
	}
}

package rgbfreighter

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContract is returned when an invoice doesn't name a contract
	// or a transfer is requested for a contract without an anchored
	// bundle.
	ErrNoContract = errors.New("unspecified contract")

	// ErrNoIface is returned when an invoice doesn't name an interface.
	ErrNoIface = errors.New("unspecified interface")

	// ErrNoOperation is returned when neither the invoice nor the
	// interface define the operation to use.
	ErrNoOperation = errors.New("invoice doesn't specify the operation " +
		"and the interface has no default operation")

	// ErrNoAssignment is returned when neither the invoice nor the
	// interface define the assignment type to use.
	ErrNoAssignment = errors.New("invoice doesn't specify the " +
		"assignment type and the interface has no default assignment")

	// ErrInsufficientState is returned when the owned state doesn't cover
	// the invoiced amount.
	ErrInsufficientState = errors.New("owned state is not sufficient " +
		"to cover invoice")

	// ErrInvoiceExpired is returned when paying an expired invoice.
	ErrInvoiceExpired = errors.New("invoice has expired")

	// ErrTapretRequired is returned when a spent assignment requires a
	// tapret commitment but the transaction has no output to host it.
	ErrTapretRequired = errors.New("tapret commitment requires a " +
		"taproot change output")

	// ErrUnsupported is returned for invoices requesting non-fungible
	// state.
	ErrUnsupported = errors.New("only fungible state is supported by " +
		"invoices")

	// ErrNoBeneficiaryOutput is returned when the transaction doesn't pay
	// to the address of a witness beneficiary.
	ErrNoBeneficiaryOutput = errors.New("transaction doesn't pay to " +
		"beneficiary address")

	// ErrInconclusiveDerivation is returned when the terminal of the
	// tapret host can't be recovered from the PSBT.
	ErrInconclusiveDerivation = errors.New("tapret host has no " +
		"conclusive derivation")

	// ErrMultipleTweaks is returned when the terminal of the tapret host
	// already has a tweak.
	ErrMultipleTweaks = errors.New("tapret host terminal already tweaked")
)

// CompositionError is returned when a transfer PSBT can't be composed. No
// PSBT is returned together with it.
type CompositionError struct {
	Err error
}

// Error returns the error string.
func (e *CompositionError) Error() string {
	return fmt.Sprintf("unable to compose transfer: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CompositionError) Unwrap() error {
	return e.Err
}

// CompletionError is returned when a transfer can't be finalized.
type CompletionError struct {
	Err error
}

// Error returns the error string.
func (e *CompletionError) Error() string {
	return fmt.Sprintf("unable to complete transfer: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CompletionError) Unwrap() error {
	return e.Err
}

// compositionErr wraps err into a CompositionError, optionally classified by
// one of the sentinel causes.
func compositionErr(cause, err error) error {
	switch {
	case cause == nil:
		return &CompositionError{Err: err}

	case err == nil:
		return &CompositionError{Err: cause}

	default:
		return &CompositionError{
			Err: fmt.Errorf("%w: %w", cause, err),
		}
	}
}

// completionErr wraps err into a CompletionError, optionally classified by
// one of the sentinel causes.
func completionErr(cause, err error) error {
	switch {
	case cause == nil:
		return &CompletionError{Err: err}

	case err == nil:
		return &CompletionError{Err: cause}

	default:
		return &CompletionError{
			Err: fmt.Errorf("%w: %w", cause, err),
		}
	}
}

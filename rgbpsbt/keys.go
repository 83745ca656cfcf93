package rgbpsbt

import (
	"errors"
)

// The following keys are used for the RGB specific fields of a PSBT. They
// are stored in the Unknowns of the global map and the output maps, so any
// PSBT library can carry them without knowing what they are.
var (
	// PsbtKeyTypeGlobalRgbComplete marks a PSBT whose inputs and outputs
	// are final. Once set, outputs can no longer be added, removed,
	// reordered or flagged as commitment hosts.
	PsbtKeyTypeGlobalRgbComplete = []byte{0x60}

	// PsbtKeyTypeGlobalRgbBundles holds the encoded transition bundles
	// committed to by the transaction.
	PsbtKeyTypeGlobalRgbBundles = []byte{0x61}

	// PsbtKeyTypeGlobalRgbMpcEntropy holds the 8-byte little endian
	// entropy of the multi-protocol commitment.
	PsbtKeyTypeGlobalRgbMpcEntropy = []byte{0x62}

	// PsbtKeyTypeOutputRgbTapretHost flags the output that hosts the
	// tapret commitment.
	PsbtKeyTypeOutputRgbTapretHost = []byte{0x60}

	// PsbtKeyTypeOutputRgbOpretHost flags the output that hosts the
	// opret commitment.
	PsbtKeyTypeOutputRgbOpretHost = []byte{0x61}

	// PsbtKeyTypeOutputRgbTapretCommitment holds the 33-byte tapret
	// commitment embedded into the host output.
	PsbtKeyTypeOutputRgbTapretCommitment = []byte{0x62}

	// PsbtKeyTypeOutputRgbOpretCommitment holds the 32-byte
	// multi-protocol commitment embedded into the opret host output.
	PsbtKeyTypeOutputRgbOpretCommitment = []byte{0x63}
)

var (
	// ErrKeyNotFound is returned when a custom field is not present in a
	// PSBT.
	ErrKeyNotFound = errors.New("rgbpsbt: key not found")

	// ErrConstructionComplete is returned when a PSBT is modified after
	// its construction was completed.
	ErrConstructionComplete = errors.New("rgbpsbt: construction already " +
		"completed, PSBT can't be modified")

	// ErrConstructionIncomplete is returned when a commitment is embedded
	// into a PSBT whose construction wasn't completed yet.
	ErrConstructionIncomplete = errors.New("rgbpsbt: construction not " +
		"completed")

	// ErrInvalidOutputIndex is returned when an output index is out of
	// range.
	ErrInvalidOutputIndex = errors.New("rgbpsbt: invalid output index")

	// ErrNotTaprootOutput is returned when a non-taproot output is flagged
	// as tapret host.
	ErrNotTaprootOutput = errors.New("rgbpsbt: output is not a taproot " +
		"output")

	// ErrNotOpretOutput is returned when a non OP_RETURN output is
	// flagged as opret host.
	ErrNotOpretOutput = errors.New("rgbpsbt: output is not an OP_RETURN " +
		"output")

	// ErrHostAlreadySet is returned when a second output is flagged as
	// host for the same method.
	ErrHostAlreadySet = errors.New("rgbpsbt: commitment host already set")

	// ErrNoTapretHost is returned when a tapret commitment needs to be
	// embedded but no output is flagged as tapret host.
	ErrNoTapretHost = errors.New("rgbpsbt: no tapret host output")

	// ErrNoOpretHost is returned when an opret commitment needs to be
	// embedded but no output is flagged as opret host.
	ErrNoOpretHost = errors.New("rgbpsbt: no opret host output")

	// ErrNoInternalKey is returned when the tapret host output doesn't
	// carry its taproot internal key.
	ErrNoInternalKey = errors.New("rgbpsbt: tapret host without " +
		"internal key")

	// ErrEmptyBatch is returned when a batch without bundles is embedded.
	ErrEmptyBatch = errors.New("rgbpsbt: batch has no bundles")

	// ErrDuplicateContract is returned when a batch holds two bundles of
	// the same contract.
	ErrDuplicateContract = errors.New("rgbpsbt: duplicate contract in " +
		"batch")

	// ErrInputNotSpent is returned when a bundle closes a seal that isn't
	// spent by the transaction.
	ErrInputNotSpent = errors.New("rgbpsbt: bundle input not spent by " +
		"transaction")

	// ErrAlreadyEmbedded is returned when a batch is embedded into a PSBT
	// that already carries one.
	ErrAlreadyEmbedded = errors.New("rgbpsbt: PSBT already carries a " +
		"commitment")

	// ErrNotEmbedded is returned when a commitment is extracted from a
	// PSBT that doesn't carry one.
	ErrNotEmbedded = errors.New("rgbpsbt: PSBT carries no commitment")

	// ErrCommitmentMismatch is returned when an output script doesn't
	// match the commitment recorded for it.
	ErrCommitmentMismatch = errors.New("rgbpsbt: output script doesn't " +
		"match commitment")

	// ErrInconclusiveDerivation is returned when the terminal of an
	// output can't be recovered unambiguously from its derivation info.
	ErrInconclusiveDerivation = errors.New("rgbpsbt: inconclusive " +
		"terminal derivation")
)

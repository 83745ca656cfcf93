package rgbstd

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
)

var (
	// secretSealTag is the tag used when concealing a blind seal.
	secretSealTag = []byte("urn:lnp-bp:seals:secret")
)

// ContractID is the unique identifier of a contract. It doubles as the
// protocol id of the contract inside a multi-protocol commitment.
type ContractID [32]byte

// String returns the hex encoding of the contract id.
func (c ContractID) String() string {
	return hex.EncodeToString(c[:])
}

// ProtocolID returns the contract id as a multi-protocol commitment id.
func (c ContractID) ProtocolID() dbc.ProtocolID {
	return dbc.ProtocolID(c)
}

// ParseContractID parses a hex encoded contract id.
func ParseContractID(s string) (ContractID, error) {
	var id ContractID

	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid contract id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid contract id length: %d", len(b))
	}
	copy(id[:], b)

	return id, nil
}

// Amount is a quantity of fungible state.
type Amount uint64

// OutputSeal is a seal defined on an existing transaction output, together
// with the method the seal is closed with.
type OutputSeal struct {
	// Method is the commitment method used to close the seal.
	Method dbc.Method

	// Outpoint is the output the seal is defined on.
	Outpoint wire.OutPoint
}

// NewOutputSeal creates a new output seal.
func NewOutputSeal(method dbc.Method, outpoint wire.OutPoint) OutputSeal {
	return OutputSeal{
		Method:   method,
		Outpoint: outpoint,
	}
}

// String returns the text form <method>:<txid>:<vout> of the seal.
func (s OutputSeal) String() string {
	return fmt.Sprintf("%v:%v", s.Method, s.Outpoint)
}

// Less orders seals by outpoint, then by method.
func (s OutputSeal) Less(o OutputSeal) bool {
	if c := bytes.Compare(s.Outpoint.Hash[:], o.Outpoint.Hash[:]); c != 0 {
		return c < 0
	}
	if s.Outpoint.Index != o.Outpoint.Index {
		return s.Outpoint.Index < o.Outpoint.Index
	}

	return s.Method < o.Method
}

// SecretSeal is a concealed blind seal. It is handed out in invoices so the
// payer can assign state to it without learning the outpoint.
type SecretSeal [32]byte

// String returns the text form of the secret seal.
func (s SecretSeal) String() string {
	return "utxob:" + hex.EncodeToString(s[:])
}

// ParseSecretSeal parses the text form of a secret seal.
func ParseSecretSeal(s string) (SecretSeal, error) {
	var seal SecretSeal

	b, err := hex.DecodeString(strings.TrimPrefix(s, "utxob:"))
	if err != nil {
		return seal, fmt.Errorf("invalid secret seal: %w", err)
	}
	if len(b) != len(seal) {
		return seal, fmt.Errorf("invalid secret seal length: %d",
			len(b))
	}
	copy(seal[:], b)

	return seal, nil
}

// BlindSeal is a seal definition known to the receiver only. The blinding
// factor keeps the outpoint hidden from everyone who only sees the concealed
// form.
type BlindSeal struct {
	Method   dbc.Method
	Outpoint wire.OutPoint
	Blinding uint64
}

// Conceal returns the secret seal committing to the blind seal.
func (b BlindSeal) Conceal() SecretSeal {
	var buf [1 + 32 + 4 + 8]byte
	buf[0] = byte(b.Method)
	copy(buf[1:33], b.Outpoint.Hash[:])
	binary.LittleEndian.PutUint32(buf[33:37], b.Outpoint.Index)
	binary.LittleEndian.PutUint64(buf[37:], b.Blinding)

	return SecretSeal(*chainhash.TaggedHash(secretSealTag, buf[:]))
}

// OutputSeal returns the revealed output seal.
func (b BlindSeal) OutputSeal() OutputSeal {
	return NewOutputSeal(b.Method, b.Outpoint)
}

package dbc

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// MpcCommitmentSize is the size of a serialized multi-protocol
	// commitment.
	MpcCommitmentSize = 32
)

var (
	// mpcLeafTag is the tag of the tagged hash of a single protocol leaf.
	mpcLeafTag = []byte("urn:lnp-bp:mpc:leaf")

	// mpcBranchTag is the tag of the tagged hash of an inner node.
	mpcBranchTag = []byte("urn:lnp-bp:mpc:branch")

	// mpcCommitmentTag is the tag of the final commitment hash.
	mpcCommitmentTag = []byte("urn:lnp-bp:mpc:commitment")

	// ErrEmptyMpcTree is returned when a multi-protocol commitment is
	// requested without any protocol messages.
	ErrEmptyMpcTree = errors.New("mpc: no protocol messages to commit to")

	// ErrUnknownProtocol is returned when a message is requested for a
	// protocol that is not part of the tree.
	ErrUnknownProtocol = errors.New("mpc: unknown protocol")
)

// ProtocolID identifies a single protocol (a contract) inside a
// multi-protocol commitment.
type ProtocolID [32]byte

// Message is the 32-byte message a protocol commits to (a bundle id).
type Message [32]byte

// MpcCommitment is the root commitment of a multi-protocol commitment tree.
// This is the payload that ends up in the tapret leaf or the opret output.
type MpcCommitment [MpcCommitmentSize]byte

// String returns the hex encoding of the commitment.
func (c MpcCommitment) String() string {
	return hex.EncodeToString(c[:])
}

// ParseMpcCommitment parses a hex encoded multi-protocol commitment.
func ParseMpcCommitment(s string) (MpcCommitment, error) {
	var c MpcCommitment

	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid mpc commitment hex: %w", err)
	}
	if len(b) != MpcCommitmentSize {
		return c, fmt.Errorf("invalid mpc commitment length: %d",
			len(b))
	}
	copy(c[:], b)

	return c, nil
}

// mpcLeaf is a single protocol/message pair of the tree.
type mpcLeaf struct {
	protocol ProtocolID
	message  Message
}

// hash returns the tagged leaf hash.
func (l mpcLeaf) hash() chainhash.Hash {
	return *chainhash.TaggedHash(mpcLeafTag, l.protocol[:], l.message[:])
}

// MerkleTree is a deterministic multi-protocol commitment tree. The leaves
// are ordered by protocol id so the same set of messages always results in
// the same commitment, independent of the order they were added in.
type MerkleTree struct {
	entropy uint64
	leaves  []mpcLeaf
	root    chainhash.Hash
}

// NewMerkleTree builds a multi-protocol commitment tree over the given
// messages. The entropy is mixed into the final commitment so an observer
// can't brute force the set of protocols from the commitment alone.
func NewMerkleTree(entropy uint64,
	messages map[ProtocolID]Message) (*MerkleTree, error) {

	if len(messages) == 0 {
		return nil, ErrEmptyMpcTree
	}

	leaves := make([]mpcLeaf, 0, len(messages))
	for protocol, msg := range messages {
		leaves = append(leaves, mpcLeaf{
			protocol: protocol,
			message:  msg,
		})
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(
			leaves[i].protocol[:], leaves[j].protocol[:],
		) < 0
	})

	level := make([]chainhash.Hash, len(leaves))
	for i := range leaves {
		level[i] = leaves[i].hash()
	}

	// Reduce the level pairwise until only the root is left. An odd node
	// at the end of a level is carried up unchanged.
	for len(level) > 1 {
		next := make([]chainhash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}

			next = append(next, *chainhash.TaggedHash(
				mpcBranchTag, level[i][:], level[i+1][:],
			))
		}
		level = next
	}

	return &MerkleTree{
		entropy: entropy,
		leaves:  leaves,
		root:    level[0],
	}, nil
}

// Root returns the merkle root of the protocol leaves.
func (t *MerkleTree) Root() chainhash.Hash {
	return t.root
}

// Entropy returns the entropy that was mixed into the commitment.
func (t *MerkleTree) Entropy() uint64 {
	return t.entropy
}

// Width returns the number of protocols committed to.
func (t *MerkleTree) Width() int {
	return len(t.leaves)
}

// Message returns the message the given protocol committed to.
func (t *MerkleTree) Message(protocol ProtocolID) (Message, error) {
	for _, l := range t.leaves {
		if l.protocol == protocol {
			return l.message, nil
		}
	}

	return Message{}, fmt.Errorf("%w: %x", ErrUnknownProtocol, protocol[:])
}

// Commit returns the final multi-protocol commitment.
func (t *MerkleTree) Commit() MpcCommitment {
	var (
		entropy [8]byte
		width   [4]byte
	)
	binary.LittleEndian.PutUint64(entropy[:], t.entropy)
	binary.LittleEndian.PutUint32(width[:], uint32(len(t.leaves)))

	h := chainhash.TaggedHash(
		mpcCommitmentTag, t.root[:], entropy[:], width[:],
	)

	return MpcCommitment(*h)
}

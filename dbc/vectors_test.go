package dbc

import (
	"encoding/hex"
	"testing"

	"github.com/lightninglabs/rgbwallet/internal/test"
	"github.com/stretchr/testify/require"
)

const mpcTestVectorName = "mpc_commitments.json"

type testMessage struct {
	Protocol string `json:"protocol"`
	Message  string `json:"message"`
}

type validMpcTestCase struct {
	Comment          string         `json:"comment"`
	Entropy          uint64         `json:"entropy"`
	Messages         []*testMessage `json:"messages"`
	Root             string         `json:"root"`
	Commitment       string         `json:"commitment"`
	TapretLeafScript string         `json:"tapret_leaf_script"`
	TapretLeafHash   string         `json:"tapret_leaf_hash"`
}

type mpcTestVectors struct {
	ValidTestCases []*validMpcTestCase `json:"valid_test_cases"`
}

func decodeHash32(t *testing.T, s string) [32]byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	require.Len(t, b, 32)

	var h [32]byte
	copy(h[:], b)

	return h
}

// TestMpcCommitmentVectors checks the multi-protocol commitment and the
// tapret leaf against the stored test vectors.
func TestMpcCommitmentVectors(t *testing.T) {
	t.Parallel()

	var vectors mpcTestVectors
	test.ParseTestVectors(t, mpcTestVectorName, &vectors)
	require.NotEmpty(t, vectors.ValidTestCases)

	for _, tc := range vectors.ValidTestCases {
		t.Run(tc.Comment, func(t *testing.T) {
			messages := make(map[ProtocolID]Message)
			for _, m := range tc.Messages {
				protocol := decodeHash32(t, m.Protocol)
				messages[protocol] = decodeHash32(t, m.Message)
			}

			tree, err := NewMerkleTree(tc.Entropy, messages)
			require.NoError(t, err)
			require.Equal(t, tc.Root, tree.Root().String())
			require.Equal(t, tc.Commitment, tree.Commit().String())

			tapret := NewTapretCommitment(tree.Commit())
			require.Equal(
				t, tc.TapretLeafScript,
				hex.EncodeToString(tapret.LeafScript()),
			)
			require.Equal(
				t, tc.TapretLeafHash,
				tapret.TapscriptRoot().String(),
			)
		})
	}
}

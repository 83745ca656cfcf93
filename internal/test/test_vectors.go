package test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ParseTestVectors reads the JSON test vectors from the named file in the
// testdata directory into target.
func ParseTestVectors(t testing.TB, fileName string, target any) {
	fileBytes, err := os.ReadFile(filepath.Join("testdata", fileName))
	require.NoError(t, err)

	err = json.Unmarshal(fileBytes, target)
	require.NoError(t, err)
}


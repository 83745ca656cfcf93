package test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// RunUnknownTypeTest is a generic test for the behavior of a TLV decoding
// function on unknown types. The known item is encoded with an unknown even
// type appended, which must fail to decode with the given error. It is then
// encoded with an unknown odd type appended, which must be skipped and decode
// to the known item again.
func RunUnknownTypeTest[T any](t *testing.T, knownItem T,
	encode func(*bytes.Buffer, T) error,
	decode func(*bytes.Buffer) (T, error), unknownErr error) {

	var buf bytes.Buffer
	err := encode(&buf, knownItem)
	require.NoError(t, err)

	// With the known item now encoded, we can add an unknown even type to
	// the encoded bytes. That should provoke an error when parsed again.
	unknownTypeValue := []byte("I could be anything, really")
	unknownEvenType := append([]byte{
		byte(40),                    // Type 40 is unknown.
		byte(len(unknownTypeValue)), // Length of the value.
	}, unknownTypeValue...)
	buf.Write(unknownEvenType)

	_, err = decode(&buf)
	require.ErrorIs(t, err, unknownErr)
	require.ErrorContains(t, err, "40")

	// An unknown odd type on the other hand must be skipped.
	unknownOddType := append([]byte{
		byte(39),                    // Type 39 is unknown.
		byte(len(unknownTypeValue)), // Length of the value.
	}, unknownTypeValue...)
	buf.Reset()

	err = encode(&buf, knownItem)
	require.NoError(t, err)
	buf.Write(unknownOddType)

	parsedItem, err := decode(&buf)
	require.NoError(t, err)
	require.Equal(t, knownItem, parsedItem)
}

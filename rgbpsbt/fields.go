package rgbpsbt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

var (
	// trueAsBytes is the value of a set boolean flag.
	trueAsBytes = []byte{0x01}
)

// customPsbtField is a type alias psbt.Unknown to make it more clear that we
// are using the Unknown struct to represent a custom PSBT field.
type customPsbtField = psbt.Unknown

// findCustomField returns the custom field with the given key, if present.
func findCustomField(customFields []*customPsbtField,
	key []byte) (*customPsbtField, error) {

	for _, customField := range customFields {
		if bytes.Equal(customField.Key, key) {
			return customField, nil
		}
	}

	return nil, fmt.Errorf("%w: key %x not found in list of unknowns",
		ErrKeyNotFound, key)
}

// hasCustomField returns true if the custom field with the given key is
// present.
func hasCustomField(customFields []*customPsbtField, key []byte) bool {
	_, err := findCustomField(customFields, key)
	return err == nil
}

// setCustomField adds the custom field or replaces the value of an existing
// field with the same key.
func setCustomField(customFields []*customPsbtField, key,
	value []byte) []*customPsbtField {

	for _, customField := range customFields {
		if bytes.Equal(customField.Key, key) {
			customField.Value = bytes.Clone(value)
			return customFields
		}
	}

	return append(customFields, &customPsbtField{
		Key:   bytes.Clone(key),
		Value: bytes.Clone(value),
	})
}

// uint64Value encodes a little endian 8-byte field value.
func uint64Value(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)

	return b[:]
}

// parseUint64Value decodes a little endian 8-byte field value.
func parseUint64Value(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid 8-byte field length: %d", len(b))
	}

	return binary.LittleEndian.Uint64(b), nil
}

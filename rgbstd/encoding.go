package rgbstd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

var (
	// ErrTooManyItems is returned when a decoded list is longer than we
	// are willing to allocate.
	ErrTooManyItems = errors.New("too many items in encoded list")

	// ErrByteSliceTooLarge is returned when a decoded byte slice is
	// larger than we are willing to allocate.
	ErrByteSliceTooLarge = errors.New("byte slice too large")

	// ErrUnknownRequiredType is returned when a TLV stream holds an even
	// type we don't know of.
	ErrUnknownRequiredType = errors.New("unknown required type")
)

// tlvStrictDecode decodes the reader into a stream of the given records.
// Unknown odd types are skipped, an unknown even type fails the decoding.
func tlvStrictDecode(r io.Reader, records ...tlv.Record) error {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	parsedTypes, err := stream.DecodeWithParsedTypes(r)
	if err != nil {
		return err
	}

	known := fn.NewSet[tlv.Type]()
	for _, record := range records {
		known.Add(record.Type())
	}
	for typ := range parsedTypes {
		if typ%2 == 0 && !known.Contains(typ) {
			return fmt.Errorf("%w: %d", ErrUnknownRequiredType, typ)
		}
	}

	return nil
}

// maxByteSliceLen caps every length prefixed byte slice we decode.
const maxByteSliceLen = (2 << 24) - 1

func writeVarBytes(w io.Writer, b []byte, buf *[8]byte) error {
	if err := tlv.WriteVarInt(w, uint64(len(b)), buf); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader, buf *[8]byte) ([]byte, error) {
	l, err := tlv.ReadVarInt(r, buf)
	if err != nil {
		return nil, err
	}
	if l > maxByteSliceLen {
		return nil, fmt.Errorf("%w: %v", ErrByteSliceTooLarge, l)
	}

	var b []byte
	if err := tlv.DVarBytes(r, &b, buf, l); err != nil {
		return nil, err
	}

	return b, nil
}

func readListLen(r io.Reader, buf *[8]byte) (uint64, error) {
	n, err := tlv.ReadVarInt(r, buf)
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %v", ErrTooManyItems, n)
	}

	return n, nil
}

func stringEncoder(w io.Writer, val any, buf *[8]byte) error {
	if t, ok := val.(*string); ok {
		b := []byte(*t)
		return tlv.EVarBytes(w, &b, buf)
	}
	return tlv.NewTypeForEncodingErr(val, "*string")
}

func stringDecoder(r io.Reader, val any, buf *[8]byte, l uint64) error {
	if typ, ok := val.(*string); ok {
		if l > maxByteSliceLen {
			return fmt.Errorf("%w: %v", ErrByteSliceTooLarge, l)
		}

		var b []byte
		if err := tlv.DVarBytes(r, &b, buf, l); err != nil {
			return err
		}
		*typ = string(b)
		return nil
	}
	return tlv.NewTypeForDecodingErr(val, "*string", l, l)
}

func outPointsEncoder(w io.Writer, val any, buf *[8]byte) error {
	if t, ok := val.(*[]wire.OutPoint); ok {
		if err := tlv.WriteVarInt(w, uint64(len(*t)), buf); err != nil {
			return err
		}
		for _, op := range *t {
			hash := [32]byte(op.Hash)
			if err := tlv.EBytes32(w, &hash, buf); err != nil {
				return err
			}
			if err := tlv.EUint32T(w, op.Index, buf); err != nil {
				return err
			}
		}
		return nil
	}
	return tlv.NewTypeForEncodingErr(val, "*[]wire.OutPoint")
}

func outPointsDecoder(r io.Reader, val any, buf *[8]byte, l uint64) error {
	if typ, ok := val.(*[]wire.OutPoint); ok {
		n, err := readListLen(r, buf)
		if err != nil {
			return err
		}

		outpoints := make([]wire.OutPoint, 0, n)
		for i := uint64(0); i < n; i++ {
			var hash [32]byte
			if err := tlv.DBytes32(r, &hash, buf, 32); err != nil {
				return err
			}
			var index uint32
			if err := tlv.DUint32(r, &index, buf, 4); err != nil {
				return err
			}
			outpoints = append(outpoints, wire.OutPoint{
				Hash:  chainhash.Hash(hash),
				Index: index,
			})
		}
		*typ = outpoints
		return nil
	}
	return tlv.NewTypeForDecodingErr(val, "*[]wire.OutPoint", l, l)
}

func assignmentsEncoder(w io.Writer, val any, buf *[8]byte) error {
	if t, ok := val.(*[]Assignment); ok {
		if err := tlv.WriteVarInt(w, uint64(len(*t)), buf); err != nil {
			return err
		}
		for _, a := range *t {
			if err := writeVarBytes(w, []byte(a.Name), buf); err != nil {
				return err
			}
			err := tlv.EUint8T(w, uint8(a.Seal.Kind), buf)
			if err != nil {
				return err
			}
			err = tlv.EUint8T(w, uint8(a.Seal.Method), buf)
			if err != nil {
				return err
			}
			if err := tlv.EUint32T(w, a.Seal.Vout, buf); err != nil {
				return err
			}
			secret := [32]byte(a.Seal.Secret)
			if err := tlv.EBytes32(w, &secret, buf); err != nil {
				return err
			}
			err = tlv.EUint64T(w, uint64(a.Amount), buf)
			if err != nil {
				return err
			}
		}
		return nil
	}
	return tlv.NewTypeForEncodingErr(val, "*[]Assignment")
}

func assignmentsDecoder(r io.Reader, val any, buf *[8]byte, l uint64) error {
	if typ, ok := val.(*[]Assignment); ok {
		n, err := readListLen(r, buf)
		if err != nil {
			return err
		}

		assignments := make([]Assignment, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := readVarBytes(r, buf)
			if err != nil {
				return err
			}

			var (
				kind, method uint8
				vout         uint32
				secret       [32]byte
				amount       uint64
			)
			if err := tlv.DUint8(r, &kind, buf, 1); err != nil {
				return err
			}
			if err := tlv.DUint8(r, &method, buf, 1); err != nil {
				return err
			}
			if err := tlv.DUint32(r, &vout, buf, 4); err != nil {
				return err
			}
			if err := tlv.DBytes32(r, &secret, buf, 32); err != nil {
				return err
			}
			if err := tlv.DUint64(r, &amount, buf, 8); err != nil {
				return err
			}

			assignments = append(assignments, Assignment{
				Name: string(name),
				Seal: AssignedSeal{
					Kind:   SealKind(kind),
					Method: dbc.Method(method),
					Vout:   vout,
					Secret: secret,
				},
				Amount: Amount(amount),
			})
		}
		*typ = assignments
		return nil
	}
	return tlv.NewTypeForDecodingErr(val, "*[]Assignment", l, l)
}

func transitionsEncoder(w io.Writer, val any, buf *[8]byte) error {
	if t, ok := val.(*[]*Transition); ok {
		if err := tlv.WriteVarInt(w, uint64(len(*t)), buf); err != nil {
			return err
		}
		for _, transition := range *t {
			var streamBuf bytes.Buffer
			if err := transition.Encode(&streamBuf); err != nil {
				return err
			}
			err := writeVarBytes(w, streamBuf.Bytes(), buf)
			if err != nil {
				return err
			}
		}
		return nil
	}
	return tlv.NewTypeForEncodingErr(val, "*[]*Transition")
}

func transitionsDecoder(r io.Reader, val any, buf *[8]byte, l uint64) error {
	if typ, ok := val.(*[]*Transition); ok {
		n, err := readListLen(r, buf)
		if err != nil {
			return err
		}

		transitions := make([]*Transition, 0, n)
		for i := uint64(0); i < n; i++ {
			streamBytes, err := readVarBytes(r, buf)
			if err != nil {
				return err
			}

			var transition Transition
			err = transition.Decode(bytes.NewReader(streamBytes))
			if err != nil {
				return err
			}
			transitions = append(transitions, &transition)
		}
		*typ = transitions
		return nil
	}
	return tlv.NewTypeForDecodingErr(val, "*[]*Transition", l, l)
}

// EncodeBundles encodes a list of bundles, used to carry a batch inside a
// PSBT.
func EncodeBundles(bundles []*TransitionBundle) ([]byte, error) {
	var (
		w   bytes.Buffer
		buf [8]byte
	)
	if err := tlv.WriteVarInt(&w, uint64(len(bundles)), &buf); err != nil {
		return nil, err
	}
	for _, bundle := range bundles {
		var streamBuf bytes.Buffer
		if err := bundle.Encode(&streamBuf); err != nil {
			return nil, err
		}
		if err := writeVarBytes(&w, streamBuf.Bytes(), &buf); err != nil {
			return nil, err
		}
	}

	return w.Bytes(), nil
}

// DecodeBundles decodes a list of bundles encoded with EncodeBundles.
func DecodeBundles(b []byte) ([]*TransitionBundle, error) {
	var (
		r   = bytes.NewReader(b)
		buf [8]byte
	)
	n, err := readListLen(r, &buf)
	if err != nil {
		return nil, err
	}

	bundles := make([]*TransitionBundle, 0, n)
	for i := uint64(0); i < n; i++ {
		streamBytes, err := readVarBytes(r, &buf)
		if err != nil {
			return nil, err
		}

		var bundle TransitionBundle
		err = bundle.Decode(bytes.NewReader(streamBytes))
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, &bundle)
	}

	return bundles, nil
}

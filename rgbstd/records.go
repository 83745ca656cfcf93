package rgbstd

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	transitionContractIDType  tlv.Type = 0
	transitionOperationType   tlv.Type = 2
	transitionInputsType      tlv.Type = 4
	transitionAssignmentsType tlv.Type = 6

	bundleContractIDType  tlv.Type = 0
	bundleMethodType      tlv.Type = 2
	bundleTransitionsType tlv.Type = 4
)

func newContractIDRecord(typ tlv.Type, id *ContractID) tlv.Record {
	return tlv.MakePrimitiveRecord(typ, (*[32]byte)(id))
}

func newStringRecord(typ tlv.Type, s *string) tlv.Record {
	sizeFunc := func() uint64 {
		return uint64(len(*s))
	}
	return tlv.MakeDynamicRecord(
		typ, s, sizeFunc, stringEncoder, stringDecoder,
	)
}

func newOutPointsRecord(typ tlv.Type, outpoints *[]wire.OutPoint) tlv.Record {
	sizeFunc := func() uint64 {
		var buf bytes.Buffer
		err := outPointsEncoder(&buf, outpoints, &[8]byte{})
		if err != nil {
			panic(err)
		}
		return uint64(buf.Len())
	}
	return tlv.MakeDynamicRecord(
		typ, outpoints, sizeFunc, outPointsEncoder, outPointsDecoder,
	)
}

func newAssignmentsRecord(typ tlv.Type, assignments *[]Assignment) tlv.Record {
	sizeFunc := func() uint64 {
		var buf bytes.Buffer
		err := assignmentsEncoder(&buf, assignments, &[8]byte{})
		if err != nil {
			panic(err)
		}
		return uint64(buf.Len())
	}
	return tlv.MakeDynamicRecord(
		typ, assignments, sizeFunc, assignmentsEncoder,
		assignmentsDecoder,
	)
}

func newTransitionsRecord(typ tlv.Type,
	transitions *[]*Transition) tlv.Record {

	sizeFunc := func() uint64 {
		var buf bytes.Buffer
		err := transitionsEncoder(&buf, transitions, &[8]byte{})
		if err != nil {
			panic(err)
		}
		return uint64(buf.Len())
	}
	return tlv.MakeDynamicRecord(
		typ, transitions, sizeFunc, transitionsEncoder,
		transitionsDecoder,
	)
}

package lh5

import (
	"encoding/binary"

	"github.com/robert-malhotra/go-lh5/internal/container"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Form type tags written by the ntuple producer.
const (
	FormString = "string"
	FormInt    = "int"
	FormFloat  = "float"
	FormDouble = "double"
)

// LGDO element classes of array<1>{...} columns.
const (
	ClassString = "string"
	ClassReal   = "real"
)

// FormToDatatype returns the storage type of a form tag.
func FormToDatatype(form string) (*message.Datatype, error) {
	switch form {
	case FormString:
		return container.VarLenString(), nil
	case FormInt:
		return message.NewFixedPointDatatype(4, true, message.OrderLE), nil
	case FormFloat:
		return message.NewFloatDatatype(4, message.OrderLE), nil
	case FormDouble:
		return message.NewFloatDatatype(8, message.OrderLE), nil
	}
	return nil, ErrUnknownForm.New(form)
}

// DatatypeToForm returns the form tag describing a storage type.
func DatatypeToForm(dt *message.Datatype) (string, error) {
	switch {
	case dt.IsString():
		return FormString, nil
	case dt.Class == message.ClassFixedPoint:
		return FormInt, nil
	case dt.Class == message.ClassFloatPoint:
		if dt.Size == 8 {
			return FormDouble, nil
		}
		return FormFloat, nil
	}
	return "", ErrUnknownClass.New(dt.Class)
}

// DatatypeToLGDO returns the LGDO element class of a storage type.
func DatatypeToLGDO(dt *message.Datatype) (string, error) {
	switch {
	case dt.IsString():
		return ClassString, nil
	case dt.Class == message.ClassFixedPoint, dt.Class == message.ClassFloatPoint:
		return ClassReal, nil
	}
	return "", ErrUnknownClass.New(dt.Class)
}

// scalarUint32 reads a single little-endian uint32 element.
func scalarUint32(ds *container.Dataset) (uint32, bool) {
	dt := ds.Type
	if dt.Class != message.ClassFixedPoint || dt.Signed || dt.Size != 4 || dt.ByteOrder != message.OrderLE {
		return 0, false
	}
	if ds.NumElements() != 1 || len(ds.Data) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(ds.Data), true
}

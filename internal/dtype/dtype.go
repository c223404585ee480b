package dtype

import (
	"fmt"
	"reflect"
)

// Class is the element class of a column.
type Class uint8

const (
	ClassInteger Class = 1
	ClassFloat   Class = 2
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Type describes the element type of a column. It is stored in the catalog.
type Type struct {
	Class  Class `cbor:"1,keyasint"`
	Size   uint8 `cbor:"2,keyasint"`
	Signed bool  `cbor:"3,keyasint,omitempty"`
}

// Predefined element types.
var (
	Int32   = Type{Class: ClassInteger, Size: 4, Signed: true}
	Int64   = Type{Class: ClassInteger, Size: 8, Signed: true}
	Uint32  = Type{Class: ClassInteger, Size: 4}
	Uint64  = Type{Class: ClassInteger, Size: 8}
	Float32 = Type{Class: ClassFloat, Size: 4}
	Float64 = Type{Class: ClassFloat, Size: 8}
)

func (t Type) String() string {
	switch t.Class {
	case ClassInteger:
		if t.Signed {
			return fmt.Sprintf("int%d", int(t.Size)*8)
		}
		return fmt.Sprintf("uint%d", int(t.Size)*8)
	case ClassFloat:
		return fmt.Sprintf("float%d", int(t.Size)*8)
	default:
		return fmt.Sprintf("%v/%d", t.Class, t.Size)
	}
}

// Validate reports whether the type is one this package can encode.
func (t Type) Validate() error {
	switch t.Class {
	case ClassInteger:
		if t.Size == 1 || t.Size == 2 || t.Size == 4 || t.Size == 8 {
			return nil
		}
	case ClassFloat:
		if t.Size == 4 || t.Size == 8 {
			return nil
		}
	}
	return fmt.Errorf("unsupported element type %v", t)
}

// GoType returns the Go reflect.Type that corresponds to the element type.
func GoType(t Type) (reflect.Type, error) {
	switch t.Class {
	case ClassInteger:
		switch t.Size {
		case 1:
			if t.Signed {
				return reflect.TypeOf(int8(0)), nil
			}
			return reflect.TypeOf(uint8(0)), nil
		case 2:
			if t.Signed {
				return reflect.TypeOf(int16(0)), nil
			}
			return reflect.TypeOf(uint16(0)), nil
		case 4:
			if t.Signed {
				return reflect.TypeOf(int32(0)), nil
			}
			return reflect.TypeOf(uint32(0)), nil
		case 8:
			if t.Signed {
				return reflect.TypeOf(int64(0)), nil
			}
			return reflect.TypeOf(uint64(0)), nil
		}
	case ClassFloat:
		switch t.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
	}
	return nil, fmt.Errorf("unsupported element type %v", t)
}

// FromGo returns the element type matching a Go slice element kind.
func FromGo(v interface{}) (Type, error) {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return Type{}, fmt.Errorf("nil value")
	}
	if rt.Kind() == reflect.Slice || rt.Kind() == reflect.Array || rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	switch rt.Kind() {
	case reflect.Int8:
		return Type{Class: ClassInteger, Size: 1, Signed: true}, nil
	case reflect.Int16:
		return Type{Class: ClassInteger, Size: 2, Signed: true}, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Int64, reflect.Int:
		return Int64, nil
	case reflect.Uint8:
		return Type{Class: ClassInteger, Size: 1}, nil
	case reflect.Uint16:
		return Type{Class: ClassInteger, Size: 2}, nil
	case reflect.Uint32:
		return Uint32, nil
	case reflect.Uint64, reflect.Uint:
		return Uint64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	default:
		return Type{}, fmt.Errorf("no element type for Go kind %v", rt.Kind())
	}
}

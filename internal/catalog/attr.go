package catalog

import (
	"fmt"
)

// AttrKind tags the value held by an Attr.
type AttrKind uint8

const (
	AttrString AttrKind = iota + 1
	AttrInt
	AttrFloat
	AttrStrings
	AttrInts
	AttrFloats
)

// Attr is a small typed value attached to a group.
type Attr struct {
	Kind    AttrKind  `cbor:"1,keyasint"`
	Strings []string  `cbor:"2,keyasint,omitempty"`
	Ints    []int64   `cbor:"3,keyasint,omitempty"`
	Floats  []float64 `cbor:"4,keyasint,omitempty"`
}

// NewAttr converts a Go value to an Attr.
// Accepted: string, int, int32, int64, uint32, float64, []string, []int64,
// []float64, []int.
func NewAttr(value interface{}) (Attr, error) {
	switch v := value.(type) {
	case string:
		return Attr{Kind: AttrString, Strings: []string{v}}, nil
	case int:
		return Attr{Kind: AttrInt, Ints: []int64{int64(v)}}, nil
	case int32:
		return Attr{Kind: AttrInt, Ints: []int64{int64(v)}}, nil
	case int64:
		return Attr{Kind: AttrInt, Ints: []int64{v}}, nil
	case uint32:
		return Attr{Kind: AttrInt, Ints: []int64{int64(v)}}, nil
	case float64:
		return Attr{Kind: AttrFloat, Floats: []float64{v}}, nil
	case []string:
		return Attr{Kind: AttrStrings, Strings: append([]string{}, v...)}, nil
	case []int64:
		return Attr{Kind: AttrInts, Ints: append([]int64{}, v...)}, nil
	case []int:
		ints := make([]int64, len(v))
		for i, x := range v {
			ints[i] = int64(x)
		}
		return Attr{Kind: AttrInts, Ints: ints}, nil
	case []float64:
		return Attr{Kind: AttrFloats, Floats: append([]float64{}, v...)}, nil
	default:
		return Attr{}, fmt.Errorf("unsupported attribute type %T", value)
	}
}

// Value returns the Go value held by the attribute.
func (a Attr) Value() interface{} {
	switch a.Kind {
	case AttrString:
		if len(a.Strings) == 0 {
			return ""
		}
		return a.Strings[0]
	case AttrInt:
		if len(a.Ints) == 0 {
			return int64(0)
		}
		return a.Ints[0]
	case AttrFloat:
		if len(a.Floats) == 0 {
			return float64(0)
		}
		return a.Floats[0]
	case AttrStrings:
		return append([]string{}, a.Strings...)
	case AttrInts:
		return append([]int64{}, a.Ints...)
	case AttrFloats:
		return append([]float64{}, a.Floats...)
	default:
		return nil
	}
}

package dtype

import (
	"fmt"
	"math"
	"reflect"

	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
)

// Encode converts a slice of Go numbers to little-endian bytes of type t.
// Values are converted to the column type, so an []int can fill an int32
// column.
func Encode(t Type, src interface{}) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	// Fast paths for the slices the box structure columns use.
	switch v := src.(type) {
	case []float64:
		if t == Float64 {
			out := make([]byte, 8*len(v))
			for i, f := range v {
				binpkg.Order.PutUint64(out[8*i:], math.Float64bits(f))
			}
			return out, nil
		}
	case []int32:
		if t == Int32 {
			out := make([]byte, 4*len(v))
			for i, x := range v {
				binpkg.Order.PutUint32(out[4*i:], uint32(x))
			}
			return out, nil
		}
	case []uint64:
		if t == Uint64 {
			out := make([]byte, 8*len(v))
			for i, x := range v {
				binpkg.Order.PutUint64(out[8*i:], x)
			}
			return out, nil
		}
	}

	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Ptr {
		srcVal = srcVal.Elem()
	}
	if srcVal.Kind() != reflect.Slice && srcVal.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot encode %T: want a slice", src)
	}

	size := int(t.Size)
	n := srcVal.Len()
	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		out := data[i*size : (i+1)*size]
		switch elem.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			putInt(t, out, elem.Int())
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			putUint(t, out, elem.Uint())
		case reflect.Float32, reflect.Float64:
			putFloat(t, out, elem.Float())
		default:
			return nil, fmt.Errorf("cannot encode %v as %v", elem.Kind(), t)
		}
	}

	return data, nil
}

func putInt(t Type, out []byte, v int64) {
	if t.Class == ClassFloat {
		putFloat(t, out, float64(v))
		return
	}
	putUint(t, out, uint64(v))
}

func putUint(t Type, out []byte, v uint64) {
	if t.Class == ClassFloat {
		putFloat(t, out, float64(v))
		return
	}
	switch t.Size {
	case 1:
		out[0] = byte(v)
	case 2:
		binpkg.Order.PutUint16(out, uint16(v))
	case 4:
		binpkg.Order.PutUint32(out, uint32(v))
	case 8:
		binpkg.Order.PutUint64(out, v)
	}
}

func putFloat(t Type, out []byte, v float64) {
	if t.Class == ClassInteger {
		if t.Signed {
			putUint(t, out, uint64(int64(v)))
		} else {
			putUint(t, out, uint64(v))
		}
		return
	}
	if t.Size == 4 {
		binpkg.Order.PutUint32(out, math.Float32bits(float32(v)))
		return
	}
	binpkg.Order.PutUint64(out, math.Float64bits(v))
}

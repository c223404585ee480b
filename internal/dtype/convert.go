package dtype

import (
	"fmt"
	"math"
	"reflect"

	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
)

// Convert converts raw column bytes to Go values.
// The dest parameter must be a pointer to a slice; it is resized to n.
func Convert(t Type, data []byte, n uint64, dest interface{}) error {
	if err := t.Validate(); err != nil {
		return err
	}
	size := int(t.Size)
	if need := int(n) * size; need > len(data) {
		return fmt.Errorf("not enough data: need %d bytes, have %d", need, len(data))
	}

	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to a slice, got %T", dest)
	}
	slice := destVal.Elem()
	if slice.Len() != int(n) {
		slice.Set(reflect.MakeSlice(slice.Type(), int(n), int(n)))
	}
	elemKind := slice.Type().Elem().Kind()

	for i := 0; i < int(n); i++ {
		raw := data[i*size : (i+1)*size]
		target := slice.Index(i)

		switch t.Class {
		case ClassFloat:
			f := readFloat(raw)
			switch elemKind {
			case reflect.Float32, reflect.Float64:
				target.SetFloat(f)
			case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
				target.SetInt(int64(f))
			case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
				target.SetUint(uint64(f))
			default:
				return fmt.Errorf("cannot convert %v to %v", t, elemKind)
			}
		case ClassInteger:
			u := readUint(raw)
			switch elemKind {
			case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
				target.SetInt(signExtend(u, size, t.Signed))
			case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
				target.SetUint(u)
			case reflect.Float32, reflect.Float64:
				if t.Signed {
					target.SetFloat(float64(signExtend(u, size, true)))
				} else {
					target.SetFloat(float64(u))
				}
			default:
				return fmt.Errorf("cannot convert %v to %v", t, elemKind)
			}
		}
	}

	return nil
}

// ConvertToSlice converts raw column bytes to a newly allocated slice.
func ConvertToSlice[T any](t Type, data []byte, n uint64) ([]T, error) {
	var result []T
	if err := Convert(t, data, n, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func readUint(raw []byte) uint64 {
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binpkg.Order.Uint16(raw))
	case 4:
		return uint64(binpkg.Order.Uint32(raw))
	default:
		return binpkg.Order.Uint64(raw)
	}
}

func readFloat(raw []byte) float64 {
	if len(raw) == 4 {
		return float64(math.Float32frombits(binpkg.Order.Uint32(raw)))
	}
	return math.Float64frombits(binpkg.Order.Uint64(raw))
}

func signExtend(u uint64, size int, signed bool) int64 {
	if !signed || size == 8 {
		return int64(u)
	}
	shift := uint(64 - 8*size)
	return int64(u<<shift) >> shift
}

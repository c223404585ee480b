// Package dtype describes column element types and converts between Go
// slices and their little-endian on-disk bytes.
//
// # Type Mapping
//
//	Class    | Size    | Go Type
//	---------|---------|---------------------------------------
//	Integer  | 1/2/4/8 | int8..int64 or uint8..uint64 by Signed
//	Float    | 4/8     | float32 or float64
//
// Conversion between classes is allowed in both directions, so a column of
// int32 may be read into []int and a []int may be written to an int64
// column.
//
// # Key Functions
//
//   - [Encode]: Converts a Go slice to column bytes
//   - [Convert]: Converts column bytes into a Go slice
//   - [ConvertToSlice]: Generic wrapper around Convert
//   - [FromGo]: Picks the element type for a Go slice
//   - [GoType]: Returns the reflect.Type for an element type
package dtype

// Package mderrors defines the error taxonomy shared by the box tree
// persistence packages.
//
// Every fatal failure surfaced by the store, the codec and the container
// adapter wraps exactly one of these sentinels, so callers classify with
// errors.Is and still see the underlying cause in the message.
package mderrors

import "errors"

var (
	// ErrFileAccess reports a backing file that cannot be opened or created,
	// including a read-only open of a path that does not exist.
	ErrFileAccess = errors.New("file access error")

	// ErrFormat reports a missing group or column, a dimension count that
	// disagrees with stored extents, a mismatched event type, or a tree
	// whose child ranges break the partition invariant.
	ErrFormat = errors.New("format error")

	// ErrDataIntegrity reports a structure that read back with zero boxes
	// or with column lengths that disagree with the box count.
	ErrDataIntegrity = errors.New("data integrity error")
)

// IsFatal reports whether err belongs to the taxonomy above.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFileAccess) ||
		errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrDataIntegrity)
}

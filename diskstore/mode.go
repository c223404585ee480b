package diskstore

import "strings"

// Mode selects how Open treats the backing file.
type Mode int

const (
	// ReadOnly requires the file to exist.
	ReadOnly Mode = iota
	// ReadWrite creates the file when it is missing.
	ReadWrite
)

// ParseMode maps a mode string to a Mode. Any string containing w or W is
// read-write; everything else is read-only.
func ParseMode(s string) Mode {
	if strings.ContainsAny(s, "wW") {
		return ReadWrite
	}
	return ReadOnly
}

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

package value

import (
	"bytes"
	"strings"
)

// Collation is a text collating sequence.
type Collation int

const (
	Binary Collation = iota
	NoCase
	RTrim
)

// Collations lists every collating sequence.
var Collations = []Collation{Binary, NoCase, RTrim}

func (c Collation) String() string {
	switch c {
	case NoCase:
		return "NOCASE"
	case RTrim:
		return "RTRIM"
	default:
		return "BINARY"
	}
}

// ParseCollation maps a collation name to its sequence.
func ParseCollation(name string) (Collation, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "BINARY", "":
		return Binary, true
	case "NOCASE":
		return NoCase, true
	case "RTRIM":
		return RTrim, true
	}
	return Binary, false
}

func (c Collation) key(s string) []byte {
	switch c {
	case NoCase:
		return asciiLower([]byte(s))
	case RTrim:
		return []byte(strings.TrimRight(s, " "))
	default:
		return []byte(s)
	}
}

// Compare orders two strings under the collation.
func (c Collation) Compare(a, b string) int {
	return bytes.Compare(c.key(a), c.key(b))
}

// Equal reports whether two strings are equal under the collation.
func (c Collation) Equal(a, b string) bool {
	return c.Compare(a, b) == 0
}

func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		out[i] = ch
	}
	return out
}

// CollationSource exposes the collations attached to an expression.
type CollationSource interface {
	ExplicitCollation() (Collation, bool)
	ImplicitCollation() (Collation, bool)
}

// ResolveCollation picks the effective collation of a binary operation:
// explicit left, explicit right, implicit left, implicit right, then BINARY.
func ResolveCollation(left, right CollationSource) Collation {
	if c, ok := left.ExplicitCollation(); ok {
		return c
	}
	if c, ok := right.ExplicitCollation(); ok {
		return c
	}
	if c, ok := left.ImplicitCollation(); ok {
		return c
	}
	if c, ok := right.ImplicitCollation(); ok {
		return c
	}
	return Binary
}

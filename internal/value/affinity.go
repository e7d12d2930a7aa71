package value

import (
	"regexp"
	"strconv"
	"strings"
)

// Affinity is the preferred storage class of a column or expression.
type Affinity int

const (
	AffinityNone Affinity = iota
	AffinityInteger
	AffinityReal
	AffinityNumeric
	AffinityText
	AffinityBlob
)

func (a Affinity) String() string {
	switch a {
	case AffinityInteger:
		return "INTEGER"
	case AffinityReal:
		return "REAL"
	case AffinityNumeric:
		return "NUMERIC"
	case AffinityText:
		return "TEXT"
	case AffinityBlob:
		return "BLOB"
	default:
		return "NONE"
	}
}

// IsNumeric reports INTEGER, REAL and NUMERIC affinity.
func (a Affinity) IsNumeric() bool {
	return a == AffinityInteger || a == AffinityReal || a == AffinityNumeric
}

func (a Affinity) isTextual() bool {
	return a == AffinityText || a == AffinityBlob || a == AffinityNone
}

var fullNumeric = regexp.MustCompile(`^[-+]?((\d+(\.\d*)?)|\.\d+)([Ee][+-]?\d+)?$`)

// ApplyNumeric applies numeric affinity to a value. Only text that looks
// entirely like a number is converted.
func ApplyNumeric(v Value) Value {
	if !v.IsText() {
		return v
	}
	trimmed := strings.TrimFunc(v.s, func(r rune) bool { return r <= ' ' })
	if trimmed == "" || !fullNumeric.MatchString(trimmed) {
		return v
	}
	return CastToNumeric(v)
}

// ApplyText applies text affinity to a value.
func ApplyText(v Value) Maybe {
	switch v.kind {
	case KindInt:
		return Known(Text(strconv.FormatInt(v.i, 10)))
	case KindReal:
		return CastToText(v)
	}
	return Known(v)
}

// ApplyAffinities coerces the operands of a comparison: a numeric side
// turns a TEXT, BLOB or NONE partner numeric, then a TEXT side turns a
// NONE partner into text.
func ApplyAffinities(la, ra Affinity, l, r Value) (Value, Value, error) {
	if la.IsNumeric() && ra.isTextual() {
		r = ApplyNumeric(r)
	} else if ra.IsNumeric() && la.isTextual() {
		l = ApplyNumeric(l)
	}
	if la == AffinityText && ra == AffinityNone {
		t, ok := ApplyText(r).Get()
		if !ok {
			return l, r, Ignoref("no text form for %s", r)
		}
		r = t
	} else if ra == AffinityText && la == AffinityNone {
		t, ok := ApplyText(l).Get()
		if !ok {
			return l, r, Ignoref("no text form for %s", l)
		}
		l = t
	}
	return l, r, nil
}

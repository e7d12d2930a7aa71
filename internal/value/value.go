// Package value models SQLite runtime values and their coercion rules.
package value

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the storage class of a value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindReal
	KindText
	KindBlob
)

// String returns the typeof() name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindFromTypeof maps the result of typeof() back to a kind.
func KindFromTypeof(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "null":
		return KindNull, true
	case "integer":
		return KindInt, true
	case "real":
		return KindReal, true
	case "text":
		return KindText, true
	case "blob":
		return KindBlob, true
	default:
		return KindNull, false
	}
}

// Value is a single SQLite runtime value. Exactly one payload is meaningful,
// selected by the kind.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
	hex  bool
}

// Null returns the SQL NULL value.
func Null() Value { return Value{kind: KindNull} }

// Int returns an INTEGER value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// HexInt returns an INTEGER value that renders as a hex literal.
func HexInt(i int64) Value { return Value{kind: KindInt, i: i, hex: true} }

// Real returns a REAL value.
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// Text returns a TEXT value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Blob returns a BLOB value. The slice is copied.
func Blob(b []byte) Value {
	return Value{kind: KindBlob, b: append([]byte{}, b...)}
}

// Bool returns Int(1) or Int(0).
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) IsInt() bool { return v.kind == KindInt }

func (v Value) IsReal() bool { return v.kind == KindReal }

func (v Value) IsText() bool { return v.kind == KindText }

func (v Value) IsBlob() bool { return v.kind == KindBlob }

// IsHex reports whether the integer renders as a hex literal.
func (v Value) IsHex() bool { return v.kind == KindInt && v.hex }

// AsInt returns the integer payload; it panics for other kinds.
func (v Value) AsInt() int64 {
	if v.kind != KindInt {
		panic(fmt.Sprintf("value: AsInt on %s", v.kind))
	}
	return v.i
}

// AsReal returns the real payload; it panics for other kinds.
func (v Value) AsReal() float64 {
	if v.kind != KindReal {
		panic(fmt.Sprintf("value: AsReal on %s", v.kind))
	}
	return v.f
}

// AsText returns the text payload; it panics for other kinds.
func (v Value) AsText() string {
	if v.kind != KindText {
		panic(fmt.Sprintf("value: AsText on %s", v.kind))
	}
	return v.s
}

// AsBlob returns the blob payload; it panics for other kinds.
func (v Value) AsBlob() []byte {
	if v.kind != KindBlob {
		panic(fmt.Sprintf("value: AsBlob on %s", v.kind))
	}
	return v.b
}

// Identical reports whether two values have the same kind and payload.
// NaN is identical to NaN. The hex hint is ignored.
func (v Value) Identical(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindReal:
		if math.IsNaN(v.f) && math.IsNaN(o.f) {
			return true
		}
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBlob:
		return bytes.Equal(v.b, o.b)
	}
	return false
}

// String renders the value as a SQL literal with decimal integers.
func (v Value) String() string {
	return v.Literal(false)
}

// Literal renders the value as a SQL literal. upperHex selects 0X over 0x for
// integers carrying the hex hint.
func (v Value) Literal(upperHex bool) string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		if v.hex && v.i != math.MinInt64 {
			prefix := "0x"
			if upperHex {
				prefix = "0X"
			}
			return prefix + strconv.FormatUint(uint64(v.i), 16)
		}
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		switch {
		case math.IsInf(v.f, 1):
			return "1e500"
		case math.IsInf(v.f, -1):
			return "-1e500"
		case math.IsNaN(v.f):
			return "1e500 / 1e500"
		}
		return realLiteral(v.f)
	case KindText:
		return "'" + strings.ReplaceAll(v.s, "'", "''") + "'"
	case KindBlob:
		return "x'" + strings.ToUpper(hex.EncodeToString(v.b)) + "'"
	}
	panic(fmt.Sprintf("value: unknown kind %d", v.kind))
}

func realLiteral(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

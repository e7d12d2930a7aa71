package value

import (
	"bytes"
	"math"

	"github.com/shopspring/decimal"
)

// Equals compares two values the way the engine's = operator does after
// affinities were applied. It returns Int(1), Int(0) or NULL.
func Equals(l, r Value, c Collation) Value {
	if l.IsNull() || r.IsNull() {
		return Null()
	}
	switch l.kind {
	case KindInt:
		switch r.kind {
		case KindInt:
			return Bool(l.i == r.i)
		case KindReal:
			return Bool(cmpIntReal(l.i, r.f) == 0)
		}
	case KindReal:
		switch r.kind {
		case KindReal:
			return Bool(l.f == r.f)
		case KindInt:
			return Bool(cmpIntReal(r.i, l.f) == 0)
		}
	case KindText:
		if r.IsText() {
			return Bool(c.Equal(l.s, r.s))
		}
	case KindBlob:
		if r.IsBlob() {
			return Bool(bytes.Equal(l.b, r.b))
		}
	}
	return Int(0)
}

// cmpIntReal orders an integer against a real with exact decimal arithmetic.
// Infinities order as usual; NaN never equals and is treated as greater.
func cmpIntReal(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 2
	case math.IsInf(f, 1):
		return -1
	case math.IsInf(f, -1):
		return 1
	}
	return decimal.NewFromInt(i).Cmp(decimal.NewFromFloat(f))
}

// Less implements the engine's < ordering across storage classes:
// numbers < text < blob, NULL compares as NULL.
func Less(l, r Value, c Collation) Value {
	if l.IsNull() || r.IsNull() {
		return Null()
	}
	switch l.kind {
	case KindInt:
		switch r.kind {
		case KindText, KindBlob:
			return Int(1)
		case KindInt:
			return Bool(l.i < r.i)
		default:
			return Bool(cmpIntReal(l.i, r.f) == -1)
		}
	case KindReal:
		switch r.kind {
		case KindText, KindBlob:
			return Int(1)
		case KindReal:
			return Bool(l.f < r.f)
		default:
			if math.IsNaN(l.f) {
				return Int(0)
			}
			return Bool(cmpIntReal(r.i, l.f) == 1)
		}
	case KindText:
		switch r.kind {
		case KindBlob:
			return Int(1)
		case KindText:
			return Bool(c.Compare(l.s, r.s) < 0)
		default:
			return Int(0)
		}
	case KindBlob:
		if r.IsBlob() {
			return Bool(bytes.Compare(l.b, r.b) < 0)
		}
		return Int(0)
	}
	panic("value: Less on " + l.kind.String())
}

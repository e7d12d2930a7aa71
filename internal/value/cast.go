package value

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Integer-valued reals inside this range convert back to INTEGER under
// numeric affinity.
const (
	maxIntFromReal = 1<<50 - 1
	minIntFromReal = -(1 << 50)
)

var (
	intPrefix     = regexp.MustCompile(`^[+-]?\d+`)
	numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

func init() {
	numericPrefix.Longest()
}

// Truth is a three-valued boolean.
type Truth int

const (
	False Truth = iota
	True
	NullTruth
)

// IsTrue interprets a value as a boolean.
func IsTrue(v Value) Truth {
	if v.IsNull() {
		return NullTruth
	}
	n := v
	if v.IsText() || v.IsBlob() {
		n = CastToNumeric(v)
	}
	switch n.kind {
	case KindInt:
		if n.i != 0 {
			return True
		}
		return False
	case KindReal:
		if n.f != 0 && !math.IsNaN(n.f) {
			return True
		}
		return False
	}
	panic("value: IsTrue on non-numeric " + n.kind.String())
}

// AsBoolean converts a value to Int(1)/Int(0)/NULL.
func AsBoolean(v Value) Value {
	switch IsTrue(v) {
	case True:
		return Int(1)
	case False:
		return Int(0)
	}
	return Null()
}

// blobAsText decodes blob bytes as UTF-8 text.
func blobAsText(v Value) Value {
	if v.IsBlob() {
		return Text(strings.ToValidUTF8(string(v.b), "\uFFFD"))
	}
	return v
}

// CastToInt implements CAST(v AS INTEGER).
func CastToInt(v Value) (Value, error) {
	v = blobAsText(v)
	switch v.kind {
	case KindNull, KindInt:
		return v, nil
	case KindReal:
		if err := CheckRange(v.f); err != nil {
			return Value{}, err
		}
		if math.IsNaN(v.f) {
			return Int(0), nil
		}
		return Int(int64(v.f)), nil
	case KindText:
		s := trimLeadingSpace(v.s)
		if s != "" && zeroingControl(s) {
			return Int(0), nil
		}
		m := intPrefix.FindString(s)
		if m == "" {
			return Int(0), nil
		}
		i, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			if strings.HasPrefix(m, "-") {
				return Int(math.MinInt64), nil
			}
			return Int(math.MaxInt64), nil
		}
		return Int(i), nil
	}
	panic("value: CastToInt on " + v.kind.String())
}

// CastToReal implements CAST(v AS REAL).
func CastToReal(v Value) (Value, error) {
	n := CastToNumeric(v)
	if n.IsInt() {
		f := float64(n.i)
		if err := CheckRange(f); err != nil {
			return Value{}, err
		}
		return Real(f), nil
	}
	return n, nil
}

// CastToNumeric applies numeric affinity: integer-valued reals in range
// become INTEGER, unparsable text becomes Int(0).
func CastToNumeric(v Value) Value {
	return convertNumeric(v, true, false, false)
}

// CastToNumericNoNumAsRealZero converts for real-valued functions such as
// abs(): unparsable text is Real(0.0) and integers become reals.
func CastToNumericNoNumAsRealZero(v Value) Value {
	return convertNumeric(v, false, true, true)
}

// CastToNumericFromNumOperand converts the operand of an arithmetic operator.
func CastToNumericFromNumOperand(v Value) Value {
	return convertNumeric(v, false, false, false)
}

func convertNumeric(v Value, realToInt, noNumIsRealZero, intToReal bool) Value {
	v = blobAsText(v)
	switch v.kind {
	case KindNull, KindInt, KindReal:
		return v
	case KindText:
	default:
		panic("value: convertNumeric on " + v.kind.String())
	}
	s := trimLeadingSpace(v.s)
	if s != "" && zeroingControl(s) {
		return Int(0)
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "-infinity") || strings.HasPrefix(lower, "infinity") || strings.HasPrefix(s, "NaN") {
		return Int(0)
	}
	m := numericPrefix.FindString(s)
	if m == "" {
		if noNumIsRealZero {
			return Real(0)
		}
		return Int(0)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return Int(0)
		}
	}
	isFloat := strings.ContainsAny(m, ".eE")
	exact, fits := exactInt64(m, f)
	if isFloat && fits && realToInt && exact >= minIntFromReal && exact <= maxIntFromReal {
		return Int(exact)
	}
	if !isFloat && fits && !intToReal {
		return Int(exact)
	}
	return Real(f)
}

// exactInt64 reports whether a numeric literal is an integer representable
// as int64. f is the literal parsed as a float.
func exactInt64(lit string, f float64) (int64, bool) {
	if math.IsInf(f, 0) || math.Abs(f) >= 1e19 || hugeExponent(lit) {
		return 0, false
	}
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return 0, false
	}
	i := d.IntPart()
	if !d.Equal(decimal.NewFromInt(i)) {
		return 0, false
	}
	return i, true
}

func hugeExponent(lit string) bool {
	i := strings.IndexAny(lit, "eE")
	if i < 0 {
		return false
	}
	exp, err := strconv.Atoi(strings.TrimPrefix(lit[i+1:], "+"))
	return err != nil || exp > 400 || exp < -400
}

func trimLeadingSpace(s string) string {
	return strings.TrimLeft(s, " \t\v\f\n\r")
}

// zeroingControl reports whether the text starts with a run of control
// characters that makes the engine read it as zero.
func zeroingControl(s string) bool {
	for _, c := range s {
		if !isISOControl(c) && !isWideSpace(c) {
			return false
		}
		switch c {
		case 0x16, 0x1c, 0x1d, 0x1e, 0x1f:
			return true
		}
		if isWideSpace(c) {
			continue
		}
		return true
	}
	return false
}

func isISOControl(c rune) bool {
	return c <= 0x1f || (c >= 0x7f && c <= 0x9f)
}

// isWideSpace covers the separator categories minus non-breaking spaces,
// plus ASCII controls 0x09-0x0d and 0x1c-0x1f.
func isWideSpace(c rune) bool {
	switch {
	case c >= 0x09 && c <= 0x0d, c >= 0x1c && c <= 0x1f:
		return true
	case c == 0xa0, c == 0x2007, c == 0x202f:
		return false
	}
	return unicode.In(c, unicode.Zs, unicode.Zl, unicode.Zp)
}

// CastToText implements CAST(v AS TEXT). NaN has no text form.
func CastToText(v Value) Maybe {
	switch v.kind {
	case KindNull, KindText:
		return Known(v)
	case KindInt:
		return Known(Text(strconv.FormatInt(v.i, 10)))
	case KindReal:
		s, ok := RealText(v.f)
		if !ok {
			return Unknown
		}
		return Known(Text(s))
	case KindBlob:
		return Known(Text(string(v.b)))
	}
	panic("value: CastToText on " + v.kind.String())
}

// RealText formats a real the way the engine prints it (%!.15g).
func RealText(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "", false
	case math.IsInf(f, 1):
		return "Inf", true
	case math.IsInf(f, -1):
		return "-Inf", true
	case f == 0:
		return "0.0", true
	}
	s := strconv.FormatFloat(f, 'g', 15, 64)
	mantissa, exp := s, ""
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mantissa, exp = s[:i], s[i:]
	}
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	return mantissa + exp, true
}

// CastToBlob implements CAST(v AS BLOB).
func CastToBlob(v Value) Maybe {
	if v.IsNull() || v.IsBlob() {
		return Known(v)
	}
	t, ok := CastToText(v).Get()
	if !ok {
		return Unknown
	}
	return Known(Blob([]byte(t.s)))
}

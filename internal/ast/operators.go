package ast

import (
	"math"

	"limbofuzz/internal/value"
)

// UnaryOp is a prefix operator.
type UnaryOp int

// Prefix operators.
const (
	OpMinus UnaryOp = iota
	OpPlus
	OpBitNot
	OpNot
)

// UnaryOps lists every prefix operator.
var UnaryOps = []UnaryOp{OpMinus, OpPlus, OpBitNot, OpNot}

type unaryInfo struct {
	text  string
	apply func(value.Value) (value.Value, error)
}

var unaryTable = [...]unaryInfo{
	OpMinus: {"-", func(v value.Value) (value.Value, error) {
		if v.IsNull() {
			return v, nil
		}
		if v.IsText() || v.IsBlob() {
			v = value.CastToNumericFromNumOperand(v)
		}
		if v.IsInt() {
			if v.AsInt() == math.MinInt64 {
				return value.Real(-float64(math.MinInt64)), nil
			}
			return value.Int(-v.AsInt()), nil
		}
		return value.Real(-v.AsReal()), nil
	}},
	OpPlus: {"+", func(v value.Value) (value.Value, error) {
		return v, nil
	}},
	OpBitNot: {"~", func(v value.Value) (value.Value, error) {
		i, err := value.CastToInt(v)
		if err != nil || i.IsNull() {
			return i, err
		}
		return value.Int(^i.AsInt()), nil
	}},
	OpNot: {"NOT", func(v value.Value) (value.Value, error) {
		return not(v), nil
	}},
}

func (op UnaryOp) String() string { return unaryTable[op].text }

// Apply evaluates the operator on a known operand.
func (op UnaryOp) Apply(v value.Value) (value.Value, error) { return unaryTable[op].apply(v) }

func not(v value.Value) value.Value {
	switch value.IsTrue(v) {
	case value.True:
		return value.Int(0)
	case value.False:
		return value.Int(1)
	}
	return value.Null()
}

// PostfixOp is a postfix operator.
type PostfixOp int

// Postfix operators.
const (
	OpIsNull PostfixOp = iota
	OpNotNullSpaced
	OpNotNull
	OpIsTrue
	OpIsFalse
)

// PostfixOps lists every postfix operator.
var PostfixOps = []PostfixOp{OpIsNull, OpNotNullSpaced, OpNotNull, OpIsTrue, OpIsFalse}

type postfixInfo struct {
	text  string
	apply func(value.Value) value.Value
}

var postfixTable = [...]postfixInfo{
	OpIsNull: {"ISNULL", func(v value.Value) value.Value {
		return value.Bool(v.IsNull())
	}},
	OpNotNullSpaced: {"NOT NULL", func(v value.Value) value.Value {
		return value.Bool(!v.IsNull())
	}},
	OpNotNull: {"NOTNULL", func(v value.Value) value.Value {
		return value.Bool(!v.IsNull())
	}},
	OpIsTrue: {"IS TRUE", func(v value.Value) value.Value {
		if v.IsNull() {
			return value.Int(0)
		}
		return value.AsBoolean(v)
	}},
	OpIsFalse: {"IS FALSE", func(v value.Value) value.Value {
		if v.IsNull() {
			return value.Int(0)
		}
		return not(value.AsBoolean(v))
	}},
}

func (op PostfixOp) String() string { return postfixTable[op].text }

// Apply evaluates the operator on a known operand.
func (op PostfixOp) Apply(v value.Value) value.Value { return postfixTable[op].apply(v) }

// BinaryOp is an arithmetic, bitwise, string or logical operator.
type BinaryOp int

// Binary operators.
const (
	OpConcat BinaryOp = iota
	OpMul
	OpDiv
	OpRem
	OpAdd
	OpSub
	OpShiftLeft
	OpShiftRight
	OpBitAnd
	OpBitOr
	OpAnd
	OpOr
)

// BinaryOps lists every binary operator.
var BinaryOps = []BinaryOp{
	OpConcat, OpMul, OpDiv, OpRem, OpAdd, OpSub,
	OpShiftLeft, OpShiftRight, OpBitAnd, OpBitOr, OpAnd, OpOr,
}

type binaryInfo struct {
	text  string
	apply func(ev *Evaluator, l, r value.Value) (value.Maybe, error)
}

var binaryTable = [...]binaryInfo{
	OpConcat:     {"||", concat},
	OpMul:        {"*", arithmetic(OpMul)},
	OpDiv:        {"/", arithmetic(OpDiv)},
	OpRem:        {"%", arithmetic(OpRem)},
	OpAdd:        {"+", arithmetic(OpAdd)},
	OpSub:        {"-", arithmetic(OpSub)},
	OpShiftLeft:  {"<<", intOperation(shiftLeft)},
	OpShiftRight: {">>", intOperation(shiftRight)},
	OpBitAnd:     {"&", intOperation(func(l, r int64) int64 { return l & r })},
	OpBitOr:      {"|", intOperation(func(l, r int64) int64 { return l | r })},
	OpAnd: {"AND", func(_ *Evaluator, l, r value.Value) (value.Maybe, error) {
		lt, rt := value.IsTrue(l), value.IsTrue(r)
		switch {
		case lt == value.False || rt == value.False:
			return value.Known(value.Int(0)), nil
		case lt == value.NullTruth || rt == value.NullTruth:
			return value.Known(value.Null()), nil
		}
		return value.Known(value.Int(1)), nil
	}},
	OpOr: {"OR", func(_ *Evaluator, l, r value.Value) (value.Maybe, error) {
		lt, rt := value.IsTrue(l), value.IsTrue(r)
		switch {
		case lt == value.True || rt == value.True:
			return value.Known(value.Int(1)), nil
		case lt == value.NullTruth || rt == value.NullTruth:
			return value.Known(value.Null()), nil
		}
		return value.Known(value.Int(0)), nil
	}},
}

func (op BinaryOp) String() string { return binaryTable[op].text }

// Apply evaluates the operator on known operands.
func (op BinaryOp) Apply(ev *Evaluator, l, r value.Value) (value.Maybe, error) {
	return binaryTable[op].apply(ev, l, r)
}

func concat(ev *Evaluator, l, r value.Value) (value.Maybe, error) {
	if !ev.AllowFloatingPoint && (l.IsReal() || r.IsReal()) {
		return value.Unknown, value.Ignoref("real operand in concatenation")
	}
	if l.IsNull() || r.IsNull() {
		return value.Known(value.Null()), nil
	}
	lt, lok := value.CastToText(l).Get()
	rt, rok := value.CastToText(r).Get()
	if !lok || !rok {
		return value.Unknown, nil
	}
	return value.Known(value.Text(lt.AsText() + rt.AsText())), nil
}

func intOperation(f func(l, r int64) int64) func(*Evaluator, value.Value, value.Value) (value.Maybe, error) {
	return func(_ *Evaluator, l, r value.Value) (value.Maybe, error) {
		if l.IsNull() || r.IsNull() {
			return value.Known(value.Null()), nil
		}
		li, err := value.CastToInt(l)
		if err != nil {
			return value.Unknown, err
		}
		ri, err := value.CastToInt(r)
		if err != nil {
			return value.Unknown, err
		}
		return value.Known(value.Int(f(li.AsInt(), ri.AsInt()))), nil
	}
}

func shiftLeft(l, r int64) int64 {
	switch {
	case r >= 64:
		return 0
	case r >= 0:
		return l << uint(r)
	case r == math.MinInt64:
		if l >= 0 {
			return 0
		}
		return -1
	}
	return shiftRight(l, -r)
}

func shiftRight(l, r int64) int64 {
	switch {
	case r >= 64:
		if l >= 0 {
			return 0
		}
		return -1
	case r >= 0:
		return l >> uint(r)
	case r == math.MinInt64:
		return 0
	}
	return shiftLeft(l, -r)
}

// arithmetic models + - * / % on numeric operands. Integer overflow and
// the MIN/-1 quotient leave the exact-integer domain and abandon the attempt.
func arithmetic(op BinaryOp) func(*Evaluator, value.Value, value.Value) (value.Maybe, error) {
	return func(ev *Evaluator, l, r value.Value) (value.Maybe, error) {
		if l.IsNull() || r.IsNull() {
			return value.Known(value.Null()), nil
		}
		l = value.CastToNumericFromNumOperand(l)
		r = value.CastToNumericFromNumOperand(r)
		if l.IsInt() && r.IsInt() {
			return intArithmetic(op, l.AsInt(), r.AsInt())
		}
		if !ev.AllowFloatingPoint {
			return value.Unknown, value.Ignoref("real operand in arithmetic")
		}
		lf, rf := asFloat(l), asFloat(r)
		for _, f := range []float64{lf, rf} {
			if math.IsNaN(f) {
				return value.Unknown, value.Ignoref("NaN operand")
			}
			if err := value.CheckRange(f); err != nil {
				return value.Unknown, err
			}
		}
		switch op {
		case OpAdd:
			return value.Known(value.Real(lf + rf)), nil
		case OpSub:
			return value.Known(value.Real(lf - rf)), nil
		case OpMul:
			return value.Known(value.Real(lf * rf)), nil
		case OpDiv:
			if rf == 0 {
				return value.Known(value.Null()), nil
			}
			return value.Known(value.Real(lf / rf)), nil
		}
		li, ri := int64(lf), int64(rf)
		if ri == 0 {
			return value.Known(value.Null()), nil
		}
		if ri == -1 {
			ri = 1
		}
		return value.Known(value.Real(float64(li % ri))), nil
	}
}

func asFloat(v value.Value) float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return v.AsReal()
}

func intArithmetic(op BinaryOp, l, r int64) (value.Maybe, error) {
	var res int64
	switch op {
	case OpAdd:
		res = l + r
		if (r > 0 && res < l) || (r < 0 && res > l) {
			return value.Unknown, value.Ignoref("integer overflow in %d + %d", l, r)
		}
	case OpSub:
		res = l - r
		if (r < 0 && res < l) || (r > 0 && res > l) {
			return value.Unknown, value.Ignoref("integer overflow in %d - %d", l, r)
		}
	case OpMul:
		if l != 0 && r != 0 {
			res = l * r
			if res/r != l || (l == -1 && r == math.MinInt64) || (r == -1 && l == math.MinInt64) {
				return value.Unknown, value.Ignoref("integer overflow in %d * %d", l, r)
			}
		}
	case OpDiv:
		if r == 0 {
			return value.Known(value.Null()), nil
		}
		if l == math.MinInt64 && r == -1 {
			return value.Unknown, value.Ignoref("integer overflow in %d / -1", l)
		}
		res = l / r
	case OpRem:
		if r == 0 {
			return value.Known(value.Null()), nil
		}
		if r == -1 {
			r = 1
		}
		res = l % r
	}
	return value.Known(value.Int(res)), nil
}

// CompareOp is a comparison operator.
type CompareOp int

// Comparison operators.
const (
	OpLess CompareOp = iota
	OpLessEq
	OpGreater
	OpGreaterEq
	OpEq
	OpNotEq
	OpIs
	OpIsNot
	OpLike
	OpGlob
)

// CompareOps lists every comparison operator.
var CompareOps = []CompareOp{OpLess, OpLessEq, OpGreater, OpGreaterEq, OpEq, OpNotEq, OpIs, OpIsNot, OpLike, OpGlob}

// RowValueCompareOps are the operators accepted between row values.
var RowValueCompareOps = []CompareOp{OpLess, OpLessEq, OpGreater, OpGreaterEq, OpEq, OpNotEq}

type compareInfo struct {
	texts []string
	// affinity is false for operators that compare the raw operands.
	affinity bool
	apply    func(l, r value.Value, c value.Collation) value.Maybe
}

var compareTable = [...]compareInfo{
	OpLess: {[]string{"<"}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		return value.Known(value.Less(l, r, c))
	}},
	OpLessEq: {[]string{"<="}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		lt := value.Less(l, r, c)
		if lt.IsInt() && lt.AsInt() == 0 {
			return value.Known(value.Equals(l, r, c))
		}
		return value.Known(lt)
	}},
	OpGreater: {[]string{">"}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		if isOne(value.Equals(l, r, c)) {
			return value.Known(value.Int(0))
		}
		return value.Known(not(value.Less(l, r, c)))
	}},
	OpGreaterEq: {[]string{">="}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		if isOne(value.Equals(l, r, c)) {
			return value.Known(value.Int(1))
		}
		return value.Known(not(value.Less(l, r, c)))
	}},
	OpEq: {[]string{"=", "=="}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		return value.Known(value.Equals(l, r, c))
	}},
	OpNotEq: {[]string{"!=", "<>"}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		if l.IsNull() || r.IsNull() {
			return value.Known(value.Null())
		}
		return value.Known(value.Bool(!isOne(value.Equals(l, r, c))))
	}},
	OpIs: {[]string{"IS"}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		switch {
		case l.IsNull():
			return value.Known(value.Bool(r.IsNull()))
		case r.IsNull():
			return value.Known(value.Int(0))
		}
		return value.Known(value.Equals(l, r, c))
	}},
	OpIsNot: {[]string{"IS NOT"}, true, func(l, r value.Value, c value.Collation) value.Maybe {
		switch {
		case l.IsNull():
			return value.Known(value.Bool(!r.IsNull()))
		case r.IsNull():
			return value.Known(value.Int(1))
		}
		return value.Known(value.Bool(!isOne(value.Equals(l, r, c))))
	}},
	OpLike: {[]string{"LIKE"}, false, func(l, r value.Value, _ value.Collation) value.Maybe {
		return matchText(l, r, likeMatch)
	}},
	OpGlob: {[]string{"GLOB"}, false, func(l, r value.Value, _ value.Collation) value.Maybe {
		return matchText(l, r, globMatch)
	}},
}

func (op CompareOp) String() string { return compareTable[op].texts[0] }

// Spellings returns the accepted spellings of the operator.
func (op CompareOp) Spellings() []string { return compareTable[op].texts }

// Apply compares two operand values. Affinities are applied first for the
// operators that use them, then the collation is resolved from the operand
// expressions.
func (op CompareOp) Apply(l, r value.Value, la, ra value.Affinity, lexpr, rexpr value.CollationSource) (value.Maybe, error) {
	info := compareTable[op]
	if info.affinity {
		var err error
		l, r, err = value.ApplyAffinities(la, ra, l, r)
		if err != nil {
			return value.Unknown, err
		}
	}
	return info.apply(l, r, value.ResolveCollation(lexpr, rexpr)), nil
}

func isOne(v value.Value) bool {
	return v.IsInt() && v.AsInt() == 1
}

func matchText(l, r value.Value, match func(s, pattern []rune) bool) value.Maybe {
	if l.IsNull() || r.IsNull() {
		return value.Known(value.Null())
	}
	ls, lok := value.CastToText(l).Get()
	rs, rok := value.CastToText(r).Get()
	if !lok || !rok {
		return value.Unknown
	}
	return value.Known(value.Bool(match([]rune(ls.AsText()), []rune(rs.AsText()))))
}

package ast

import (
	"math"
	"strings"

	"limbofuzz/internal/value"
)

// ComputableFunc is a scalar function with a modeled result.
type ComputableFunc int

// Modeled scalar functions.
const (
	FuncAbs ComputableFunc = iota
	FuncCoalesce
	FuncHex
	FuncLower
	FuncLikely
	FuncLikelihood
	FuncIfNull
	FuncUpper
	FuncNullIf
	FuncTrim
	FuncTrim2
	FuncTypeof
	FuncUnlikely
)

// ComputableFuncs lists every modeled scalar function.
var ComputableFuncs = []ComputableFunc{
	FuncAbs, FuncCoalesce, FuncHex, FuncLower, FuncLikely, FuncLikelihood, FuncIfNull,
	FuncUpper, FuncNullIf, FuncTrim, FuncTrim2, FuncTypeof, FuncUnlikely,
}

type funcInfo struct {
	name     string
	args     int
	variadic bool
	apply    func(args []value.Value, c value.Collation) (value.Maybe, error)
}

var funcTable = [...]funcInfo{
	FuncAbs:      {name: "ABS", args: 1, apply: abs},
	FuncCoalesce: {name: "COALESCE", args: 2, variadic: true, apply: firstNonNull},
	FuncHex: {name: "HEX", args: 1, apply: func([]value.Value, value.Collation) (value.Maybe, error) {
		return value.Unknown, nil
	}},
	FuncLower:      {name: "LOWER", args: 1, apply: caseFold(strings.ToLower)},
	FuncLikely:     {name: "LIKELY", args: 1, apply: firstArg},
	FuncLikelihood: {name: "LIKELIHOOD", args: 2, apply: firstArg},
	FuncIfNull:     {name: "IFNULL", args: 2, apply: firstNonNull},
	FuncUpper:      {name: "UPPER", args: 1, apply: caseFold(strings.ToUpper)},
	FuncNullIf: {name: "NULLIF", args: 2, apply: func(args []value.Value, c value.Collation) (value.Maybe, error) {
		if value.IsTrue(value.Equals(args[0], args[1], c)) == value.True {
			return value.Known(value.Null()), nil
		}
		return value.Known(args[0]), nil
	}},
	FuncTrim: {name: "TRIM", args: 1, apply: func(args []value.Value, _ value.Collation) (value.Maybe, error) {
		m := value.CastToText(args[0])
		if !args[0].IsText() {
			return m, nil
		}
		return value.Known(value.Text(strings.Trim(args[0].AsText(), " "))), nil
	}},
	FuncTrim2: {name: "TRIM", args: 2, apply: trimSet},
	FuncTypeof: {name: "TYPEOF", args: 1, apply: func(args []value.Value, _ value.Collation) (value.Maybe, error) {
		return value.Known(value.Text(args[0].Kind().String())), nil
	}},
	FuncUnlikely: {name: "UNLIKELY", args: 1, apply: firstArg},
}

func (f ComputableFunc) String() string { return funcTable[f].name }

// Args is the minimum number of arguments.
func (f ComputableFunc) Args() int { return funcTable[f].args }

// Variadic reports whether more than Args arguments are accepted.
func (f ComputableFunc) Variadic() bool { return funcTable[f].variadic }

// Apply computes the function over known arguments.
func (f ComputableFunc) Apply(args []value.Value, c value.Collation) (value.Maybe, error) {
	return funcTable[f].apply(args, c)
}

func abs(args []value.Value, _ value.Collation) (value.Maybe, error) {
	v := args[0]
	switch {
	case v.IsBlob():
		return value.Unknown, value.Ignoref("ABS over a blob")
	case v.IsNull():
		return value.Known(v), nil
	case v.IsInt():
		if v.AsInt() == math.MinInt64 {
			return value.Unknown, nil
		}
		if v.AsInt() < 0 {
			return value.Known(value.Int(-v.AsInt())), nil
		}
		return value.Known(value.Int(v.AsInt())), nil
	}
	n := value.CastToNumericNoNumAsRealZero(v)
	switch {
	case n.IsNull():
		return value.Known(n), nil
	case n.IsInt():
		if n.AsInt() == math.MinInt64 {
			return value.Unknown, nil
		}
		if n.AsInt() < 0 {
			return value.Known(value.Int(-n.AsInt())), nil
		}
		return value.Known(n), nil
	}
	return value.Known(value.Real(math.Abs(n.AsReal()))), nil
}

func firstNonNull(args []value.Value, _ value.Collation) (value.Maybe, error) {
	for _, a := range args {
		if !a.IsNull() {
			return value.Known(a), nil
		}
	}
	return value.Known(value.Null()), nil
}

func firstArg(args []value.Value, _ value.Collation) (value.Maybe, error) {
	return value.Known(args[0]), nil
}

// caseFold folds ASCII letters only; other characters are kept.
func caseFold(fold func(string) string) func([]value.Value, value.Collation) (value.Maybe, error) {
	return func(args []value.Value, _ value.Collation) (value.Maybe, error) {
		m := value.CastToText(args[0])
		t, ok := m.Get()
		if !ok {
			return value.Unknown, nil
		}
		if !t.IsText() {
			return value.Known(value.Null()), nil
		}
		var sb strings.Builder
		for _, r := range t.AsText() {
			if r < 0x80 {
				sb.WriteString(fold(string(r)))
			} else {
				sb.WriteRune(r)
			}
		}
		return value.Known(value.Text(sb.String())), nil
	}
}

func trimSet(args []value.Value, _ value.Collation) (value.Maybe, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return value.Known(value.Null()), nil
	}
	s, sok := value.CastToText(args[0]).Get()
	set, setOK := value.CastToText(args[1]).Get()
	if !sok || !setOK {
		return value.Unknown, nil
	}
	cut := set.AsText()
	return value.Known(value.Text(strings.TrimFunc(s.AsText(), func(r rune) bool {
		return strings.ContainsRune(cut, r)
	}))), nil
}

// Function calls a modeled scalar function.
type Function struct {
	unmodeled
	Func ComputableFunc
	Args []Expr
}

// Build emits NAME(args).
func (f Function) Build(b *SQLBuilder) {
	b.Write(f.Func.String())
	b.Write("(")
	b.WriteList(f.Args)
	b.Write(")")
}

// Expected applies the function once every argument is known.
func (f Function) Expected(ev *Evaluator) (value.Maybe, error) {
	vals, ok, err := evalAll(ev, f.Args)
	if err != nil || !ok {
		return value.Unknown, err
	}
	c, found := firstExplicit(f.Args...)
	if !found {
		c = value.Binary
		for _, a := range f.Args {
			if ic, ok := a.ImplicitCollation(); ok {
				c = ic
				break
			}
		}
	}
	return f.Func.Apply(vals, c)
}

// ExplicitCollation is the first explicit collation among the arguments.
func (f Function) ExplicitCollation() (value.Collation, bool) { return firstExplicit(f.Args...) }

// AnyFunction calls a built-in function whose result is not modeled.
type AnyFunction struct {
	unmodeled
	Name string
	Args []Expr
}

// Build emits name(args).
func (f AnyFunction) Build(b *SQLBuilder) {
	b.Write(f.Name)
	b.Write("(")
	b.WriteList(f.Args)
	b.Write(")")
}

// ExplicitCollation is the first explicit collation among the arguments.
func (f AnyFunction) ExplicitCollation() (value.Collation, bool) {
	return firstExplicit(f.Args...)
}

// AggregateFunc is an aggregate function.
type AggregateFunc int

// Aggregate functions.
const (
	AggAvg AggregateFunc = iota
	AggCount
	AggCountAll
	AggGroupConcat
	AggMax
	AggMin
	AggSum
	AggTotal
)

// AggregateFuncs lists every aggregate.
var AggregateFuncs = []AggregateFunc{AggAvg, AggCount, AggCountAll, AggGroupConcat, AggMax, AggMin, AggSum, AggTotal}

var aggregateNames = [...]string{
	AggAvg:         "AVG",
	AggCount:       "COUNT",
	AggCountAll:    "COUNT",
	AggGroupConcat: "GROUP_CONCAT",
	AggMax:         "MAX",
	AggMin:         "MIN",
	AggSum:         "SUM",
	AggTotal:       "TOTAL",
}

func (f AggregateFunc) String() string { return aggregateNames[f] }

// Aggregate is an aggregate call. Its value depends on the whole group and
// is never modeled.
type Aggregate struct {
	unmodeled
	Func AggregateFunc
	Args []Expr
}

// Build emits NAME(args), or COUNT(*).
func (a Aggregate) Build(b *SQLBuilder) {
	b.Write(a.Func.String())
	b.Write("(")
	if a.Func == AggCountAll {
		b.Write("*")
	} else {
		b.WriteList(a.Args)
	}
	b.Write(")")
}

// WindowFunc is a window function.
type WindowFunc int

// Window functions.
const (
	WinRowNumber WindowFunc = iota
	WinRank
	WinDenseRank
	WinPercentRank
	WinCumeDist
	WinNtile
	WinLag
	WinLead
	WinFirstValue
	WinLastValue
	WinNthValue
)

// WindowFuncs lists every window function.
var WindowFuncs = []WindowFunc{
	WinRowNumber, WinRank, WinDenseRank, WinPercentRank, WinCumeDist, WinNtile,
	WinLag, WinLead, WinFirstValue, WinLastValue, WinNthValue,
}

type windowInfo struct {
	name  string
	args  int
	apply func(args []value.Value) (value.Maybe, error)
}

func constant(v value.Value) func([]value.Value) (value.Maybe, error) {
	return func([]value.Value) (value.Maybe, error) { return value.Known(v), nil }
}

func unknownWindow([]value.Value) (value.Maybe, error) { return value.Unknown, nil }

func firstWindowArg(args []value.Value) (value.Maybe, error) { return value.Known(args[0]), nil }

// Results describe a single-row partition.
var windowTable = [...]windowInfo{
	WinRowNumber:   {"ROW_NUMBER", 0, constant(value.Int(1))},
	WinRank:        {"RANK", 0, constant(value.Int(1))},
	WinDenseRank:   {"DENSE_RANK", 0, constant(value.Int(1))},
	WinPercentRank: {"PERCENT_RANK", 0, constant(value.Real(0))},
	WinCumeDist:    {"CUME_DIST", 0, constant(value.Real(1))},
	WinNtile:       {"NTILE", 1, unknownWindow},
	WinLag:         {"LAG", 3, unknownWindow},
	WinLead:        {"LEAD", 3, unknownWindow},
	WinFirstValue:  {"FIRST_VALUE", 1, firstWindowArg},
	WinLastValue:   {"LAST_VALUE", 1, firstWindowArg},
	WinNthValue: {"NTH_VALUE", 2, func(args []value.Value) (value.Maybe, error) {
		n, err := value.CastToInt(args[1])
		if err != nil {
			return value.Unknown, err
		}
		if n.IsInt() && n.AsInt() == 1 {
			return value.Known(args[0]), nil
		}
		return value.Known(value.Null()), nil
	}},
}

func (f WindowFunc) String() string { return windowTable[f].name }

// Args is the number of arguments the function takes.
func (f WindowFunc) Args() int { return windowTable[f].args }

// WindowFunction is a window function call without its OVER clause.
type WindowFunction struct {
	unmodeled
	Func WindowFunc
	Args []Expr
}

// Build emits NAME(args).
func (w WindowFunction) Build(b *SQLBuilder) {
	b.Write(w.Func.String())
	b.Write("(")
	b.WriteList(w.Args)
	b.Write(")")
}

// Expected is only modeled when the evaluator must know every result.
func (w WindowFunction) Expected(ev *Evaluator) (value.Maybe, error) {
	if !ev.MustKnowResult {
		return value.Unknown, nil
	}
	vals, ok, err := evalAll(ev, w.Args)
	if err != nil {
		return value.Unknown, err
	}
	if !ok {
		return value.Unknown, value.Ignoref("unknown argument of %s", w.Func)
	}
	return windowTable[w.Func].apply(vals)
}

// FrameKind is the unit of a window frame.
type FrameKind int

// Frame units.
const (
	FrameRange FrameKind = iota
	FrameRows
	FrameGroups
)

// FrameKinds lists every frame unit.
var FrameKinds = []FrameKind{FrameRange, FrameRows, FrameGroups}

func (k FrameKind) String() string { return [...]string{"RANGE", "ROWS", "GROUPS"}[k] }

// FrameExclude is the EXCLUDE clause of a frame.
type FrameExclude int

// Exclusions; ExcludeNone renders nothing.
const (
	ExcludeNone FrameExclude = iota
	ExcludeNoOthers
	ExcludeCurrentRow
	ExcludeGroup
	ExcludeTies
)

// FrameExcludes lists the renderable exclusions.
var FrameExcludes = []FrameExclude{ExcludeNoOthers, ExcludeCurrentRow, ExcludeGroup, ExcludeTies}

func (e FrameExclude) String() string {
	return [...]string{"", "EXCLUDE NO OTHERS", "EXCLUDE CURRENT ROW", "EXCLUDE GROUP", "EXCLUDE TIES"}[e]
}

// FrameBound is the position named by a frame term.
type FrameBound int

// Frame term positions.
const (
	UnboundedPreceding FrameBound = iota
	Preceding
	CurrentRow
	Following
	UnboundedFollowing
)

// FrameBounds lists every frame term position.
var FrameBounds = []FrameBound{UnboundedPreceding, Preceding, CurrentRow, Following, UnboundedFollowing}

func (f FrameBound) String() string {
	return [...]string{"UNBOUNDED PRECEDING", "PRECEDING", "CURRENT ROW", "FOLLOWING", "UNBOUNDED FOLLOWING"}[f]
}

// NeedsExpr reports bounds written as "expr PRECEDING" or "expr FOLLOWING".
func (f FrameBound) NeedsExpr() bool { return f == Preceding || f == Following }

// FrameTerm is one end of a frame.
type FrameTerm struct {
	unmodeled
	Expr  Expr
	Bound FrameBound
}

// Build emits [expr ]BOUND.
func (t FrameTerm) Build(b *SQLBuilder) {
	if t.Expr != nil {
		t.Expr.Build(b)
		b.Write(" ")
	}
	b.Write(t.Bound.String())
}

// FrameBetween renders BETWEEN left AND right.
type FrameBetween struct {
	unmodeled
	Left  FrameTerm
	Right FrameTerm
}

// Build emits the frame range.
func (f FrameBetween) Build(b *SQLBuilder) {
	b.Write("BETWEEN ")
	f.Left.Build(b)
	b.Write(" AND ")
	f.Right.Build(b)
}

// WindowExpr is a window function or aggregate with FILTER and OVER
// clauses.
type WindowExpr struct {
	unmodeled
	// Func is a WindowFunction or an Aggregate.
	Func        Expr
	Filter      Expr
	PartitionBy []Expr
	OrderBy     []Expr
	// Frame is a FrameTerm or FrameBetween; FrameKind and Exclude apply
	// only when it is set.
	Frame     Expr
	FrameKind FrameKind
	Exclude   FrameExclude
}

// Build emits the windowed call.
func (w WindowExpr) Build(b *SQLBuilder) {
	w.Func.Build(b)
	if w.Filter != nil {
		b.Write(" FILTER(WHERE ")
		w.Filter.Build(b)
		b.Write(")")
	}
	b.Write(" OVER (")
	sep := ""
	if len(w.PartitionBy) > 0 {
		b.Write("PARTITION BY ")
		b.WriteList(w.PartitionBy)
		sep = " "
	}
	if len(w.OrderBy) > 0 {
		b.Write(sep)
		b.Write("ORDER BY ")
		b.WriteList(w.OrderBy)
		sep = " "
	}
	if w.Frame != nil {
		b.Write(sep)
		b.Write(w.FrameKind.String())
		b.Write(" ")
		w.Frame.Build(b)
		if w.Exclude != ExcludeNone {
			b.Write(" ")
			b.Write(w.Exclude.String())
		}
	}
	b.Write(")")
}

// Expected is the value of the underlying call.
func (w WindowExpr) Expected(ev *Evaluator) (value.Maybe, error) { return w.Func.Expected(ev) }

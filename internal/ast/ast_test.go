package ast

import (
	"math"
	"testing"

	"limbofuzz/internal/schema"
	"limbofuzz/internal/value"

	"github.com/stretchr/testify/require"
)

func intLit(i int64) Constant { return Lit(value.Int(i)) }

func textLit(s string) Constant { return Lit(value.Text(s)) }

func nullLit() Constant { return Lit(value.Null()) }

func column(name string, typ schema.DataType, coll value.Collation, v value.Value) Column {
	return Column{
		Col:   schema.Column{ID: 0, Table: 0, Name: name, Type: typ, Collation: coll},
		Table: "t0",
		Value: value.Known(v),
	}
}

func requireValue(t *testing.T, want value.Value, e Expr) {
	t.Helper()
	got, err := NewEvaluator().Eval(e)
	require.NoError(t, err, SQL(e))
	v, ok := got.Get()
	require.True(t, ok, "unknown result for %s", SQL(e))
	require.True(t, want.Identical(v), "%s: want %s, got %s", SQL(e), want, v)
}

func requireUnknown(t *testing.T, e Expr) {
	t.Helper()
	got, err := NewEvaluator().Eval(e)
	require.NoError(t, err, SQL(e))
	require.False(t, got.IsKnown(), SQL(e))
}

func requireIgnore(t *testing.T, ev *Evaluator, e Expr) {
	t.Helper()
	_, err := ev.Eval(e)
	require.True(t, value.IsIgnore(err), "%s: %v", SQL(e), err)
}

func TestScenarios(t *testing.T) {
	cases := []struct {
		name string
		expr Expr
		want value.Value
	}{
		{"int equals real", Compare(intLit(5), OpEq, Lit(value.Real(5))), value.Int(1)},
		{"first true branch", Case{
			Whens: []When{
				{Cond: Compare(intLit(1), OpEq, intLit(0)), Then: textLit("a")},
				{Cond: Compare(intLit(1), OpEq, intLit(1)), Then: textLit("b")},
			},
			Else: textLit("c"),
		}, value.Text("b")},
		{"null in list", In{Left: nullLit(), List: []Expr{intLit(1), intLit(2), intLit(3)}}, value.Null()},
		{"match before null", In{Left: intLit(5), List: []Expr{intLit(1), nullLit(), intLit(5)}}, value.Int(1)},
		{"no match with null", In{Left: intLit(1), List: []Expr{nullLit(), intLit(2)}}, value.Null()},
		{"no match", In{Left: intLit(1), List: []Expr{intLit(2), intLit(3)}}, value.Int(0)},
		{"empty list", In{Left: nullLit()}, value.Int(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireValue(t, tc.want, tc.expr)
		})
	}

	requireIgnore(t, NewEvaluator(), Binary{Left: Lit(value.Real(1e16)), Op: OpAdd, Right: intLit(0)})
	requireIgnore(t, NewEvaluator(), Binary{Left: intLit(0), Op: OpMul, Right: Lit(value.Real(-1e16))})
}

func TestBetween(t *testing.T) {
	e := Between{Expr: intLit(2), Left: intLit(1), Right: intLit(3)}
	require.Equal(t, "((2) BETWEEN (1) AND (3))", SQL(e))
	requireValue(t, value.Int(1), e)

	e.Negated = true
	require.Equal(t, "((2) NOT BETWEEN (1) AND (3))", SQL(e))
	requireValue(t, value.Int(0), e)

	requireValue(t, value.Null(), Between{Expr: nullLit(), Left: intLit(1), Right: intLit(3)})
	// Text sorts after numbers when no affinity applies.
	requireValue(t, value.Int(0), Between{Expr: textLit("2"), Left: intLit(1), Right: intLit(3)})
	// Integer column affinity converts the text bounds.
	col := column("c0", schema.TypeInt, value.Binary, value.Int(2))
	requireValue(t, value.Int(1), Between{Expr: col, Left: textLit("1"), Right: textLit("3")})
}

func TestCollationResolution(t *testing.T) {
	col := column("c0", schema.TypeText, value.NoCase, value.Text("abc"))
	requireValue(t, value.Int(1), Compare(col, OpEq, textLit("ABC")))
	requireValue(t, value.Int(1), Compare(textLit("ABC"), OpEq, col))
	requireValue(t, value.Int(1), Compare(Unary{Op: OpPlus, Expr: col}, OpEq, textLit("ABC")))
	requireValue(t, value.Int(1), Compare(Cast{Expr: col, Type: CastText}, OpEq, textLit("ABC")))
	requireValue(t, value.Int(0), Compare(Collate{Expr: col, Collation: value.Binary}, OpEq, textLit("ABC")))
	requireValue(t, value.Int(1), Compare(Collate{Expr: textLit("a"), Collation: value.NoCase}, OpEq, textLit("A")))
	requireValue(t, value.Int(0), Compare(textLit("a"), OpEq, Collate{Expr: textLit("A"), Collation: value.Binary}))
	requireValue(t, value.Int(1), Compare(textLit("a "), OpEq, Collate{Expr: textLit("a"), Collation: value.RTrim}))
	requireValue(t, value.Int(1), In{Left: col, List: []Expr{textLit("x"), textLit("ABC")}})

	c, ok := Binary{Left: col, Op: OpConcat, Right: Collate{Expr: textLit("x"), Collation: value.RTrim}}.ExplicitCollation()
	require.True(t, ok)
	require.Equal(t, value.RTrim, c)
	_, ok = Unary{Op: OpMinus, Expr: col}.ImplicitCollation()
	require.False(t, ok)
}

func TestCaseWithBase(t *testing.T) {
	base := Case{Base: intLit(2), Whens: []When{{Cond: textLit("2"), Then: textLit("x")}}}
	requireValue(t, value.Null(), base)

	col := column("c0", schema.TypeInt, value.Binary, value.Int(2))
	withCol := Case{Base: col, Whens: []When{{Cond: textLit("2"), Then: textLit("x")}}, Else: textLit("y")}
	require.Equal(t, "CASE t0.c0 WHEN '2' THEN 'x' ELSE 'y' END", SQL(withCol))
	requireValue(t, value.Text("x"), withCol)

	requireUnknown(t, Case{Whens: []When{{Cond: Text{SQL: "random()"}, Then: intLit(1)}}})
	requireValue(t, value.Null(), Case{Whens: []When{{Cond: intLit(0), Then: intLit(1)}}})
}

func TestOperators(t *testing.T) {
	cases := []struct {
		expr Expr
		want value.Value
	}{
		{Binary{Left: intLit(7), Op: OpDiv, Right: intLit(2)}, value.Int(3)},
		{Binary{Left: intLit(7), Op: OpRem, Right: intLit(-1)}, value.Int(0)},
		{Binary{Left: intLit(1), Op: OpDiv, Right: intLit(0)}, value.Null()},
		{Binary{Left: textLit("3"), Op: OpAdd, Right: intLit(4)}, value.Int(7)},
		{Binary{Left: Lit(value.Real(1.5)), Op: OpMul, Right: intLit(2)}, value.Real(3)},
		{Binary{Left: intLit(1), Op: OpConcat, Right: textLit("a")}, value.Text("1a")},
		{Binary{Left: nullLit(), Op: OpConcat, Right: textLit("a")}, value.Null()},
		{Binary{Left: intLit(1), Op: OpShiftLeft, Right: intLit(64)}, value.Int(0)},
		{Binary{Left: intLit(-1), Op: OpShiftRight, Right: intLit(100)}, value.Int(-1)},
		{Binary{Left: intLit(8), Op: OpShiftRight, Right: intLit(-1)}, value.Int(16)},
		{Binary{Left: intLit(6), Op: OpBitAnd, Right: intLit(3)}, value.Int(2)},
		{Binary{Left: intLit(6), Op: OpBitOr, Right: intLit(3)}, value.Int(7)},
		{And(intLit(0), nullLit()), value.Int(0)},
		{And(intLit(1), nullLit()), value.Null()},
		{Or(intLit(1), nullLit()), value.Int(1)},
		{Or(intLit(0), nullLit()), value.Null()},
		{Not(nullLit()), value.Null()},
		{Not(textLit("0.5")), value.Int(0)},
		{Unary{Op: OpMinus, Expr: intLit(math.MinInt64)}, value.Real(9.223372036854775808e18)},
		{Unary{Op: OpBitNot, Expr: intLit(0)}, value.Int(-1)},
		{Postfix{Op: OpIsNull, Expr: nullLit()}, value.Int(1)},
		{Postfix{Op: OpNotNull, Expr: nullLit()}, value.Int(0)},
		{Postfix{Op: OpIsTrue, Expr: nullLit()}, value.Int(0)},
		{Postfix{Op: OpIsFalse, Expr: intLit(0)}, value.Int(1)},
		{Compare(nullLit(), OpIs, nullLit()), value.Int(1)},
		{Compare(intLit(1), OpIsNot, nullLit()), value.Int(1)},
		{Compare(nullLit(), OpNotEq, intLit(1)), value.Null()},
		{Compare(intLit(1), OpLess, textLit("0")), value.Int(1)},
		{Compare(intLit(2), OpGreaterEq, intLit(2)), value.Int(1)},
		{Compare(textLit("ABC"), OpLike, textLit("a%")), value.Int(1)},
		{Compare(textLit("ABC"), OpGlob, textLit("a*")), value.Int(0)},
		{Compare(nullLit(), OpLike, textLit("%")), value.Null()},
	}
	for _, tc := range cases {
		requireValue(t, tc.want, tc.expr)
	}

	requireIgnore(t, NewEvaluator(), Binary{Left: intLit(math.MaxInt64), Op: OpAdd, Right: intLit(1)})
	requireIgnore(t, NewEvaluator(), Binary{Left: intLit(math.MinInt64), Op: OpDiv, Right: intLit(-1)})
	requireIgnore(t, &Evaluator{}, Binary{Left: Lit(value.Real(1.5)), Op: OpAdd, Right: intLit(1)})
	requireUnknown(t, Binary{Left: Text{SQL: "random()"}, Op: OpAdd, Right: intLit(1)})
}

func TestLogicalWithUnknownOperand(t *testing.T) {
	random := Text{SQL: "RANDOM()"}
	requireValue(t, value.Int(0), And(intLit(0), random))
	requireValue(t, value.Int(0), And(random, intLit(0)))
	requireValue(t, value.Int(0), And(random, textLit("0.0")))
	requireValue(t, value.Int(1), Or(intLit(1), random))
	requireValue(t, value.Int(1), Or(random, Lit(value.Real(0.5))))

	requireUnknown(t, And(intLit(1), random))
	requireUnknown(t, And(random, nullLit()))
	requireUnknown(t, Or(intLit(0), random))
	requireUnknown(t, Or(nullLit(), random))

	requireValue(t, value.Null(), And(intLit(1), nullLit()))
	requireValue(t, value.Int(0), And(nullLit(), intLit(0)))
	requireValue(t, value.Null(), Or(intLit(0), nullLit()))
	requireValue(t, value.Int(1), Or(nullLit(), intLit(1)))
	requireIgnore(t, NewEvaluator(), And(intLit(0), Binary{Left: intLit(math.MaxInt64), Op: OpAdd, Right: intLit(1)}))
}

func TestMatchers(t *testing.T) {
	like := []struct {
		s, p string
		want bool
	}{
		{"abc", "a%", true},
		{"ABC", "a_c", true},
		{"abc", "a_", false},
		{"", "%", true},
		{"a", "", false},
		{"", "", true},
		{"abc", "%b%", true},
		{"abc", "%%c", true},
		{"abd", "%c", false},
	}
	for _, tc := range like {
		require.Equal(t, tc.want, likeMatch([]rune(tc.s), []rune(tc.p)), "%q LIKE %q", tc.s, tc.p)
	}

	glob := []struct {
		s, p string
		want bool
	}{
		{"abc", "a*", true},
		{"ABC", "a*", false},
		{"abc", "a?c", true},
		{"abc", "[a-c]bc", true},
		{"dbc", "[a-c]bc", false},
		{"dbc", "[^a-c]bc", true},
		{"abc", "[abc", false},
		{"-", "[a-]", true},
		{"c", "[c-a]", true},
		{"b", "[c-a]", false},
		{"]", "[]]", true},
		{"a", "[^]", false},
		{"a*c", "a[*]c", true},
		{"abc", "a[*]c", false},
	}
	for _, tc := range glob {
		require.Equal(t, tc.want, globMatch([]rune(tc.s), []rune(tc.p)), "%q GLOB %q", tc.s, tc.p)
	}
}

func TestFunctions(t *testing.T) {
	fn := func(f ComputableFunc, args ...Expr) Function { return Function{Func: f, Args: args} }
	intCol := column("c1", schema.TypeInt, value.Binary, value.Int(1))
	cases := []struct {
		expr Expr
		want value.Value
	}{
		{fn(FuncAbs, intLit(-3)), value.Int(3)},
		{fn(FuncAbs, textLit("-2.5")), value.Real(2.5)},
		{fn(FuncAbs, textLit("abc")), value.Real(0)},
		{fn(FuncAbs, nullLit()), value.Null()},
		{fn(FuncCoalesce, nullLit(), nullLit(), intLit(2)), value.Int(2)},
		{fn(FuncIfNull, nullLit(), nullLit()), value.Null()},
		{fn(FuncLower, textLit("AbC")), value.Text("abc")},
		{fn(FuncUpper, textLit("straße")), value.Text("STRAßE")},
		{fn(FuncLower, nullLit()), value.Null()},
		{fn(FuncLikely, intLit(4)), value.Int(4)},
		{fn(FuncNullIf, intLit(1), intLit(1)), value.Null()},
		{fn(FuncNullIf, intLit(1), intLit(2)), value.Int(1)},
		{fn(FuncNullIf, Collate{Expr: textLit("a"), Collation: value.NoCase}, textLit("A")), value.Null()},
		{fn(FuncNullIf, intCol, textLit("1")), value.Int(1)},
		{Compare(intCol, OpEq, textLit("1")), value.Int(1)},
		{fn(FuncTrim, textLit("  x  ")), value.Text("x")},
		{fn(FuncTrim, intLit(5)), value.Text("5")},
		{fn(FuncTrim2, textLit("xxaxx"), textLit("x")), value.Text("a")},
		{fn(FuncTrim2, textLit("xxaxx"), nullLit()), value.Null()},
		{fn(FuncTypeof, Lit(value.Real(1.5))), value.Text("real")},
		{Typeof{Expr: nullLit()}, value.Text("null")},
	}
	for _, tc := range cases {
		requireValue(t, tc.want, tc.expr)
	}
	require.Equal(t, "COALESCE(NULL, 2)", SQL(fn(FuncCoalesce, nullLit(), intLit(2))))
	requireUnknown(t, fn(FuncHex, intLit(1)))
	requireUnknown(t, fn(FuncAbs, intLit(math.MinInt64)))
	requireIgnore(t, NewEvaluator(), fn(FuncAbs, Lit(value.Blob([]byte{1}))))
	requireUnknown(t, AnyFunction{Name: "INSTR", Args: []Expr{textLit("a"), textLit("b")}})
}

func TestAggregatesAndWindows(t *testing.T) {
	col := column("c0", schema.TypeInt, value.Binary, value.Int(1))
	count := Aggregate{Func: AggCountAll}
	require.Equal(t, "COUNT(*)", SQL(count))
	requireUnknown(t, count)
	requireUnknown(t, Aggregate{Func: AggMax, Args: []Expr{col}})

	rank := WindowFunction{Func: WinRowNumber}
	requireUnknown(t, rank)
	must := &Evaluator{MustKnowResult: true, AllowFloatingPoint: true}
	got, err := must.Eval(rank)
	require.NoError(t, err)
	require.True(t, value.Int(1).Identical(got.Value()))

	nth := WindowFunction{Func: WinNthValue, Args: []Expr{intLit(7), intLit(1)}}
	got, err = must.Eval(nth)
	require.NoError(t, err)
	require.True(t, value.Int(7).Identical(got.Value()))
	nth.Args[1] = intLit(2)
	got, err = must.Eval(nth)
	require.NoError(t, err)
	require.True(t, got.Value().IsNull())

	requireIgnore(t, must, WindowFunction{Func: WinFirstValue, Args: []Expr{Text{SQL: "random()"}}})

	w := WindowExpr{
		Func:        WindowFunction{Func: WinRank},
		PartitionBy: []Expr{col},
		Frame: FrameBetween{
			Left:  FrameTerm{Bound: UnboundedPreceding},
			Right: FrameTerm{Expr: intLit(1), Bound: Following},
		},
		FrameKind: FrameRows,
		Exclude:   ExcludeTies,
	}
	require.Equal(t, "RANK() OVER (PARTITION BY t0.c0 ROWS BETWEEN UNBOUNDED PRECEDING AND 1 FOLLOWING EXCLUDE TIES)", SQL(w))
	w = WindowExpr{Func: WindowFunction{Func: WinCumeDist}, Filter: intLit(1), OrderBy: []Expr{col}}
	require.Equal(t, "CUME_DIST() FILTER(WHERE 1) OVER (ORDER BY t0.c0)", SQL(w))
}

func TestSelectRendering(t *testing.T) {
	tbl := schema.Table{Name: "t0"}
	col := column("c0", schema.TypeInt, value.Binary, value.Int(1))
	s := &Select{
		Columns: []Expr{Alias{Expr: col, Name: "c0"}},
		From:    []Expr{TableRef{Table: tbl}},
		Joins:   []Join{{Table: schema.Table{Name: "t1"}, Type: JoinLeft, On: intLit(1)}},
		Where:   Compare(col, OpEq, intLit(1)),
		GroupBy: []Expr{col},
		Having:  Compare(Aggregate{Func: AggCountAll}, OpGreater, intLit(0)),
		OrderBy: []Expr{OrderingTerm{Expr: col, Ordering: Desc}},
		Limit:   intLit(1),
	}
	require.Equal(t, "SELECT (t0.c0) AS c0 FROM t0 LEFT OUTER JOIN t1 ON 1 WHERE ((t0.c0 = 1))"+
		" GROUP BY t0.c0 HAVING (COUNT(*) > 0) ORDER BY t0.c0 DESC LIMIT 1", s.SQL())

	clone := s.Clone()
	clone.Distinct = true
	clone.Columns = nil
	require.NoError(t, clone.ReplaceFromTable("t0", Alias{Expr: Subquery{Query: &Select{Columns: []Expr{intLit(1)}}}, Name: "t0"}))
	require.Equal(t, "SELECT DISTINCT * FROM ((SELECT 1)) AS t0 LEFT OUTER JOIN t1 ON 1 WHERE ((t0.c0 = 1))"+
		" GROUP BY t0.c0 HAVING (COUNT(*) > 0) ORDER BY t0.c0 DESC LIMIT 1", clone.SQL())
	require.Equal(t, "t0", SQL(s.From[0]))
	require.Error(t, clone.ReplaceFromTable("t9", intLit(1)))

	ref := TableRef{Table: tbl, IndexedBy: "i0"}
	require.Equal(t, "t0 INDEXED BY i0", SQL(ref))
	require.Equal(t, "(t0.c0 IN t0 INDEXED BY i0)", SQL(In{Left: col, Query: ref}))
	requireUnknown(t, In{Left: col, Query: &Select{Columns: []Expr{intLit(1)}}})

	inner := &Select{Columns: []Expr{intLit(1)}}
	require.Equal(t, "(NOT EXISTS (SELECT 1))", SQL(Exists{Query: inner, Negated: true}))
	require.Equal(t, "EXISTS (SELECT 1)", SQL(Exists{Query: inner}))
	require.Equal(t, "SELECT 1 UNION ALL SELECT 1", SQL(SetClause{Left: inner, Op: UnionAll, Right: inner}))
}

func TestFolding(t *testing.T) {
	slot := NewSlot(Compare(intLit(1), OpEq, intLit(1)))
	s := &Select{Columns: []Expr{intLit(1)}, Where: slot}
	require.Equal(t, "SELECT 1 WHERE ((1 = 1))", s.SQL())
	slot.Set(intLit(1))
	require.Equal(t, "SELECT 1 WHERE (1)", s.SQL())

	with := &With{
		Left:  ColumnList{Name: "t1", Columns: []string{"c0", "c1"}},
		Right: Subquery{Query: &Select{Columns: []Expr{intLit(1), intLit(2)}}},
	}
	s = &Select{With: with, From: []Expr{TableRef{Table: schema.Table{Name: "t1"}}}}
	require.Equal(t, "WITH t1(c0, c1) AS (SELECT 1, 2) SELECT * FROM t1", s.SQL())
	with.SetRight(Values{Rows: [][]value.Value{
		{value.Int(1), value.Null()},
		{value.Text("a"), value.Real(2.5)},
	}})
	require.Equal(t, "WITH t1(c0, c1) AS (VALUES ((CAST(1 AS INTEGER)), NULL), ((CAST('a' AS TEXT)), (CAST(2.5 AS REAL)))) SELECT * FROM t1", s.SQL())

	col := column("c0", schema.TypeInt, value.Binary, value.Null())
	m := ResultMap{
		Columns: []Expr{col},
		Rows:    [][]value.Value{{value.Int(1)}, {value.Null()}},
		Results: []value.Value{value.Text("x"), value.Text("y")},
	}
	require.Equal(t, "CASE WHEN (t0.c0 = 1) THEN 'x' WHEN (t0.c0 IS NULL) THEN 'y' END", SQL(m))
	requireValue(t, value.Text("y"), m)
	col.Value = value.Known(value.Int(1))
	m.Columns[0] = col
	requireValue(t, value.Text("x"), m)
	col.Value = value.Known(value.Int(5))
	m.Columns[0] = col
	requireValue(t, value.Null(), m)
}

func TestRectifiedPredicates(t *testing.T) {
	col := column("c0", schema.TypeText, value.NoCase, value.Text("abc"))
	preds := []Expr{
		Compare(col, OpEq, textLit("ABC")),
		Compare(col, OpLess, textLit("ab")),
		Binary{Left: col, Op: OpConcat, Right: nullLit()},
		Function{Func: FuncLower, Args: []Expr{col}},
	}
	ev := NewEvaluator()
	for _, p := range preds {
		m, err := ev.Eval(p)
		require.NoError(t, err)
		rectified := Rectify(p, m.Value())
		got, err := ev.Eval(rectified)
		require.NoError(t, err)
		require.Equal(t, value.True, value.IsTrue(got.Value()), SQL(rectified))
	}
}

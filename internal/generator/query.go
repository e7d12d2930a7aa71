package generator

import (
	"limbofuzz/internal/ast"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

// JoinClauses turns some of tables into JOIN clauses and returns the tables
// left for the FROM list. NATURAL joins are only used alone since they need
// unique column names.
func (g *Generator) JoinClauses(tables []schema.TableID) ([]ast.Join, []schema.TableID) {
	remaining := append([]schema.TableID(nil), tables...)
	if !g.Config.Joins || len(remaining) < 2 || !util.Coin(g.Rand) {
		return nil, remaining
	}
	n := g.Rand.Intn(len(remaining))
	options := ast.JoinTypes
	if n > 1 {
		options = make([]ast.JoinType, 0, len(ast.JoinTypes))
		for _, t := range ast.JoinTypes {
			if t != ast.JoinNatural {
				options = append(options, t)
			}
		}
	}
	joins := make([]ast.Join, 0, n)
	for i := 0; i < n; i++ {
		on := g.Expression()
		idx := g.Rand.Intn(len(remaining))
		tbl := g.Schema.Table(remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		typ := util.Pick(g.Rand, options)
		if typ == ast.JoinNatural {
			on = nil
		}
		joins = append(joins, ast.Join{Table: tbl, Type: typ, On: on})
	}
	return joins, remaining
}

// TableRefs returns FROM entries for tables, occasionally with an indexing
// clause.
func (g *Generator) TableRefs(tables []schema.TableID) []ast.Expr {
	refs := make([]ast.Expr, 0, len(tables))
	for _, id := range tables {
		ref := ast.TableRef{Table: g.Schema.Table(id)}
		switch {
		case util.Chance(g.Rand, IndexedByProb) && len(g.Schema.Indexes) > 0:
			ref.IndexedBy = util.Pick(g.Rand, g.Schema.Indexes)
		case util.Chance(g.Rand, NotIndexedProb):
			ref.NotIndexed = true
		}
		refs = append(refs, ref)
	}
	return refs
}

// OrderingTerm returns an ORDER BY term with optional direction and NULLS
// placement.
func (g *Generator) OrderingTerm() ast.Expr {
	e := g.Expression()
	if util.Coin(g.Rand) {
		e = ast.OrderingTerm{Expr: e, Ordering: util.Pick(g.Rand, []ast.Ordering{ast.Asc, ast.Desc})}
	}
	if g.Config.NullsFirstLast && util.Coin(g.Rand) {
		e = ast.PostfixText{Expr: e, Text: util.Pick(g.Rand, []string{"NULLS FIRST", "NULLS LAST"})}
	}
	return e
}

// OrderBys returns one or more ordering terms.
func (g *Generator) OrderBys() []ast.Expr {
	n := util.SmallNumber(g.Rand) + 1
	out := make([]ast.Expr, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.OrderingTerm())
	}
	return out
}

// FetchColumns returns a non-empty subset of the column scope, or * when
// star is allowed and chosen.
func (g *Generator) FetchColumns(star bool) []ast.Expr {
	if (star && util.Coin(g.Rand)) || len(g.columns) == 0 {
		return []ast.Expr{ast.Star()}
	}
	cols := util.NonEmptySubset(g.Rand, g.columns)
	out := make([]ast.Expr, 0, len(cols))
	for _, c := range cols {
		col := ast.Column{Col: c}
		if !g.unqualified {
			col.Table = g.Schema.TableName(c)
		}
		out = append(out, col)
	}
	return out
}

// Select returns SELECT * over the table scope with random joins.
func (g *Generator) Select() *ast.Select {
	joins, from := g.JoinClauses(g.tables)
	return &ast.Select{
		From:  g.TableRefs(from),
		Joins: joins,
	}
}

// NoRECOptimized returns the query whose WHERE clause the engine may
// optimize: SELECT COUNT(*) or SELECT * filtered by where.
func (g *Generator) NoRECOptimized(sel *ast.Select, where ast.Expr, count bool) *ast.Select {
	q := sel.Clone()
	if util.Coin(g.Rand) {
		q.OrderBy = g.OrderBys()
	}
	if count {
		q.Columns = []ast.Expr{ast.Aggregate{Func: ast.AggCountAll}}
	} else {
		q.Columns = []ast.Expr{ast.Star()}
	}
	q.Where = where
	return q
}

// NoRECUnoptimized moves where into the fetch list so that it is evaluated
// for every row, and sums the rows for which it is true.
func (g *Generator) NoRECUnoptimized(sel *ast.Select, where ast.Expr) string {
	q := sel.Clone()
	q.Columns = []ast.Expr{ast.PostfixText{Expr: ast.Postfix{Op: ast.OpIsTrue, Expr: where}, Text: "as count"}}
	q.Where = nil
	q.OrderBy = nil
	return "SELECT SUM(count) FROM (" + q.SQL() + ")"
}

// RandomQuery synthesizes a random SELECT with size fetch columns, possibly
// using window functions, joins, grouping, ordering, limits and compound
// operators.
func (g *Generator) RandomQuery(size int) (ast.Expr, error) {
	tables, err := g.Schema.RandomNonEmptyTables(g.Rand)
	if err != nil {
		return nil, err
	}
	base := g.WithTables(tables)
	base.subqueries = false
	base.aggregates = false
	base.row = nil
	aggregates := base.WithAggregates()

	sel := &ast.Select{}
	switch g.Rand.Intn(3) {
	case 0:
		sel.Distinct = true
	case 1:
		sel.ExplicitAll = true
	}
	for i := 0; i < size; i++ {
		if util.Chance(g.Rand, WindowProb) {
			sel.Columns = append(sel.Columns, base.windowExpr())
		} else {
			sel.Columns = append(sel.Columns, aggregates.Expression())
		}
	}
	from := tables
	if util.RatherLow(g.Rand) {
		sel.Joins, from = base.JoinClauses(tables)
	}
	sel.From = base.TableRefs(from)
	if util.Coin(g.Rand) {
		sel.Where = base.Expression()
	}
	groupBy := util.RatherLow(g.Rand)
	if groupBy {
		sel.GroupBy = base.Expressions(util.SmallNumber(g.Rand) + 1)
		if util.Coin(g.Rand) {
			sel.Having = aggregates.Expression()
		}
	}
	orderBy := util.RatherLow(g.Rand)
	if orderBy {
		sel.OrderBy = base.OrderBys()
	}
	if util.RatherLow(g.Rand) {
		sel.Limit = ast.Lit(value.Int(g.Integer()))
		if util.Coin(g.Rand) {
			sel.Offset = ast.Lit(value.Int(g.Integer()))
		}
	}
	if !orderBy && !groupBy && util.Chance(g.Rand, SetClauseProb) {
		right, err := g.RandomQuery(size)
		if err != nil {
			return nil, err
		}
		return ast.SetClause{Left: sel, Op: util.Pick(g.Rand, ast.SetOps), Right: right}, nil
	}
	return sel, nil
}

func (g *Generator) windowExpr() ast.Expr {
	w := ast.WindowExpr{}
	aggregate := util.Coin(g.Rand)
	if aggregate {
		w.Func = g.aggregate(0, true)
	} else {
		f := util.Pick(g.Rand, ast.WindowFuncs)
		w.Func = ast.WindowFunction{Func: f, Args: g.Expressions(f.Args())}
	}
	if aggregate && util.RatherLow(g.Rand) {
		w.Filter = g.Expression()
	}
	if util.RatherLow(g.Rand) {
		w.OrderBy = g.OrderBys()
	}
	if util.RatherLow(g.Rand) {
		w.PartitionBy = g.Expressions(util.SmallNumber(g.Rand))
	}
	if util.RatherLow(g.Rand) {
		w.FrameKind = util.Pick(g.Rand, ast.FrameKinds)
		switch {
		case util.Coin(g.Rand):
			w.Frame = ast.FrameTerm{Bound: util.Pick(g.Rand, []ast.FrameBound{ast.UnboundedPreceding, ast.CurrentRow})}
		case util.Coin(g.Rand):
			w.Frame = ast.FrameTerm{Expr: g.Expression(), Bound: ast.Preceding}
		default:
			w.Frame = ast.FrameBetween{Left: g.frameTerm(true), Right: g.frameTerm(false)}
		}
		if util.Coin(g.Rand) {
			w.Exclude = util.Pick(g.Rand, ast.FrameExcludes)
		}
	}
	return w
}

func (g *Generator) frameTerm(left bool) ast.FrameTerm {
	switch {
	case util.Coin(g.Rand):
		return ast.FrameTerm{Expr: g.Expression(), Bound: util.Pick(g.Rand, []ast.FrameBound{ast.Following, ast.Preceding})}
	case util.Coin(g.Rand):
		return ast.FrameTerm{Bound: ast.CurrentRow}
	case left:
		return ast.FrameTerm{Bound: ast.UnboundedPreceding}
	}
	return ast.FrameTerm{Bound: ast.UnboundedFollowing}
}

package generator

import (
	"limbofuzz/internal/ast"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

type nodeKind int

const (
	kindQuery nodeKind = iota
	kindColumn
	kindLiteral
	kindUnary
	kindPostfix
	kindBinary
	kindBetween
	kindCast
	kindComparison
	kindFunction
	kindIn
	kindCollate
	kindCase
	kindMatch
	kindAggregate
	kindRowValueComparison
	kindAndOrChain
)

// Expression returns a random expression over the column scope.
func (g *Generator) Expression() ast.Expr {
	return g.expr(0)
}

// Expressions returns n random expressions.
func (g *Generator) Expressions(n int) []ast.Expr {
	return g.exprs(n, 0)
}

// Predicate returns a random expression used as a condition.
func (g *Generator) Predicate() ast.Expr {
	return g.Expression()
}

func (g *Generator) exprs(n, depth int) []ast.Expr {
	out := make([]ast.Expr, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.expr(depth))
	}
	return out
}

// weights masks the node kinds that the current configuration forbids.
func (g *Generator) weights() []int {
	w := nodeWeights
	if len(g.columns) == 0 {
		w[kindColumn] = 0
	}
	if !g.match || !g.Config.Match {
		w[kindMatch] = 0
	}
	if !g.aggregateFuncs {
		w[kindAggregate] = 0
	}
	if !g.subqueries || len(g.Schema.Tables) == 0 {
		w[kindQuery] = 0
	}
	if !g.Config.Functions {
		w[kindFunction] = 0
	}
	if !g.Config.In {
		w[kindIn] = 0
	}
	return w[:]
}

func (g *Generator) expr(depth int) ast.Expr {
	if g.aggregates && util.Coin(g.Rand) {
		return g.aggregate(depth+1, false)
	}
	if depth >= g.Config.MaxDepth {
		if util.Chance(g.Rand, LiteralRatherLowProb) || len(g.columns) == 0 {
			return g.Literal()
		}
		return g.column()
	}
	switch nodeKind(util.PickWeighted(g.Rand, g.weights(), nil)) {
	case kindAndOrChain:
		return g.andOrChain(depth + 1)
	case kindLiteral:
		return g.Literal()
	case kindColumn:
		return g.column()
	case kindUnary:
		return ast.Unary{Op: util.Pick(g.Rand, ast.UnaryOps), Expr: g.expr(depth + 1)}
	case kindPostfix:
		return ast.Postfix{Op: util.Pick(g.Rand, ast.PostfixOps), Expr: g.expr(depth + 1)}
	case kindBinary:
		return ast.Binary{Left: g.expr(depth + 1), Op: util.Pick(g.Rand, ast.BinaryOps), Right: g.expr(depth + 1)}
	case kindComparison:
		return g.comparison(g.expr(depth+1), util.Pick(g.Rand, ast.CompareOps), g.expr(depth+1))
	case kindBetween:
		return ast.Between{Expr: g.expr(depth + 1), Negated: util.Coin(g.Rand), Left: g.expr(depth + 1), Right: g.expr(depth + 1)}
	case kindCast:
		return ast.Cast{Expr: g.expr(depth + 1), Type: util.Pick(g.Rand, ast.CastTypes)}
	case kindFunction:
		return g.function(depth)
	case kindIn:
		return ast.In{Left: g.expr(depth + 1), List: g.exprs(util.SmallNumber(g.Rand), depth+1)}
	case kindCollate:
		return ast.Collate{Expr: g.expr(depth + 1), Collation: util.Pick(g.Rand, value.Collations)}
	case kindCase:
		return g.caseExpr(depth + 1)
	case kindMatch:
		return g.matchExpr(depth)
	case kindAggregate:
		return g.aggregate(depth, false)
	case kindRowValueComparison:
		return g.rowValueComparison(depth + 1)
	case kindQuery:
		q, err := g.RandomQuery(MaxSubqueryColumns)
		if err != nil {
			return g.Literal()
		}
		return ast.Subquery{Query: q}
	}
	panic("generator: unknown node kind")
}

func (g *Generator) column() ast.Expr {
	return g.ColumnExpr(util.Pick(g.Rand, g.columns))
}

func (g *Generator) comparison(l ast.Expr, op ast.CompareOp, r ast.Expr) ast.Comparison {
	c := ast.Compare(l, op, r)
	c.Spelling = g.Rand.Intn(len(op.Spellings()))
	return c
}

func (g *Generator) andOrChain(depth int) ast.Expr {
	n := util.SmallNumber(g.Rand) + 2
	e := g.expr(depth + 1)
	for i := 0; i < n; i++ {
		op := ast.OpAnd
		if util.Coin(g.Rand) {
			op = ast.OpOr
		}
		e = ast.Binary{Left: e, Op: op, Right: g.expr(depth + 1)}
	}
	return e
}

func (g *Generator) caseExpr(depth int) ast.Expr {
	n := 1 + util.SmallNumber(g.Rand)
	c := ast.Case{Whens: make([]ast.When, 0, n)}
	for i := 0; i < n; i++ {
		c.Whens = append(c.Whens, ast.When{Cond: g.expr(depth + 1), Then: g.expr(depth + 1)})
	}
	if util.Coin(g.Rand) {
		c.Else = g.expr(depth + 1)
	}
	if util.Coin(g.Rand) {
		c.Base = g.expr(depth + 1)
	}
	return c
}

func (g *Generator) matchExpr(depth int) ast.Expr {
	left := g.expr(depth + 1)
	var right ast.Expr
	if util.Coin(g.Rand) {
		right = g.expr(depth + 1)
	} else {
		right = ast.Lit(value.Text(g.MatchString()))
	}
	return ast.Match{Left: left, Right: right}
}

// aggregate builds an aggregate call. Window use excludes MIN and MAX.
func (g *Generator) aggregate(depth int, window bool) ast.Expr {
	f := util.Pick(g.Rand, ast.AggregateFuncs)
	for window && (f == ast.AggMax || f == ast.AggMin) {
		f = util.Pick(g.Rand, ast.AggregateFuncs)
	}
	if f == ast.AggCountAll {
		return ast.Aggregate{Func: f}
	}
	return ast.Aggregate{Func: f, Args: g.exprs(1, depth+1)}
}

// AggregateExpr returns a random aggregate call over the column scope.
func (g *Generator) AggregateExpr() ast.Expr {
	return g.aggregate(0, false)
}

func (g *Generator) rowValueComparison(depth int) ast.Expr {
	size := util.SmallNumber(g.Rand) + 1
	left := ast.RowValue{Exprs: g.exprs(size, depth+1)}
	right := ast.RowValue{Exprs: g.exprs(size, depth+1)}
	if util.Coin(g.Rand) {
		return g.comparison(left, util.Pick(g.Rand, ast.RowValueCompareOps), right)
	}
	return ast.Between{
		Expr:    ast.RowValue{Exprs: g.exprs(size, depth+2)},
		Negated: util.Coin(g.Rand),
		Left:    left,
		Right:   right,
	}
}

// ResultKnown returns an expression whose value ev can compute. It gives up
// with an ignore error after KnownResultMaxTries attempts.
func (g *Generator) ResultKnown(ev *ast.Evaluator) (ast.Expr, value.Value, error) {
	for i := 0; i < KnownResultMaxTries; i++ {
		e := g.Expression()
		m, err := e.Expected(ev)
		if err != nil {
			if value.IsIgnore(err) {
				continue
			}
			return nil, value.Value{}, err
		}
		if v, ok := m.Get(); ok {
			return e, v, nil
		}
	}
	return nil, value.Value{}, value.Ignoref("no expression with a known result after %d tries", KnownResultMaxTries)
}

// Having returns a HAVING condition in which half of all nodes are
// aggregate calls.
func (g *Generator) Having() ast.Expr {
	c := g.clone()
	c.aggregates = true
	return c.Expression()
}

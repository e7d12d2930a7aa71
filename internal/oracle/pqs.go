package oracle

import (
	"context"
	"math"
	"strings"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

// PQS implements Pivoted Query Synthesis. It picks a random pivot row,
// builds a query whose predicates are rectified to be true for that row, and
// checks that the row is in the result:
//
//	SELECT <pivot values> INTERSECT SELECT * FROM (<query>)
//
// must not be empty.
type PQS struct {
	// MaxInserts is the number of INSERT statements run per database. LIMIT
	// values stay above the size of the joined tables.
	MaxInserts int
}

// Name returns the oracle identifier.
func (o PQS) Name() string { return "PQS" }

// Run synthesizes one query around a pivot row and checks containment.
func (o PQS) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), 0, func(a *attempt) error {
		tables, err := sch.RandomNonEmptyTables(gen.Rand)
		if err != nil {
			return err
		}
		pivot, pivotSQL, err := a.conn.QueryRowValue(a.ctx, sch, tables)
		a.sql = append(a.sql, pivotSQL)
		if err != nil {
			return err
		}
		s := &pqsState{
			g:  gen.WithSchema(sch).WithTables(tables).WithRowValues(pivot),
			ev: evaluator(gen),
		}
		sel, expected, err := s.query(a, tables, o.MaxInserts*generator.InsertRowsMax)
		if err != nil {
			return err
		}

		if err := spliceable(expected...); err != nil {
			return err
		}
		lits := literals(expected)
		query := sel.SQL()
		containment := "SELECT " + strings.Join(lits, ", ") + " INTERSECT SELECT * FROM (" + query + ")"
		rs, err := a.query(containment)
		if err != nil {
			return err
		}
		if len(rs.Rows) == 0 {
			return mismatchf("row ("+strings.Join(lits, ", ")+") contained", "not contained", map[string]any{
				"pivot_sql":       pivotSQL,
				"query_sql":       query,
				"containment_sql": containment,
				"pivot_row":       lits,
			})
		}
		return nil
	})
}

type pqsState struct {
	g  *generator.Generator
	ev *ast.Evaluator
}

// rectified returns a predicate that is true for the pivot row.
func (s *pqsState) rectified(aggregates bool) (ast.Expr, error) {
	g := s.g.WithKnownResult()
	if aggregates {
		g = g.WithAggregates()
	}
	e, v, err := g.ResultKnown(s.ev)
	if err != nil {
		return nil, err
	}
	return ast.Rectify(e, v), nil
}

// query builds the statement and the values the pivot row must produce for
// its fetch columns.
func (s *pqsState) query(a *attempt, tables []schema.TableID, maxRows int) (*ast.Select, []value.Value, error) {
	g := s.g
	sel := &ast.Select{}
	switch g.Rand.Intn(3) {
	case 0:
		sel.Distinct = true
	case 1:
		sel.ExplicitAll = true
	}

	joins, from := g.JoinClauses(tables)
	for i := range joins {
		if joins[i].Type == ast.JoinNatural {
			joins[i].Type = ast.JoinInner
		}
		on, err := s.rectified(false)
		if err != nil {
			return nil, nil, err
		}
		joins[i].On = on
	}
	a.expect("ON clause references tables to its right")
	sel.Joins = joins
	sel.From = g.TableRefs(from)

	var expected []value.Value
	for _, c := range util.NonEmptySubset(g.Rand, g.Columns()) {
		if util.Coin(g.Rand) {
			e, v, err := g.WithKnownResult().ResultKnown(s.ev)
			if err != nil {
				return nil, nil, err
			}
			sel.Columns = append(sel.Columns, e)
			expected = append(expected, v)
			continue
		}
		col := g.ColumnExpr(c)
		v, ok := col.Value.Get()
		if !ok {
			return nil, nil, value.Ignoref("pivot row lacks %s", c.Name)
		}
		sel.Columns = append(sel.Columns, col)
		expected = append(expected, v)
	}

	where, err := s.rectified(false)
	if err != nil {
		return nil, nil, err
	}
	sel.Where = where

	a.expect("GROUP BY term out of range")
	if util.Coin(g.Rand) {
		for _, c := range g.Columns() {
			sel.GroupBy = append(sel.GroupBy, g.ColumnExpr(c))
		}
		if util.Coin(g.Rand) {
			sel.GroupBy = append(sel.GroupBy, g.Expressions(util.SmallNumber(g.Rand))...)
		}
	}
	if util.Coin(g.Rand) {
		sel.Limit = ast.Lit(value.Int(util.IntBetween(g.Rand, limitFloor(maxRows, len(joins)+len(from)), math.MaxInt64)))
		if util.Coin(g.Rand) {
			sel.Offset = ast.Lit(value.Int(0))
		}
	}
	sel.OrderBy = g.OrderBys()
	if len(sel.GroupBy) > 0 && util.Coin(g.Rand) {
		having, err := s.rectified(true)
		if err != nil {
			return nil, nil, err
		}
		sel.Having = having
	}
	return sel, expected, nil
}

// limitFloor is the largest row count a join of n tables with maxRows rows
// each can produce.
func limitFloor(maxRows, n int) int64 {
	f := math.Pow(float64(max(maxRows, 1)), float64(n))
	if f >= math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(f)
}

package oracle

import (
	"context"
	"fmt"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/db"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

var partitionableAggregates = []ast.AggregateFunc{ast.AggMin, ast.AggMax, ast.AggSum, ast.AggTotal}

// TLPAggregate checks that an aggregate over a table equals the same
// aggregate over the aggregates of the three partitions:
//
//	SELECT MAX(e) FROM t
//	SELECT MAX(aggr) FROM (SELECT MAX(e) as aggr FROM t WHERE p UNION ALL ...)
type TLPAggregate struct{}

// Name returns the oracle identifier.
func (o TLPAggregate) Name() string { return "AGGREGATE" }

// Run compares the two aggregate values. Engine errors abandon the attempt.
func (o TLPAggregate) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), 0, func(a *attempt) error {
		tables, err := sch.RandomNonEmptyTables(gen.Rand)
		if err != nil {
			return err
		}
		g := gen.WithSchema(sch).WithTables(tables)
		f := util.Pick(g.Rand, partitionableAggregates)
		agg := ast.Aggregate{Func: f, Args: g.Expressions(1)}
		from := g.TableRefs(tables)

		original := &ast.Select{Columns: []ast.Expr{agg}, From: from}
		if util.Coin(g.Rand) {
			original.OrderBy = g.OrderBys()
		}
		p := g.Predicate()
		parts := make([]*ast.Select, 0, 3)
		for _, pred := range []ast.Expr{p, ast.Not(p), ast.IsNull(p)} {
			part := &ast.Select{
				Columns: []ast.Expr{ast.PostfixText{Expr: agg, Text: "as aggr"}},
				From:    from,
				Where:   pred,
			}
			if util.RatherLow(g.Rand) {
				part.GroupBy = g.Expressions(util.SmallNumber(g.Rand) + 1)
			}
			if util.Coin(g.Rand) {
				part.OrderBy = g.OrderBys()
			}
			parts = append(parts, part)
		}
		metamorphic := fmt.Sprintf("SELECT %s(aggr) FROM (%s)", aggregateName(f), combine(ast.UnionAll, parts))

		want, err := firstValue(a, original.SQL())
		if err != nil {
			return err
		}
		got, err := firstValue(a, metamorphic)
		if err != nil {
			return err
		}
		if !sameScalar(want, got) {
			return mismatchf(want.String(), got.String(), map[string]any{
				"expected_sql": original.SQL(),
				"actual_sql":   metamorphic,
			})
		}
		return nil
	})
}

func aggregateName(f ast.AggregateFunc) string {
	if f == ast.AggCountAll {
		return ast.AggCount.String()
	}
	return f.String()
}

// firstValue returns the first column of the first row. Any engine error
// abandons the attempt.
func firstValue(a *attempt, q string) (value.Value, error) {
	rs, err := a.query(q)
	if err != nil {
		return value.Value{}, value.Ignoref("aggregate query failed: %v", err)
	}
	return firstOf(rs)
}

func firstOf(rs db.ResultSet) (value.Value, error) {
	if len(rs.Rows) == 0 || len(rs.Rows[0]) == 0 {
		return value.Value{}, value.Ignoref("empty result")
	}
	return rs.Rows[0][0], nil
}

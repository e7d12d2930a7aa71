package oracle

import (
	"context"
	"fmt"

	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
)

// NoREC compares a query whose WHERE clause the engine may optimize with
// an equivalent query that evaluates the predicate for every row:
//
//	SELECT COUNT(*) FROM t WHERE p
//	SELECT SUM(count) FROM (SELECT p IS TRUE as count FROM t)
//
// Both must count the same rows.
type NoREC struct {
	MaxRows int
}

// Name returns the oracle identifier.
func (o NoREC) Name() string { return "NoREC" }

// Run builds one query pair and compares the counts.
func (o NoREC) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), o.MaxRows, func(a *attempt) error {
		tables, err := sch.RandomNonEmptyTables(gen.Rand)
		if err != nil {
			return err
		}
		g := gen.WithSchema(sch).WithTables(tables).WithMatch()
		sel := g.Select()
		where := g.Predicate()
		count := util.Coin(g.Rand)
		optimized := g.NoRECOptimized(sel, where, count).SQL()
		unoptimized := g.NoRECUnoptimized(sel, where)

		var optCount int64
		if count {
			if optCount, err = a.count(optimized); err != nil {
				return err
			}
		} else {
			rs, err := a.query(optimized)
			if err != nil {
				return err
			}
			optCount = int64(len(rs.Rows))
		}
		unoptCount, err := a.count(unoptimized)
		if err != nil {
			return err
		}
		if optCount != unoptCount {
			return mismatchf(
				fmt.Sprintf("optimized count=%d", optCount),
				fmt.Sprintf("unoptimized count=%d", unoptCount),
				map[string]any{"optimized_sql": optimized, "unoptimized_sql": unoptimized},
			)
		}
		return nil
	})
}

package oracle

import (
	"context"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

// Fuzzer executes random queries without checking their results. It finds
// crashes and hangs; engine errors are not findings.
type Fuzzer struct{}

// Name returns the oracle identifier.
func (o Fuzzer) Name() string { return "FUZZER" }

// Run executes one random query.
func (o Fuzzer) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), 0, func(a *attempt) error {
		q, err := gen.WithSchema(sch).WithSubqueries().RandomQuery(util.SmallNumber(gen.Rand) + 1)
		if err != nil {
			return err
		}
		if err := a.exec(ast.SQL(q)); err != nil {
			return value.Ignoref("random query failed: %v", err)
		}
		return nil
	})
}

package oracle

import (
	"context"
	"strings"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

// Ternary Logic Partitioning splits a predicate P into
//
//	P, NOT P, and P ISNULL
//
// Every row of a query satisfies exactly one of them, so combining the three
// filtered queries must reproduce the unfiltered result. The variants apply
// the partition under WHERE, DISTINCT, GROUP BY, HAVING and aggregates.

// tlpQuery is the unfiltered query shared by the partitions.
type tlpQuery struct {
	g   *generator.Generator
	sel *ast.Select
	p   ast.Expr
}

func newTLPQuery(gen *generator.Generator, sch *schema.Schema, star bool) (*tlpQuery, error) {
	tables, err := sch.RandomNonEmptyTables(gen.Rand)
	if err != nil {
		return nil, err
	}
	g := gen.WithSchema(sch).WithTables(tables)
	sel := &ast.Select{Columns: g.FetchColumns(star)}
	var from []schema.TableID
	sel.Joins, from = g.JoinClauses(tables)
	sel.From = g.TableRefs(from)
	return &tlpQuery{g: g, sel: sel, p: g.Predicate()}, nil
}

// predicates returns P, NOT P and P ISNULL.
func (q *tlpQuery) predicates() []ast.Expr {
	return []ast.Expr{q.p, ast.Not(q.p), ast.IsNull(q.p)}
}

// partitions returns copies of the query with each predicate placed by set.
func (q *tlpQuery) partitions(set func(sel *ast.Select, p ast.Expr)) []*ast.Select {
	out := make([]*ast.Select, 0, 3)
	for _, p := range q.predicates() {
		sel := q.sel.Clone()
		set(sel, p)
		out = append(out, sel)
	}
	return out
}

func where(sel *ast.Select, p ast.Expr)  { sel.Where = p }
func having(sel *ast.Select, p ast.Expr) { sel.Having = p }

// combine joins queries with a compound operator.
func combine(op ast.SetOp, queries []*ast.Select) string {
	var e ast.Expr = queries[0]
	for _, q := range queries[1:] {
		e = ast.SetClause{Left: e, Op: op, Right: q}
	}
	return ast.SQL(e)
}

func tlpMismatch(original, combined string, expected, actual []string) error {
	return mismatchf(summarize(expected), summarize(actual), map[string]any{
		"expected_sql":  original,
		"actual_sql":    combined,
		"expected_rows": expected,
		"actual_rows":   actual,
	})
}

// TLPWhere partitions the WHERE clause and compares multisets.
type TLPWhere struct {
	MaxRows int
}

// Name returns the oracle identifier.
func (o TLPWhere) Name() string { return "WHERE" }

// Run compares SELECT ... with the UNION ALL of its three partitions. With
// an ORDER BY the partitions run separately since compound parts cannot be
// ordered.
func (o TLPWhere) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), o.MaxRows, func(a *attempt) error {
		q, err := newTLPQuery(gen, sch, true)
		if err != nil {
			return err
		}
		original := q.sel.Clone()
		ordered := util.RatherLow(q.g.Rand)
		if ordered {
			original.OrderBy = q.g.OrderBys()
		}
		rs, err := a.query(original.SQL())
		if err != nil {
			return err
		}
		expected := rowStrings(rs)

		parts := q.partitions(where)
		var actual []string
		var combined string
		if ordered {
			texts := make([]string, 0, len(parts))
			for _, part := range parts {
				part.OrderBy = original.OrderBy
				text := part.SQL()
				texts = append(texts, text)
				rs, err := a.query(text)
				if err != nil {
					return err
				}
				actual = append(actual, rowStrings(rs)...)
			}
			combined = strings.Join(texts, ";\n")
		} else {
			combined = combine(ast.UnionAll, parts)
			rs, err := a.query(combined)
			if err != nil {
				return err
			}
			actual = rowStrings(rs)
		}
		if !sameMultiset(expected, actual) {
			return tlpMismatch(original.SQL(), combined, expected, actual)
		}
		return nil
	})
}

// TLPDistinct partitions a SELECT DISTINCT and combines with UNION.
type TLPDistinct struct {
	MaxRows int
}

// Name returns the oracle identifier.
func (o TLPDistinct) Name() string { return "DISTINCT" }

// Run compares the distinct rows of the query with the UNION of its
// partitions.
func (o TLPDistinct) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), o.MaxRows, func(a *attempt) error {
		q, err := newTLPQuery(gen, sch, true)
		if err != nil {
			return err
		}
		q.sel.Distinct = true
		return checkUnion(a, q, where)
	})
}

// TLPGroupBy partitions a query grouped by all its fetch columns.
type TLPGroupBy struct {
	MaxRows int
}

// Name returns the oracle identifier.
func (o TLPGroupBy) Name() string { return "GROUP_BY" }

// Run compares the groups of the query with the UNION of its partitions.
func (o TLPGroupBy) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), o.MaxRows, func(a *attempt) error {
		q, err := newTLPQuery(gen, sch, false)
		if err != nil {
			return err
		}
		q.sel.GroupBy = append([]ast.Expr(nil), q.sel.Columns...)
		return checkUnion(a, q, where)
	})
}

func checkUnion(a *attempt, q *tlpQuery, set func(*ast.Select, ast.Expr)) error {
	original := q.sel.SQL()
	rs, err := a.query(original)
	if err != nil {
		return err
	}
	expected := rowStrings(rs)
	combined := combine(ast.Union, q.partitions(set))
	if rs, err = a.query(combined); err != nil {
		return err
	}
	actual := rowStrings(rs)
	if len(expected) != len(actual) || !sameSet(expected, actual) {
		return tlpMismatch(original, combined, expected, actual)
	}
	return nil
}

// TLPHaving partitions the HAVING clause of a grouped query.
type TLPHaving struct {
	MaxRows int
}

// Name returns the oracle identifier.
func (o TLPHaving) Name() string { return "HAVING" }

// Run compares the number of distinct groups of the query with the UNION ALL
// of its HAVING partitions.
func (o TLPHaving) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), o.MaxRows, func(a *attempt) error {
		q, err := newTLPQuery(gen, sch, false)
		if err != nil {
			return err
		}
		q.sel.ExplicitAll = true
		q.sel.GroupBy = append([]ast.Expr(nil), q.sel.Columns...)
		q.p = q.g.Having()

		original := q.sel.SQL()
		combined := combine(ast.UnionAll, q.partitions(having))
		if strings.Contains(combined, "EXIST") {
			return value.Ignoref("HAVING partitions contain EXISTS")
		}
		rs, err := a.query(original)
		if err != nil {
			return err
		}
		expected := rowStrings(rs)
		if rs, err = a.query(combined); err != nil {
			return err
		}
		actual := rowStrings(rs)
		if len(distinct(expected)) != len(distinct(actual)) {
			return tlpMismatch(original, combined, expected, actual)
		}
		return nil
	})
}

// QueryPartitioning runs the partitioning oracles in turn.
type QueryPartitioning struct {
	oracles []Oracle
	next    int
}

// NewQueryPartitioning combines the WHERE, DISTINCT, GROUP BY, HAVING and
// aggregate partitioning oracles.
func NewQueryPartitioning(maxRows int) *QueryPartitioning {
	return &QueryPartitioning{oracles: []Oracle{
		TLPWhere{MaxRows: maxRows},
		TLPDistinct{MaxRows: maxRows},
		TLPGroupBy{MaxRows: maxRows},
		TLPHaving{MaxRows: maxRows},
		TLPAggregate{},
	}}
}

// Name returns the oracle identifier.
func (o *QueryPartitioning) Name() string { return "QUERY_PARTITIONING" }

// Run delegates to the next oracle of the rotation.
func (o *QueryPartitioning) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	inner := o.oracles[o.next]
	o.next = (o.next + 1) % len(o.oracles)
	res := inner.Run(ctx, exec, gen, sch)
	res.Details["variant"] = inner.Name()
	res.Oracle = o.Name()
	return res
}

package generator

import (
	"math/rand"
	"time"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/config"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/value"
)

// Generator creates random expressions and statements over a schema
// snapshot. Configuration methods return modified copies, so one generator
// can be specialized per clause without affecting the others.
type Generator struct {
	Rand   *rand.Rand
	Config config.Generator
	Schema *schema.Schema
	Seed   int64

	tables            []schema.TableID
	columns           []schema.Column
	row               *schema.RowValue
	unqualified       bool
	deterministicOnly bool
	aggregateFuncs    bool
	aggregates        bool
	match             bool
	subqueries        bool
	knownResult       bool
}

// New constructs a Generator with a seed.
func New(cfg config.Generator, sch *schema.Schema, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewWithRand(cfg, sch, rand.New(rand.NewSource(seed)))
}

// NewWithRand constructs a Generator sharing an existing random source.
func NewWithRand(cfg config.Generator, sch *schema.Schema, r *rand.Rand) *Generator {
	if sch == nil {
		sch = &schema.Schema{}
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	return &Generator{Rand: r, Config: cfg, Schema: sch}
}

func (g *Generator) clone() *Generator {
	c := *g
	c.columns = append([]schema.Column(nil), g.columns...)
	c.tables = append([]schema.TableID(nil), g.tables...)
	return &c
}

// WithSchema returns a copy generating over another schema snapshot. The
// column scope is cleared.
func (g *Generator) WithSchema(sch *schema.Schema) *Generator {
	c := g.clone()
	c.Schema = sch
	c.tables = nil
	c.columns = nil
	c.row = nil
	return c
}

// WithTables scopes columns to the given tables.
func (g *Generator) WithTables(tables []schema.TableID) *Generator {
	c := g.clone()
	c.tables = append([]schema.TableID(nil), tables...)
	c.columns = g.Schema.ColumnsOf(tables)
	return c
}

// WithColumns scopes column references to cols.
func (g *Generator) WithColumns(cols []schema.Column) *Generator {
	c := g.clone()
	c.columns = append([]schema.Column(nil), cols...)
	return c
}

// WithRowValues attaches the pivot row, making column values known.
func (g *Generator) WithRowValues(row schema.RowValue) *Generator {
	c := g.clone()
	c.row = &row
	return c
}

// WithUnqualifiedColumns renders column references without table names.
func (g *Generator) WithUnqualifiedColumns() *Generator {
	c := g.clone()
	c.unqualified = true
	return c
}

// WithDeterministicOnly excludes functions whose result may change between
// executions.
func (g *Generator) WithDeterministicOnly() *Generator {
	c := g.clone()
	c.deterministicOnly = true
	return c
}

// WithAggregates allows aggregate calls as an expression node.
func (g *Generator) WithAggregates() *Generator {
	c := g.clone()
	c.aggregateFuncs = true
	return c
}

// WithMatch allows MATCH operations.
func (g *Generator) WithMatch() *Generator {
	c := g.clone()
	c.match = true
	return c
}

// WithSubqueries allows synthesized subqueries as expression nodes.
func (g *Generator) WithSubqueries() *Generator {
	c := g.clone()
	c.subqueries = true
	return c
}

// WithKnownResult prefers modeled functions so that more expressions have a
// known value.
func (g *Generator) WithKnownResult() *Generator {
	c := g.clone()
	c.knownResult = true
	return c
}

// Columns returns the column scope.
func (g *Generator) Columns() []schema.Column {
	return append([]schema.Column(nil), g.columns...)
}

// Tables returns the table scope.
func (g *Generator) Tables() []schema.TableID {
	return append([]schema.TableID(nil), g.tables...)
}

// ColumnExpr references c, carrying its pivot value when a row is attached.
func (g *Generator) ColumnExpr(c schema.Column) ast.Column {
	col := ast.Column{Col: c}
	if !g.unqualified {
		col.Table = g.Schema.TableName(c)
	}
	if g.row != nil {
		if v, ok := g.row.Get(c.ID); ok && !c.IsDummy() {
			col.Value = value.Known(v)
		}
	}
	return col
}

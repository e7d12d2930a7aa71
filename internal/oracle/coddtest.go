package oracle

import (
	"context"
	"fmt"
	"math/rand"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/config"
	"limbofuzz/internal/db"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

const (
	coddMaxRows   = 100
	coddTempTable = "temp_table"
	coddInTable   = "intable"
)

// GROUP_CONCAT is left out: its element order may follow the plan.
var foldableAggregates = []ast.AggregateFunc{
	ast.AggAvg, ast.AggCount, ast.AggCountAll, ast.AggMax, ast.AggMin, ast.AggSum, ast.AggTotal,
}

// CODDTest folds a subexpression of a query into the constants it evaluates
// to and checks that the folded query returns the same result. Values are
// computed by an auxiliary query; per-row values are spliced back through a
// CASE mapping keyed on the row's columns.
type CODDTest struct {
	Config config.CODDTestConfig
}

// Name returns the oracle identifier.
func (o CODDTest) Name() string { return "CODDTest" }

// Run builds one original/folded pair and compares their results column by
// column. Helper tables are dropped before Run returns.
func (o CODDTest) Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result {
	return run(ctx, o.Name(), exec, queryErrors(), coddMaxRows, func(a *attempt) error {
		c := &codd{
			a:          a,
			cfg:        o.Config,
			gen:        gen.WithSchema(sch).WithDeterministicOnly(),
			sch:        sch,
			ext:        sch,
			subquery:   util.Coin(gen.Rand),
			correlated: util.Coin(gen.Rand),
		}
		return c.check()
	})
}

// codd is the state of one CODDTest attempt.
type codd struct {
	a   *attempt
	cfg config.CODDTestConfig
	gen *generator.Generator
	sch *schema.Schema
	// ext is sch plus helper tables and aliases created by this attempt.
	ext *schema.Schema

	subquery   bool
	correlated bool

	// Set by dependent folds: the expression, its per-row constant and the
	// tables and joins the original query has to keep.
	folded   ast.Expr
	constant ast.Expr
	outer    []schema.TableID
	joins    []ast.Join
}

// dependent reports whether the folded value varies per row of the outer
// query.
func (c *codd) dependent() bool { return !c.subquery || c.correlated }

func (c *codd) rand() *rand.Rand { return c.gen.Rand }

func (c *codd) check() error {
	if c.dependent() {
		return c.checkDependent()
	}
	aux, err := c.selectExpression(nil, nil)
	if err != nil {
		return err
	}
	auxSQL := aux.SQL()
	rs, err := c.a.query(auxSQL)
	if err != nil {
		return err
	}
	c.a.details["auxiliary_sql"] = auxSQL

	switch {
	case len(rs.Rows) == 0:
		return c.checkEmpty(aux)
	case len(rs.Columns) == 1 && len(rs.Rows) == 1 && util.Coin(c.rand()):
		if err := spliceable(rs.Rows[0][0]); err != nil {
			return err
		}
		slot := ast.NewSlot(ast.Subquery{Query: aux})
		return c.compareSlot(nil, slot, ast.Lit(rs.Rows[0][0]))
	case len(rs.Columns) == 1 && util.RatherLow(c.rand()) && c.cfg.InTempTable:
		return c.checkIn(aux)
	default:
		return c.checkTable(aux, rs)
	}
}

func (c *codd) checkDependent() error {
	var err error
	if c.subquery {
		err = c.correlatedSelect()
	} else {
		err = c.expressionSelect()
	}
	if err != nil {
		return err
	}
	slot := ast.NewSlot(c.folded)
	return c.compareSlot(nil, slot, c.constant)
}

// checkEmpty folds an uncorrelated subquery without rows into the value of
// its EXISTS test.
func (c *codd) checkEmpty(aux *ast.Select) error {
	negated := !util.Coin(c.rand())
	slot := ast.NewSlot(ast.Exists{Query: aux, Negated: negated})
	return c.compareSlot(nil, slot, ast.Lit(value.Bool(negated)))
}

// compareSlot runs the query built around slot, then again with slot set to
// folded.
func (c *codd) compareSlot(temp *schema.TableID, slot *ast.Slot, folded ast.Expr) error {
	original, err := c.selectExpression(temp, slot)
	if err != nil {
		return err
	}
	originalSQL := original.SQL()
	want, err := c.a.query(originalSQL)
	if err != nil {
		return err
	}
	slot.Set(folded)
	return c.compare(originalSQL, want, original.SQL())
}

func (c *codd) compare(originalSQL string, want db.ResultSet, foldedSQL string) error {
	if originalSQL == foldedSQL {
		return value.Ignoref("folding left the query unchanged")
	}
	got, err := c.a.query(foldedSQL)
	if err != nil {
		return err
	}
	if !sameColumns(want, got) {
		expected, actual := rowStrings(want), rowStrings(got)
		return mismatchf(summarize(expected), summarize(actual), map[string]any{
			"expected_sql":  originalSQL,
			"actual_sql":    foldedSQL,
			"expected_rows": expected,
			"actual_rows":   actual,
		})
	}
	return nil
}

// checkIn folds col IN (aux) into col IN intable, with intable holding the
// rows of aux. A stale intable is dropped first.
func (c *codd) checkIn(aux *ast.Select) error {
	tables, err := c.sch.RandomNonEmptyTables(c.rand())
	if err != nil {
		return err
	}
	col := util.Pick(c.rand(), c.sch.ColumnsOf(tables))
	left := c.gen.ColumnExpr(col)
	slot := ast.NewSlot(ast.In{Left: left, Query: aux})

	original, err := c.selectExpression(&col.Table, slot)
	if err != nil {
		return err
	}
	originalSQL := original.SQL()
	want, err := c.a.query(originalSQL)
	if err != nil {
		return err
	}

	c.a.details["fold"] = "in_table"
	c.a.drop(coddInTable)
	defer c.a.drop(coddInTable)
	if err := c.a.exec("CREATE TABLE " + coddInTable + " AS " + aux.SQL()); err != nil {
		return err
	}
	ref := ast.TableRef{Table: schema.Table{Name: coddInTable}}
	slot.Set(ast.In{Left: left, Query: ref})
	return c.compare(originalSQL, want, original.SQL())
}

// checkTable reads a multi-column result through a common table expression
// and folds it into a VALUES list, a derived table or a materialized table.
func (c *codd) checkTable(aux *ast.Select, rs db.ResultSet) error {
	temp, names := c.addTempTable(rs)
	original, err := c.selectExpression(&temp, nil)
	if err != nil {
		return err
	}
	original.With = &ast.With{
		Left:  ast.ColumnList{Name: coddTempTable, Columns: names},
		Right: ast.Subquery{Query: aux},
	}
	originalSQL := original.SQL()
	want, err := c.a.query(originalSQL)
	if err != nil {
		return err
	}

	switch {
	case util.Coin(c.rand()) && c.cfg.CTE:
		c.a.details["fold"] = "cte_values"
		for _, row := range rs.Rows {
			if err := spliceable(row...); err != nil {
				return err
			}
		}
		original.With.SetRight(ast.Values{Rows: rs.Rows})
	case util.Coin(c.rand()):
		c.a.details["fold"] = "derived_table"
		original.With = nil
		if err := original.ReplaceFromTable(coddTempTable, ast.Alias{Expr: aux, Name: coddTempTable}); err != nil {
			return value.Ignoref("%v", err)
		}
	case c.cfg.InTempTable:
		c.a.details["fold"] = "temp_table"
		c.a.drop(coddTempTable)
		defer c.a.drop(coddTempTable)
		if err := c.a.exec(c.createTempTable(temp)); err != nil {
			return err
		}
		if err := c.a.exec("INSERT INTO " + coddTempTable + " " + aux.SQL()); err != nil {
			return err
		}
		original.With = nil
	default:
		return value.Ignoref("no table fold enabled")
	}
	return c.compare(originalSQL, want, original.SQL())
}

// addTempTable registers temp_table with one column per result column,
// typed by the storage class of the first row.
func (c *codd) addTempTable(rs db.ResultSet) (schema.TableID, []string) {
	cols := make([]schema.Column, len(rs.Columns))
	names := make([]string, len(rs.Columns))
	for i := range rs.Columns {
		names[i] = fmt.Sprintf("c%d", i)
		cols[i] = schema.Column{Name: names[i], Type: storageType(rs.Rows[0][i].Kind())}
	}
	b := c.ext.Extend()
	id := b.AddTable(schema.TableSpec{Name: coddTempTable}, cols)
	c.ext = b.Build()
	return id, names
}

func (c *codd) createTempTable(id schema.TableID) string {
	defs := ""
	for i, col := range c.ext.TableColumns(id) {
		if i > 0 {
			defs += ", "
		}
		defs += col.Name
		if col.Type != schema.TypeBinary && col.Type != schema.TypeNone {
			defs += " " + col.Type.SQLName()
		}
	}
	return "CREATE TABLE " + coddTempTable + " (" + defs + ")"
}

func storageType(k value.Kind) schema.DataType {
	switch k {
	case value.KindInt:
		return schema.TypeInt
	case value.KindReal:
		return schema.TypeReal
	case value.KindText:
		return schema.TypeText
	case value.KindBlob:
		return schema.TypeBinary
	default:
		return schema.TypeNone
	}
}

// expressionSelect computes a random expression for every row of a join and
// maps the rows to their values.
func (c *codd) expressionSelect() error {
	tables, err := c.sch.RandomNonEmptyTables(c.rand())
	if err != nil {
		return err
	}
	g := c.gen.WithTables(tables)
	var joins []ast.Join
	if util.RatherLow(c.rand()) {
		joins, tables = c.joinClauses(g, tables, nil, true)
	}
	c.outer, c.joins = tables, joins
	c.folded = g.Expression()

	cols := g.Columns()
	sel := &ast.Select{From: g.TableRefs(tables), Joins: joins}
	for i, col := range cols {
		sel.Columns = append(sel.Columns, ast.Alias{Expr: g.ColumnExpr(col), Name: fmt.Sprintf("c%d", i)})
	}
	sel.Columns = append(sel.Columns, ast.Alias{Expr: c.folded, Name: fmt.Sprintf("c%d", len(cols))})
	return c.foldRows(g, sel, cols)
}

// correlatedSelect builds an aggregate subquery over inner tables that
// references the outer ones and maps every outer row to its value. Inner
// tables also used outside are renamed so that outer references stay
// unambiguous.
func (c *codd) correlatedSelect() error {
	outer, err := c.sch.RandomNonEmptyTables(c.rand())
	if err != nil {
		return err
	}
	inner, err := c.sch.RandomNonEmptyTables(c.rand())
	if err != nil {
		return err
	}
	b := c.sch.Extend()
	innerFrom := make([]ast.Expr, 0, len(inner))
	innerIDs := make([]schema.TableID, 0, len(inner))
	for _, id := range inner {
		tbl := c.sch.Table(id)
		if !containsTable(outer, id) {
			innerFrom = append(innerFrom, ast.TableRef{Table: tbl})
			innerIDs = append(innerIDs, id)
			continue
		}
		alias := tbl.Name + "a"
		var cols []schema.Column
		for _, col := range c.sch.TableColumns(id) {
			cols = append(cols, schema.Column{Name: col.Name, Type: col.Type, Collation: col.Collation})
		}
		innerIDs = append(innerIDs, b.AddTable(schema.TableSpec{Name: alias}, cols))
		innerFrom = append(innerFrom, ast.Text{SQL: tbl.Name + " AS " + alias})
	}
	c.ext = b.Build()

	gen := c.gen.WithSchema(c.ext)
	innerCols := c.ext.ColumnsOf(innerIDs)
	g := gen.WithColumns(append(innerCols, c.ext.ColumnsOf(outer)...))
	agg := ast.Aggregate{
		Func: util.Pick(c.rand(), foldableAggregates),
		Args: []ast.Expr{g.ColumnExpr(util.Pick(c.rand(), innerCols))},
	}
	innerQuery := &ast.Select{Columns: []ast.Expr{agg}, From: innerFrom, Where: g.Expression()}
	if util.RatherLow(c.rand()) {
		innerQuery.GroupBy = c.groupBy(g, nil)
		if len(innerQuery.GroupBy) > 0 && util.RatherLow(c.rand()) {
			innerQuery.Having = g.Expression()
		}
	}
	c.outer = outer
	c.folded = ast.Subquery{Query: innerQuery}

	og := gen.WithTables(outer)
	cols := og.Columns()
	sel := &ast.Select{From: og.TableRefs(outer)}
	for i, col := range cols {
		sel.Columns = append(sel.Columns, ast.Alias{Expr: og.ColumnExpr(col), Name: fmt.Sprintf("c%d", i)})
	}
	sel.Columns = append(sel.Columns, ast.Alias{Expr: innerQuery, Name: fmt.Sprintf("c%d", len(cols))})
	return c.foldRows(og, sel, cols)
}

// foldRows runs sel, whose last column is the folded value and whose other
// columns are cols, and sets the constant to the row mapping.
func (c *codd) foldRows(g *generator.Generator, sel *ast.Select, cols []schema.Column) error {
	auxSQL := sel.SQL()
	rs, err := c.a.query(auxSQL)
	if err != nil {
		return err
	}
	if len(rs.Rows) == 0 {
		return value.Ignoref("auxiliary query returned no rows")
	}
	c.a.details["auxiliary_sql"] = auxSQL
	m := ast.ResultMap{}
	for _, col := range cols {
		m.Columns = append(m.Columns, ast.Collate{Expr: g.ColumnExpr(col), Collation: value.Binary})
	}
	n := len(cols)
	for _, row := range rs.Rows {
		if err := spliceable(row...); err != nil {
			return err
		}
		m.Rows = append(m.Rows, row[:n])
		m.Results = append(m.Results, row[n])
	}
	c.constant = m
	return nil
}

// selectExpression builds a query over random tables with specific placed
// in its clauses. temp is added to the FROM list when set. Dependent folds
// keep the tables and joins their constant was computed over.
func (c *codd) selectExpression(temp *schema.TableID, specific ast.Expr) (*ast.Select, error) {
	tables, err := c.sch.RandomNonEmptyTables(c.rand())
	if err != nil {
		return nil, err
	}
	if temp != nil && !containsTable(tables, *temp) {
		tables = append(tables, *temp)
	}
	var joins []ast.Join
	if c.dependent() {
		for _, id := range c.outer {
			if !containsTable(tables, id) {
				tables = append(tables, id)
			}
		}
		for _, j := range c.joins {
			tables = removeTable(tables, j.Table.ID)
		}
	}
	cols := c.ext.ColumnsOf(tables)
	for _, j := range c.joins {
		cols = append(cols, c.ext.TableColumns(j.Table.ID)...)
	}
	g := c.gen.WithSchema(c.ext).WithColumns(cols)
	switch {
	case c.dependent():
		joins = c.joins
	case util.Coin(c.rand()):
		joins, tables = c.joinClauses(g, tables, specific, false)
	}

	sel := &ast.Select{From: g.TableRefs(tables), Joins: joins}
	var where ast.Expr = g.Expression()
	if specific != nil {
		where = ast.Binary{Left: where, Op: util.Pick(c.rand(), ast.BinaryOps), Right: specific}
	}
	sel.Where = where
	if util.Coin(c.rand()) {
		s := specific
		if !util.RatherLow(c.rand()) {
			s = nil
		}
		sel.OrderBy = c.orderBys(g, s)
	}

	if util.Coin(c.rand()) {
		for i, col := range util.NonEmptySubset(c.rand(), cols) {
			sel.Columns = append(sel.Columns, ast.Alias{Expr: g.ColumnExpr(col), Name: fmt.Sprintf("c%d", i)})
		}
		return sel, nil
	}
	agg := ast.Aggregate{
		Func: util.Pick(c.rand(), foldableAggregates),
		Args: []ast.Expr{g.ColumnExpr(util.Pick(c.rand(), cols))},
	}
	sel.Columns = []ast.Expr{ast.Alias{Expr: agg, Name: "c0"}}
	if util.RatherLow(c.rand()) {
		sel.GroupBy = c.groupBy(g, specific)
		if len(sel.GroupBy) > 0 && util.RatherLow(c.rand()) {
			sel.Having = c.withSpecific(g, g.Expression(), specific)
		}
	}
	return sel, nil
}

// joinClauses turns some tables into joins whose ON clauses may contain
// specific. NATURAL joins are not used for per-row folds since the mapping
// refers to qualified columns.
func (c *codd) joinClauses(g *generator.Generator, tables []schema.TableID, specific ast.Expr, perRow bool) ([]ast.Join, []schema.TableID) {
	remaining := append([]schema.TableID(nil), tables...)
	if !g.Config.Joins || len(remaining) < 2 {
		return nil, remaining
	}
	n := c.rand().Intn(len(remaining))
	var options []ast.JoinType
	for _, t := range ast.JoinTypes {
		if t != ast.JoinNatural || (n <= 1 && !perRow) {
			options = append(options, t)
		}
	}
	joins := make([]ast.Join, 0, n)
	for i := 0; i < n; i++ {
		idx := c.rand().Intn(len(remaining))
		tbl := c.ext.Table(remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		j := ast.Join{Table: tbl, Type: util.Pick(c.rand(), options)}
		if j.Type != ast.JoinNatural {
			j.On = c.withSpecific(g, g.Expression(), specific)
		}
		joins = append(joins, j)
	}
	c.a.expect("ON clause references tables to its right")
	return joins, remaining
}

// withSpecific occasionally combines e with specific.
func (c *codd) withSpecific(g *generator.Generator, e, specific ast.Expr) ast.Expr {
	if specific == nil || !util.RatherLow(c.rand()) {
		return e
	}
	return ast.Binary{Left: e, Op: util.Pick(c.rand(), ast.BinaryOps), Right: specific}
}

func (c *codd) groupBy(g *generator.Generator, specific ast.Expr) []ast.Expr {
	c.a.expect("GROUP BY term out of range")
	if !util.Coin(c.rand()) {
		return nil
	}
	n := util.SmallNumber(c.rand())
	out := make([]ast.Expr, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, c.withSpecific(g, g.Expression(), specific))
	}
	return out
}

func (c *codd) orderBys(g *generator.Generator, specific ast.Expr) []ast.Expr {
	n := util.SmallNumber(c.rand()) + 1
	out := make([]ast.Expr, 0, n)
	for i := 0; i < n; i++ {
		e := c.withSpecific(g, g.Expression(), specific)
		if util.Coin(c.rand()) {
			e = ast.OrderingTerm{Expr: e, Ordering: util.Pick(c.rand(), []ast.Ordering{ast.Asc, ast.Desc})}
		}
		out = append(out, e)
	}
	return out
}

func containsTable(tables []schema.TableID, id schema.TableID) bool {
	for _, t := range tables {
		if t == id {
			return true
		}
	}
	return false
}

func removeTable(tables []schema.TableID, id schema.TableID) []schema.TableID {
	out := tables[:0]
	for _, t := range tables {
		if t != id {
			out = append(out, t)
		}
	}
	return out
}

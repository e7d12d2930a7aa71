package ast

import (
	"limbofuzz/internal/schema"
	"limbofuzz/internal/value"

	"github.com/pkg/errors"
)

// JoinType is the kind of a JOIN clause.
type JoinType int

// Join kinds.
const (
	JoinInner JoinType = iota
	JoinCross
	JoinNatural
	JoinLeft
	JoinRight
	JoinFull
)

// JoinTypes lists every join kind.
var JoinTypes = []JoinType{JoinInner, JoinCross, JoinNatural, JoinLeft, JoinRight, JoinFull}

func (t JoinType) String() string {
	return [...]string{"INNER", "CROSS", "NATURAL", "LEFT OUTER", "RIGHT OUTER", "FULL OUTER"}[t]
}

// Join is a JOIN clause of a SELECT.
type Join struct {
	Table schema.Table
	Type  JoinType
	// On is nil for NATURAL joins.
	On Expr
}

// Build emits " TYPE JOIN table [ON cond]".
func (j Join) Build(b *SQLBuilder) {
	b.Write(" ")
	b.Write(j.Type.String())
	b.Write(" JOIN ")
	b.Write(j.Table.Name)
	if j.On != nil {
		b.Write(" ON ")
		j.On.Build(b)
	}
}

// TableRef names a table in a FROM list.
type TableRef struct {
	unmodeled
	Table      schema.Table
	IndexedBy  string
	NotIndexed bool
}

// Build emits the table name and its indexing clause.
func (t TableRef) Build(b *SQLBuilder) {
	b.Write(t.Table.Name)
	switch {
	case t.IndexedBy != "":
		b.Write(" INDEXED BY ")
		b.Write(t.IndexedBy)
	case t.NotIndexed:
		b.Write(" NOT INDEXED")
	}
}

// ColumnList names a common table expression and its columns: t(c0, c1).
type ColumnList struct {
	unmodeled
	Name    string
	Columns []string
}

// Build emits name(columns).
func (c ColumnList) Build(b *SQLBuilder) {
	b.Write(c.Name)
	b.Write("(")
	for i, col := range c.Columns {
		if i > 0 {
			b.Write(", ")
		}
		b.Write(col)
	}
	b.Write(")")
}

// With is a WITH clause. Right is replaced in place when a query is folded.
type With struct {
	Left  Expr
	Right Expr
}

// SetRight replaces the table expression.
func (w *With) SetRight(e Expr) { w.Right = e }

// Build emits WITH left AS right.
func (w *With) Build(b *SQLBuilder) {
	b.Write("WITH ")
	w.Left.Build(b)
	b.Write(" AS ")
	w.Right.Build(b)
}

// Ordering is the direction of an ordering term.
type Ordering int

// Directions.
const (
	Asc Ordering = iota
	Desc
)

func (o Ordering) String() string {
	if o == Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderingTerm renders expr ASC|DESC.
type OrderingTerm struct {
	unmodeled
	Expr     Expr
	Ordering Ordering
}

// Build emits the term.
func (o OrderingTerm) Build(b *SQLBuilder) {
	o.Expr.Build(b)
	b.Write(" ")
	b.Write(o.Ordering.String())
}

// Expected is the value of the ordered expression.
func (o OrderingTerm) Expected(ev *Evaluator) (value.Maybe, error) { return o.Expr.Expected(ev) }

// ExplicitCollation is the collation of the ordered expression.
func (o OrderingTerm) ExplicitCollation() (value.Collation, bool) { return o.Expr.ExplicitCollation() }

// Select is a SELECT statement. A nil Columns list selects *.
type Select struct {
	unmodeled
	With        *With
	Distinct    bool
	ExplicitAll bool
	Columns     []Expr
	From        []Expr
	Joins       []Join
	Where       Expr
	GroupBy     []Expr
	Having      Expr
	OrderBy     []Expr
	Limit       Expr
	Offset      Expr
}

// Build emits the statement without surrounding parentheses.
func (s *Select) Build(b *SQLBuilder) {
	if s.With != nil {
		s.With.Build(b)
		b.Write(" ")
	}
	b.Write("SELECT ")
	switch {
	case s.Distinct:
		b.Write("DISTINCT ")
	case s.ExplicitAll:
		b.Write("ALL ")
	}
	if s.Columns == nil {
		b.Write("*")
	} else {
		b.WriteList(s.Columns)
	}
	if len(s.From) > 0 {
		b.Write(" FROM ")
		for i, f := range s.From {
			if i > 0 {
				b.Write(", ")
			}
			if sub, ok := f.(*Select); ok {
				b.Write("(")
				sub.Build(b)
				b.Write(")")
				continue
			}
			f.Build(b)
		}
	}
	for _, j := range s.Joins {
		j.Build(b)
	}
	if s.Where != nil {
		b.Write(" WHERE (")
		s.Where.Build(b)
		b.Write(")")
	}
	if len(s.GroupBy) > 0 {
		b.Write(" GROUP BY ")
		b.WriteList(s.GroupBy)
	}
	if s.Having != nil {
		b.Write(" HAVING ")
		s.Having.Build(b)
	}
	if len(s.OrderBy) > 0 {
		b.Write(" ORDER BY ")
		b.WriteList(s.OrderBy)
	}
	if s.Limit != nil {
		b.Write(" LIMIT ")
		s.Limit.Build(b)
	}
	if s.Offset != nil {
		b.Write(" OFFSET ")
		s.Offset.Build(b)
	}
}

// SQL renders the statement.
func (s *Select) SQL() string { return SQL(s) }

// Clone returns a copy whose clause lists can be changed independently.
// Expressions are shared.
func (s *Select) Clone() *Select {
	c := *s
	c.Columns = cloneExprs(s.Columns)
	c.From = cloneExprs(s.From)
	c.Joins = append([]Join(nil), s.Joins...)
	c.GroupBy = cloneExprs(s.GroupBy)
	c.OrderBy = cloneExprs(s.OrderBy)
	if s.With != nil {
		w := *s.With
		c.With = &w
	}
	return &c
}

func cloneExprs(exprs []Expr) []Expr {
	if exprs == nil {
		return nil
	}
	return append([]Expr{}, exprs...)
}

// ReplaceFromTable swaps the FROM entry naming table for e.
func (s *Select) ReplaceFromTable(table string, e Expr) error {
	for i, f := range s.From {
		if ref, ok := f.(TableRef); ok && ref.Table.Name == table {
			s.From[i] = e
			return nil
		}
	}
	return errors.Errorf("table %s is not in the FROM list", table)
}

// Subquery renders a query in parentheses.
type Subquery struct {
	unmodeled
	Query Expr
}

// Build emits (query).
func (s Subquery) Build(b *SQLBuilder) {
	b.Write("(")
	s.Query.Build(b)
	b.Write(")")
}

// Exists renders [NOT] EXISTS (query).
type Exists struct {
	unmodeled
	Query   Expr
	Negated bool
}

// Build emits the predicate.
func (e Exists) Build(b *SQLBuilder) {
	if e.Negated {
		b.Write("(NOT EXISTS (")
		e.Query.Build(b)
		b.Write("))")
		return
	}
	b.Write("EXISTS (")
	e.Query.Build(b)
	b.Write(")")
}

// SetOp is a compound-select operator.
type SetOp int

// Compound operators.
const (
	Union SetOp = iota
	UnionAll
	Intersect
	Except
)

// SetOps lists every compound operator.
var SetOps = []SetOp{Union, UnionAll, Intersect, Except}

func (o SetOp) String() string {
	return [...]string{"UNION", "UNION ALL", "INTERSECT", "EXCEPT"}[o]
}

// SetClause is a compound select: left OP right.
type SetClause struct {
	unmodeled
	Left  Expr
	Op    SetOp
	Right Expr
}

// Build emits the compound select without parentheses.
func (s SetClause) Build(b *SQLBuilder) {
	s.Left.Build(b)
	b.Write(" ")
	b.Write(s.Op.String())
	b.Write(" ")
	s.Right.Build(b)
}

// Values renders a parenthesized VALUES table. Each non-NULL value is cast
// to its own storage class so that the table carries the captured types.
type Values struct {
	unmodeled
	Rows [][]value.Value
}

// Build emits (VALUES (...), ...).
func (v Values) Build(b *SQLBuilder) {
	b.Write("(VALUES ")
	for i, row := range v.Rows {
		if i > 0 {
			b.Write(", ")
		}
		b.Write("(")
		for j, val := range row {
			if j > 0 {
				b.Write(", ")
			}
			if val.IsNull() {
				b.Write("NULL")
				continue
			}
			b.Write("(CAST(")
			b.Write(val.Literal(false))
			b.Write(" AS ")
			b.Write(storageTypeName(val.Kind()))
			b.Write("))")
		}
		b.Write(")")
	}
	b.Write(")")
}

func storageTypeName(k value.Kind) string {
	switch k {
	case value.KindInt:
		return "INTEGER"
	case value.KindReal:
		return "REAL"
	case value.KindText:
		return "TEXT"
	case value.KindBlob:
		return "BLOB"
	}
	panic(errors.Errorf("no storage type for %s", k))
}

// ResultMap maps rows to precomputed results through a CASE expression:
// CASE WHEN c0 = v0 AND c1 IS NULL THEN r0 ... END.
type ResultMap struct {
	unmodeled
	Columns []Expr
	Rows    [][]value.Value
	Results []value.Value
}

// Case returns the equivalent CASE expression.
func (m ResultMap) Case() Case {
	whens := make([]When, 0, len(m.Rows))
	for i, row := range m.Rows {
		var cond Expr
		for j, v := range row {
			var term Expr
			if v.IsNull() {
				term = Compare(m.Columns[j], OpIs, Lit(v))
			} else {
				term = Compare(m.Columns[j], OpEq, Lit(v))
			}
			if cond == nil {
				cond = term
			} else {
				cond = And(cond, term)
			}
		}
		whens = append(whens, When{Cond: cond, Then: Lit(m.Results[i])})
	}
	return Case{Whens: whens}
}

// Build emits the mapping.
func (m ResultMap) Build(b *SQLBuilder) { m.Case().Build(b) }

// Expected evaluates the mapping against the current column values.
func (m ResultMap) Expected(ev *Evaluator) (value.Maybe, error) { return m.Case().Expected(ev) }

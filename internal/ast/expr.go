// Package ast holds the generated SQL expression tree. Every node renders
// itself as SQL and computes the value the engine is expected to produce.
package ast

import (
	"limbofuzz/internal/schema"
	"limbofuzz/internal/value"
)

// Expr is a node of a generated statement.
type Expr interface {
	Build(b *SQLBuilder)
	// Expected returns the value the engine must produce, Unknown when it is
	// not modeled, or an ignore error when the attempt must be abandoned.
	Expected(ev *Evaluator) (value.Maybe, error)
	ExplicitCollation() (value.Collation, bool)
	ImplicitCollation() (value.Collation, bool)
	Affinity() value.Affinity
}

// Evaluator carries the settings that change expected-value computation.
type Evaluator struct {
	// MustKnowResult makes window functions computable on single-row
	// partitions and turns unknown window arguments into ignore errors.
	MustKnowResult bool
	// AllowFloatingPoint permits reals in concatenation and arithmetic.
	AllowFloatingPoint bool
}

// NewEvaluator returns the default evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{AllowFloatingPoint: true}
}

// Eval computes the expected value of e.
func (ev *Evaluator) Eval(e Expr) (value.Maybe, error) {
	return e.Expected(ev)
}

// unmodeled supplies the defaults: unknown value, no collation, no affinity.
type unmodeled struct{}

func (unmodeled) Expected(*Evaluator) (value.Maybe, error) { return value.Unknown, nil }
func (unmodeled) ExplicitCollation() (value.Collation, bool) { return value.Binary, false }
func (unmodeled) ImplicitCollation() (value.Collation, bool) { return value.Binary, false }
func (unmodeled) Affinity() value.Affinity { return value.AffinityNone }

// evalAll evaluates children in order. ok is false when any is unknown.
func evalAll(ev *Evaluator, exprs []Expr) (vals []value.Value, ok bool, err error) {
	vals = make([]value.Value, len(exprs))
	for i, e := range exprs {
		m, err := e.Expected(ev)
		if err != nil {
			return nil, false, err
		}
		v, known := m.Get()
		if !known {
			return nil, false, nil
		}
		vals[i] = v
	}
	return vals, true, nil
}

func firstExplicit(exprs ...Expr) (value.Collation, bool) {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if c, ok := e.ExplicitCollation(); ok {
			return c, true
		}
	}
	return value.Binary, false
}

// Constant is a literal value.
type Constant struct {
	unmodeled
	Value value.Value
	// UpperHex renders hex integers with the 0X prefix.
	UpperHex bool
}

// Lit wraps a value as a constant.
func Lit(v value.Value) Constant {
	return Constant{Value: v}
}

// Build emits the literal.
func (c Constant) Build(b *SQLBuilder) {
	b.Write(c.Value.Literal(c.UpperHex))
}

// Expected returns the literal value.
func (c Constant) Expected(*Evaluator) (value.Maybe, error) {
	return value.Known(c.Value), nil
}

// Column references a table column. Value holds the pivot row value when
// the expression is evaluated against a row.
type Column struct {
	unmodeled
	Col   schema.Column
	Table string
	Value value.Maybe
}

// Build emits the optionally qualified column name.
func (c Column) Build(b *SQLBuilder) {
	if c.Table != "" && !c.Col.IsDummy() {
		b.Write(c.Table)
		b.Write(".")
	}
	b.Write(c.Col.Name)
}

// Expected returns the pivot value.
func (c Column) Expected(*Evaluator) (value.Maybe, error) {
	return c.Value, nil
}

// ImplicitCollation returns the declared collation of a table column.
func (c Column) ImplicitCollation() (value.Collation, bool) {
	if c.Col.IsDummy() {
		return value.Binary, false
	}
	return c.Col.Collation, true
}

// Affinity follows the declared column type.
func (c Column) Affinity() value.Affinity {
	return c.Col.Affinity()
}

// Star is the dummy column rendering "*".
func Star() Column {
	return Column{Col: schema.DummyColumn("*")}
}

// Named references an output column or alias by bare name.
func Named(name string) Column {
	return Column{Col: schema.DummyColumn(name)}
}

// takesChildCollation reports nodes that keep the implicit collation of a
// column below them: the column itself, CAST and unary plus.
func takesChildCollation(e Expr) bool {
	switch n := e.(type) {
	case Column:
		return true
	case Cast:
		return true
	case Unary:
		return n.Op == OpPlus
	}
	return false
}

// Text is raw SQL with an optional expected value.
type Text struct {
	unmodeled
	SQL   string
	Value value.Maybe
}

// Build emits the raw text.
func (t Text) Build(b *SQLBuilder) { b.Write(t.SQL) }

// Expected returns the attached value.
func (t Text) Expected(*Evaluator) (value.Maybe, error) { return t.Value, nil }

// PostfixText appends raw SQL to an expression, such as NULLS FIRST or an
// output alias.
type PostfixText struct {
	unmodeled
	Expr  Expr
	Text  string
	Value value.Maybe
}

// Build emits the expression followed by the text.
func (p PostfixText) Build(b *SQLBuilder) {
	if p.Expr != nil {
		p.Expr.Build(b)
		b.Write(" ")
	}
	b.Write(p.Text)
}

// Expected returns the attached value.
func (p PostfixText) Expected(*Evaluator) (value.Maybe, error) { return p.Value, nil }

// ExplicitCollation is the collation of the wrapped expression.
func (p PostfixText) ExplicitCollation() (value.Collation, bool) {
	return firstExplicit(p.Expr)
}

// Alias renders "(expr) AS name".
type Alias struct {
	unmodeled
	Expr Expr
	Name string
}

// Build emits the aliased expression.
func (a Alias) Build(b *SQLBuilder) {
	b.Write("(")
	a.Expr.Build(b)
	b.Write(") AS ")
	b.Write(a.Name)
}

// Typeof renders typeof(expr).
type Typeof struct {
	unmodeled
	Expr Expr
}

// Build emits the typeof call.
func (t Typeof) Build(b *SQLBuilder) {
	b.Write("typeof(")
	t.Expr.Build(b)
	b.Write(")")
}

// Expected names the storage class of the argument.
func (t Typeof) Expected(ev *Evaluator) (value.Maybe, error) {
	m, err := t.Expr.Expected(ev)
	if err != nil {
		return value.Unknown, err
	}
	v, ok := m.Get()
	if !ok {
		return value.Unknown, nil
	}
	return value.Known(value.Text(v.Kind().String())), nil
}

// Slot is a replaceable placeholder. Query folding renders a statement with
// the slot holding a live subexpression, then again with a constant.
type Slot struct {
	Inner Expr
}

// NewSlot returns a slot holding e.
func NewSlot(e Expr) *Slot { return &Slot{Inner: e} }

// Set replaces the held expression.
func (s *Slot) Set(e Expr) { s.Inner = e }

// Build emits the held expression.
func (s *Slot) Build(b *SQLBuilder) { s.Inner.Build(b) }

// Expected delegates to the held expression.
func (s *Slot) Expected(ev *Evaluator) (value.Maybe, error) { return s.Inner.Expected(ev) }

// ExplicitCollation delegates to the held expression.
func (s *Slot) ExplicitCollation() (value.Collation, bool) { return s.Inner.ExplicitCollation() }

// ImplicitCollation delegates to the held expression.
func (s *Slot) ImplicitCollation() (value.Collation, bool) { return s.Inner.ImplicitCollation() }

// Affinity delegates to the held expression.
func (s *Slot) Affinity() value.Affinity { return s.Inner.Affinity() }

// Distinct marks the first argument of an aggregate-capable call.
type Distinct struct {
	unmodeled
	Expr Expr
}

// Build emits DISTINCT expr.
func (d Distinct) Build(b *SQLBuilder) {
	b.Write("DISTINCT ")
	d.Expr.Build(b)
}

// Expected is the value of the argument.
func (d Distinct) Expected(ev *Evaluator) (value.Maybe, error) { return d.Expr.Expected(ev) }

// ExplicitCollation is the argument's collation.
func (d Distinct) ExplicitCollation() (value.Collation, bool) { return d.Expr.ExplicitCollation() }

// ImplicitCollation is the argument's collation.
func (d Distinct) ImplicitCollation() (value.Collation, bool) { return d.Expr.ImplicitCollation() }

// Collate attaches an explicit collating sequence.
type Collate struct {
	unmodeled
	Expr      Expr
	Collation value.Collation
}

// Build emits expr COLLATE name.
func (c Collate) Build(b *SQLBuilder) {
	c.Expr.Build(b)
	b.Write(" COLLATE ")
	b.Write(c.Collation.String())
}

// Expected is the value of the operand.
func (c Collate) Expected(ev *Evaluator) (value.Maybe, error) { return c.Expr.Expected(ev) }

// ExplicitCollation returns the attached sequence.
func (c Collate) ExplicitCollation() (value.Collation, bool) { return c.Collation, true }

// Affinity is the operand's affinity.
func (c Collate) Affinity() value.Affinity { return c.Expr.Affinity() }

// CastType is the target of CAST.
type CastType int

// Cast targets.
const (
	CastText CastType = iota
	CastReal
	CastInteger
	CastNumeric
	CastBlob
)

// CastTypes lists every cast target.
var CastTypes = []CastType{CastText, CastReal, CastInteger, CastNumeric, CastBlob}

type castInfo struct {
	name     string
	affinity value.Affinity
	apply    func(value.Value) (value.Maybe, error)
}

var castTable = [...]castInfo{
	CastText: {"TEXT", value.AffinityText, func(v value.Value) (value.Maybe, error) {
		return value.CastToText(v), nil
	}},
	CastReal: {"REAL", value.AffinityReal, func(v value.Value) (value.Maybe, error) {
		return known(value.CastToReal(v))
	}},
	CastInteger: {"INTEGER", value.AffinityInteger, func(v value.Value) (value.Maybe, error) {
		return known(value.CastToInt(v))
	}},
	CastNumeric: {"NUMERIC", value.AffinityNumeric, func(v value.Value) (value.Maybe, error) {
		return value.Known(value.CastToNumeric(v)), nil
	}},
	CastBlob: {"BLOB", value.AffinityBlob, func(v value.Value) (value.Maybe, error) {
		return value.CastToBlob(v), nil
	}},
}

func (t CastType) String() string { return castTable[t].name }

// Apply converts v to the target type.
func (t CastType) Apply(v value.Value) (value.Maybe, error) { return castTable[t].apply(v) }

func known(v value.Value, err error) (value.Maybe, error) {
	if err != nil {
		return value.Unknown, err
	}
	return value.Known(v), nil
}

// Cast renders CAST(expr AS type).
type Cast struct {
	unmodeled
	Expr Expr
	Type CastType
}

// Build emits the cast.
func (c Cast) Build(b *SQLBuilder) {
	b.Write("CAST(")
	c.Expr.Build(b)
	b.Write(" AS ")
	b.Write(c.Type.String())
	b.Write(")")
}

// Expected converts the operand value.
func (c Cast) Expected(ev *Evaluator) (value.Maybe, error) {
	m, err := c.Expr.Expected(ev)
	if err != nil || !m.IsKnown() {
		return value.Unknown, err
	}
	return c.Type.Apply(m.Value())
}

// ExplicitCollation is the operand's explicit collation.
func (c Cast) ExplicitCollation() (value.Collation, bool) { return c.Expr.ExplicitCollation() }

// ImplicitCollation passes a column collation through.
func (c Cast) ImplicitCollation() (value.Collation, bool) {
	if takesChildCollation(c.Expr) {
		return c.Expr.ImplicitCollation()
	}
	return value.Binary, false
}

// Affinity is that of a column declared with the target type.
func (c Cast) Affinity() value.Affinity { return castTable[c.Type].affinity }

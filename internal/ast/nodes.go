package ast

import "limbofuzz/internal/value"

// Unary renders a prefix operation.
type Unary struct {
	unmodeled
	Op   UnaryOp
	Expr Expr
}

// Not negates a predicate.
func Not(e Expr) Unary { return Unary{Op: OpNot, Expr: e} }

// Build emits (op expr).
func (u Unary) Build(b *SQLBuilder) {
	b.Write("(")
	b.Write(u.Op.String())
	b.Write(" ")
	u.Expr.Build(b)
	b.Write(")")
}

// Expected applies the operator to the operand value.
func (u Unary) Expected(ev *Evaluator) (value.Maybe, error) {
	m, err := u.Expr.Expected(ev)
	if err != nil || !m.IsKnown() {
		return value.Unknown, err
	}
	return known(u.Op.Apply(m.Value()))
}

// ExplicitCollation is the operand's collation.
func (u Unary) ExplicitCollation() (value.Collation, bool) { return u.Expr.ExplicitCollation() }

// ImplicitCollation survives only a unary plus over a column-like operand.
func (u Unary) ImplicitCollation() (value.Collation, bool) {
	if u.Op == OpPlus && takesChildCollation(u.Expr) {
		return u.Expr.ImplicitCollation()
	}
	return value.Binary, false
}

// Postfix renders a postfix operation.
type Postfix struct {
	unmodeled
	Op   PostfixOp
	Expr Expr
}

// IsNull wraps a predicate in ISNULL.
func IsNull(e Expr) Postfix { return Postfix{Op: OpIsNull, Expr: e} }

// Build emits (expr op).
func (p Postfix) Build(b *SQLBuilder) {
	b.Write("(")
	p.Expr.Build(b)
	b.Write(" ")
	b.Write(p.Op.String())
	b.Write(")")
}

// Expected applies the operator to the operand value.
func (p Postfix) Expected(ev *Evaluator) (value.Maybe, error) {
	m, err := p.Expr.Expected(ev)
	if err != nil || !m.IsKnown() {
		return value.Unknown, err
	}
	return value.Known(p.Op.Apply(m.Value())), nil
}

// ExplicitCollation is the operand's collation.
func (p Postfix) ExplicitCollation() (value.Collation, bool) { return p.Expr.ExplicitCollation() }

// Binary renders an arithmetic, bitwise, concatenation or logical operation.
type Binary struct {
	unmodeled
	Left  Expr
	Op    BinaryOp
	Right Expr
}

// And joins two predicates.
func And(l, r Expr) Binary { return Binary{Left: l, Op: OpAnd, Right: r} }

// Or joins two predicates.
func Or(l, r Expr) Binary { return Binary{Left: l, Op: OpOr, Right: r} }

// Build emits (left op right).
func (e Binary) Build(b *SQLBuilder) {
	b.Write("(")
	e.Left.Build(b)
	b.Write(" ")
	b.Write(e.Op.String())
	b.Write(" ")
	e.Right.Build(b)
	b.Write(")")
}

// Expected applies the operator once both operands are known. A known FALSE
// operand decides AND and a known TRUE operand decides OR even when the other
// side is unknown. Real results outside the trusted magnitude abandon the
// attempt.
func (e Binary) Expected(ev *Evaluator) (value.Maybe, error) {
	if e.Op == OpAnd || e.Op == OpOr {
		return e.logical(ev)
	}
	vals, ok, err := evalAll(ev, []Expr{e.Left, e.Right})
	if err != nil || !ok {
		return value.Unknown, err
	}
	m, err := e.Op.Apply(ev, vals[0], vals[1])
	if err != nil {
		return value.Unknown, err
	}
	if v, ok := m.Get(); ok && v.IsReal() {
		if err := value.CheckRange(v.AsReal()); err != nil {
			return value.Unknown, err
		}
	}
	return m, nil
}

func (e Binary) logical(ev *Evaluator) (value.Maybe, error) {
	l, err := e.Left.Expected(ev)
	if err != nil {
		return value.Unknown, err
	}
	r, err := e.Right.Expected(ev)
	if err != nil {
		return value.Unknown, err
	}
	decisive := value.False
	if e.Op == OpOr {
		decisive = value.True
	}
	lv, lok := l.Get()
	rv, rok := r.Get()
	if (lok && value.IsTrue(lv) == decisive) || (rok && value.IsTrue(rv) == decisive) {
		return value.Known(value.Bool(decisive == value.True)), nil
	}
	if !lok || !rok {
		return value.Unknown, nil
	}
	return e.Op.Apply(ev, lv, rv)
}

// ExplicitCollation prefers the left operand.
func (e Binary) ExplicitCollation() (value.Collation, bool) { return firstExplicit(e.Left, e.Right) }

// Comparison renders a comparison operation.
type Comparison struct {
	unmodeled
	Left  Expr
	Op    CompareOp
	Right Expr
	// Spelling selects an alternative operator spelling, such as == or <>.
	Spelling int
}

// Compare builds a comparison with the canonical spelling.
func Compare(l Expr, op CompareOp, r Expr) Comparison {
	return Comparison{Left: l, Op: op, Right: r}
}

// Build emits (left op right).
func (c Comparison) Build(b *SQLBuilder) {
	spellings := c.Op.Spellings()
	b.Write("(")
	c.Left.Build(b)
	b.Write(" ")
	b.Write(spellings[c.Spelling%len(spellings)])
	b.Write(" ")
	c.Right.Build(b)
	b.Write(")")
}

// Expected compares the operand values after affinity and collation
// resolution.
func (c Comparison) Expected(ev *Evaluator) (value.Maybe, error) {
	vals, ok, err := evalAll(ev, []Expr{c.Left, c.Right})
	if err != nil || !ok {
		return value.Unknown, err
	}
	return c.Op.Apply(vals[0], vals[1], c.Left.Affinity(), c.Right.Affinity(), c.Left, c.Right)
}

// ExplicitCollation prefers the left operand.
func (c Comparison) ExplicitCollation() (value.Collation, bool) {
	return firstExplicit(c.Left, c.Right)
}

// Between renders expr [NOT] BETWEEN left AND right.
type Between struct {
	unmodeled
	Expr    Expr
	Negated bool
	Left    Expr
	Right   Expr
}

// Build emits the BETWEEN operation.
func (e Between) Build(b *SQLBuilder) {
	b.Write("((")
	e.Expr.Build(b)
	b.Write(")")
	if e.Negated {
		b.Write(" NOT")
	}
	b.Write(" BETWEEN (")
	e.Left.Build(b)
	b.Write(") AND (")
	e.Right.Build(b)
	b.Write("))")
}

// Rewrite returns the equivalent comparison tree.
func (e Between) Rewrite() Expr {
	and := And(Compare(e.Expr, OpGreaterEq, e.Left), Compare(e.Expr, OpLessEq, e.Right))
	if e.Negated {
		return Not(and)
	}
	return and
}

// Expected evaluates the rewritten comparison tree.
func (e Between) Expected(ev *Evaluator) (value.Maybe, error) {
	return e.Rewrite().Expected(ev)
}

// ExplicitCollation checks the operand, then the bounds.
func (e Between) ExplicitCollation() (value.Collation, bool) {
	return firstExplicit(e.Expr, e.Left, e.Right)
}

// In renders expr IN (list) or expr IN query.
type In struct {
	unmodeled
	Left Expr
	List []Expr
	// Query replaces List when set; it is a table reference or a query.
	Query Expr
}

// Build emits the IN operation.
func (e In) Build(b *SQLBuilder) {
	b.Write("(")
	e.Left.Build(b)
	b.Write(" IN ")
	switch q := e.Query.(type) {
	case nil:
		b.Write("(")
		b.WriteList(e.List)
		b.Write(")")
	case TableRef:
		q.Build(b)
	default:
		b.Write("(")
		q.Build(b)
		b.Write(")")
	}
	b.Write(")")
}

// Expected scans the list. A match is TRUE; otherwise any NULL comparison
// makes the result NULL. Queries on the right are not modeled.
func (e In) Expected(ev *Evaluator) (value.Maybe, error) {
	lm, err := e.Left.Expected(ev)
	if err != nil || !lm.IsKnown() {
		return value.Unknown, err
	}
	if e.Query != nil {
		return value.Unknown, nil
	}
	if len(e.List) == 0 {
		return value.Known(value.Int(0)), nil
	}
	left := lm.Value()
	if left.IsNull() {
		return value.Known(value.Null()), nil
	}
	coll, ok := e.Left.ExplicitCollation()
	if !ok {
		if coll, ok = e.Left.ImplicitCollation(); !ok {
			coll = value.Binary
		}
	}
	sawNull := false
	for _, item := range e.List {
		rm, err := item.Expected(ev)
		if err != nil || !rm.IsKnown() {
			return value.Unknown, err
		}
		_, right, err := value.ApplyAffinities(e.Left.Affinity(), value.AffinityNone, left, rm.Value())
		if err != nil {
			return value.Unknown, err
		}
		switch value.IsTrue(value.Equals(left, right, coll)) {
		case value.True:
			return value.Known(value.Int(1)), nil
		case value.NullTruth:
			sawNull = true
		}
	}
	if sawNull {
		return value.Known(value.Null()), nil
	}
	return value.Known(value.Int(0)), nil
}

// ExplicitCollation is the left operand's collation.
func (e In) ExplicitCollation() (value.Collation, bool) { return e.Left.ExplicitCollation() }

// When is a CASE branch.
type When struct {
	Cond Expr
	Then Expr
}

// Case renders CASE [base] WHEN ... THEN ... [ELSE ...] END.
type Case struct {
	unmodeled
	Base  Expr
	Whens []When
	Else  Expr
}

// Build emits the CASE expression.
func (c Case) Build(b *SQLBuilder) {
	b.Write("CASE")
	if c.Base != nil {
		b.Write(" ")
		c.Base.Build(b)
	}
	for _, w := range c.Whens {
		b.Write(" WHEN ")
		w.Cond.Build(b)
		b.Write(" THEN ")
		w.Then.Build(b)
	}
	if c.Else != nil {
		b.Write(" ELSE ")
		c.Else.Build(b)
	}
	b.Write(" END")
}

// Expected returns the result of the first matching branch. A branch whose
// condition is unknown before a match makes the whole CASE unknown.
func (c Case) Expected(ev *Evaluator) (value.Maybe, error) {
	var base value.Value
	if c.Base != nil {
		m, err := c.Base.Expected(ev)
		if err != nil || !m.IsKnown() {
			return value.Unknown, err
		}
		base = m.Value()
	}
	for _, w := range c.Whens {
		m, err := w.Cond.Expected(ev)
		if err != nil || !m.IsKnown() {
			return value.Unknown, err
		}
		matched := false
		if c.Base == nil {
			matched = value.IsTrue(m.Value()) == value.True
		} else {
			eq, err := OpEq.Apply(base, m.Value(), c.Base.Affinity(), w.Cond.Affinity(), c.Base, w.Cond)
			if err != nil {
				return value.Unknown, err
			}
			matched = isOne(eq.Value())
		}
		if matched {
			return w.Then.Expected(ev)
		}
	}
	if c.Else == nil {
		return value.Known(value.Null()), nil
	}
	return c.Else.Expected(ev)
}

// ExplicitCollation checks the base, each branch and the else branch.
func (c Case) ExplicitCollation() (value.Collation, bool) {
	exprs := []Expr{c.Base}
	for _, w := range c.Whens {
		exprs = append(exprs, w.Cond, w.Then)
	}
	exprs = append(exprs, c.Else)
	return firstExplicit(exprs...)
}

// Match renders left MATCH right against a full-text table.
type Match struct {
	unmodeled
	Left  Expr
	Right Expr
}

// Build emits (left MATCH right).
func (m Match) Build(b *SQLBuilder) {
	b.Write("(")
	m.Left.Build(b)
	b.Write(" MATCH ")
	m.Right.Build(b)
	b.Write(")")
}

// RowValue renders a parenthesized row value.
type RowValue struct {
	unmodeled
	Exprs []Expr
}

// Build emits (e1, e2, ...).
func (r RowValue) Build(b *SQLBuilder) {
	b.Write("(")
	b.WriteList(r.Exprs)
	b.Write(")")
}

// ExplicitCollation is the first explicit collation of the elements.
func (r RowValue) ExplicitCollation() (value.Collation, bool) { return firstExplicit(r.Exprs...) }

// Rectify rewrites e, whose value is v, into a predicate that is true:
// e itself, NOT e, or e ISNULL.
func Rectify(e Expr, v value.Value) Expr {
	switch value.IsTrue(v) {
	case value.True:
		return e
	case value.False:
		return Not(e)
	}
	return IsNull(e)
}

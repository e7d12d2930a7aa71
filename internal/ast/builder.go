package ast

import "strings"

// SQLBuilder accumulates SQL text.
type SQLBuilder struct {
	sb strings.Builder
}

// Write appends raw SQL text to the builder.
func (b *SQLBuilder) Write(s string) {
	b.sb.WriteString(s)
}

// WriteList renders expressions separated by ", ".
func (b *SQLBuilder) WriteList(exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			b.Write(", ")
		}
		e.Build(b)
	}
}

// String returns the assembled SQL statement.
func (b *SQLBuilder) String() string {
	return b.sb.String()
}

// SQL renders a single node.
func SQL(e Expr) string {
	var b SQLBuilder
	e.Build(&b)
	return b.String()
}

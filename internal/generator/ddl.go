package generator

import (
	"fmt"
	"strings"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

var columnTypes = []string{"INT", "TEXT", "BLOB", "REAL", "INTEGER", ""}

var collations = []string{"BINARY", "RTRIM", "NOCASE"}

// CreateTableSQL emits a CREATE TABLE statement with columns c0..cN.
func (g *Generator) CreateTableSQL(name string) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if util.Coin(g.Rand) {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(name)
	sb.WriteString(" (")
	n := 1 + util.SmallNumber(g.Rand)
	names := make([]string, 0, n)
	hasPK := false
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		col := fmt.Sprintf("c%d", i)
		names = append(names, col)
		sb.WriteString(col)
		if i == 0 && util.Chance(g.Rand, IntegerPrimaryKeyProb) {
			sb.WriteString(" INTEGER PRIMARY KEY")
			hasPK = true
			continue
		}
		if typ := util.Pick(g.Rand, columnTypes); typ != "" {
			sb.WriteString(" ")
			sb.WriteString(typ)
		}
		if util.Chance(g.Rand, ColumnNotNullProb) {
			sb.WriteString(" NOT NULL")
		}
		if util.Chance(g.Rand, ColumnDefaultProb) {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(ast.SQL(g.Literal()))
		}
		if util.Chance(g.Rand, ColumnCollateProb) {
			sb.WriteString(" COLLATE ")
			sb.WriteString(util.Pick(g.Rand, collations))
		}
	}
	if !hasPK && util.Chance(g.Rand, TablePrimaryKeyProb) {
		sb.WriteString(", PRIMARY KEY ")
		sb.WriteString(g.indexedColumns(names))
		hasPK = true
	}
	if util.Chance(g.Rand, TableUniqueProb) {
		sb.WriteString(", UNIQUE ")
		sb.WriteString(g.indexedColumns(names))
	}
	sb.WriteString(")")
	if hasPK && g.Config.WithoutRowid && util.Chance(g.Rand, WithoutRowidProb) {
		sb.WriteString(" WITHOUT ROWID")
	}
	return sb.String()
}

func (g *Generator) indexedColumns(names []string) string {
	cols := util.NonEmptySubset(g.Rand, names)
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		switch g.Rand.Intn(3) {
		case 0:
			c += " ASC"
		case 1:
			c += " DESC"
		}
		parts = append(parts, c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// InsertSQL emits an INSERT statement of one or more rows into tbl.
func (g *Generator) InsertSQL(tbl schema.Table) string {
	cols := g.Schema.TableColumns(tbl.ID)
	var sb strings.Builder
	sb.WriteString("INSERT ")
	if util.Coin(g.Rand) {
		sb.WriteString("OR IGNORE ")
	} else {
		sb.WriteString(util.Pick(g.Rand, []string{"OR REPLACE ", "OR ABORT ", "OR FAIL ", "OR ROLLBACK "}))
	}
	sb.WriteString("INTO ")
	sb.WriteString(tbl.Name)
	subset := util.NonEmptySubset(g.Rand, cols)
	if len(subset) != len(cols) || util.Coin(g.Rand) {
		names := make([]string, 0, len(subset))
		for _, c := range subset {
			names = append(names, c.Name)
		}
		sb.WriteString("(")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(")")
	} else {
		subset = cols
	}
	sb.WriteString(" VALUES ")
	rows := 1 + g.Rand.Intn(InsertRowsMax)
	plain := g.WithColumns(nil)
	for i := 0; i < rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		vals := make([]ast.Expr, 0, len(subset))
		for _, c := range subset {
			switch {
			case g.Schema.IsIntegerPrimaryKey(c):
				vals = append(vals, ast.Lit(value.Int(util.IntBetween(g.Rand, 0, IntegerPrimaryKeyMax))))
			case util.Chance(g.Rand, InsertExprProb):
				vals = append(vals, plain.Expression())
			default:
				vals = append(vals, g.Literal())
			}
		}
		sb.WriteString(ast.SQL(ast.RowValue{Exprs: vals}))
	}
	if util.Chance(g.Rand, InsertUpsertProb) && !tbl.Virtual {
		sb.WriteString(" ON CONFLICT DO NOTHING")
	}
	return sb.String()
}

// CreateIndexSQL emits a CREATE INDEX statement over deterministic
// expressions of tbl's columns.
func (g *Generator) CreateIndexSQL(name string, tbl schema.Table) string {
	cols := g.Schema.TableColumns(tbl.ID)
	gen := g.WithColumns(cols).WithUnqualifiedColumns().WithDeterministicOnly()
	gen.subqueries = false
	var sb strings.Builder
	sb.WriteString("CREATE")
	if util.Coin(g.Rand) {
		sb.WriteString(" UNIQUE")
	}
	sb.WriteString(" INDEX")
	if util.Coin(g.Rand) {
		sb.WriteString(" IF NOT EXISTS")
	}
	sb.WriteString(" ")
	sb.WriteString(name)
	sb.WriteString(" ON ")
	sb.WriteString(tbl.Name)
	sb.WriteString("(")
	for i := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ast.SQL(gen.Expression()))
		if util.Coin(g.Rand) {
			sb.WriteString(" COLLATE ")
			sb.WriteString(util.Pick(g.Rand, collations))
		}
		switch g.Rand.Intn(3) {
		case 0:
			sb.WriteString(" ASC")
		case 1:
			sb.WriteString(" DESC")
		}
	}
	sb.WriteString(")")
	if util.Chance(g.Rand, IndexPartialProb) {
		sb.WriteString(" WHERE ")
		sb.WriteString(ast.SQL(gen.Expression()))
	}
	return sb.String()
}

// DropTableSQL emits DROP TABLE for name.
func (g *Generator) DropTableSQL(name string) string {
	if util.Coin(g.Rand) {
		return "DROP TABLE IF EXISTS " + name
	}
	return "DROP TABLE " + name
}

package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/config"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/value"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testSchema() *schema.Schema {
	b := schema.NewBuilder()
	b.AddTable(schema.TableSpec{Name: "t0", RowidName: "rowid"}, []schema.Column{
		{Name: "c0", Type: schema.TypeInt},
		{Name: "c1", Type: schema.TypeText, Collation: value.NoCase},
	})
	b.AddTable(schema.TableSpec{Name: "t1", RowidName: "_rowid_"}, []schema.Column{
		{Name: "c0", Type: schema.TypeReal},
	})
	return b.Build()
}

func testConfig() config.Generator {
	return config.Default().Generator
}

func TestSameSeedSameOutput(t *testing.T) {
	sch := testSchema()
	render := func() []string {
		g := New(testConfig(), sch, 42).WithTables(sch.TableIDs())
		out := make([]string, 0, 50)
		for i := 0; i < 50; i++ {
			out = append(out, ast.SQL(g.Expression()))
		}
		return out
	}
	require.Equal(t, render(), render())
}

func TestNoColumnsNoReferences(t *testing.T) {
	sch := testSchema()
	g := New(testConfig(), sch, 7)
	for i := 0; i < 300; i++ {
		text := ast.SQL(g.Expression())
		require.NotContains(t, text, "t0.", text)
		require.NotContains(t, text, "t1.", text)
	}
}

func TestColumnExprCarriesPivotValue(t *testing.T) {
	sch := testSchema()
	cols := sch.TableColumns(sch.TableIDs()[0])
	row := schema.RowValue{Tables: sch.TableIDs()[:1], Values: map[schema.ColumnID]value.Value{
		cols[0].ID: value.Int(3),
		cols[1].ID: value.Text("x"),
	}}
	g := New(testConfig(), sch, 1).WithColumns(cols).WithRowValues(row)

	c := g.ColumnExpr(cols[0])
	require.Equal(t, "t0.c0", ast.SQL(c))
	v, ok := c.Value.Get()
	require.True(t, ok)
	require.Equal(t, value.Int(3), v)

	require.Equal(t, "c1", ast.SQL(g.WithUnqualifiedColumns().ColumnExpr(cols[1])))
}

func TestResultKnown(t *testing.T) {
	sch := testSchema()
	g := New(testConfig(), sch, 3).WithKnownResult()
	ev := ast.NewEvaluator()
	for i := 0; i < 20; i++ {
		e, v, err := g.ResultKnown(ev)
		if value.IsIgnore(err) {
			continue
		}
		require.NoError(t, err)
		m, err := e.Expected(ev)
		require.NoError(t, err)
		got, ok := m.Get()
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func TestHavingUsesAggregates(t *testing.T) {
	sch := testSchema()
	g := New(testConfig(), sch, 11).WithTables(sch.TableIDs()).WithAggregates()
	found := false
	for i := 0; i < 50 && !found; i++ {
		text := ast.SQL(g.Having())
		for _, f := range ast.AggregateFuncs {
			if strings.Contains(text, f.String()+"(") {
				found = true
			}
		}
	}
	require.True(t, found)
}

func TestNoRECQueries(t *testing.T) {
	sch := testSchema()
	g := New(testConfig(), sch, 5).WithTables(sch.TableIDs()[:1])
	sel := g.Select()
	where := ast.Compare(ast.Named("c0"), ast.OpGreater, ast.Lit(value.Int(1)))

	opt := g.NoRECOptimized(sel, where, true)
	require.True(t, strings.HasPrefix(opt.SQL(), "SELECT COUNT(*) FROM t0"), opt.SQL())
	require.Contains(t, opt.SQL(), "WHERE")

	unopt := g.NoRECUnoptimized(sel, where)
	require.True(t, strings.HasPrefix(unopt, "SELECT SUM(count) FROM (SELECT "), unopt)
	require.Contains(t, unopt, "IS TRUE as count")
	require.NotContains(t, unopt, "WHERE")
	require.Nil(t, sel.Where)
}

func TestMatchString(t *testing.T) {
	g := New(testConfig(), nil, 9)
	for i := 0; i < 100; i++ {
		s := g.MatchString()
		require.NotEmpty(t, s)
		require.NotContains(t, s, "'")
	}
}

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStatementsExecute(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	cfg := testConfig()
	cfg.Soundex = false
	g := New(cfg, nil, 21)

	for i := 0; i < 4; i++ {
		stmt := g.CreateTableSQL(fmt.Sprintf("t%d", i))
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	sch, err := schema.Load(ctx, db, g.Rand)
	require.NoError(t, err)
	require.Len(t, sch.Tables, 4)
	g = g.WithSchema(sch)

	for i := 0; i < 40; i++ {
		tbl, err := sch.RandomTable(g.Rand)
		require.NoError(t, err)
		stmt := g.InsertSQL(tbl)
		require.True(t, strings.HasPrefix(stmt, "INSERT OR "), stmt)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			require.NotContains(t, err.Error(), "syntax error", stmt)
		}
	}
	for i := 0; i < 4; i++ {
		tbl, err := sch.RandomTable(g.Rand)
		require.NoError(t, err)
		stmt := g.CreateIndexSQL(fmt.Sprintf("i%d", i), tbl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			require.NotContains(t, err.Error(), "syntax error", stmt)
		}
	}
	for i := 0; i < 100; i++ {
		q, err := g.WithSubqueries().RandomQuery(1 + i%3)
		require.NoError(t, err)
		stmt := ast.SQL(q)
		rows, err := db.QueryContext(ctx, stmt)
		if err != nil {
			require.NotContains(t, err.Error(), "syntax error", stmt)
			continue
		}
		for rows.Next() {
		}
		_ = rows.Close()
	}

	drop := g.DropTableSQL("t0")
	_, err = db.ExecContext(ctx, drop)
	require.NoError(t, err, drop)
}

package schema

import (
	"context"
	"database/sql"
	"math/rand"
	"testing"

	"limbofuzz/internal/value"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestBuilderAssignsOwners(t *testing.T) {
	b := NewBuilder()
	t0 := b.AddTable(TableSpec{Name: "t0", RowidName: "rowid"}, []Column{
		{Name: "c0", Type: TypeInt, Integer: true, PrimaryKey: true},
		{Name: "c1", Type: TypeText, Collation: value.NoCase},
	})
	t1 := b.AddTable(TableSpec{Name: "t1", WithoutRowid: true}, []Column{
		{Name: "c0", Type: TypeReal, PrimaryKey: true},
	})
	s := b.Build()

	require.Len(t, s.Tables, 2)
	require.Len(t, s.Columns, 4)
	for _, col := range s.TableColumns(t0) {
		require.Equal(t, t0, col.Table)
		require.Equal(t, "t0", s.TableName(col))
	}
	require.True(t, s.Table(t0).HasRowid())
	require.True(t, s.Column(s.Table(t0).Rowid).Rowid)
	require.False(t, s.Table(t1).HasRowid())

	cols := s.ColumnsOf([]TableID{t0, t1})
	require.Len(t, cols, 3)
	require.True(t, s.IsIntegerPrimaryKey(cols[0]))
	require.False(t, s.IsIntegerPrimaryKey(cols[2]))
	require.Equal(t, value.AffinityText, cols[1].Affinity())
	require.Equal(t, value.AffinityReal, cols[2].Affinity())
	require.Equal(t, "t2", s.FreeTableName("t"))
}

func TestParseDataType(t *testing.T) {
	cases := map[string]DataType{
		"":        TypeNone,
		"int":     TypeInt,
		"INTEGER": TypeInt,
		"TEXT":    TypeText,
		"REAL":    TypeReal,
		"BLOB":    TypeBinary,
	}
	for decl, want := range cases {
		got, err := ParseDataType(decl)
		require.NoError(t, err)
		require.Equal(t, want, got, decl)
	}
	_, err := ParseDataType("VARCHAR(10)")
	require.Error(t, err)
}

func TestRandomNonEmptyTables(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	_, err := (&Schema{}).RandomNonEmptyTables(r)
	require.True(t, value.IsIgnore(err))

	b := NewBuilder()
	b.AddTable(TableSpec{Name: "t0"}, []Column{{Name: "c0"}})
	b.AddTable(TableSpec{Name: "t1"}, []Column{{Name: "c0"}})
	s := b.Build()
	for i := 0; i < 20; i++ {
		ids, err := s.RandomNonEmptyTables(r)
		require.NoError(t, err)
		require.NotEmpty(t, ids)
		require.LessOrEqual(t, len(ids), 2)
	}
}

func TestLoad(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE t0 (c0 INT COLLATE NOCASE, c1 TEXT COLLATE RTRIM, c2)",
		"CREATE TABLE t1 (c0 INTEGER PRIMARY KEY, c1 REAL) WITHOUT ROWID",
		"CREATE INDEX i0 ON t0(c0)",
		"CREATE TABLE skip_me (c0 INT)",
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	s, err := Load(ctx, db, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)
	require.Equal(t, []string{"i0"}, s.Indexes)

	t0, ok := s.TableByName("t0")
	require.True(t, ok)
	require.True(t, t0.HasRowid())
	cols := s.TableColumns(t0.ID)
	require.Len(t, cols, 3)
	require.Equal(t, value.NoCase, cols[0].Collation)
	require.Equal(t, value.RTrim, cols[1].Collation)
	require.Equal(t, TypeNone, cols[2].Type)

	t1, ok := s.TableByName("t1")
	require.True(t, ok)
	require.True(t, t1.WithoutRowid)
	require.False(t, t1.HasRowid())
	require.False(t, s.IsIntegerPrimaryKey(s.TableColumns(t1.ID)[0]))
}

func TestExtendKeepsIDs(t *testing.T) {
	b := NewBuilder()
	t0 := b.AddTable(TableSpec{Name: "t0"}, []Column{{Name: "c0"}})
	base := b.Build()

	ext := base.Extend()
	t1 := ext.AddTable(TableSpec{Name: "temp_table"}, []Column{{Name: "c0", Type: TypeText}})
	s := ext.Build()

	require.Len(t, base.Tables, 1)
	require.Len(t, s.Tables, 2)
	require.Equal(t, "t0", s.Table(t0).Name)
	cols := s.TableColumns(t1)
	require.Len(t, cols, 1)
	require.Equal(t, "temp_table", s.TableName(cols[0]))
	require.Equal(t, base.Column(0), s.Column(0))
}

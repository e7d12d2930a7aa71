package db

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"limbofuzz/internal/schema"
	"limbofuzz/internal/value"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return New(conn, time.Second), mock
}

func TestQueryConvertsValues(t *testing.T) {
	d, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"a", "b", "c", "d", "e"}).
		AddRow(int64(1), 1.5, "x", []byte{0xab}, nil).
		AddRow(int64(-2), 0.0, "", []byte{}, nil)
	mock.ExpectQuery("SELECT * FROM t0").WillReturnRows(rows)

	rs, err := d.Query(context.Background(), "SELECT * FROM t0", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	require.True(t, rs.Rows[0][0].Identical(value.Int(1)))
	require.True(t, rs.Rows[0][1].Identical(value.Real(1.5)))
	require.True(t, rs.Rows[0][2].Identical(value.Text("x")))
	require.True(t, rs.Rows[0][3].Identical(value.Blob([]byte{0xab})))
	require.True(t, rs.Rows[0][4].IsNull())
	require.Equal(t, []string{"1", "-2"}, rs.Strings())
	require.Len(t, rs.Column(2), 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRowLimit(t *testing.T) {
	d, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"c0"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3))
	mock.ExpectQuery("SELECT c0 FROM t0").WillReturnRows(rows)

	_, err := d.Query(context.Background(), "SELECT c0 FROM t0", 2)
	require.True(t, value.IsIgnore(err))
}

func TestQueryCount(t *testing.T) {
	d, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM t0").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT SUM(count) FROM (x)").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(nil))

	n, err := d.QueryCount(context.Background(), "SELECT COUNT(*) FROM t0")
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	n, err = d.QueryCount(context.Background(), "SELECT SUM(count) FROM (x)")
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecPropagatesErrors(t *testing.T) {
	d, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE t0 (c0)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE t9").WillReturnError(errors.New("no such table: t9"))

	require.NoError(t, d.Exec(context.Background(), "CREATE TABLE t0 (c0)"))
	err := d.Exec(context.Background(), "DROP TABLE t9")
	require.Error(t, err)
	require.True(t, NewExpectedErrors(QueryErrors).Matches(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRowValue(t *testing.T) {
	b := schema.NewBuilder()
	b.AddTable(schema.TableSpec{Name: "t0"}, []schema.Column{
		{Name: "c0", Type: schema.TypeReal},
		{Name: "c1", Type: schema.TypeText},
	})
	sch := b.Build()
	ids := sch.TableIDs()
	cols := sch.TableColumns(ids[0])

	d, mock := newMock(t)
	query := "SELECT t0.c0, t0.c1, typeof(t0.c0), typeof(t0.c1) FROM t0 ORDER BY RANDOM() LIMIT 1"
	mock.ExpectQuery(query).WillReturnRows(
		sqlmock.NewRows([]string{"a", "b", "c", "d"}).AddRow(int64(3), []byte("ab"), "real", "text"))

	rv, got, err := d.QueryRowValue(context.Background(), sch, ids)
	require.NoError(t, err)
	require.Equal(t, query, got)
	v, ok := rv.Get(cols[0].ID)
	require.True(t, ok)
	require.True(t, v.Identical(value.Real(3)))
	v, ok = rv.Get(cols[1].ID)
	require.True(t, ok)
	require.True(t, v.Identical(value.Text("ab")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRowValueEmpty(t *testing.T) {
	b := schema.NewBuilder()
	b.AddTable(schema.TableSpec{Name: "t0"}, []schema.Column{{Name: "c0"}})
	sch := b.Build()

	d, mock := newMock(t)
	mock.ExpectQuery("SELECT t0.c0, typeof(t0.c0) FROM t0 ORDER BY RANDOM() LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b"}))
	_, _, err := d.QueryRowValue(context.Background(), sch, sch.TableIDs())
	require.True(t, value.IsIgnore(err))
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   value.Value
		kind value.Kind
		want value.Value
		ok   bool
	}{
		{value.Int(2), value.KindInt, value.Int(2), true},
		{value.Int(2), value.KindReal, value.Real(2), true},
		{value.Blob([]byte("a")), value.KindText, value.Text("a"), true},
		{value.Text("a"), value.KindBlob, value.Blob([]byte("a")), true},
		{value.Text("a"), value.KindInt, value.Value{}, false},
	}
	for _, c := range cases {
		got, err := Coerce(c.in, c.kind)
		if !c.ok {
			require.True(t, value.IsIgnore(err))
			continue
		}
		require.NoError(t, err)
		require.True(t, got.Identical(c.want), "%s -> %s", c.in, c.kind)
	}
}

func TestExpectedErrors(t *testing.T) {
	e := NewExpectedErrors(ExpressionErrors).With("custom failure")
	require.True(t, e.Matches(errors.New("SQL logic error: integer overflow (1)")))
	require.True(t, e.Matches(errors.New("custom failure here")))
	require.True(t, e.Matches(errors.Wrap(context.DeadlineExceeded, "query")))
	require.False(t, e.Matches(errors.New("database disk image is malformed")))
	require.False(t, e.Matches(nil))
	require.False(t, NewExpectedErrors(ExpressionErrors).Matches(errors.New("custom failure")))
}

func TestEnsureDatabase(t *testing.T) {
	require.Equal(t, "", DatabasePath(":memory:"))
	require.Equal(t, "", DatabasePath("file:x?mode=memory&cache=shared"))
	require.Equal(t, "a/b.db", DatabasePath("file:a/b.db?_pragma=busy_timeout(100)"))

	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "limbo.db")
	require.NoError(t, EnsureDatabase(path))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path+"-journal", []byte("x"), 0o644))
	require.NoError(t, EnsureDatabase(path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + "-journal")
	require.True(t, os.IsNotExist(err))
}

func TestOpenInMemory(t *testing.T) {
	d, err := Open(context.Background(), "sqlite", ":memory:", time.Second)
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()
	require.NoError(t, d.Exec(ctx, "CREATE TABLE t0 (c0 REAL, c1)"))
	require.NoError(t, d.Exec(ctx, "INSERT INTO t0 VALUES (1, x'00'), (NULL, 'a')"))
	n, err := d.QueryCount(ctx, "SELECT COUNT(*) FROM t0")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	sch, err := schema.Load(ctx, d, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	rv, _, err := d.QueryRowValue(ctx, sch, sch.TableIDs())
	require.NoError(t, err)
	require.Len(t, rv.Values, len(sch.ColumnsOf(sch.TableIDs())))
}

package oracle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"limbofuzz/internal/config"
	"limbofuzz/internal/db"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/value"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func anyQuery(string, string) error { return nil }

func newMock(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(anyQuery)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return db.New(conn, time.Second), mock
}

func testSchema() *schema.Schema {
	b := schema.NewBuilder()
	b.AddTable(schema.TableSpec{Name: "t0", RowidName: "rowid"}, []schema.Column{
		{Name: "c0", Type: schema.TypeInt},
		{Name: "c1", Type: schema.TypeText, Collation: value.NoCase},
	})
	b.AddTable(schema.TableSpec{Name: "t1"}, []schema.Column{
		{Name: "c0", Type: schema.TypeReal},
	})
	return b.Build()
}

func TestRunClassifiesOutcomes(t *testing.T) {
	conn, _ := newMock(t)
	cases := []struct {
		name   string
		check  func(a *attempt) error
		ok     bool
		skip   string
		reason string
	}{
		{name: "pass", check: func(*attempt) error { return nil }, ok: true},
		{
			name:  "ignore",
			check: func(*attempt) error { return value.Ignoref("nothing to do") },
			ok:    true,
			skip:  "x:ignore",
		},
		{
			name: "expected",
			check: func(a *attempt) error {
				a.expect("ambiguous column name")
				return errors.New("ambiguous column name: c0")
			},
			ok:   true,
			skip: "x:expected_error",
		},
		{
			name:   "unexpected",
			check:  func(*attempt) error { return errors.New("database disk image is malformed") },
			reason: "x:unexpected_error",
		},
		{
			name:  "mismatch",
			check: func(*attempt) error { return mismatchf("1", "2", map[string]any{"expected_sql": "SELECT 1"}) },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := run(context.Background(), "X", conn, db.NewExpectedErrors(), 0, tc.check)
			require.Equal(t, "X", res.Oracle)
			require.Equal(t, tc.ok, res.OK)
			require.Equal(t, tc.skip, res.SkipReason())
			require.Equal(t, tc.skip != "", res.Skipped())
			if tc.reason != "" {
				require.Equal(t, tc.reason, res.Details["error_reason"])
				require.Error(t, res.Err)
			}
		})
	}

	res := run(context.Background(), "X", conn, db.NewExpectedErrors(), 0, func(*attempt) error {
		return mismatchf("1", "2", map[string]any{"expected_sql": "SELECT 1"})
	})
	require.Equal(t, "1", res.Expected)
	require.Equal(t, "2", res.Actual)
	require.Equal(t, "SELECT 1", res.Details["expected_sql"])
	require.NoError(t, res.Err)
}

func TestRunCollectsCleanupErrors(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec("DROP TABLE IF EXISTS intable").WillReturnError(errors.New("database is locked"))

	res := run(context.Background(), "X", conn, db.NewExpectedErrors(), 0, func(a *attempt) error {
		defer a.drop("intable")
		return nil
	})
	require.True(t, res.OK)
	require.Contains(t, res.Details["cleanup_error"], "drop intable")
	require.Equal(t, []string{"DROP TABLE IF EXISTS intable"}, res.SQL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoRECReportsDifferentCounts(t *testing.T) {
	conn, mock := newMock(t)
	// The optimized query yields 0 as a count or 1 as a row count; the
	// unoptimized one yields 7.
	mock.ExpectQuery("optimized").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(0)))
	mock.ExpectQuery("unoptimized").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(7)))

	sch := testSchema()
	gen := generator.New(config.Default().Generator, sch, 3)
	res := NoREC{MaxRows: 100}.Run(context.Background(), conn, gen, sch)
	require.False(t, res.OK)
	require.NoError(t, res.Err)
	require.Equal(t, "unoptimized count=7", res.Actual)
	require.Contains(t, res.Details, "optimized_sql")
	require.Contains(t, res.Details, "unoptimized_sql")
	require.Len(t, res.SQL, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoRECEqualCounts(t *testing.T) {
	conn, mock := newMock(t)
	// One row holding 1 counts as 1 either way.
	mock.ExpectQuery("optimized").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
	mock.ExpectQuery("unoptimized").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))

	sch := testSchema()
	gen := generator.New(config.Default().Generator, sch, 5)
	res := NoREC{MaxRows: 100}.Run(context.Background(), conn, gen, sch)
	require.True(t, res.OK, "%+v", res)
	require.False(t, res.Skipped())
}

func TestAggregateEngineErrorIsSkipped(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("original").WillReturnError(errors.New("integer overflow"))

	sch := testSchema()
	gen := generator.New(config.Default().Generator, sch, 9)
	res := TLPAggregate{}.Run(context.Background(), conn, gen, sch)
	require.True(t, res.OK)
	require.Equal(t, "aggregate:ignore", res.SkipReason())
}

func TestQueryPartitioningRotates(t *testing.T) {
	conn, mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 10; i++ {
		mock.ExpectQuery(fmt.Sprint(i)).WillReturnError(errors.New("no such table: t0"))
	}

	sch := testSchema()
	gen := generator.New(config.Default().Generator, sch, 1)
	qp := NewQueryPartitioning(100)
	var variants []string
	for i := 0; i < 5; i++ {
		res := qp.Run(context.Background(), conn, gen, sch)
		require.Equal(t, NameQueryPartitioning, res.Oracle)
		variants = append(variants, res.Details["variant"].(string))
	}
	require.Equal(t, []string{"WHERE", "DISTINCT", "GROUP_BY", "HAVING", "AGGREGATE"}, variants)
}

func TestEmptySchemaIsSkipped(t *testing.T) {
	conn, _ := newMock(t)
	sch := schema.NewBuilder().Build()
	gen := generator.New(config.Default().Generator, sch, 1)
	cfg := config.Default()
	for _, name := range Names {
		o, err := New(name, cfg)
		require.NoError(t, err)
		res := o.Run(context.Background(), conn, gen, sch)
		require.True(t, res.OK, name)
		require.True(t, res.Skipped(), name)
	}
}

// Package oracle implements the logic-bug oracles. Each oracle synthesizes
// queries whose results must agree and reports a finding when they do not.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/db"
	"limbofuzz/internal/generator"
	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Result is the outcome of one oracle attempt. OK is false for findings:
// disagreeing results or an unexpected engine error.
type Result struct {
	OK       bool
	Oracle   string
	SQL      []string
	Expected string
	Actual   string
	Details  map[string]any
	Err      error
}

// Skipped reports whether the attempt was abandoned.
func (r Result) Skipped() bool {
	_, ok := r.Details["skip_reason"]
	return ok
}

// SkipReason returns the reason an attempt was abandoned.
func (r Result) SkipReason() string {
	s, _ := r.Details["skip_reason"].(string)
	return s
}

// Executor runs statements against the engine under test.
type Executor interface {
	Exec(ctx context.Context, stmt string) error
	Query(ctx context.Context, query string, maxRows int) (db.ResultSet, error)
	QueryCount(ctx context.Context, query string) (int64, error)
	QueryRowValue(ctx context.Context, sch *schema.Schema, tables []schema.TableID) (schema.RowValue, string, error)
}

// Oracle checks one property of the engine per Run.
type Oracle interface {
	Name() string
	Run(ctx context.Context, exec Executor, gen *generator.Generator, sch *schema.Schema) Result
}

// mismatch is returned by a check when two results disagree.
type mismatch struct {
	expected string
	actual   string
	details  map[string]any
}

func (m *mismatch) Error() string {
	return fmt.Sprintf("result mismatch: expected %s, actual %s", m.expected, m.actual)
}

func mismatchf(expected, actual string, details map[string]any) error {
	return &mismatch{expected: expected, actual: actual, details: details}
}

// attempt carries the state of one oracle run: the statements executed so
// far and the errors that abandon it.
type attempt struct {
	ctx     context.Context
	conn    Executor
	errors  db.ExpectedErrors
	maxRows int
	sql     []string
	details map[string]any
	cleanup *multierror.Error
}

// expect adds error substrings that abandon the attempt.
func (a *attempt) expect(substrings ...string) {
	a.errors = a.errors.With(substrings...)
}

func (a *attempt) query(q string) (db.ResultSet, error) {
	a.sql = append(a.sql, q)
	return a.conn.Query(a.ctx, q, a.maxRows)
}

func (a *attempt) count(q string) (int64, error) {
	a.sql = append(a.sql, q)
	return a.conn.QueryCount(a.ctx, q)
}

func (a *attempt) exec(stmt string) error {
	a.sql = append(a.sql, stmt)
	return a.conn.Exec(a.ctx, stmt)
}

// drop removes a helper table. Failures are collected, not returned, so
// that the outcome of the check is kept.
func (a *attempt) drop(table string) {
	stmt := "DROP TABLE IF EXISTS " + table
	a.sql = append(a.sql, stmt)
	if err := a.conn.Exec(context.WithoutCancel(a.ctx), stmt); err != nil {
		a.cleanup = multierror.Append(a.cleanup, errors.Wrapf(err, "drop %s", table))
	}
}

// run executes check and classifies its outcome: ignore errors and expected
// engine errors skip, mismatches and other errors are findings.
func run(ctx context.Context, name string, conn Executor, expected db.ExpectedErrors, maxRows int, check func(a *attempt) error) Result {
	a := &attempt{ctx: ctx, conn: conn, errors: expected, maxRows: maxRows, details: map[string]any{}}
	err := check(a)
	res := Result{OK: true, Oracle: name, SQL: a.sql, Details: a.details}
	prefix := strings.ToLower(name)
	var m *mismatch
	switch {
	case err == nil:
	case errors.As(err, &m):
		res.OK = false
		res.Expected = m.expected
		res.Actual = m.actual
		for k, v := range m.details {
			res.Details[k] = v
		}
	case value.IsIgnore(err):
		res.Details["skip_reason"] = prefix + ":ignore"
		res.Details["ignore_reason"] = err.Error()
	case a.errors.Matches(err):
		res.Details["skip_reason"] = prefix + ":expected_error"
		res.Details["error"] = err.Error()
	default:
		res.OK = false
		res.Err = err
		res.Details["error_reason"] = prefix + ":unexpected_error"
	}
	if cerr := a.cleanup.ErrorOrNil(); cerr != nil {
		util.Warnf("%s cleanup: %v", name, cerr)
		res.Details["cleanup_error"] = cerr.Error()
	}
	return res
}

func evaluator(gen *generator.Generator) *ast.Evaluator {
	return &ast.Evaluator{AllowFloatingPoint: gen.Config.FloatingPoint}
}

// rowStrings renders every row as a comma-separated list of literals.
func rowStrings(rs db.ResultSet) []string {
	out := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = v.String()
		}
		out = append(out, strings.Join(parts, ", "))
	}
	return out
}

// Package repro replays a case directory against a fresh database and
// prints what the engine returns for the case statements.
package repro

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"limbofuzz/internal/db"
	"limbofuzz/internal/util"

	"github.com/pkg/errors"
)

// Options configures a reproduction run.
type Options struct {
	CaseDir string
	Driver  string
	DSN     string
	Timeout time.Duration
	// Out receives the replay log; os.Stdout when nil.
	Out io.Writer
}

// Run recreates the schema and data of a case and executes case.sql.
// Statements of schema.sql and inserts.sql must succeed; errors of case
// statements are printed since they may be the finding.
func Run(ctx context.Context, opts Options) error {
	if opts.CaseDir == "" {
		return errors.New("case dir is required")
	}
	if opts.Driver == "" {
		opts.Driver = "sqlite"
	}
	if opts.DSN == "" {
		opts.DSN = ":memory:"
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if err := db.EnsureDatabase(opts.DSN); err != nil {
		return err
	}
	conn, err := db.Open(ctx, opts.Driver, opts.DSN, opts.Timeout)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(conn, "repro db")

	if versions, err := conn.QueryStrings(ctx, "SELECT sqlite_version()"); err == nil && len(versions) > 0 {
		fmt.Fprintf(out, "driver=%s dsn=%s version=%s\n", opts.Driver, opts.DSN, versions[0])
	}
	for _, name := range []string{"schema.sql", "inserts.sql"} {
		if err := execFile(ctx, conn, filepath.Join(opts.CaseDir, name), out); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return replayCase(ctx, conn, filepath.Join(opts.CaseDir, "case.sql"), out)
}

func execFile(ctx context.Context, conn *db.DB, path string, out io.Writer) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(out, "skip %s: not found\n", path)
		return nil
	}
	if err != nil {
		return err
	}
	stmts := splitSQL(string(content))
	fmt.Fprintf(out, "exec_file=%s statements=%d\n", path, len(stmts))
	for i, stmt := range stmts {
		if err := conn.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "stmt=%d sql=%s", i+1, stmt)
		}
	}
	return nil
}

func replayCase(ctx context.Context, conn *db.DB, path string, out io.Writer) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for i, stmt := range splitSQL(string(content)) {
		fmt.Fprintf(out, "-- [%d] %s\n", i+1, stmt)
		if !returnsRows(stmt) {
			if err := conn.Exec(ctx, stmt); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}
		rs, err := conn.Query(ctx, stmt, 0)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, strings.Join(rs.Columns, " | "))
		for _, row := range rs.Rows {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = v.String()
			}
			fmt.Fprintln(out, strings.Join(cells, " | "))
		}
		fmt.Fprintf(out, "(%d rows)\n", len(rs.Rows))
	}
	return nil
}

func returnsRows(stmt string) bool {
	head := strings.ToUpper(strings.TrimLeft(stmt, "( \t\n"))
	for _, kw := range []string{"SELECT", "WITH", "VALUES", "EXPLAIN", "PRAGMA"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}

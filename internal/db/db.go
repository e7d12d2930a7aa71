// Package db executes statements against the engine under test and converts
// driver values into the value model.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"limbofuzz/internal/schema"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"

	"github.com/jpillora/backoff"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const pingAttempts = 5

// DB is a single-connection handle with a per-statement timeout.
type DB struct {
	conn    *sql.DB
	timeout time.Duration
}

// ResultSet holds typed rows of a query.
type ResultSet struct {
	Columns []string
	Rows    [][]value.Value
}

// Column returns the values of column i.
func (rs ResultSet) Column(i int) []value.Value {
	out := make([]value.Value, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		out = append(out, row[i])
	}
	return out
}

// Strings renders the first column of every row.
func (rs ResultSet) Strings() []string {
	out := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) == 0 {
			continue
		}
		out = append(out, row[0].String())
	}
	return out
}

// Open connects with driver ("sqlite" or "sqlite3") and pings with backoff
// until the database answers.
func Open(ctx context.Context, driver, dsn string, timeout time.Duration) (*DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s %s", driver, dsn)
	}
	conn.SetMaxOpenConns(1)
	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 1; ; attempt++ {
		err = conn.PingContext(ctx)
		if err == nil {
			break
		}
		if attempt >= pingAttempts {
			util.CloseWithErr(conn, "db")
			return nil, errors.Wrapf(err, "ping %s after %d attempts", dsn, attempt)
		}
		wait := b.Duration()
		util.Warnf("ping %s failed (attempt %d): %v; retry in %s", dsn, attempt, err, wait)
		select {
		case <-ctx.Done():
			util.CloseWithErr(conn, "db")
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return New(conn, timeout), nil
}

// New wraps an open connection pool.
func New(conn *sql.DB, timeout time.Duration) *DB {
	return &DB{conn: conn, timeout: timeout}
}

// Close releases the connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

// QueryContext runs a raw query; it lets schema introspection share the
// connection.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, query, args...)
}

// Exec runs a statement without results.
func (d *DB) Exec(ctx context.Context, stmt string) error {
	qctx, cancel := d.withTimeout(ctx)
	defer cancel()
	_, err := d.conn.ExecContext(qctx, stmt)
	return err
}

// Query runs query and converts every row. It gives up with an ignore error
// once more than maxRows rows arrive; maxRows <= 0 means no limit.
func (d *DB) Query(ctx context.Context, query string, maxRows int) (ResultSet, error) {
	qctx, cancel := d.withTimeout(ctx)
	defer cancel()
	rows, err := d.conn.QueryContext(qctx, query)
	if err != nil {
		return ResultSet{}, err
	}
	defer util.CloseWithErr(rows, "query rows")
	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, err
	}
	rs := ResultSet{Columns: cols}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return ResultSet{}, err
		}
		row := make([]value.Value, len(cols))
		for i, v := range raw {
			if row[i], err = FromDriver(v); err != nil {
				return ResultSet{}, err
			}
		}
		rs.Rows = append(rs.Rows, row)
		if maxRows > 0 && len(rs.Rows) > maxRows {
			return ResultSet{}, value.Ignoref("more than %d rows", maxRows)
		}
	}
	return rs, rows.Err()
}

// QueryStrings returns the first column of query rendered as literals.
func (d *DB) QueryStrings(ctx context.Context, query string) ([]string, error) {
	rs, err := d.Query(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	return rs.Strings(), nil
}

// QueryCount returns the integer in the first column of the first row. NULL
// counts as zero.
func (d *DB) QueryCount(ctx context.Context, query string) (int64, error) {
	qctx, cancel := d.withTimeout(ctx)
	defer cancel()
	var n sql.NullInt64
	if err := d.conn.QueryRowContext(qctx, query).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, value.Ignoref("count query returned no rows")
		}
		return 0, err
	}
	return n.Int64, nil
}

// QueryRowValue fetches a random row of the cross product of tables. Values
// are reconciled with typeof() so that the storage class matches the engine.
func (d *DB) QueryRowValue(ctx context.Context, sch *schema.Schema, tables []schema.TableID) (schema.RowValue, string, error) {
	var cols []schema.Column
	for _, c := range sch.ColumnsOf(tables) {
		if !c.IsDummy() {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return schema.RowValue{}, "", value.Ignoref("no columns to fetch")
	}
	names := make([]string, 0, len(tables))
	for _, id := range tables {
		names = append(names, sch.Table(id).Name)
	}
	refs := make([]string, 0, len(cols))
	for _, c := range cols {
		refs = append(refs, sch.TableName(c)+"."+c.Name)
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(refs, ", "))
	for _, ref := range refs {
		fmt.Fprintf(&sb, ", typeof(%s)", ref)
	}
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(" ORDER BY RANDOM() LIMIT 1")
	query := sb.String()

	rs, err := d.Query(ctx, query, 1)
	if err != nil {
		return schema.RowValue{}, query, err
	}
	if len(rs.Rows) == 0 {
		return schema.RowValue{}, query, value.Ignoref("no rows in %s", strings.Join(names, ", "))
	}
	row := rs.Rows[0]
	rv := schema.RowValue{Tables: append([]schema.TableID(nil), tables...), Values: make(map[schema.ColumnID]value.Value, len(cols))}
	for i, c := range cols {
		typ := row[len(cols)+i]
		if !typ.IsText() {
			return schema.RowValue{}, query, errors.Errorf("typeof(%s) returned %s", refs[i], typ)
		}
		kind, ok := value.KindFromTypeof(typ.AsText())
		if !ok {
			return schema.RowValue{}, query, errors.Errorf("unknown storage class %q", typ.AsText())
		}
		v, err := Coerce(row[i], kind)
		if err != nil {
			return schema.RowValue{}, query, err
		}
		rv.Values[c.ID] = v
	}
	return rv, query, nil
}

// FromDriver converts a scanned driver value.
func FromDriver(v any) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Null(), nil
	case int64:
		return value.Int(x), nil
	case int:
		return value.Int(int64(x)), nil
	case int32:
		return value.Int(int64(x)), nil
	case float64:
		return value.Real(x), nil
	case float32:
		return value.Real(float64(x)), nil
	case bool:
		return value.Bool(x), nil
	case string:
		return value.Text(x), nil
	case []byte:
		return value.Blob(append([]byte(nil), x...)), nil
	case time.Time:
		return value.Text(x.Format("2006-01-02 15:04:05")), nil
	}
	return value.Value{}, value.Ignoref("unsupported driver type %T", v)
}

// Coerce adjusts v to the storage class reported by typeof().
func Coerce(v value.Value, kind value.Kind) (value.Value, error) {
	if v.Kind() == kind {
		return v, nil
	}
	switch {
	case kind == value.KindNull:
		return value.Null(), nil
	case kind == value.KindReal && v.IsInt():
		return value.Real(float64(v.AsInt())), nil
	case kind == value.KindText && v.IsBlob():
		return value.Text(string(v.AsBlob())), nil
	case kind == value.KindBlob && v.IsText():
		return value.Blob([]byte(v.AsText())), nil
	}
	return value.Value{}, value.Ignoref("driver returned %s for a %s value", v.Kind(), kind)
}

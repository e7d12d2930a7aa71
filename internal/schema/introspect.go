package schema

import (
	"context"
	"database/sql"
	"math/rand"
	"strings"

	"limbofuzz/internal/util"
	"limbofuzz/internal/value"

	"github.com/pkg/errors"
)

// Querier is the subset of *sql.DB and *sql.Conn used for introspection.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type tableRow struct {
	name     string
	category string
	sql      string
}

// Load takes a schema snapshot from the live connection. r picks the rowid
// alias of every rowid table.
func Load(ctx context.Context, q Querier, r *rand.Rand) (*Schema, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, type, sql FROM sqlite_schema")
	if err != nil {
		return nil, errors.Wrap(err, "read sqlite_schema")
	}
	var (
		tables  []tableRow
		indexes []string
	)
	for rows.Next() {
		var name, category string
		var stmt sql.NullString
		if err := rows.Scan(&name, &category, &stmt); err != nil {
			util.CloseWithErr(rows, "schema rows")
			return nil, errors.Wrap(err, "scan sqlite_schema")
		}
		switch {
		case category == "index":
			if !strings.Contains(name, "_autoindex") {
				indexes = append(indexes, name)
			}
		case category == "trigger":
		case skipTableName(name):
		default:
			tables = append(tables, tableRow{name: name, category: category, sql: strings.ToLower(stmt.String)})
		}
	}
	err = rows.Err()
	util.CloseWithErr(rows, "schema rows")
	if err != nil {
		return nil, errors.Wrap(err, "iterate sqlite_schema")
	}

	b := NewBuilder()
	for _, t := range tables {
		spec := TableSpec{
			Name:         t.name,
			WithoutRowid: strings.Contains(t.sql, "without rowid"),
			View:         t.category == "view",
			Virtual:      strings.Contains(t.sql, "virtual"),
			ReadOnly:     strings.Contains(t.sql, "using dbstat") || strings.Contains(t.sql, "content=''"),
		}
		if t.category == "temp_table" {
			spec.Kind = TableTemp
		}
		cols, err := loadColumns(ctx, q, t.name, t.sql, spec.View)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			continue
		}
		if !spec.View && !spec.Virtual && !spec.WithoutRowid {
			spec.RowidName = util.Pick(r, RowidNames)
		}
		b.AddTable(spec, cols)
	}
	for _, idx := range indexes {
		b.AddIndex(idx)
	}
	return b.Build(), nil
}

// skipTableName filters internal and shadow tables.
func skipTableName(name string) bool {
	return strings.HasPrefix(name, "sqlite_") || strings.Contains(name, "_")
}

func loadColumns(ctx context.Context, q Querier, table, createSQL string, view bool) ([]Column, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA table_xinfo("+table+")")
	if err != nil {
		return nil, errors.Wrapf(err, "table_xinfo %s", table)
	}
	defer util.CloseWithErr(rows, "table_xinfo rows")
	defs := columnDefinitions(createSQL)
	var cols []Column
	idx := 0
	for rows.Next() {
		var (
			cid     int
			name    string
			decl    sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
			hidden  int
		)
		if err := rows.Scan(&cid, &name, &decl, &notNull, &dflt, &pk, &hidden); err != nil {
			return nil, errors.Wrapf(err, "scan table_xinfo %s", table)
		}
		typ, err := ParseDataType(decl.String)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s.%s", table, name)
		}
		col := Column{
			Name:       name,
			Type:       typ,
			Integer:    strings.EqualFold(strings.TrimSpace(decl.String), "INTEGER"),
			PrimaryKey: pk > 0,
			Collation:  value.Binary,
		}
		if !view && idx < len(defs) {
			col.Collation = collationOf(defs[idx])
		}
		idx++
		cols = append(cols, col)
	}
	return cols, errors.Wrapf(rows.Err(), "iterate table_xinfo %s", table)
}

// columnDefinitions splits the body of a lower-cased CREATE TABLE into its
// comma-separated definitions.
func columnDefinitions(createSQL string) []string {
	open := strings.Index(createSQL, "(")
	end := strings.LastIndex(createSQL, ")")
	if open < 0 || end <= open {
		return nil
	}
	return strings.Split(createSQL[open+1:end], ",")
}

func collationOf(def string) value.Collation {
	switch {
	case strings.Contains(def, "collate binary"):
		return value.Binary
	case strings.Contains(def, "collate rtrim"):
		return value.RTrim
	case strings.Contains(def, "collate nocase"):
		return value.NoCase
	}
	return value.Binary
}

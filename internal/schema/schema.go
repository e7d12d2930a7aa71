// Package schema holds the introspected schema snapshot used for SQL generation.
package schema

import (
	"fmt"
	"math/rand"
	"strings"

	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

// DataType enumerates declared column types.
type DataType int

// Declared column types.
const (
	TypeNone DataType = iota
	TypeInt
	TypeText
	TypeReal
	TypeBinary
	TypeNull
)

// SQLName returns the declared type keyword, empty for TypeNone.
func (t DataType) SQLName() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeText:
		return "TEXT"
	case TypeReal:
		return "REAL"
	case TypeBinary:
		return "BLOB"
	case TypeNull:
		return "NULL"
	default:
		return ""
	}
}

// Affinity maps the declared type to its column affinity.
func (t DataType) Affinity() value.Affinity {
	switch t {
	case TypeInt:
		return value.AffinityInteger
	case TypeText:
		return value.AffinityText
	case TypeReal:
		return value.AffinityReal
	case TypeBinary:
		return value.AffinityBlob
	default:
		return value.AffinityNone
	}
}

// ParseDataType maps a declared type string to a DataType.
func ParseDataType(decl string) (DataType, error) {
	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(decl)), " GENERATED ALWAYS", "") {
	case "TEXT":
		return TypeText, nil
	case "INTEGER", "INT", "BOOLEAN":
		return TypeInt, nil
	case "":
		return TypeNone, nil
	case "BLOB":
		return TypeBinary, nil
	case "REAL", "NUM":
		return TypeReal, nil
	case "NULL":
		return TypeNull, nil
	}
	return TypeNone, fmt.Errorf("unsupported column type %q", decl)
}

// TableID indexes Schema.Tables. NoTable marks columns without an owner.
type TableID int

// ColumnID indexes Schema.Columns.
type ColumnID int

// NoTable is the owner of dummy columns.
const NoTable TableID = -1

// RowidNames lists the aliases of the rowid column.
var RowidNames = []string{"rowid", "_rowid_", "oid"}

// Column describes a table column.
type Column struct {
	ID         ColumnID
	Table      TableID
	Name       string
	Type       DataType
	Integer    bool
	PrimaryKey bool
	Collation  value.Collation
	Rowid      bool
}

// Affinity returns the column affinity.
func (c Column) Affinity() value.Affinity {
	return c.Type.Affinity()
}

// DummyColumn returns an owner-less INT column referenced by bare name,
// such as a derived-table alias.
func DummyColumn(name string) Column {
	return Column{ID: -1, Table: NoTable, Name: name, Type: TypeInt}
}

// IsDummy reports whether the column has no owning table.
func (c Column) IsDummy() bool {
	return c.Table == NoTable
}

// TableKind distinguishes main and temp tables.
type TableKind int

// Table kinds.
const (
	TableMain TableKind = iota
	TableTemp
)

// Table describes a database table or view.
type Table struct {
	ID           TableID
	Name         string
	Columns      []ColumnID
	Rowid        ColumnID
	Kind         TableKind
	WithoutRowid bool
	View         bool
	Virtual      bool
	ReadOnly     bool
}

// HasRowid reports whether the table exposes a rowid alias.
func (t Table) HasRowid() bool {
	return t.Rowid >= 0
}

// Schema is an immutable snapshot of the database tables.
type Schema struct {
	Tables  []Table
	Columns []Column
	Indexes []string
}

// Table returns the table with the given id.
func (s *Schema) Table(id TableID) Table {
	return s.Tables[id]
}

// Column returns the column with the given id.
func (s *Schema) Column(id ColumnID) Column {
	return s.Columns[id]
}

// TableColumns returns the declared columns of a table.
func (s *Schema) TableColumns(id TableID) []Column {
	tbl := s.Tables[id]
	out := make([]Column, 0, len(tbl.Columns))
	for _, cid := range tbl.Columns {
		out = append(out, s.Columns[cid])
	}
	return out
}

// ColumnsOf returns the declared columns of all given tables in order.
func (s *Schema) ColumnsOf(tables []TableID) []Column {
	var out []Column
	for _, id := range tables {
		out = append(out, s.TableColumns(id)...)
	}
	return out
}

// TableName returns the owning table name of a column, empty for dummies.
func (s *Schema) TableName(c Column) string {
	if c.IsDummy() {
		return ""
	}
	return s.Tables[c.Table].Name
}

// TableByName returns a table by name if present.
func (s *Schema) TableByName(name string) (Table, bool) {
	for _, tbl := range s.Tables {
		if strings.EqualFold(tbl.Name, name) {
			return tbl, true
		}
	}
	return Table{}, false
}

// IsIntegerPrimaryKey reports whether the column aliases the rowid: a lone
// INTEGER primary key of a rowid table.
func (s *Schema) IsIntegerPrimaryKey(c Column) bool {
	if !c.Integer || !c.PrimaryKey || c.IsDummy() {
		return false
	}
	tbl := s.Tables[c.Table]
	if tbl.WithoutRowid {
		return false
	}
	pks := 0
	for _, col := range s.TableColumns(tbl.ID) {
		if col.PrimaryKey {
			pks++
		}
	}
	return pks == 1
}

// TableIDs returns all table ids.
func (s *Schema) TableIDs() []TableID {
	out := make([]TableID, len(s.Tables))
	for i := range s.Tables {
		out[i] = TableID(i)
	}
	return out
}

// BaseTableIDs returns tables that are neither views nor virtual.
func (s *Schema) BaseTableIDs() []TableID {
	var out []TableID
	for _, tbl := range s.Tables {
		if tbl.View || tbl.Virtual {
			continue
		}
		out = append(out, tbl.ID)
	}
	return out
}

// RandomNonEmptyTables picks a non-empty subset of tables.
func (s *Schema) RandomNonEmptyTables(r *rand.Rand) ([]TableID, error) {
	if len(s.Tables) == 0 {
		return nil, value.Ignoref("schema has no tables")
	}
	return util.NonEmptySubset(r, s.TableIDs()), nil
}

// RandomTable picks one table.
func (s *Schema) RandomTable(r *rand.Rand) (Table, error) {
	if len(s.Tables) == 0 {
		return Table{}, value.Ignoref("schema has no tables")
	}
	return s.Tables[r.Intn(len(s.Tables))], nil
}

// RandomIndex picks an index name.
func (s *Schema) RandomIndex(r *rand.Rand) (string, error) {
	if len(s.Indexes) == 0 {
		return "", value.Ignoref("schema has no indexes")
	}
	return util.Pick(r, s.Indexes), nil
}

// FreeTableName returns a name with the prefix that no table uses.
func (s *Schema) FreeTableName(prefix string) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, ok := s.TableByName(name); !ok {
			return name
		}
	}
}

func (s *Schema) String() string {
	var sb strings.Builder
	for _, tbl := range s.Tables {
		sb.WriteString(tbl.Name)
		sb.WriteString("(")
		for i, col := range s.TableColumns(tbl.ID) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(col.Name)
			if name := col.Type.SQLName(); name != "" {
				sb.WriteString(" " + name)
			}
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

// RowValue maps columns of a set of tables to one concrete row.
type RowValue struct {
	Tables []TableID
	Values map[ColumnID]value.Value
}

// Get returns the value of a column in the row.
func (rv RowValue) Get(id ColumnID) (value.Value, bool) {
	v, ok := rv.Values[id]
	return v, ok
}

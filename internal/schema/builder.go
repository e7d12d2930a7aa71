package schema

// TableSpec describes a table before it is added to a Builder.
type TableSpec struct {
	Name         string
	Kind         TableKind
	WithoutRowid bool
	View         bool
	Virtual      bool
	ReadOnly     bool
	// RowidName names the rowid alias; empty when the table has none.
	RowidName string
}

// Builder assembles a Schema. Columns get their owning table in the same
// step that adds the table.
type Builder struct {
	s Schema
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddTable appends a table with its columns and returns its id.
func (b *Builder) AddTable(spec TableSpec, cols []Column) TableID {
	id := TableID(len(b.s.Tables))
	tbl := Table{
		ID:           id,
		Name:         spec.Name,
		Rowid:        -1,
		Kind:         spec.Kind,
		WithoutRowid: spec.WithoutRowid,
		View:         spec.View,
		Virtual:      spec.Virtual,
		ReadOnly:     spec.ReadOnly,
	}
	for _, col := range cols {
		col.ID = ColumnID(len(b.s.Columns))
		col.Table = id
		b.s.Columns = append(b.s.Columns, col)
		tbl.Columns = append(tbl.Columns, col.ID)
	}
	if spec.RowidName != "" {
		rowid := Column{
			ID:      ColumnID(len(b.s.Columns)),
			Table:   id,
			Name:    spec.RowidName,
			Type:    TypeInt,
			Integer: true,
			Rowid:   true,
		}
		b.s.Columns = append(b.s.Columns, rowid)
		tbl.Rowid = rowid.ID
	}
	b.s.Tables = append(b.s.Tables, tbl)
	return id
}

// AddIndex records an index name.
func (b *Builder) AddIndex(name string) {
	b.s.Indexes = append(b.s.Indexes, name)
}

// Build returns the assembled schema. The builder must not be reused.
func (b *Builder) Build() *Schema {
	s := b.s
	return &s
}

// Extend returns a builder seeded with a copy of s. Tables added to it get
// ids after the existing ones, so ids of s stay valid in the result.
func (s *Schema) Extend() *Builder {
	return &Builder{s: Schema{
		Tables:  append([]Table(nil), s.Tables...),
		Columns: append([]Column(nil), s.Columns...),
		Indexes: append([]string(nil), s.Indexes...),
	}}
}

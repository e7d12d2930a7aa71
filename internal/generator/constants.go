package generator

// Generator tuning constants are centralized here to avoid scattering magic numbers.
// Probabilities are percentages unless otherwise noted.

const (
	// KnownResultMaxTries caps attempts to build an expression whose value is modeled.
	KnownResultMaxTries = 100
	// MaxSubqueryColumns caps the fetch list of synthesized subqueries.
	MaxSubqueryColumns = 1
	// LiteralRatherLowProb is the chance to emit a literal instead of a column at max depth.
	LiteralRatherLowProb = 10
)

const (
	// InsertRowsMax caps the rows of one INSERT.
	InsertRowsMax = 3
	// InsertExprProb is the chance to insert an expression instead of a literal.
	InsertExprProb = 1
	// InsertUpsertProb is the chance to append ON CONFLICT DO NOTHING.
	InsertUpsertProb = 1
	// IntegerPrimaryKeyMax bounds values inserted into rowid aliases.
	IntegerPrimaryKeyMax = 1000
)

const (
	// ColumnCollateProb is the chance to declare a column collation.
	ColumnCollateProb = 20
	// ColumnNotNullProb is the chance to declare NOT NULL.
	ColumnNotNullProb = 5
	// ColumnDefaultProb is the chance to declare a DEFAULT literal.
	ColumnDefaultProb = 2
	// IntegerPrimaryKeyProb is the chance the first column is an INTEGER PRIMARY KEY.
	IntegerPrimaryKeyProb = 10
	// TablePrimaryKeyProb is the chance to add a table-level PRIMARY KEY.
	TablePrimaryKeyProb = 5
	// TableUniqueProb is the chance to add table-level UNIQUE constraints.
	TableUniqueProb = 5
	// WithoutRowidProb is the chance a table with a primary key drops its rowid.
	WithoutRowidProb = 30
	// IndexPartialProb is the chance an index carries a WHERE clause.
	IndexPartialProb = 50
)

const (
	// IndexedByProb is the chance a table reference names an index.
	IndexedByProb = 1
	// NotIndexedProb is the chance a table reference says NOT INDEXED.
	NotIndexedProb = 1
	// SetClauseProb is the chance a synthesized query becomes a compound select.
	SetClauseProb = 1
	// WindowProb is the chance a synthesized fetch column is a window function.
	WindowProb = 10
)

// Node kind weights for random expressions.
var nodeWeights = [...]int{
	kindQuery:              1,
	kindColumn:             4,
	kindLiteral:            3,
	kindUnary:              2,
	kindPostfix:            2,
	kindBinary:             3,
	kindBetween:            2,
	kindCast:               2,
	kindComparison:         4,
	kindFunction:           3,
	kindIn:                 2,
	kindCollate:            2,
	kindCase:               2,
	kindMatch:              1,
	kindAggregate:          1,
	kindRowValueComparison: 1,
	kindAndOrChain:         2,
}

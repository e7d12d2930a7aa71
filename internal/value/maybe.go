package value

// Maybe is the result of expected-value evaluation: either a known value
// (possibly SQL NULL) or Unknown.
type Maybe struct {
	v     Value
	known bool
}

// Unknown is the evaluator's "cannot determine" result.
var Unknown = Maybe{}

// Known wraps a value as a known result.
func Known(v Value) Maybe { return Maybe{v: v, known: true} }

// IsKnown reports whether a value is present.
func (m Maybe) IsKnown() bool { return m.known }

// Get returns the value and whether it is known.
func (m Maybe) Get() (Value, bool) { return m.v, m.known }

// Value returns the value; it panics when unknown.
func (m Maybe) Value() Value {
	if !m.known {
		panic("value: Value on unknown")
	}
	return m.v
}

func (m Maybe) String() string {
	if !m.known {
		return "<unknown>"
	}
	return m.v.String()
}

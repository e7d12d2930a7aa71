package oracle

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"limbofuzz/internal/db"
	"limbofuzz/internal/value"
)

// sameMultiset compares two row lists ignoring order.
func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func distinct(rows []string) map[string]struct{} {
	out := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		out[r] = struct{}{}
	}
	return out
}

// sameSet compares two row lists ignoring order and duplicates.
func sameSet(a, b []string) bool {
	x, y := distinct(a), distinct(b)
	if len(x) != len(y) {
		return false
	}
	for k := range x {
		if _, ok := y[k]; !ok {
			return false
		}
	}
	return true
}

// sameColumns compares two result sets column by column, each column as a
// multiset of literals.
func sameColumns(a, b db.ResultSet) bool {
	if len(a.Columns) != len(b.Columns) || len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Columns {
		if !sameMultiset(literals(a.Column(i)), literals(b.Column(i))) {
			return false
		}
	}
	return true
}

func literals(vals []value.Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}

// spliceable returns an abandon error when a value cannot be written back
// into a statement as a literal: NUL ends the statement early and U+FFFD marks
// text the driver could not decode.
func spliceable(vals ...value.Value) error {
	for _, v := range vals {
		if v.IsText() && strings.ContainsAny(v.String(), "\uFFFD\x00") {
			return value.Ignoref("value %q does not round-trip as a literal", v.String())
		}
	}
	return nil
}

// sameScalar compares two aggregate results. Numbers are equal when they
// agree up to rounding of the summation order.
func sameScalar(a, b value.Value) bool {
	if a.String() == b.String() {
		return true
	}
	x, ok1 := asNumber(a)
	y, ok2 := asNumber(b)
	if !ok1 || !ok2 {
		return false
	}
	if x == y {
		return true
	}
	diff := math.Abs(x - y)
	scale := math.Max(math.Abs(x), math.Abs(y))
	return diff <= 1e-6 || diff <= scale*1e-9
}

func asNumber(v value.Value) (float64, bool) {
	switch {
	case v.IsInt():
		return float64(v.AsInt()), true
	case v.IsReal():
		return v.AsReal(), true
	case v.IsText():
		f, err := strconv.ParseFloat(strings.TrimSpace(v.AsText()), 64)
		return f, err == nil
	}
	return 0, false
}

// summarize renders rows for a finding, truncated to keep reports readable.
func summarize(rows []string) string {
	const maxRows = 20
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(rows)))
	sb.WriteString(" rows")
	for i, r := range rows {
		if i == maxRows {
			sb.WriteString("\n...")
			break
		}
		sb.WriteString("\n")
		sb.WriteString(r)
	}
	return sb.String()
}

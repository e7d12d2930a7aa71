package oracle

import (
	"math"
	"testing"

	"limbofuzz/internal/config"
	"limbofuzz/internal/db"
	"limbofuzz/internal/value"

	"github.com/stretchr/testify/require"
)

func TestSameMultiset(t *testing.T) {
	require.True(t, sameMultiset([]string{"1", "2", "2"}, []string{"2", "1", "2"}))
	require.False(t, sameMultiset([]string{"1", "2", "2"}, []string{"1", "1", "2"}))
	require.False(t, sameMultiset([]string{"1"}, []string{"1", "1"}))
	require.True(t, sameMultiset(nil, []string{}))
}

func TestSameSet(t *testing.T) {
	require.True(t, sameSet([]string{"a", "a", "b"}, []string{"b", "a"}))
	require.False(t, sameSet([]string{"a"}, []string{"b"}))
	require.False(t, sameSet([]string{"a", "b"}, []string{"a"}))
}

func TestSameColumns(t *testing.T) {
	a := db.ResultSet{
		Columns: []string{"c0", "c1"},
		Rows: [][]value.Value{
			{value.Int(1), value.Text("x")},
			{value.Int(2), value.Null()},
		},
	}
	// Columns are compared independently, so rows may be reassembled.
	b := db.ResultSet{
		Columns: []string{"c0", "c1"},
		Rows: [][]value.Value{
			{value.Int(2), value.Text("x")},
			{value.Int(1), value.Null()},
		},
	}
	require.True(t, sameColumns(a, b))

	c := db.ResultSet{Columns: []string{"c0", "c1"}, Rows: [][]value.Value{{value.Int(1), value.Text("x")}}}
	require.False(t, sameColumns(a, c))

	d := db.ResultSet{
		Columns: []string{"c0", "c1"},
		Rows: [][]value.Value{
			{value.Int(1), value.Text("x")},
			{value.Text("2"), value.Null()},
		},
	}
	require.False(t, sameColumns(a, d))
}

func TestSameScalar(t *testing.T) {
	require.True(t, sameScalar(value.Int(3), value.Int(3)))
	require.True(t, sameScalar(value.Int(3), value.Real(3)))
	require.True(t, sameScalar(value.Real(0.1+0.2), value.Real(0.3)))
	require.True(t, sameScalar(value.Real(1e300), value.Real(1e300*(1+1e-12))))
	require.True(t, sameScalar(value.Null(), value.Null()))
	require.False(t, sameScalar(value.Null(), value.Int(0)))
	require.False(t, sameScalar(value.Int(1), value.Int(2)))
	require.False(t, sameScalar(value.Text("a"), value.Text("b")))
}

func TestLimitFloor(t *testing.T) {
	require.Equal(t, int64(90), limitFloor(90, 1))
	require.Equal(t, int64(8100), limitFloor(90, 2))
	require.Equal(t, int64(1), limitFloor(0, 3))
	require.Equal(t, int64(math.MaxInt64/2), limitFloor(90, 20))
}

func TestSummarizeTruncates(t *testing.T) {
	rows := make([]string, 25)
	for i := range rows {
		rows[i] = "r"
	}
	s := summarize(rows)
	require.Contains(t, s, "25 rows")
	require.Contains(t, s, "...")
}

func TestFactory(t *testing.T) {
	cfg := config.Default()
	for _, name := range Names {
		o, err := New(name, cfg)
		require.NoError(t, err)
		require.Equal(t, name, o.Name())
		require.Positive(t, Weight(name, cfg.Oracles.Weights), name)
	}
	_, err := New("TLP_JOIN", cfg)
	require.Error(t, err)

	require.True(t, RequiresRows(NamePQS))
	require.True(t, RequiresRows(NameCODDTest))
	require.False(t, RequiresRows(NameNoREC))
}

func TestEnabled(t *testing.T) {
	cfg := config.Default().Oracles
	names, err := Enabled(cfg)
	require.NoError(t, err)
	require.Equal(t, Names, names)

	cfg.Weights.Fuzzer = 0
	names, err = Enabled(cfg)
	require.NoError(t, err)
	require.NotContains(t, names, NameFuzzer)

	cfg.Only = NameNoREC
	names, err = Enabled(cfg)
	require.NoError(t, err)
	require.Equal(t, []string{NameNoREC}, names)

	cfg.Only = "nope"
	_, err = Enabled(cfg)
	require.Error(t, err)

	_, err = Enabled(config.OracleConfig{})
	require.Error(t, err)
}

func TestSpliceable(t *testing.T) {
	require.NoError(t, spliceable(value.Int(0), value.Text("a'b"), value.Blob([]byte{0, 0xff}), value.Null()))
	for _, v := range []value.Value{value.Text("\x00"), value.Text("a\x00b"), value.Text("\uFFFD")} {
		err := spliceable(value.Int(1), v)
		require.True(t, value.IsIgnore(err), "%q: %v", v.String(), err)
	}
}

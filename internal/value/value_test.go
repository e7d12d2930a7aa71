package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCastToNumeric(t *testing.T) {
	cases := []struct {
		in   Value
		want Value
	}{
		{Text("5abc"), Int(5)},
		{Text("3.0"), Int(3)},
		{Text("3.5"), Real(3.5)},
		{Text("  12e2x"), Int(1200)},
		{Text("abc"), Int(0)},
		{Text(""), Int(0)},
		{Text("infinity"), Int(0)},
		{Text("-Infinity"), Int(0)},
		{Text("NaN"), Int(0)},
		{Text("\x1c5"), Int(0)},
		{Text("99999999999999999999"), Real(1e20)},
		{Text(".5"), Real(0.5)},
		{Text("-7"), Int(-7)},
		{Blob([]byte("42")), Int(42)},
		{Null(), Null()},
		{Real(2.5), Real(2.5)},
	}
	for _, tc := range cases {
		got := CastToNumeric(tc.in)
		require.Truef(t, got.Identical(tc.want), "CastToNumeric(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestCastToNumericVariants(t *testing.T) {
	require.True(t, CastToNumericNoNumAsRealZero(Text("abc")).Identical(Real(0)))
	require.True(t, CastToNumericNoNumAsRealZero(Text("7")).Identical(Real(7)))
	require.True(t, CastToNumericFromNumOperand(Text("7")).Identical(Int(7)))
	require.True(t, CastToNumericFromNumOperand(Text("7.0")).Identical(Real(7)))
	require.True(t, CastToNumericFromNumOperand(Text("x")).Identical(Int(0)))
}

func TestCastToInt(t *testing.T) {
	cases := []struct {
		in   Value
		want Value
	}{
		{Text("99999999999999999999"), Int(math.MaxInt64)},
		{Text("-99999999999999999999"), Int(math.MinInt64)},
		{Text("-1.370998801E9"), Int(-1)},
		{Text(" \t+15 apples"), Int(15)},
		{Text("apples"), Int(0)},
		{Real(3.9), Int(3)},
		{Real(-3.9), Int(-3)},
		{Blob([]byte("12")), Int(12)},
		{Null(), Null()},
	}
	for _, tc := range cases {
		got, err := CastToInt(tc.in)
		require.NoError(t, err)
		require.Truef(t, got.Identical(tc.want), "CastToInt(%s) = %s, want %s", tc.in, got, tc.want)
	}
	_, err := CastToInt(Real(1e16))
	require.True(t, IsIgnore(err))
}

func TestCastToReal(t *testing.T) {
	got, err := CastToReal(Text("12"))
	require.NoError(t, err)
	require.True(t, got.Identical(Real(12)))
	_, err = CastToReal(Int(1 << 60))
	require.True(t, IsIgnore(err))
}

func TestRealText(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{100, "100.0"},
		{0.5, "0.5"},
		{1e20, "1.0e+20"},
		{-2.25, "-2.25"},
		{9.223372036854775808e18, "9.22337203685478e+18"},
		{math.Inf(1), "Inf"},
		{math.Inf(-1), "-Inf"},
		{0, "0.0"},
	}
	for _, tc := range cases {
		got, ok := RealText(tc.in)
		require.True(t, ok)
		require.Equal(t, tc.want, got)
	}
	_, ok := RealText(math.NaN())
	require.False(t, ok)
	require.False(t, CastToText(Real(math.NaN())).IsKnown())
	require.False(t, CastToBlob(Real(math.NaN())).IsKnown())
}

func TestIntTextRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, -9000, math.MaxInt64, math.MinInt64, 1 << 53} {
		text := CastToText(Int(n)).Value()
		back, err := CastToInt(text)
		require.NoError(t, err)
		require.Equal(t, n, back.AsInt())
	}
}

func TestEqualsAndLess(t *testing.T) {
	require.True(t, Equals(Int(5), Real(5.0), Binary).Identical(Int(1)))
	require.True(t, Equals(Int(1), Real(1.1), Binary).Identical(Int(0)))
	require.True(t, Equals(Int(1), Real(math.Inf(1)), Binary).Identical(Int(0)))
	require.True(t, Equals(Int(1), Text("1"), Binary).Identical(Int(0)))
	require.True(t, Equals(Text("abc"), Text("ABC"), NoCase).Identical(Int(1)))
	require.True(t, Equals(Text("abc"), Text("ABC"), Binary).Identical(Int(0)))
	require.True(t, Equals(Text("a  "), Text("a"), RTrim).Identical(Int(1)))
	require.True(t, Equals(Blob([]byte{1}), Blob([]byte{1}), Binary).Identical(Int(1)))
	require.True(t, Equals(Blob([]byte{1}), Text("\x01"), Binary).Identical(Int(0)))

	require.True(t, Less(Int(1), Text("0"), Binary).Identical(Int(1)))
	require.True(t, Less(Text("a"), Int(1), Binary).Identical(Int(0)))
	require.True(t, Less(Text("z"), Blob(nil), Binary).Identical(Int(1)))
	require.True(t, Less(Blob(nil), Text("a"), Binary).Identical(Int(0)))
	require.True(t, Less(Int(2), Real(2.5), Binary).Identical(Int(1)))
	require.True(t, Less(Real(2.5), Int(2), Binary).Identical(Int(0)))
	require.True(t, Less(Real(math.Inf(-1)), Int(math.MinInt64), Binary).Identical(Int(1)))
	require.True(t, Less(Blob([]byte{1}), Blob([]byte{1, 0}), Binary).Identical(Int(1)))
	require.True(t, Less(Blob([]byte{0xff}), Blob([]byte{1}), Binary).Identical(Int(0)))
}

func TestNullAbsorption(t *testing.T) {
	for _, v := range []Value{Null(), Int(1), Real(2), Text("x"), Blob([]byte{3})} {
		require.True(t, Equals(Null(), v, Binary).IsNull())
		require.True(t, Equals(v, Null(), Binary).IsNull())
		require.True(t, Less(Null(), v, Binary).IsNull())
	}
}

func TestCollationSymmetry(t *testing.T) {
	texts := []string{"", "a", "A", "a ", "b", "B  ", "ab", "Ab"}
	for _, c := range Collations {
		for _, a := range texts {
			for _, b := range texts {
				require.True(t, Equals(Text(a), Text(b), c).Identical(Equals(Text(b), Text(a), c)))
				bothLess := Less(Text(a), Text(b), c).AsInt() == 1 && Less(Text(b), Text(a), c).AsInt() == 1
				require.False(t, bothLess, "%q %q %s", a, b, c)
			}
		}
	}
}

func TestApplyNumericIdempotent(t *testing.T) {
	values := []Value{Text(" 12 "), Text("12a"), Text("1.5"), Text("1e3"), Text(""), Int(3), Real(0.25), Blob([]byte("9")), Null()}
	for _, v := range values {
		once := ApplyNumeric(v)
		require.Truef(t, ApplyNumeric(once).Identical(once), "%s", v)
	}
	require.True(t, ApplyNumeric(Text(" 12 ")).Identical(Int(12)))
	require.True(t, ApplyNumeric(Text("12a")).Identical(Text("12a")))
}

func TestApplyAffinities(t *testing.T) {
	l, r, err := ApplyAffinities(AffinityInteger, AffinityNone, Int(1), Text("1"))
	require.NoError(t, err)
	require.True(t, l.Identical(Int(1)))
	require.True(t, r.Identical(Int(1)))

	l, r, err = ApplyAffinities(AffinityText, AffinityNone, Text("1"), Int(1))
	require.NoError(t, err)
	require.True(t, l.Identical(Text("1")))
	require.True(t, r.Identical(Text("1")))

	_, _, err = ApplyAffinities(AffinityNone, AffinityText, Real(math.NaN()), Text("x"))
	require.True(t, IsIgnore(err))
}

func TestIsTrue(t *testing.T) {
	require.Equal(t, NullTruth, IsTrue(Null()))
	require.Equal(t, True, IsTrue(Text("1abc")))
	require.Equal(t, False, IsTrue(Text("abc")))
	require.Equal(t, True, IsTrue(Real(0.1)))
	require.Equal(t, False, IsTrue(Real(math.NaN())))
	require.Equal(t, False, IsTrue(Int(0)))
}

func TestLiteral(t *testing.T) {
	require.Equal(t, "0xffffffffffffffff", HexInt(-1).Literal(false))
	require.Equal(t, "0X1f", HexInt(31).Literal(true))
	require.Equal(t, "-9223372036854775808", HexInt(math.MinInt64).Literal(false))
	require.Equal(t, "'it''s'", Text("it's").Literal(false))
	require.Equal(t, "x'AB01'", Blob([]byte{0xab, 0x01}).Literal(false))
	require.Equal(t, "1.0", Real(1).Literal(false))
	require.Equal(t, "1e500", Real(math.Inf(1)).Literal(false))
	require.Equal(t, "1e500 / 1e500", Real(math.NaN()).Literal(false))
	require.Equal(t, "NULL", Null().Literal(false))
}

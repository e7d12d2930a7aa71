package generator

import (
	"math"
	"strconv"
	"strings"

	"limbofuzz/internal/ast"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

var interestingInts = []int64{0, 1, -1, 2, 10, 127, 128, 255, 256, 65535, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64}

var interestingReals = []float64{0, 0.5, -0.5, 1, -1, 1e-7, 0.1, 1e100, -1e100, 9.223372036854776e18, 3.4e38}

var interestingTexts = []string{
	"", " ", "  ", "a", "A", "b", "0", "1", "-1", "0.5", "1e5", "+5", " 1", "1 ", "0x10",
	"abc", "ABC", "a ", "%", "_", "*", "?", "[a]", "a%", "%a_", "\t", "\n", "NULL", "9223372036854775808",
}

const textAlphabet = "abcAB01 %_*?[]^-.eE+'\t"

// Literal returns a random literal: an integer, a numeric text, a real, a
// text, a blob or NULL.
func (g *Generator) Literal() ast.Expr {
	switch g.Rand.Intn(5) {
	case 0:
		i := g.Integer()
		if util.Coin(g.Rand) {
			if util.Coin(g.Rand) {
				return ast.Constant{Value: value.HexInt(i), UpperHex: util.Coin(g.Rand)}
			}
			return ast.Lit(value.Int(i))
		}
		return ast.Lit(value.Text(strconv.FormatInt(i, 10)))
	case 1:
		return ast.Lit(value.Real(g.Real()))
	case 2:
		return ast.Lit(value.Text(g.Text()))
	case 3:
		return ast.Lit(value.Blob(g.Bytes()))
	default:
		return ast.Lit(value.Null())
	}
}

// Integer returns a random integer biased towards boundary values.
func (g *Generator) Integer() int64 {
	switch g.Rand.Intn(3) {
	case 0:
		return util.Pick(g.Rand, interestingInts)
	case 1:
		return util.IntBetween(g.Rand, -100, 100)
	default:
		i := g.Rand.Int63()
		if util.Coin(g.Rand) {
			i = -i
		}
		return i
	}
}

// Real returns a random finite real biased towards boundary values.
func (g *Generator) Real() float64 {
	switch g.Rand.Intn(3) {
	case 0:
		return util.Pick(g.Rand, interestingReals)
	case 1:
		return float64(util.IntBetween(g.Rand, -100, 100)) + float64(g.Rand.Intn(100))/100
	default:
		return (g.Rand.Float64() - 0.5) * math.Pow(10, float64(g.Rand.Intn(40)-20))
	}
}

// Text returns a random text.
func (g *Generator) Text() string {
	if util.Coin(g.Rand) {
		return util.Pick(g.Rand, interestingTexts)
	}
	n := g.Rand.Intn(6)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(textAlphabet[g.Rand.Intn(len(textAlphabet))])
	}
	return sb.String()
}

// Bytes returns a random blob payload of up to four bytes.
func (g *Generator) Bytes() []byte {
	out := make([]byte, g.Rand.Intn(5))
	for i := range out {
		out[i] = byte(g.Rand.Intn(256))
	}
	return out
}

// Percentage returns a real in [0, 1].
func (g *Generator) Percentage() float64 {
	return float64(g.Rand.Intn(101)) / 100
}

func (g *Generator) singleCharString() ast.Expr {
	for {
		if s := g.Text(); s != "" {
			return ast.Lit(value.Text(s[:1]))
		}
	}
}

var matchWords = []string{"a", "b", "ab", "abc", "x", "0", "1"}

// MatchString returns a full-text query string.
func (g *Generator) MatchString() string {
	n := util.SmallNumber(g.Rand) + 1
	terms := make([]string, 0, n)
	for i := 0; i < n; i++ {
		term := util.Pick(g.Rand, matchWords)
		if util.Chance(g.Rand, 20) {
			term += "*"
		}
		if util.Chance(g.Rand, 10) {
			term = "^" + term
		}
		if i > 0 {
			switch g.Rand.Intn(4) {
			case 0:
				terms = append(terms, "AND")
			case 1:
				terms = append(terms, "OR")
			case 2:
				terms = append(terms, "NOT")
			}
		}
		terms = append(terms, term)
	}
	if n > 1 && util.Chance(g.Rand, 10) {
		return "NEAR(" + strings.Join(terms, " ") + ")"
	}
	return strings.Join(terms, " ")
}

package generator

import (
	"limbofuzz/internal/ast"
	"limbofuzz/internal/util"
	"limbofuzz/internal/value"
)

// builtin describes a built-in scalar function that the evaluator does not
// model.
type builtin struct {
	name          string
	minArgs       int
	variadic      bool
	deterministic bool
	// lastArg replaces the generated final argument when set.
	lastArg func(g *Generator) ast.Expr
}

func fixed(name string, args int) builtin {
	return builtin{name: name, minArgs: args, deterministic: true}
}

func variadic(name string, args int) builtin {
	return builtin{name: name, minArgs: args, variadic: true, deterministic: true}
}

func volatile(name string, args int) builtin {
	return builtin{name: name, minArgs: args}
}

var builtins = []builtin{
	fixed("ABS", 1),
	volatile("CHANGES", 0),
	variadic("CHAR", 1),
	variadic("COALESCE", 2),
	fixed("GLOB", 2),
	fixed("HEX", 1),
	fixed("IFNULL", 2),
	fixed("INSTR", 2),
	volatile("LAST_INSERT_ROWID", 0),
	fixed("LENGTH", 1),
	fixed("LIKE", 2),
	{name: "LIKE", minArgs: 3, deterministic: true, lastArg: (*Generator).singleCharString},
	{name: "LIKELIHOOD", minArgs: 2, deterministic: true, lastArg: func(g *Generator) ast.Expr {
		return ast.Lit(value.Real(g.Percentage()))
	}},
	fixed("LIKELY", 1),
	fixed("load_extension", 1),
	volatile("load_extension", 2),
	fixed("LOWER", 1),
	fixed("LTRIM", 1),
	fixed("LTRIM", 2),
	variadic("MAX", 2),
	variadic("MIN", 2),
	fixed("NULLIF", 2),
	variadic("PRINTF", 1),
	fixed("QUOTE", 1),
	fixed("ROUND", 2),
	fixed("RTRIM", 1),
	fixed("soundex", 1),
	volatile("SQLITE_COMPILEOPTION_GET", 1),
	volatile("SQLITE_COMPILEOPTION_USED", 1),
	volatile("SQLITE_SOURCE_ID", 0),
	volatile("SQLITE_VERSION", 0),
	fixed("SUBSTR", 2),
	volatile("TOTAL_CHANGES", 0),
	fixed("TRIM", 1),
	fixed("TYPEOF", 1),
	fixed("UNICODE", 1),
	fixed("UNLIKELY", 1),
	fixed("UPPER", 1),
	variadic("DATE", 3),
	variadic("TIME", 3),
	variadic("DATETIME", 3),
	variadic("JULIANDAY", 3),
	variadic("STRFTIME", 3),
	fixed("json", 1),
	variadic("json_array", 2),
	fixed("json_array_length", 1),
	fixed("json_array_length", 2),
	variadic("json_extract", 2),
	variadic("json_insert", 3),
	variadic("json_object", 2),
	fixed("json_patch", 2),
	variadic("json_remove", 2),
	fixed("json_type", 1),
	fixed("json_valid", 1),
	fixed("json_quote", 1),
	fixed("rtreenode", 2),
	fixed("highlight", 4),
}

func (g *Generator) pickBuiltin() builtin {
	candidates := make([]builtin, 0, len(builtins))
	for _, f := range builtins {
		if f.name == "soundex" && !g.Config.Soundex {
			continue
		}
		if g.deterministicOnly && !f.deterministic {
			continue
		}
		candidates = append(candidates, f)
	}
	return util.Pick(g.Rand, candidates)
}

// function emits a modeled function half of the time, and always when a
// known result is preferred.
func (g *Generator) function(depth int) ast.Expr {
	if g.knownResult || util.Coin(g.Rand) {
		return g.computableFunction(depth + 1)
	}
	f := g.pickBuiltin()
	n := f.minArgs
	if f.variadic {
		n += util.SmallNumber(g.Rand)
	}
	args := g.exprs(n, depth+2)
	if f.lastArg != nil && n > 0 {
		args[n-1] = f.lastArg(g)
	}
	return ast.AnyFunction{Name: f.name, Args: args}
}

func (g *Generator) computableFunction(depth int) ast.Expr {
	f := util.Pick(g.Rand, ast.ComputableFuncs)
	n := f.Args()
	if f.Variadic() {
		n += util.SmallNumber(g.Rand)
	}
	args := make([]ast.Expr, n)
	for i := range args {
		args[i] = g.expr(depth + 1)
		if i == 0 && util.Coin(g.Rand) {
			args[i] = ast.Distinct{Expr: args[i]}
		}
	}
	if f == ast.FuncLikelihood {
		args[n-1] = ast.Lit(value.Real(g.Percentage()))
	}
	return ast.Function{Func: f, Args: args}
}

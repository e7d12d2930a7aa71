package db

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ExpressionErrors are raised by well-formed random expressions.
var ExpressionErrors = []string{
	"integer overflow",
	"parser stack overflow",
	"Expression tree is too large",
	"second argument to likelihood() must be a constant between 0.0 and 1.0",
	"ON clause references tables to its right",
	"wrong number of arguments to function",
	"no such function",
	"no such column",
	"ambiguous column name",
	"malformed JSON",
	"JSON cannot hold BLOB values",
	"json_insert() needs an odd number of arguments",
	"json_object() requires an even number of arguments",
	"json_object() labels must be TEXT",
	"bad JSON path",
	"JSON path error",
	"not authorized",
	"unable to use function",
	"row value misused",
	"sub-select returns",
	"string or blob too big",
	"ESCAPE expression must be a single character",
	"LIKE or GLOB pattern too complex",
	"RIGHT and FULL OUTER JOINs are not currently supported",
	"cannot join using column",
	"DISTINCT aggregates must have exactly one argument",
	"interrupted",
}

// QueryErrors are raised by random query shapes.
var QueryErrors = []string{
	"misuse of aggregate",
	"misuse of window function",
	"misuse of aliased",
	"second argument to nth_value must be a positive integer",
	"argument of ntile must be a positive integer",
	"no such table",
	"no such index",
	"no query solution",
	"GROUP BY term out of range",
	"ORDER BY term out of range",
	"does not match any column in the result set",
	"a GROUP BY clause is required before HAVING",
	"HAVING clause on a non-aggregate query",
	"unsupported frame specification",
	"frame starting offset must be a non-negative",
	"frame ending offset must be a non-negative",
	"requires exactly one ORDER BY term",
	"RANGE must use only UNBOUNDED or CURRENT ROW",
	"FILTER clause may only be used with aggregate window functions",
	"LIMIT clause should come after",
	"ORDER BY clause should come after",
	"SELECTs to the left and right of",
	"too many terms in compound SELECT",
	"too many columns in result set",
	"datatype mismatch",
}

// MatchErrors are raised by full-text MATCH predicates.
var MatchErrors = []string{
	"unable to use function MATCH in the requested context",
	"malformed MATCH expression",
	"fts5: syntax error near",
	"unknown special query",
	"no such cursor",
}

// InsertErrors are raised by random INSERT statements.
var InsertErrors = []string{
	"constraint failed",
	"cannot rollback - no transaction is active",
	"datatype mismatch",
	"ON CONFLICT clause does not match any PRIMARY KEY or UNIQUE constraint",
	"cannot modify",
	"may not be modified",
}

// SchemaErrors are raised by random CREATE and DROP statements.
var SchemaErrors = []string{
	"already exists",
	"non-deterministic functions prohibited",
	"subqueries prohibited",
	"constant expressions",
	"PRIMARY KEY missing on table",
	"indexed columns are not unique",
	"no such table",
	"duplicate column name",
}

// ExpectedErrors is an allow-list of error substrings that abandon an
// attempt instead of reporting a finding.
type ExpectedErrors struct {
	substrings []string
}

// NewExpectedErrors combines lists into one allow-list.
func NewExpectedErrors(lists ...[]string) ExpectedErrors {
	var e ExpectedErrors
	for _, l := range lists {
		e.substrings = append(e.substrings, l...)
	}
	return e
}

// With returns a copy with additional substrings.
func (e ExpectedErrors) With(substrings ...string) ExpectedErrors {
	out := ExpectedErrors{substrings: make([]string, 0, len(e.substrings)+len(substrings))}
	out.substrings = append(out.substrings, e.substrings...)
	out.substrings = append(out.substrings, substrings...)
	return out
}

// Matches reports whether err is expected. Deadline and cancellation errors
// always are.
func (e ExpectedErrors) Matches(err error) bool {
	if err == nil {
		return false
	}
	cause := errors.Cause(err)
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		return true
	}
	msg := err.Error()
	for _, s := range e.substrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

package oracle

import "limbofuzz/internal/db"

// queryErrors are the errors that abandon any oracle running random
// queries.
func queryErrors() db.ExpectedErrors {
	return db.NewExpectedErrors(db.ExpressionErrors, db.MatchErrors, db.QueryErrors)
}

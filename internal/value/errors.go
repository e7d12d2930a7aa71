package value

import (
	"math"

	"github.com/pkg/errors"
)

// ErrIgnore abandons the current test attempt. It is never a finding.
var ErrIgnore = errors.New("ignore attempt")

// Ignoref wraps ErrIgnore with a reason.
func Ignoref(format string, args ...any) error {
	return errors.Wrapf(ErrIgnore, format, args...)
}

// IsIgnore reports whether err abandons the attempt.
func IsIgnore(err error) bool {
	return err != nil && errors.Cause(err) == ErrIgnore
}

// dangerousMagnitude bounds reals the interpreter trusts; above it rounding
// differs between Go and the engine.
const dangerousMagnitude = 1e15

// CheckRange abandons the attempt for reals outside the trusted magnitude.
func CheckRange(f float64) error {
	if math.Abs(f) > dangerousMagnitude {
		return Ignoref("real %g outside trusted range", f)
	}
	return nil
}

package formula

import (
	"errors"
	"fmt"
)

var (
	ErrDivisionByZero    = errors.New("formula: division by zero")
	ErrStepLimitExceeded = errors.New("formula: evaluation step limit exceeded")
	ErrTypeMismatch      = errors.New("formula: type mismatch")
)

// SyntaxError reports a malformed expression before any evaluation happens.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula: syntax error at position %d: %s", e.Pos, e.Message)
}

// UnknownIdentifierError reports a variable the supplied context does not expose.
type UnknownIdentifierError struct {
	Name string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("formula: unknown identifier %q", e.Name)
}

// IsEvaluationError reports whether err belongs to the formula error taxonomy,
// as opposed to infrastructure failures.
func IsEvaluationError(err error) bool {
	var syntaxErr *SyntaxError
	var unknownErr *UnknownIdentifierError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &unknownErr) ||
		errors.Is(err, ErrDivisionByZero) ||
		errors.Is(err, ErrStepLimitExceeded) ||
		errors.Is(err, ErrTypeMismatch)
}

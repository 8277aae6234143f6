package symex

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverCanceled      = errors.New("Solver canceled")
	ErrSolverResourceLimit = errors.New("Solver resource limit")
	ErrSolverUnknown       = errors.New("Solver unknown error")
)

// IsSolverUnknown returns true if err is one of the errors a Solver returns
// when it can neither prove nor refute a formula.
func IsSolverUnknown(err error) bool {
	return errors.Is(err, ErrSolverTimeout) ||
		errors.Is(err, ErrSolverCanceled) ||
		errors.Is(err, ErrSolverResourceLimit) ||
		errors.Is(err, ErrSolverUnknown)
}

// UnsupportedTypeError is returned when a variable is declared with a type
// outside of the configured allowed types.
type UnsupportedTypeError struct {
	Name    string
	Type    Type
	Allowed TypeSet
}

// Error returns the error as a string.
func (e *UnsupportedTypeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("unsupported type %q (allowed: %s)", e.Type, e.Allowed)
	}
	return fmt.Sprintf("unsupported type %q for variable %q (allowed: %s)", e.Type, e.Name, e.Allowed)
}

// UnsupportedConstructError is returned when a state reaches a statement or
// expression the executor does not model.
type UnsupportedConstructError struct {
	Construct string
	Line      int
}

// Error returns the error as a string.
func (e *UnsupportedConstructError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("unsupported construct at line %d: %s", e.Line, e.Construct)
	}
	return fmt.Sprintf("unsupported construct: %s", e.Construct)
}

// RuntimeError represents an error raised by the program under exploration,
// such as an out of range index.
type RuntimeError struct {
	Message string
	Line    int
}

// Error returns the error as a string.
func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ValidationError is returned before exploration when a program is malformed.
type ValidationError struct {
	Errors []string
}

// Error returns the error as a string.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid program: " + e.Errors[0]
	}
	return fmt.Sprintf("invalid program: %d errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// MarshalError is returned when a solver value cannot be represented by the
// host type of its variable.
type MarshalError struct {
	Name   string
	Type   Type
	Value  string
	Reason string
}

// Error returns the error as a string.
func (e *MarshalError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("cannot marshal %s value %q: %s", e.Type, e.Value, e.Reason)
	}
	return fmt.Sprintf("cannot marshal %s value %q for %q: %s", e.Type, e.Value, e.Name, e.Reason)
}

// SolverError wraps a failure of the underlying solver that is not an
// unknown result, such as a malformed formula.
type SolverError struct {
	Err error
}

// Error returns the error as a string.
func (e *SolverError) Error() string { return "solver: " + e.Err.Error() }

// Unwrap returns the underlying error.
func (e *SolverError) Unwrap() error { return e.Err }

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}

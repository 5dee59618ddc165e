package ir

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the builder, the differentiator and the engine.
var (
	// ErrModelShape indicates an operator, arity or value class the compiler
	// does not support. It is never retried.
	ErrModelShape = errors.New("unsupported model shape")

	// ErrUnrecognizedTerm indicates a term variant or value class with no
	// lowering rule.
	ErrUnrecognizedTerm = fmt.Errorf("%w: unrecognized term", ErrModelShape)

	// ErrInvalidArgumentCount indicates a fixed-arity operator applied to the
	// wrong number of operands.
	ErrInvalidArgumentCount = fmt.Errorf("%w: invalid argument count", ErrModelShape)

	// ErrDomainIndexOutOfRange indicates an index value outside its set.
	ErrDomainIndexOutOfRange = errors.New("domain index out of range")

	// ErrInvalidOperation indicates a mutation the graph forbids, such as
	// bounding a constant.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInternalInvariant indicates a defect: the builder or the
	// differentiator emitted a shape the graph or evaluator cannot handle.
	ErrInternalInvariant = errors.New("internal invariant violated")

	// ErrAbortRequested indicates cooperative cancellation by the caller.
	ErrAbortRequested = errors.New("abort requested")
)

// InvariantError is the panic value for internal invariant violations.
// It unwraps to ErrInternalInvariant.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return ErrInternalInvariant.Error() + ": " + e.Msg }
func (e *InvariantError) Unwrap() error { return ErrInternalInvariant }

// Invariantf panics with an *InvariantError.
func Invariantf(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

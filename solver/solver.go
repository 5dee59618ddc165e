// Package solver declares the contract between the compiler and a numerical
// solver, and provides Memory, an in-memory solver model that records the
// compiled problem and can drive its callbacks.
//
// Solvers use their own vid numbering. The compiler keeps a bijection
// between graph vids and solver vids while it builds the model.
package solver

// Values gives read access to the solver's current variable values, indexed
// by solver vid.
type Values interface {
	Value(vid int) float64
}

// Gradient receives partial derivatives, indexed by the solver vid of the
// variable.
type Gradient interface {
	Set(vid int, v float64)
}

// Evaluator is invoked by the solver during iterative optimization.
// needsRecalc signals that variable values changed since the last call.
type Evaluator interface {
	Value(row int, values Values, needsRecalc bool) float64
	Gradient(row int, values Values, needsRecalc bool, out Gradient)
}

// Model is the solver-side model the compiler populates.
type Model interface {
	AllocateRow() int
	AllocateVariable() int
	SetBounds(vid int, lo, hi float64)
	SetIntegrality(vid int, integer bool)
	SetValue(vid int, v float64)
	AddGoal(vid int, priority int, minimize bool)
	SetActiveVariable(row, variable int, active bool)
	SetEvaluator(e Evaluator)
}

// DiscreteSetter is implemented by solvers that accept finite variable
// domains.
type DiscreteSetter interface {
	SetDiscrete(vid int, values []float64)
}

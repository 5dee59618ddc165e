// Package op defines the operator tags shared by the expression tree, the IR
// graph, the differentiator and the evaluator, together with their scalar
// semantics.
//
// Operators fall into four arity classes:
//   - unary: Identity, Abs, Minus, Not, the trigonometric and hyperbolic
//     functions, Exp, Log, Sqrt, Ceiling, Floor
//   - binary: Quotient, Power
//   - ternary: If
//   - variadic (at least one operand): Plus, Times, And, Or, Equal, Unequal,
//     Greater, GreaterEqual, Less, LessEqual, Max, Min
package op

import "fmt"

// Op is an operator tag.
type Op uint8

const (
	Invalid Op = iota

	// unary
	Identity
	Abs
	Minus
	Not
	Sin
	Cos
	Tan
	ArcSin
	ArcCos
	ArcTan
	Sinh
	Cosh
	Tanh
	Exp
	Log
	Sqrt
	Ceiling
	Floor

	// binary
	Quotient
	Power

	// ternary
	If

	// variadic
	Plus
	Times
	And
	Or
	Equal
	Unequal
	Greater
	GreaterEqual
	Less
	LessEqual
	Max
	Min

	numOps
)

var names = [numOps]string{
	Invalid:      "Invalid",
	Identity:     "Identity",
	Abs:          "Abs",
	Minus:        "Minus",
	Not:          "Not",
	Sin:          "Sin",
	Cos:          "Cos",
	Tan:          "Tan",
	ArcSin:       "ArcSin",
	ArcCos:       "ArcCos",
	ArcTan:       "ArcTan",
	Sinh:         "Sinh",
	Cosh:         "Cosh",
	Tanh:         "Tanh",
	Exp:          "Exp",
	Log:          "Log",
	Sqrt:         "Sqrt",
	Ceiling:      "Ceiling",
	Floor:        "Floor",
	Quotient:     "Quotient",
	Power:        "Power",
	If:           "If",
	Plus:         "Plus",
	Times:        "Times",
	And:          "And",
	Or:           "Or",
	Equal:        "Equal",
	Unequal:      "Unequal",
	Greater:      "Greater",
	GreaterEqual: "GreaterEqual",
	Less:         "Less",
	LessEqual:    "LessEqual",
	Max:          "Max",
	Min:          "Min",
}

func (o Op) String() string {
	if o < numOps {
		return names[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Valid reports whether o is a known operator other than Invalid.
func (o Op) Valid() bool { return o > Invalid && o < numOps }

// Arity returns the admissible operand count range. max is -1 for
// variadic operators.
func (o Op) Arity() (min, max int) {
	switch {
	case o >= Identity && o <= Floor:
		return 1, 1
	case o == Quotient || o == Power:
		return 2, 2
	case o == If:
		return 3, 3
	case o >= Plus && o <= Min:
		return 1, -1
	}
	return 0, 0
}

// AcceptsArity reports whether n operands are admissible for o.
func (o Op) AcceptsArity(n int) bool {
	lo, hi := o.Arity()
	if !o.Valid() || n < lo {
		return false
	}
	return hi < 0 || n <= hi
}

func (o Op) IsUnary() bool    { return o >= Identity && o <= Floor }
func (o Op) IsVariadic() bool { return o >= Plus && o <= Min }

// IsAssociative reports whether o is lowered as a left-to-right chain of
// binary applications.
func (o Op) IsAssociative() bool {
	return o == Plus || o == Times || o == And || o == Or
}

// IsRelational reports whether o compares its operands.
func (o Op) IsRelational() bool { return o >= Equal && o <= LessEqual }

// IsBoolean reports whether o always produces 0 or 1.
func (o Op) IsBoolean() bool {
	return o == Not || o == And || o == Or || o.IsRelational()
}

// IsPiecewiseConstant reports whether every partial derivative of o is zero
// wherever it is defined.
func (o Op) IsPiecewiseConstant() bool {
	return o.IsBoolean() || o == Ceiling || o == Floor
}

// IsTranscendental reports whether o is evaluated in floating point even
// when all operands are exact.
func (o Op) IsTranscendental() bool {
	switch o {
	case Sin, Cos, Tan, ArcSin, ArcCos, ArcTan, Sinh, Cosh, Tanh, Exp, Log, Sqrt:
		return true
	}
	return false
}

// Reverse maps Greater/GreaterEqual to Less/LessEqual. The operand order has
// to be reversed by the caller. Other operators are returned unchanged.
func (o Op) Reverse() Op {
	switch o {
	case Greater:
		return Less
	case GreaterEqual:
		return LessEqual
	}
	return o
}

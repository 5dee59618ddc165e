package op

import "math"

// ============================================================
// Floating point semantics
// ============================================================

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Unary evaluates a unary operator, or a variadic operator applied to one
// operand. ok is false for operators that do not take one operand.
func Unary(o Op, a float64) (v float64, ok bool) {
	switch o {
	case Identity, Plus, Times, Max, Min:
		return a, true
	case Abs:
		return math.Abs(a), true
	case Minus:
		return -a, true
	case Not:
		return truth(a == 0), true
	case Sin:
		return math.Sin(a), true
	case Cos:
		return math.Cos(a), true
	case Tan:
		return math.Tan(a), true
	case ArcSin:
		return math.Asin(a), true
	case ArcCos:
		return math.Acos(a), true
	case ArcTan:
		return math.Atan(a), true
	case Sinh:
		return math.Sinh(a), true
	case Cosh:
		return math.Cosh(a), true
	case Tanh:
		return math.Tanh(a), true
	case Exp:
		return math.Exp(a), true
	case Log:
		return math.Log(a), true
	case Sqrt:
		return math.Sqrt(a), true
	case Ceiling:
		return math.Ceil(a), true
	case Floor:
		return math.Floor(a), true
	case And, Or:
		return truth(a != 0), true
	case Equal, Unequal, Greater, GreaterEqual, Less, LessEqual:
		return 1, true
	}
	return 0, false
}

// Binary evaluates a binary operator or a variadic operator applied to two
// operands.
func Binary(o Op, a, b float64) (v float64, ok bool) {
	switch o {
	case Plus:
		return a + b, true
	case Times:
		return a * b, true
	case Quotient:
		return a / b, true
	case Power:
		return math.Pow(a, b), true
	case And:
		return truth(a != 0 && b != 0), true
	case Or:
		return truth(a != 0 || b != 0), true
	case Equal:
		return truth(a == b), true
	case Unequal:
		return truth(a != b), true
	case Greater:
		return truth(a > b), true
	case GreaterEqual:
		return truth(a >= b), true
	case Less:
		return truth(a < b), true
	case LessEqual:
		return truth(a <= b), true
	case Max:
		return math.Max(a, b), true
	case Min:
		return math.Min(a, b), true
	}
	return 0, false
}

// Ternary evaluates If or a variadic operator applied to three operands.
func Ternary(o Op, a, b, c float64) (v float64, ok bool) {
	switch o {
	case If:
		if a != 0 {
			return b, true
		}
		return c, true
	case Plus:
		return a + b + c, true
	case Times:
		return a * b * c, true
	case And:
		return truth(a != 0 && b != 0 && c != 0), true
	case Or:
		return truth(a != 0 || b != 0 || c != 0), true
	case Equal:
		return truth(a == b && b == c), true
	case Unequal:
		return truth(a != b && b != c && a != c), true
	case Greater:
		return truth(a > b && b > c), true
	case GreaterEqual:
		return truth(a >= b && b >= c), true
	case Less:
		return truth(a < b && b < c), true
	case LessEqual:
		return truth(a <= b && b <= c), true
	case Max:
		return math.Max(math.Max(a, b), c), true
	case Min:
		return math.Min(math.Min(a, b), c), true
	}
	return 0, false
}

// Variadic evaluates a variadic operator over any number of operands.
// Relational operators chain (a < b < c), Unequal requires all operands to
// be pairwise distinct.
func Variadic(o Op, args []float64) (v float64, ok bool) {
	if !o.IsVariadic() || len(args) == 0 {
		return 0, false
	}
	switch o {
	case Plus:
		acc := 0.0
		for _, a := range args {
			acc += a
		}
		return acc, true
	case Times:
		acc := 1.0
		for _, a := range args {
			acc *= a
		}
		return acc, true
	case And:
		for _, a := range args {
			if a == 0 {
				return 0, true
			}
		}
		return 1, true
	case Or:
		for _, a := range args {
			if a != 0 {
				return 1, true
			}
		}
		return 0, true
	case Max:
		acc := args[0]
		for _, a := range args[1:] {
			acc = math.Max(acc, a)
		}
		return acc, true
	case Min:
		acc := args[0]
		for _, a := range args[1:] {
			acc = math.Min(acc, a)
		}
		return acc, true
	case Unequal:
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				if args[i] == args[j] {
					return 0, true
				}
			}
		}
		return 1, true
	}
	// chained comparisons
	for i := 1; i < len(args); i++ {
		if r, _ := Binary(o, args[i-1], args[i]); r == 0 {
			return 0, true
		}
	}
	return 1, true
}

// Eval evaluates o over args, picking the unrolled form for one to three
// operands.
func Eval(o Op, args []float64) (float64, bool) {
	if !o.AcceptsArity(len(args)) {
		return 0, false
	}
	switch len(args) {
	case 1:
		return Unary(o, args[0])
	case 2:
		return Binary(o, args[0], args[1])
	case 3:
		return Ternary(o, args[0], args[1], args[2])
	}
	return Variadic(o, args)
}

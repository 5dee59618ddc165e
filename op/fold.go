package op

import (
	"math"
	"math/big"
)

// ============================================================
// Exact rational folding
// ============================================================

var (
	ratZero = new(big.Rat)
	ratOne  = new(big.Rat).SetInt64(1)
)

func ratTruth(b bool) *big.Rat {
	if b {
		return new(big.Rat).SetInt64(1)
	}
	return new(big.Rat)
}

func floatRat(f float64) (*big.Rat, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return new(big.Rat).SetFloat64(f), true
}

// Fold evaluates o over constant operands. Arithmetic, relational, boolean,
// rounding and selection operators are exact; transcendental operators go
// through float64. ok is false when the result is undefined (division by
// zero, NaN, infinities) or the arity is wrong, in which case the caller
// must keep the operation in the graph.
func Fold(o Op, args []*big.Rat) (*big.Rat, bool) {
	if !o.AcceptsArity(len(args)) {
		return nil, false
	}
	if o.IsTranscendental() {
		f, _ := args[0].Float64()
		v, _ := Unary(o, f)
		return floatRat(v)
	}
	a := args[0]
	switch o {
	case Identity:
		return new(big.Rat).Set(a), true
	case Abs:
		return new(big.Rat).Abs(a), true
	case Minus:
		return new(big.Rat).Neg(a), true
	case Not:
		return ratTruth(a.Sign() == 0), true
	case Ceiling, Floor:
		q, m := new(big.Int).DivMod(a.Num(), a.Denom(), new(big.Int))
		if o == Ceiling && m.Sign() != 0 {
			q.Add(q, big.NewInt(1))
		}
		return new(big.Rat).SetInt(q), true
	case Quotient:
		if args[1].Sign() == 0 {
			return nil, false
		}
		return new(big.Rat).Quo(a, args[1]), true
	case Power:
		return foldPower(a, args[1])
	case If:
		if a.Sign() != 0 {
			return new(big.Rat).Set(args[1]), true
		}
		return new(big.Rat).Set(args[2]), true
	case Plus:
		acc := new(big.Rat)
		for _, v := range args {
			acc.Add(acc, v)
		}
		return acc, true
	case Times:
		acc := new(big.Rat).SetInt64(1)
		for _, v := range args {
			acc.Mul(acc, v)
		}
		return acc, true
	case And:
		for _, v := range args {
			if v.Sign() == 0 {
				return ratTruth(false), true
			}
		}
		return ratTruth(true), true
	case Or:
		for _, v := range args {
			if v.Sign() != 0 {
				return ratTruth(true), true
			}
		}
		return ratTruth(false), true
	case Max, Min:
		acc := a
		for _, v := range args[1:] {
			c := v.Cmp(acc)
			if (o == Max && c > 0) || (o == Min && c < 0) {
				acc = v
			}
		}
		return new(big.Rat).Set(acc), true
	case Unequal:
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				if args[i].Cmp(args[j]) == 0 {
					return ratTruth(false), true
				}
			}
		}
		return ratTruth(true), true
	case Equal, Greater, GreaterEqual, Less, LessEqual:
		for i := 1; i < len(args); i++ {
			if !compare(o, args[i-1].Cmp(args[i])) {
				return ratTruth(false), true
			}
		}
		return ratTruth(true), true
	}
	return nil, false
}

func compare(o Op, c int) bool {
	switch o {
	case Equal:
		return c == 0
	case Greater:
		return c > 0
	case GreaterEqual:
		return c >= 0
	case Less:
		return c < 0
	case LessEqual:
		return c <= 0
	}
	return false
}

// foldPower is exact for small integer exponents, otherwise float64.
func foldPower(base, exp *big.Rat) (*big.Rat, bool) {
	if exp.IsInt() && exp.Num().IsInt64() {
		e := exp.Num().Int64()
		if e >= -20 && e <= 20 {
			if base.Sign() == 0 && e <= 0 {
				return nil, false
			}
			result := new(big.Rat).SetInt64(1)
			n := e
			if n < 0 {
				n = -n
			}
			for i := int64(0); i < n; i++ {
				result.Mul(result, base)
			}
			if e < 0 {
				result.Inv(result)
			}
			return result, true
		}
	}
	bf, _ := base.Float64()
	ef, _ := exp.Float64()
	return floatRat(math.Pow(bf, ef))
}

// IsZero and IsOne test exact rational values used by identity elimination.
func IsZero(r *big.Rat) bool { return r != nil && r.Cmp(ratZero) == 0 }
func IsOne(r *big.Rat) bool  { return r != nil && r.Cmp(ratOne) == 0 }

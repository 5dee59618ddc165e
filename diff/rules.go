package diff

import (
	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/op"
)

type partialKey struct {
	v ir.Vid
	i int
}

// partial returns the vid of the local derivative of operation v with
// respect to its i-th operand, or ir.NoVid when it is identically zero.
// Results are memoized across rows and strategies.
func (s *Symbolic) partial(v ir.Vid, i int) ir.Vid {
	key := partialKey{v, i}
	if p, ok := s.partials[key]; ok {
		return p
	}
	p := s.localPartial(v, i)
	s.partials[key] = p
	return p
}

func (s *Symbolic) localPartial(v ir.Vid, i int) ir.Vid {
	g, e := s.g, s.e
	o := g.Op(v)
	args := g.Operands(v)
	a := args[0]
	one := func() ir.Vid { return e.constant(1) }

	if o.IsPiecewiseConstant() {
		return ir.NoVid
	}
	switch o {
	case op.Identity, op.Plus:
		return one()
	case op.Minus:
		return e.constant(-1)
	case op.Times:
		acc := one()
		for j, w := range args {
			if j != i {
				acc = e.mul(acc, w)
			}
		}
		return acc
	case op.Quotient:
		if i == 0 {
			return e.quo(one(), args[1])
		}
		return e.neg(e.quo(v, args[1]))
	case op.Power:
		base, exp := args[0], args[1]
		if i == 0 {
			return e.mul(exp, e.pow(base, e.apply(op.Plus, exp, e.constant(-1))))
		}
		return e.mul(v, e.apply(op.Log, base))
	case op.Sqrt:
		return e.quo(one(), e.mul(e.constant(2), v))
	case op.Exp:
		return v
	case op.Log:
		return e.quo(one(), a)
	case op.Sin:
		return e.apply(op.Cos, a)
	case op.Cos:
		return e.neg(e.apply(op.Sin, a))
	case op.Tan:
		return e.add(one(), e.mul(v, v))
	case op.ArcSin, op.ArcCos:
		d := e.quo(one(), e.apply(op.Sqrt, e.add(one(), e.neg(e.mul(a, a)))))
		if o == op.ArcCos {
			return e.neg(d)
		}
		return d
	case op.ArcTan:
		return e.quo(one(), e.add(one(), e.mul(a, a)))
	case op.Sinh:
		return e.apply(op.Cosh, a)
	case op.Cosh:
		return e.apply(op.Sinh, a)
	case op.Tanh:
		return e.add(one(), e.neg(e.mul(v, v)))
	case op.Abs:
		return e.apply(op.If, e.apply(op.GreaterEqual, a, e.constant(0)), one(), e.constant(-1))
	case op.If:
		switch i {
		case 1:
			return e.apply(op.If, a, one(), e.constant(0))
		case 2:
			return e.apply(op.If, a, e.constant(0), one())
		}
		return ir.NoVid
	case op.Max, op.Min:
		return s.selector(v, args, i)
	}
	ir.Invariantf("no derivative rule for %s", o)
	return ir.NoVid
}

// selector is 1 exactly when operand i is the first operand attaining the
// value of the Max or Min node v, so ties credit a single operand.
func (s *Symbolic) selector(v ir.Vid, args []ir.Vid, i int) ir.Vid {
	e := s.e
	conds := []ir.Vid{e.apply(op.Equal, v, args[i])}
	for j := 0; j < i; j++ {
		conds = append(conds, e.apply(op.Unequal, v, args[j]))
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return e.apply(op.And, conds...)
}

package diff

import (
	"math/big"

	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/op"
)

// emitter appends derivative nodes with light folding. ir.NoVid stands for
// a structurally zero derivative.
type emitter struct {
	g *ir.Graph
}

func (e emitter) constant(n int64) ir.Vid { return e.g.AllocateInt(n) }

func (e emitter) isConst(v ir.Vid, n int64) bool {
	return v != ir.NoVid && e.g.IsConstant(v) && e.g.ConstantValue(v).Cmp(new(big.Rat).SetInt64(n)) == 0
}

// apply allocates o over vids, folding when every operand is constant.
func (e emitter) apply(o op.Op, vids ...ir.Vid) ir.Vid {
	allConst := true
	for _, v := range vids {
		if !e.g.IsConstant(v) {
			allConst = false
			break
		}
	}
	if allConst {
		vals := make([]*big.Rat, len(vids))
		for i, v := range vids {
			vals[i] = e.g.ConstantValue(v)
		}
		if r, ok := op.Fold(o, vals); ok {
			return e.g.AllocateConstant(r)
		}
	}
	vid, err := e.g.AllocateOperation(o, vids...)
	if err != nil {
		ir.Invariantf("derivative %s over %v: %v", o, vids, err)
	}
	return vid
}

func (e emitter) add(a, b ir.Vid) ir.Vid {
	switch {
	case a == ir.NoVid || e.isConst(a, 0):
		return b
	case b == ir.NoVid || e.isConst(b, 0):
		return a
	}
	return e.apply(op.Plus, a, b)
}

func (e emitter) mul(a, b ir.Vid) ir.Vid {
	switch {
	case a == ir.NoVid || b == ir.NoVid || e.isConst(a, 0) || e.isConst(b, 0):
		return ir.NoVid
	case e.isConst(a, 1):
		return b
	case e.isConst(b, 1):
		return a
	}
	return e.apply(op.Times, a, b)
}

func (e emitter) neg(a ir.Vid) ir.Vid {
	if a == ir.NoVid {
		return ir.NoVid
	}
	return e.apply(op.Minus, a)
}

func (e emitter) quo(a, b ir.Vid) ir.Vid {
	if a == ir.NoVid {
		return ir.NoVid
	}
	return e.apply(op.Quotient, a, b)
}

func (e emitter) pow(a, b ir.Vid) ir.Vid {
	switch {
	case e.isConst(b, 0):
		return e.constant(1)
	case e.isConst(b, 1):
		return a
	}
	return e.apply(op.Power, a, b)
}

// orZero materializes a structural zero as the constant 0.
func (e emitter) orZero(v ir.Vid) ir.Vid {
	if v == ir.NoVid {
		return e.constant(0)
	}
	return v
}

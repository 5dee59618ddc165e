package engine

import (
	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/op"
	"github.com/njchilds90/gosymopt/solver"
)

// slot is the evaluation record of one vid, flattened out of the graph at
// construction. Recomputes and callbacks touch no maps.
type slot struct {
	kind  ir.Kind
	op    op.Op
	args  []ir.Vid
	svid  int     // variables only
	value float64 // constants only
}

func compile(g *ir.Graph) []slot {
	prog := make([]slot, g.Len())
	for v := ir.Vid(0); int(v) < g.Len(); v++ {
		s := slot{kind: g.Kind(v), svid: -1}
		switch s.kind {
		case ir.KindConstant:
			s.value = g.ConstantFloat(v)
		case ir.KindVariable:
			svid, ok := g.SolverVid(v)
			if !ok {
				ir.Invariantf("variable %s has no solver vid", v)
			}
			s.svid = svid
		case ir.KindOperation:
			s.op = g.Op(v)
			s.args = g.Operands(v)
		}
		prog[v] = s
	}
	return prog
}

// recompute refreshes the shared buffer in one forward scan. Values cover
// [0, lastRow]; gradients extend the scan through gradEnd.
func (e *Engine) recompute(values solver.Values, recalcValues, recalcGradients bool) {
	start, end := ir.Vid(0), e.lastRow
	if !recalcValues {
		start = e.lastRow + 1
	}
	if recalcGradients {
		end = e.gradEnd
	}
	switch {
	case recalcValues && recalcGradients:
		e.passBoth.Inc()
	case recalcValues:
		e.passValues.Inc()
	default:
		e.passGradients.Inc()
	}
	if end >= start {
		RecomputeNodes.Add(float64(end - start + 1))
	}

	buf := e.buf
	for v := start; v <= end; v++ {
		s := &e.prog[v]
		switch s.kind {
		case ir.KindConstant:
			buf[v] = s.value
		case ir.KindVariable:
			buf[v] = values.Value(s.svid)
		case ir.KindOperation:
			var x float64
			ok := false
			switch a := s.args; len(a) {
			case 1:
				x, ok = op.Unary(s.op, buf[a[0]])
			case 2:
				x, ok = op.Binary(s.op, buf[a[0]], buf[a[1]])
			case 3:
				x, ok = op.Ternary(s.op, buf[a[0]], buf[a[1]], buf[a[2]])
			default:
				e.scratch = e.scratch[:0]
				for _, w := range a {
					e.scratch = append(e.scratch, buf[w])
				}
				x, ok = op.Variadic(s.op, e.scratch)
			}
			if !ok {
				ir.Invariantf("evaluator cannot dispatch %s with %d operands at %s", s.op, len(s.args), v)
			}
			buf[v] = x
		}
	}
}

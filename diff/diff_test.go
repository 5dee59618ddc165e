package diff_test

import (
	"math"
	"testing"

	"github.com/njchilds90/gosymopt/diff"
	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evaluate computes every vid of g for the given leaf values.
func evaluate(t *testing.T, g *ir.Graph, leaves map[ir.Vid]float64) []float64 {
	t.Helper()
	out := make([]float64, g.Len())
	for v := ir.Vid(0); int(v) < g.Len(); v++ {
		switch g.Kind(v) {
		case ir.KindVariable:
			out[v] = leaves[v]
		case ir.KindConstant:
			out[v] = g.ConstantFloat(v)
		case ir.KindOperation:
			args := make([]float64, g.OperandCount(v))
			for i, w := range g.Operands(v) {
				args[i] = out[w]
			}
			x, ok := op.Eval(g.Op(v), args)
			require.True(t, ok, "%s at %s", g.Op(v), v)
			out[v] = x
		}
	}
	return out
}

func apply(t *testing.T, g *ir.Graph, o op.Op, args ...ir.Vid) ir.Vid {
	t.Helper()
	v, err := g.AllocateOperation(o, args...)
	require.NoError(t, err)
	return v
}

type fixture struct {
	g    *ir.Graph
	x, y ir.Vid
	row  ir.Vid
}

func newFixture(t *testing.T, build func(g *ir.Graph, x, y ir.Vid) ir.Vid) fixture {
	g := ir.New()
	x := g.AllocateVariable(ir.Unbounded(), false, nil)
	y := g.AllocateVariable(ir.Unbounded(), false, nil)
	row := build(g, x, y)
	g.MarkRow(row)
	return fixture{g: g, x: x, y: y, row: row}
}

// checkFiniteDifference compares every gradient entry of the fixture row
// against a central difference.
func checkFiniteDifference(t *testing.T, f fixture, d diff.Differentiator, points [][2]float64) {
	t.Helper()
	const h = 1e-6
	entries := d.GradientEntries(f.row)
	for _, p := range points {
		at := map[ir.Vid]float64{f.x: p[0], f.y: p[1]}
		vals := evaluate(t, f.g, at)
		for _, e := range entries {
			plus := map[ir.Vid]float64{f.x: p[0], f.y: p[1]}
			minus := map[ir.Vid]float64{f.x: p[0], f.y: p[1]}
			plus[e.Variable] += h
			minus[e.Variable] -= h
			want := (evaluate(t, f.g, plus)[f.row] - evaluate(t, f.g, minus)[f.row]) / (2 * h)
			got := vals[e.Derivative]
			assert.InDelta(t, want, got, 1e-4*math.Max(1, math.Abs(want)),
				"d/d%s at %v", e.Variable, p)
		}
	}
}

var samples = [][2]float64{{0.3, 0.7}, {0.6, 0.2}, {0.45, 0.9}, {0.8, 0.35}, {0.15, 0.55}}

// ============================================================
// Rules
// ============================================================

func TestSymbolic_Rules(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *ir.Graph, x, y ir.Vid) ir.Vid
	}{
		{"product", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Times, x, y) }},
		{"n-ary product", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Times, x, y, x) }},
		{"sum with minus", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.Plus, x, apply(t, g, op.Minus, y), g.AllocateInt(4))
		}},
		{"quotient", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Quotient, x, y) }},
		{"constant power", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.Times, apply(t, g, op.Power, x, g.AllocateInt(3)), y)
		}},
		{"variable power", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Power, x, y) }},
		{"sqrt", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Sqrt, apply(t, g, op.Plus, x, y)) }},
		{"exp log", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.Times, apply(t, g, op.Exp, x), apply(t, g, op.Log, y))
		}},
		{"trig", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.Plus, apply(t, g, op.Sin, x), apply(t, g, op.Cos, y), apply(t, g, op.Tan, apply(t, g, op.Times, x, y)))
		}},
		{"inverse trig", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.Plus, apply(t, g, op.ArcSin, x), apply(t, g, op.ArcCos, y), apply(t, g, op.ArcTan, apply(t, g, op.Times, x, y)))
		}},
		{"hyperbolic", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.Plus, apply(t, g, op.Sinh, x), apply(t, g, op.Cosh, y), apply(t, g, op.Tanh, apply(t, g, op.Times, x, y)))
		}},
		{"abs", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.Abs, apply(t, g, op.Plus, x, apply(t, g, op.Minus, y)))
		}},
		{"max", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Max, x, y, g.AllocateInt(0)) }},
		{"min", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Min, apply(t, g, op.Times, x, x), y) }},
		{"if", func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			return apply(t, g, op.If, apply(t, g, op.Less, x, y), apply(t, g, op.Times, x, x), apply(t, g, op.Sin, y))
		}},
		{"identity", func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Identity, apply(t, g, op.Times, x, y)) }},
	}
	for _, tt := range tests {
		for _, s := range []diff.Strategy{diff.Forward, diff.Reverse} {
			t.Run(tt.name+"/"+string(s), func(t *testing.T) {
				f := newFixture(t, tt.build)
				d := diff.NewSymbolic(diff.WithStrategy(s))
				require.NoError(t, d.Differentiate(f.g, []ir.Vid{f.row}))
				require.Len(t, d.GradientEntries(f.row), 2)
				checkFiniteDifference(t, f, d, samples)
			})
		}
	}
}

func TestSymbolic_ProductGradient(t *testing.T) {
	f := newFixture(t, func(g *ir.Graph, x, y ir.Vid) ir.Vid { return apply(t, g, op.Times, x, y) })
	d := diff.NewSymbolic()
	require.NoError(t, d.Differentiate(f.g, []ir.Vid{f.row}))

	entries := d.GradientEntries(f.row)
	require.Len(t, entries, 2)
	assert.Equal(t, f.x, entries[0].Variable)
	assert.Equal(t, f.y, entries[0].Derivative, "d(x*y)/dx is y itself")
	assert.Equal(t, f.y, entries[1].Variable)
	assert.Equal(t, f.x, entries[1].Derivative)
}

// ============================================================
// Structure
// ============================================================

func TestSymbolic_VanishingDerivativeIsConstantZero(t *testing.T) {
	f := newFixture(t, func(g *ir.Graph, x, y ir.Vid) ir.Vid {
		return apply(t, g, op.Plus, apply(t, g, op.Floor, x), y)
	})
	d := diff.NewSymbolic()
	require.NoError(t, d.Differentiate(f.g, []ir.Vid{f.row}))

	entries := d.GradientEntries(f.row)
	require.Len(t, entries, 2)
	assert.Equal(t, f.x, entries[0].Variable)
	require.True(t, f.g.IsConstant(entries[0].Derivative))
	assert.Equal(t, 0.0, f.g.ConstantFloat(entries[0].Derivative))
	require.True(t, f.g.IsConstant(entries[1].Derivative))
	assert.Equal(t, 1.0, f.g.ConstantFloat(entries[1].Derivative))
}

func TestSymbolic_OnlyConeLeaves(t *testing.T) {
	g := ir.New()
	x := g.AllocateVariable(ir.Unbounded(), false, nil)
	y := g.AllocateVariable(ir.Unbounded(), false, nil)
	z := g.AllocateVariable(ir.Unbounded(), false, nil)
	r1 := apply(t, g, op.Times, x, y)
	r2 := apply(t, g, op.Sin, z)
	r3 := apply(t, g, op.Identity, g.AllocateInt(7))
	for _, r := range []ir.Vid{r1, r2, r3} {
		g.MarkRow(r)
	}

	d := diff.NewSymbolic()
	require.NoError(t, d.Differentiate(g, []ir.Vid{r1, r2, r3}))

	assert.Len(t, d.GradientEntries(r1), 2)
	require.Len(t, d.GradientEntries(r2), 1)
	assert.Equal(t, z, d.GradientEntries(r2)[0].Variable)
	assert.Empty(t, d.GradientEntries(r3))
	assert.Nil(t, d.GradientEntries(x), "rows that were not targets have no entries")
}

func TestSymbolic_KeepsTopologicalOrder(t *testing.T) {
	for _, s := range []diff.Strategy{diff.Forward, diff.Reverse, diff.Auto} {
		f := newFixture(t, func(g *ir.Graph, x, y ir.Vid) ir.Vid {
			inner := apply(t, g, op.Times, apply(t, g, op.Sin, x), apply(t, g, op.Power, y, g.AllocateInt(2)))
			return apply(t, g, op.Quotient, inner, apply(t, g, op.Plus, x, y, g.AllocateInt(1)))
		})
		before := f.g.Len()
		d := diff.NewSymbolic(diff.WithStrategy(s))
		require.NoError(t, d.Differentiate(f.g, []ir.Vid{f.row}))
		assert.Greater(t, f.g.Len(), before)
		assert.Equal(t, f.g.Len()-before, d.Appended())

		for v := ir.Vid(0); int(v) < f.g.Len(); v++ {
			for _, w := range f.g.Operands(v) {
				require.Less(t, w, v)
			}
		}
		assert.Equal(t, 1, f.g.RowCount(), "derivative nodes are not rows")
	}
}

func TestSymbolic_StrategiesAgree(t *testing.T) {
	build := func(g *ir.Graph, x, y ir.Vid) ir.Vid {
		e := apply(t, g, op.Exp, apply(t, g, op.Times, x, y))
		return apply(t, g, op.Plus, e, apply(t, g, op.Times, x, e), apply(t, g, op.Max, x, y))
	}
	fw := newFixture(t, build)
	rv := newFixture(t, build)
	df := diff.NewSymbolic(diff.WithStrategy(diff.Forward))
	dr := diff.NewSymbolic(diff.WithStrategy(diff.Reverse))
	require.NoError(t, df.Differentiate(fw.g, []ir.Vid{fw.row}))
	require.NoError(t, dr.Differentiate(rv.g, []ir.Vid{rv.row}))

	for _, p := range samples {
		vf := evaluate(t, fw.g, map[ir.Vid]float64{fw.x: p[0], fw.y: p[1]})
		vr := evaluate(t, rv.g, map[ir.Vid]float64{rv.x: p[0], rv.y: p[1]})
		ef, er := df.GradientEntries(fw.row), dr.GradientEntries(rv.row)
		require.Len(t, er, len(ef))
		for i := range ef {
			assert.InDelta(t, vf[ef[i].Derivative], vr[er[i].Derivative], 1e-9)
		}
	}
}

func TestSymbolic_Errors(t *testing.T) {
	g := ir.New()
	x := g.AllocateVariable(ir.Unbounded(), false, nil)

	d := diff.NewSymbolic()
	assert.ErrorIs(t, d.Differentiate(g, []ir.Vid{x + 5}), ir.ErrInvalidOperation)

	d = diff.NewSymbolic(diff.WithStrategy("sideways"))
	assert.ErrorIs(t, d.Differentiate(g, []ir.Vid{x}), ir.ErrInvalidOperation)

	d = diff.NewSymbolic()
	require.NoError(t, d.Differentiate(g, []ir.Vid{x}))
	assert.ErrorIs(t, d.Differentiate(ir.New(), nil), ir.ErrInvalidOperation)
}

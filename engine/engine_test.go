package engine_test

import (
	"context"
	"math"
	"testing"

	"github.com/njchilds90/gosymopt/diff"
	"github.com/njchilds90/gosymopt/engine"
	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/lower"
	"github.com/njchilds90/gosymopt/op"
	"github.com/njchilds90/gosymopt/solver"
	"github.com/njchilds90/gosymopt/term"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	b     *lower.Builder
	m     *solver.Memory
	e     *engine.Engine
	goals []ir.Vid
}

// build lowers each tree as a minimized goal, differentiates every row and
// constructs the engine.
func build(t *testing.T, goals []term.Term, opts ...engine.Option) fixture {
	t.Helper()
	m := solver.NewMemory()
	b := lower.NewBuilder(m)
	f := fixture{b: b, m: m}
	for i, g := range goals {
		v, err := b.AddGoal(context.Background(), g, true, i)
		require.NoError(t, err)
		f.goals = append(f.goals, v)
	}
	b.Finish()

	g := b.Graph()
	var rows []ir.Vid
	for _, r := range g.Rows() {
		rows = append(rows, r.Vid)
	}
	d := diff.NewSymbolic()
	require.NoError(t, d.Differentiate(g, rows))

	e, err := engine.New(g, d, m, opts...)
	require.NoError(t, err)
	f.e = e
	return f
}

func (f fixture) svid(t *testing.T, tm term.Term) int {
	t.Helper()
	v, err := f.b.Lower(tm)
	require.NoError(t, err)
	s, ok := f.b.Graph().SolverVid(v)
	require.True(t, ok)
	return s
}

func (f fixture) row(t *testing.T, i int) int {
	t.Helper()
	s, ok := f.b.Graph().SolverVid(f.goals[i])
	require.True(t, ok)
	return s
}

func decision(id int, name string) *term.Decision { return &term.Decision{ID: id, Name: name} }

// ============================================================
// Sparsity
// ============================================================

func TestEngine_Sparsity(t *testing.T) {
	a, b, c := decision(1, "a"), decision(2, "b"), decision(3, "c")
	f := build(t, []term.Term{
		term.Plus(term.Times(a, b), c),
		term.N(3),
	})

	want := []int{f.svid(t, a), f.svid(t, b), f.svid(t, c)}
	assert.ElementsMatch(t, want, f.m.ActiveVariables(f.row(t, 0)))
	assert.Empty(t, f.m.ActiveVariables(f.row(t, 1)))

	sp := f.e.Sparsity()
	assert.Equal(t, 3, sp.Count(f.goals[0]))
	assert.Equal(t, 0, sp.Count(f.goals[1]))
}

func TestAnalyze(t *testing.T) {
	g := ir.New()
	x := g.AllocateVariable(ir.Unbounded(), false, nil)
	y := g.AllocateVariable(ir.Unbounded(), false, nil)
	k := g.AllocateInt(2)
	sq, err := g.AllocateOperation(op.Times, x, x)
	require.NoError(t, err)
	sum, err := g.AllocateOperation(op.Plus, sq, k, y)
	require.NoError(t, err)

	sp := engine.Analyze(g, sum)
	assert.Equal(t, []ir.Vid{x}, sp.Leaves(sq))
	assert.Equal(t, []ir.Vid{x, y}, sp.Leaves(sum))
	assert.Empty(t, sp.Leaves(k))
}

func TestAnalyze_ManyVariables(t *testing.T) {
	g := ir.New()
	vars := make([]ir.Vid, 130)
	for i := range vars {
		vars[i] = g.AllocateVariable(ir.Unbounded(), false, nil)
	}
	sum, err := g.AllocateOperation(op.Plus, vars[0], vars[64], vars[129])
	require.NoError(t, err)

	sp := engine.Analyze(g, sum)
	assert.Equal(t, []ir.Vid{vars[0], vars[64], vars[129]}, sp.Leaves(sum))
}

// ============================================================
// Values and gradients
// ============================================================

func TestEngine_Value(t *testing.T) {
	x, y := decision(1, "x"), decision(2, "y")
	f := build(t, []term.Term{term.Plus(x, term.Times(y, y))})
	xs, ys := f.svid(t, x), f.svid(t, y)
	row := f.row(t, 0)

	points := [][2]float64{{0, 0}, {1, 2}, {-3, 0.5}, {2.5, -4}, {-1, -1}, {1e3, 1e-3}}
	for _, p := range points {
		got := f.m.Value(row, solver.Point{xs: p[0], ys: p[1]}, true)
		assert.InDelta(t, p[0]+p[1]*p[1], got, 1e-9, "at %v", p)
	}
}

func TestEngine_GradientMatchesFiniteDifference(t *testing.T) {
	x, y := decision(1, "x"), decision(2, "y")
	f := build(t, []term.Term{
		term.Times(x, y),
		term.Plus(term.Apply(op.Sin, term.Times(x, y)), term.Apply(op.Exp, x)),
	})
	xs, ys := f.svid(t, x), f.svid(t, y)

	const h = 1e-6
	for i := range f.goals {
		row := f.row(t, i)
		for _, p := range [][2]float64{{1, 2}, {-0.5, 3}, {0.2, -0.7}} {
			grad := f.m.GradientAt(row, solver.Point{xs: p[0], ys: p[1]}, true)
			require.Len(t, grad, 2)

			dx := (f.m.Value(row, solver.Point{xs: p[0] + h, ys: p[1]}, true) -
				f.m.Value(row, solver.Point{xs: p[0] - h, ys: p[1]}, true)) / (2 * h)
			dy := (f.m.Value(row, solver.Point{xs: p[0], ys: p[1] + h}, true) -
				f.m.Value(row, solver.Point{xs: p[0], ys: p[1] - h}, true)) / (2 * h)
			assert.InDelta(t, dx, grad[xs], 1e-5, "row %d d/dx at %v", i, p)
			assert.InDelta(t, dy, grad[ys], 1e-5, "row %d d/dy at %v", i, p)
		}
	}
}

func TestEngine_ConstantRowGradientIsEmpty(t *testing.T) {
	f := build(t, []term.Term{term.N(3)})
	row := f.row(t, 0)
	assert.Equal(t, 3.0, f.m.Value(row, solver.Point{}, true))
	assert.Empty(t, f.m.GradientAt(row, solver.Point{}, true))
}

// ============================================================
// Recompute scheduling
// ============================================================

func passes() (values, gradients, both float64) {
	return testutil.ToFloat64(engine.RecomputeTotal.WithLabelValues("values")),
		testutil.ToFloat64(engine.RecomputeTotal.WithLabelValues("gradients")),
		testutil.ToFloat64(engine.RecomputeTotal.WithLabelValues("both"))
}

func TestEngine_SharedGradientFreshness(t *testing.T) {
	x, y := decision(1, "x"), decision(2, "y")
	f := build(t, []term.Term{term.Times(x, y), term.Times(x, x)})
	p := solver.Point{f.svid(t, x): 3, f.svid(t, y): 4}
	r0, r1 := f.row(t, 0), f.row(t, 1)

	v0, g0, b0 := passes()
	f.m.Value(r0, p, true)
	f.m.Value(r1, p, false)
	v1, g1, b1 := passes()
	assert.Equal(t, 1.0, v1-v0, "one value pass per new point")
	assert.Equal(t, g0, g1)
	assert.Equal(t, b0, b1)

	grad := f.m.GradientAt(r0, p, false)
	assert.Equal(t, 4.0, grad[f.svid(t, x)])
	f.m.GradientAt(r1, p, false)
	_, g2, _ := passes()
	assert.Equal(t, 1.0, g2-g1, "gradients are refreshed once after a value pass")

	grad = f.m.GradientAt(r1, solver.Point{f.svid(t, x): 5}, true)
	assert.Equal(t, 10.0, grad[f.svid(t, x)])
	_, g3, b3 := passes()
	assert.Equal(t, g2, g3)
	assert.Equal(t, 1.0, b3-b1)
}

func TestEngine_CacheNone(t *testing.T) {
	x := decision(1, "x")
	f := build(t, []term.Term{term.Times(x, x, x)}, engine.WithGradientCache(engine.CacheNone))
	xs := f.svid(t, x)
	row := f.row(t, 0)

	f.m.Value(row, solver.Point{xs: 2}, true)
	_, g0, _ := passes()
	for i := 0; i < 3; i++ {
		grad := f.m.GradientAt(row, solver.Point{xs: 2}, false)
		assert.Equal(t, 12.0, grad[xs])
	}
	_, g1, _ := passes()
	assert.Equal(t, 3.0, g1-g0)
}

func TestEngine_Callbacks(t *testing.T) {
	x := decision(1, "x")
	f := build(t, []term.Term{term.Times(x, x), term.Plus(x, term.N(1))})

	cbs := f.e.Callbacks()
	require.Len(t, cbs, 4)
	for i, cb := range cbs {
		want := engine.ValueCallback
		if i%2 == 1 {
			want = engine.GradientCallback
		}
		assert.Equal(t, want, cb.Kind)
		assert.Equal(t, f.goals[i/2], cb.Row)
	}
	assert.Equal(t, "gradient", cbs[1].Kind.String())
	for _, cb := range cbs {
		if cb.Kind == engine.ValueCallback {
			assert.Empty(t, cb.Targets)
			continue
		}
		require.Len(t, cb.Targets, len(cb.Entries))
		for _, s := range cb.Targets {
			assert.Equal(t, f.svid(t, x), s)
		}
	}

	before := testutil.ToFloat64(engine.CallbackTotal.WithLabelValues("gradient"))
	out := solver.Vector{}
	v, ok := f.e.Invoke(cbs[0], solver.Point{f.svid(t, x): 3}, true, nil)
	assert.True(t, ok)
	assert.Equal(t, 9.0, v)
	_, ok = f.e.Invoke(cbs[1], solver.Point{f.svid(t, x): 3}, false, out)
	assert.False(t, ok)
	assert.Equal(t, 6.0, out[f.svid(t, x)])
	assert.Equal(t, 1.0, testutil.ToFloat64(engine.CallbackTotal.WithLabelValues("gradient"))-before)
}

// ============================================================
// Errors
// ============================================================

func TestEngine_UnknownRowPanics(t *testing.T) {
	x := decision(1, "x")
	f := build(t, []term.Term{term.Times(x, x)})

	assert.Panics(t, func() { f.e.Value(999, solver.Point{}, true) })
	assert.Panics(t, func() { f.e.Gradient(999, solver.Point{}, true, solver.Vector{}) })
}

func TestEngine_UndefinedValueIsNaN(t *testing.T) {
	x := decision(1, "x")
	f := build(t, []term.Term{term.Apply(op.Log, x)})
	row := f.row(t, 0)

	assert.InDelta(t, 0.0, f.m.Value(row, solver.Point{f.svid(t, x): 1}, true), 1e-12)
	assert.True(t, math.IsNaN(f.m.Value(row, solver.Point{f.svid(t, x): -1}, true)))
}

func TestNew_InvalidCache(t *testing.T) {
	m := solver.NewMemory()
	_, err := engine.New(ir.New(), nil, m, engine.WithGradientCache("sometimes"))
	assert.ErrorIs(t, err, ir.ErrInvalidOperation)
}

// ============================================================
// Metrics
// ============================================================

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, engine.RegisterMetrics(reg))
	require.NoError(t, engine.RegisterMetrics(reg), "second registration is tolerated")

	x := decision(1, "x")
	f := build(t, []term.Term{term.Times(x, x)}, engine.WithRegisterer(reg))
	before := testutil.ToFloat64(engine.CallbackTotal.WithLabelValues("value"))
	f.m.Value(f.row(t, 0), solver.Point{f.svid(t, x): 1}, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(engine.CallbackTotal.WithLabelValues("value"))-before)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "gosymopt_engine_callback_total")
	assert.Contains(t, names, "gosymopt_engine_recompute_total")
	assert.Contains(t, names, "gosymopt_engine_recompute_nodes_total")
}

// Package engine evaluates a differentiated IR graph for a solver.
//
// Construction publishes the Jacobian sparsity of every row and registers
// the engine as the solver's evaluator. Row values and gradients are served
// from one shared buffer indexed by vid, refreshed by a single forward scan.
// An Engine is not safe for concurrent use; the solver must serialize its
// callbacks.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/solver"
	"github.com/prometheus/client_golang/prometheus"
)

// GradientCache controls when gradients are reused between calls.
type GradientCache string

const (
	// CacheShared keeps one freshness flag for all rows. Gradients are
	// refreshed once after each value recompute.
	CacheShared GradientCache = "shared"
	// CacheNone refreshes gradients on every gradient call.
	CacheNone GradientCache = "none"
)

// Gradients supplies the derivative rows of differentiated rows.
type Gradients interface {
	GradientEntries(row ir.Vid) []ir.GradientEntry
}

// Options configures an Engine.
type Options struct {
	GradientCache GradientCache
	Logger        *slog.Logger
	// Registerer receives the engine collectors when set.
	Registerer prometheus.Registerer
}

// Option is a functional option for configuring Engine.
type Option func(*Options)

// WithGradientCache sets the gradient reuse policy.
func WithGradientCache(c GradientCache) Option {
	return func(o *Options) {
		o.GradientCache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithRegisterer registers the engine metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = r
	}
}

// Engine serves row values and gradients to a solver.
type Engine struct {
	opts  Options
	log   *slog.Logger
	graph *ir.Graph

	prog    []slot
	buf     []float64
	scratch []float64

	lastRow ir.Vid
	gradEnd ir.Vid

	callbacks []Callback
	value     map[int]int // solver row -> value callback
	gradient  map[int]int // solver row -> gradient callback
	svid      map[ir.Vid]int

	gradientFresh bool
	sparsity      *Sparsity

	// counters curried at construction
	valueCalls    prometheus.Counter
	gradientCalls prometheus.Counter
	passValues    prometheus.Counter
	passGradients prometheus.Counter
	passBoth      prometheus.Counter
}

var _ solver.Evaluator = (*Engine)(nil)

// New builds the engine for g, publishes sparsity to model and registers
// itself as model's evaluator. grads must already hold the entries of every
// row of g.
func New(g *ir.Graph, grads Gradients, model solver.Model, opts ...Option) (*Engine, error) {
	options := Options{GradientCache: CacheShared}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	switch options.GradientCache {
	case CacheShared, CacheNone:
	case "":
		options.GradientCache = CacheShared
	default:
		return nil, fmt.Errorf("%w: unknown gradient cache %q", ir.ErrInvalidOperation, options.GradientCache)
	}
	if options.Registerer != nil {
		if err := RegisterMetrics(options.Registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	e := &Engine{
		opts:     options,
		log:      options.Logger,
		graph:    g,
		lastRow:  ir.NoVid,
		value:    make(map[int]int),
		gradient: make(map[int]int),
		svid:     make(map[ir.Vid]int),

		valueCalls:    CallbackTotal.WithLabelValues(ValueCallback.String()),
		gradientCalls: CallbackTotal.WithLabelValues(GradientCallback.String()),
		passValues:    RecomputeTotal.WithLabelValues("values"),
		passGradients: RecomputeTotal.WithLabelValues("gradients"),
		passBoth:      RecomputeTotal.WithLabelValues("both"),
	}
	rows := g.Rows()
	for _, r := range rows {
		if r.Vid > e.lastRow {
			e.lastRow = r.Vid
		}
	}
	e.gradEnd = e.lastRow

	e.sparsity = Analyze(g, e.lastRow)
	active := 0
	for _, r := range rows {
		rowSvid := e.solverVid(r.Vid)
		for _, x := range e.sparsity.Leaves(r.Vid) {
			model.SetActiveVariable(rowSvid, e.solverVid(x), true)
			active++
		}
	}

	for _, r := range rows {
		rowSvid := e.solverVid(r.Vid)
		e.value[rowSvid] = len(e.callbacks)
		e.callbacks = append(e.callbacks, Callback{Kind: ValueCallback, Row: r.Vid})

		var entries []ir.GradientEntry
		if grads != nil {
			entries = grads.GradientEntries(r.Vid)
		}
		targets := make([]int, len(entries))
		for i, en := range entries {
			if en.Derivative > e.gradEnd {
				e.gradEnd = en.Derivative
			}
			targets[i] = e.solverVid(en.Variable)
		}
		e.gradient[rowSvid] = len(e.callbacks)
		e.callbacks = append(e.callbacks, Callback{Kind: GradientCallback, Row: r.Vid, Entries: entries, Targets: targets})
	}

	e.prog = compile(g)
	e.buf = make([]float64, g.Len())
	model.SetEvaluator(e)

	e.log.Debug("engine ready",
		slog.Int("rows", len(rows)),
		slog.Int("active_pairs", active),
		slog.Int("last_row", int(e.lastRow)),
		slog.Int("gradient_end", int(e.gradEnd)),
		slog.String("gradient_cache", string(options.GradientCache)))
	return e, nil
}

func (e *Engine) solverVid(v ir.Vid) int {
	if s, ok := e.svid[v]; ok {
		return s
	}
	s, ok := e.graph.SolverVid(v)
	if !ok {
		ir.Invariantf("vid %s has no solver vid", v)
	}
	e.svid[v] = s
	return s
}

// Sparsity returns the dependency analysis published at construction.
func (e *Engine) Sparsity() *Sparsity { return e.sparsity }

// Callbacks returns the callbacks in registration order: for each row a
// value callback followed by its gradient callback.
func (e *Engine) Callbacks() []Callback { return e.callbacks }

// Value implements solver.Evaluator.
func (e *Engine) Value(row int, values solver.Values, needsRecalc bool) float64 {
	i, ok := e.value[row]
	if !ok {
		ir.Invariantf("no value callback for solver row %d", row)
	}
	v, _ := e.Invoke(e.callbacks[i], values, needsRecalc, nil)
	return v
}

// Gradient implements solver.Evaluator.
func (e *Engine) Gradient(row int, values solver.Values, needsRecalc bool, out solver.Gradient) {
	i, ok := e.gradient[row]
	if !ok {
		ir.Invariantf("no gradient callback for solver row %d", row)
	}
	e.Invoke(e.callbacks[i], values, needsRecalc, out)
}

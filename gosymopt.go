// Package gosymopt compiles symbolic optimization models for numerical
// solvers.
//
// Compile drives three passes over one model:
//   - lowering: constraint and goal trees become an append-only IR graph
//     whose rows and variables are mirrored into the solver
//   - differentiation: derivative rows are appended for every row
//   - evaluation: the engine publishes Jacobian sparsity and registers
//     itself as the solver's value and gradient evaluator
//
// The building blocks live in sub-packages (term, ir, lower, diff, engine,
// solver) and can be used on their own.
package gosymopt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/njchilds90/gosymopt/diff"
	"github.com/njchilds90/gosymopt/engine"
	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/lower"
	"github.com/njchilds90/gosymopt/solver"
	"github.com/njchilds90/gosymopt/term"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Errors surfaced by Compile. They are the ir sentinels; errors.Is works
// with either name.
var (
	ErrModelShape            = ir.ErrModelShape
	ErrDomainIndexOutOfRange = ir.ErrDomainIndexOutOfRange
	ErrInternalInvariant     = ir.ErrInternalInvariant
	ErrAbortRequested        = ir.ErrAbortRequested
)

// ============================================================
// Problem
// ============================================================

// Goal is one objective tree with its direction and priority.
type Goal struct {
	Term     term.Term
	Minimize bool
	Priority int
}

// Problem is a fully expanded model: one boolean tree per constraint and
// one numeric tree per goal.
type Problem struct {
	Constraints []term.Term
	Goals       []Goal
}

// Compiled is the result of a successful Compile. The graph is read-only
// from here on; the engine is registered with the solver model.
type Compiled struct {
	AttemptID string
	Graph     *ir.Graph
	Engine    *engine.Engine
	Goals     []ir.Vid
	Stats     lower.Stats
	Duration  time.Duration
}

// ============================================================
// Pipeline
// ============================================================

// Compile lowers p into model, differentiates every row and installs the
// evaluation engine. On error no usable model is produced. Internal
// invariant violations are reported as errors wrapping ErrInternalInvariant.
func Compile(ctx context.Context, p Problem, model solver.Model, opts ...Option) (c *Compiled, err error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	cfg := options.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	id := uuid.NewString()
	log := options.Logger.With(slog.String("attempt_id", id))
	tracer := options.tracer()
	start := time.Now()
	out := &Compiled{AttemptID: id}

	ctx, span := tracer.Start(ctx, "gosymopt.Compile",
		trace.WithAttributes(
			attribute.String("gosymopt.attempt_id", id),
			attribute.Int("gosymopt.constraints", len(p.Constraints)),
			attribute.Int("gosymopt.goals", len(p.Goals)),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*ir.InvariantError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("compile %s: %w", id, ie)
		}
		out.Duration = time.Since(start)
		nodes, rows := 0, 0
		if out.Graph != nil {
			nodes, rows = out.Graph.Len(), out.Graph.RowCount()
		}
		if cfg.Observability.MetricsEnabled {
			options.recordCompile(ctx, out.Duration, nodes, rows, err)
		}
		setSpanResult(span, nodes, rows, err)
		if err != nil {
			log.Warn("compile failed", slog.String("error", err.Error()), slog.Duration("duration", out.Duration))
			c = nil
			return
		}
		c = out
		log.Info("compile complete",
			slog.Int("nodes", nodes),
			slog.Int("rows", rows),
			slog.Int("variables", out.Stats.Variables),
			slog.Int("identity_copies", out.Stats.IdentityCopies),
			slog.Int("tautologies", out.Stats.Tautologies),
			slog.Duration("duration", out.Duration))
	}()

	b := lower.NewBuilder(model,
		lower.WithLogger(log),
		lower.WithMaxNodes(cfg.Builder.MaxNodes),
		lower.WithFoldConstants(cfg.Builder.FoldConstants),
	)
	out.Graph = b.Graph()

	err = runPhase(ctx, tracer, "build", func(ctx context.Context) error {
		for _, t := range p.Constraints {
			if err := b.AddConstraint(ctx, t); err != nil {
				return err
			}
		}
		for i, g := range p.Goals {
			vid, err := b.AddGoal(ctx, g.Term, g.Minimize, g.Priority)
			if err != nil {
				return fmt.Errorf("goal %d: %w", i, err)
			}
			out.Goals = append(out.Goals, vid)
		}
		b.Finish()
		out.Stats = b.Stats()
		return nil
	})
	if err != nil {
		return nil, err
	}

	d := options.Differentiator
	if d == nil {
		d = diff.NewSymbolic(
			diff.WithStrategy(diff.Strategy(cfg.Diff.Strategy)),
			diff.WithLogger(log),
		)
	}
	err = runPhase(ctx, tracer, "differentiate", func(ctx context.Context) error {
		if err := abortError(ctx); err != nil {
			return err
		}
		rows := out.Graph.Rows()
		targets := make([]ir.Vid, len(rows))
		for i, r := range rows {
			targets[i] = r.Vid
		}
		return d.Differentiate(out.Graph, targets)
	})
	if err != nil {
		return nil, err
	}

	err = runPhase(ctx, tracer, "engine", func(ctx context.Context) error {
		if err := abortError(ctx); err != nil {
			return err
		}
		engineOpts := []engine.Option{
			engine.WithLogger(log),
			engine.WithGradientCache(engine.GradientCache(cfg.Engine.GradientCache)),
		}
		if cfg.Observability.MetricsEnabled && options.Registerer != nil {
			engineOpts = append(engineOpts, engine.WithRegisterer(options.Registerer))
		}
		e, err := engine.New(out.Graph, d, model, engineOpts...)
		if err != nil {
			return err
		}
		out.Engine = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func abortError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAbortRequested, err)
	}
	return nil
}

// IsAbort reports whether err stems from cancellation.
func IsAbort(err error) bool { return errors.Is(err, ErrAbortRequested) }

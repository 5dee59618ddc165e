// Package diff appends derivative rows to an IR graph.
//
// A Differentiator extends the graph with operation nodes computing the
// partial derivatives of target rows and reports, per row, which node holds
// the derivative with respect to each leaf variable. Derivative nodes only
// reference vids that already exist, so the graph stays topologically
// ordered.
package diff

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/njchilds90/gosymopt/ir"
)

// Differentiator is the contract between the Builder output and the
// evaluation engine.
type Differentiator interface {
	// Differentiate appends derivative rows for every target.
	Differentiate(g *ir.Graph, targets []ir.Vid) error

	// GradientEntries returns the (leaf, derivative) pairs of row, ordered
	// by leaf vid. Rows that were not differentiated have none.
	GradientEntries(row ir.Vid) []ir.GradientEntry
}

// Strategy selects how derivative nodes are accumulated. Every strategy
// yields the same derivative values.
type Strategy string

const (
	// Forward propagates one tangent per leaf through the row cone, sharing
	// work between rows over the same leaves.
	Forward Strategy = "forward"
	// Reverse propagates adjoints from each row back to its leaves.
	Reverse Strategy = "reverse"
	// Auto picks Forward when the targets have no more distinct leaves than
	// there are targets, Reverse otherwise.
	Auto Strategy = "auto"
)

// Options configures a Symbolic differentiator.
type Options struct {
	Strategy Strategy
	Logger   *slog.Logger
}

// Option is a functional option for configuring Symbolic.
type Option func(*Options)

// WithStrategy sets the accumulation strategy.
func WithStrategy(s Strategy) Option {
	return func(o *Options) {
		o.Strategy = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Symbolic differentiates graph rows by appending symbolic derivative
// operations. It is single-use per graph and not safe for concurrent use.
type Symbolic struct {
	opts Options
	log  *slog.Logger

	g        *ir.Graph
	e        emitter
	partials map[partialKey]ir.Vid
	tangents map[ir.Vid]map[ir.Vid]ir.Vid // leaf -> node -> derivative
	entries  map[ir.Vid][]ir.GradientEntry
	appended int
}

var _ Differentiator = (*Symbolic)(nil)

// NewSymbolic creates a Symbolic differentiator.
func NewSymbolic(opts ...Option) *Symbolic {
	options := Options{Strategy: Auto}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Symbolic{
		opts:     options,
		log:      options.Logger,
		partials: make(map[partialKey]ir.Vid),
		tangents: make(map[ir.Vid]map[ir.Vid]ir.Vid),
		entries:  make(map[ir.Vid][]ir.GradientEntry),
	}
}

// Appended returns how many derivative nodes were added to the graph.
func (s *Symbolic) Appended() int { return s.appended }

func (s *Symbolic) GradientEntries(row ir.Vid) []ir.GradientEntry { return s.entries[row] }

func (s *Symbolic) Differentiate(g *ir.Graph, targets []ir.Vid) error {
	if s.g != nil && s.g != g {
		return fmt.Errorf("%w: differentiator already bound to another graph", ir.ErrInvalidOperation)
	}
	for _, t := range targets {
		if t < 0 || int(t) >= g.Len() {
			return fmt.Errorf("%w: target %s out of range", ir.ErrInvalidOperation, t)
		}
	}
	s.g, s.e = g, emitter{g: g}
	before := g.Len()

	cones := make([]cone, len(targets))
	leaves := make(map[ir.Vid]bool)
	for i, t := range targets {
		cones[i] = s.cone(t)
		for _, x := range cones[i].leaves {
			leaves[x] = true
		}
	}
	strategy := s.opts.Strategy
	if strategy == Auto || strategy == "" {
		strategy = Reverse
		if len(leaves) <= len(targets) {
			strategy = Forward
		}
	}
	for i, t := range targets {
		if _, done := s.entries[t]; done {
			continue
		}
		var ds []ir.Vid
		switch strategy {
		case Forward:
			ds = s.forward(t, cones[i])
		case Reverse:
			ds = s.reverse(t, cones[i])
		default:
			return fmt.Errorf("%w: unknown strategy %q", ir.ErrInvalidOperation, strategy)
		}
		entries := make([]ir.GradientEntry, len(ds))
		for j, d := range ds {
			entries[j] = ir.GradientEntry{Variable: cones[i].leaves[j], Derivative: s.e.orZero(d)}
		}
		s.entries[t] = entries
	}
	s.appended += g.Len() - before
	s.log.Debug("rows differentiated",
		slog.Int("targets", len(targets)),
		slog.Int("leaves", len(leaves)),
		slog.String("strategy", string(strategy)),
		slog.Int("appended", g.Len()-before))
	return nil
}

// cone is the set of vids a row depends on, ascending, with its leaf
// variables and the nodes that depend on at least one leaf.
type cone struct {
	vids   []ir.Vid
	leaves []ir.Vid
	live   map[ir.Vid]bool
}

func (s *Symbolic) cone(row ir.Vid) cone {
	seen := map[ir.Vid]bool{row: true}
	stack := []ir.Vid{row}
	var vids []ir.Vid
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		vids = append(vids, v)
		if !s.g.IsOperation(v) {
			continue
		}
		for _, w := range s.g.Operands(v) {
			if !seen[w] {
				seen[w] = true
				stack = append(stack, w)
			}
		}
	}
	sort.Slice(vids, func(i, j int) bool { return vids[i] < vids[j] })

	c := cone{vids: vids, live: make(map[ir.Vid]bool)}
	for _, v := range vids {
		switch s.g.Kind(v) {
		case ir.KindVariable:
			c.leaves = append(c.leaves, v)
			c.live[v] = true
		case ir.KindOperation:
			for _, w := range s.g.Operands(v) {
				if c.live[w] {
					c.live[v] = true
					break
				}
			}
		}
	}
	return c
}

// forward returns the derivative of row with respect to each leaf of c,
// computing one tangent per leaf over the cone in vid order.
func (s *Symbolic) forward(row ir.Vid, c cone) []ir.Vid {
	out := make([]ir.Vid, len(c.leaves))
	for j, x := range c.leaves {
		tan, ok := s.tangents[x]
		if !ok {
			tan = map[ir.Vid]ir.Vid{x: s.e.constant(1)}
			s.tangents[x] = tan
		}
		for _, v := range c.vids {
			if _, done := tan[v]; done || !c.live[v] || !s.g.IsOperation(v) {
				continue
			}
			d := ir.NoVid
			for i, w := range s.g.Operands(v) {
				dw, ok := tan[w]
				if !ok || dw == ir.NoVid {
					continue
				}
				d = s.e.add(d, s.e.mul(s.partial(v, i), dw))
			}
			tan[v] = d
		}
		if d, ok := tan[row]; ok {
			out[j] = d
		} else {
			out[j] = ir.NoVid
		}
	}
	return out
}

// reverse returns the derivative of row with respect to each leaf of c by
// accumulating adjoints in decreasing vid order.
func (s *Symbolic) reverse(row ir.Vid, c cone) []ir.Vid {
	adj := map[ir.Vid]ir.Vid{row: s.e.constant(1)}
	for k := len(c.vids) - 1; k >= 0; k-- {
		v := c.vids[k]
		a, ok := adj[v]
		if !ok || a == ir.NoVid || !s.g.IsOperation(v) {
			continue
		}
		for i, w := range s.g.Operands(v) {
			if !c.live[w] {
				continue
			}
			contrib := s.e.mul(a, s.partial(v, i))
			if prev, ok := adj[w]; ok {
				adj[w] = s.e.add(prev, contrib)
			} else {
				adj[w] = contrib
			}
		}
	}
	out := make([]ir.Vid, len(c.leaves))
	for j, x := range c.leaves {
		if d, ok := adj[x]; ok {
			out[j] = d
		} else {
			out[j] = ir.NoVid
		}
	}
	return out
}

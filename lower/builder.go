// Package lower translates expression trees into the IR graph.
//
// A Builder lowers one tree per constraint or goal. Constraints go through a
// set of top-level specializations first (equalities and inequalities with
// constant operands become direct bounds, conjunctions split, tautological
// disjunctions vanish) and fall back to a generic boolean row bound to
// [1, 1]. Bounds are merged by intersection; a merge that would empty a
// range is carried by a fresh Identity copy instead, so a vid shared by
// several constraints is never corrupted.
//
// A Builder is single-use and not safe for concurrent use.
package lower

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/op"
	"github.com/njchilds90/gosymopt/solver"
	"github.com/njchilds90/gosymopt/term"
)

type decisionKey struct {
	id    int
	tuple string
}

// Stats summarizes one builder pass.
type Stats struct {
	Constraints    int
	Goals          int
	Variables      int
	Constants      int
	Operations     int
	Rows           int
	IdentityCopies int
	Tautologies    int
}

// Builder lowers constraint and goal trees into an ir.Graph and mirrors
// variables and rows into a solver model.
type Builder struct {
	g     *ir.Graph
	model solver.Model
	opts  Options
	log   *slog.Logger

	decisions map[decisionKey]ir.Vid
	shared    map[ir.Vid]bool

	constraints    int
	goals          int
	identityCopies int
	tautologies    int
	finished       bool
}

// NewBuilder creates a Builder publishing into model.
func NewBuilder(model solver.Model, opts ...Option) *Builder {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{
		g:         ir.New(),
		model:     model,
		opts:      options,
		log:       options.Logger,
		decisions: make(map[decisionKey]ir.Vid),
		shared:    make(map[ir.Vid]bool),
	}
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *ir.Graph { return b.g }

// Stats returns counters for the pass so far.
func (b *Builder) Stats() Stats {
	s := Stats{
		Constraints:    b.constraints,
		Goals:          b.goals,
		Variables:      b.g.VariableCount(),
		Rows:           b.g.RowCount(),
		IdentityCopies: b.identityCopies,
		Tautologies:    b.tautologies,
	}
	for v := ir.Vid(0); int(v) < b.g.Len(); v++ {
		switch b.g.Kind(v) {
		case ir.KindConstant:
			s.Constants++
		case ir.KindOperation:
			s.Operations++
		}
	}
	return s
}

func abortError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ir.ErrAbortRequested, err)
	}
	return nil
}

// AddConstraint lowers one boolean-valued constraint tree.
func (b *Builder) AddConstraint(ctx context.Context, t term.Term) error {
	if err := abortError(ctx); err != nil {
		return err
	}
	b.constraints++
	if err := b.constrain(t); err != nil {
		return fmt.Errorf("constraint %d: %w", b.constraints, err)
	}
	return b.checkSize()
}

// AddGoal lowers one numeric goal tree and registers it with the solver.
// It returns the goal row.
func (b *Builder) AddGoal(ctx context.Context, t term.Term, minimize bool, priority int) (ir.Vid, error) {
	if err := abortError(ctx); err != nil {
		return ir.NoVid, err
	}
	b.goals++
	vid, err := b.lower(t)
	if err != nil {
		return ir.NoVid, fmt.Errorf("goal %d: %w", b.goals, err)
	}
	if !b.private(vid) {
		if vid, err = b.identity(vid); err != nil {
			return ir.NoVid, err
		}
	}
	b.markRow(vid)
	b.g.SetGoal(vid, minimize, priority)
	svid, _ := b.g.SolverVid(vid)
	b.model.AddGoal(svid, priority, minimize)
	return vid, b.checkSize()
}

// Lower lowers a tree without constraining it and returns its vid.
func (b *Builder) Lower(t term.Term) (ir.Vid, error) { return b.lower(t) }

// Finish publishes the final variable and row bounds to the solver. Later
// calls are no-ops.
func (b *Builder) Finish() {
	if b.finished {
		return
	}
	b.finished = true
	for _, v := range b.g.Variables() {
		b.publishBound(v)
	}
	for _, r := range b.g.Rows() {
		b.publishBound(r.Vid)
	}
}

func (b *Builder) publishBound(v ir.Vid) {
	svid, ok := b.g.SolverVid(v)
	if !ok {
		ir.Invariantf("vid %d has no solver vid", v)
	}
	bd := b.g.Bound(v)
	b.model.SetBounds(svid, bd.Lo.Float64(), bd.Hi.Float64())
}

func (b *Builder) checkSize() error {
	if b.opts.MaxNodes > 0 && b.g.Len() > b.opts.MaxNodes {
		return fmt.Errorf("%w: graph has %d nodes, limit is %d", ir.ErrModelShape, b.g.Len(), b.opts.MaxNodes)
	}
	return nil
}

// ============================================================
// Generic lowering
// ============================================================

func (b *Builder) lower(t term.Term) (ir.Vid, error) {
	switch t := t.(type) {
	case *term.Constant:
		if t.Value.IsSymbol() {
			return ir.NoVid, fmt.Errorf("%w: symbol %q outside an enumerated context", ir.ErrUnrecognizedTerm, t.Value.Symbol())
		}
		if !t.Value.Valid() {
			return ir.NoVid, fmt.Errorf("%w: constant without a finite value", ir.ErrUnrecognizedTerm)
		}
		return b.g.AllocateConstant(t.Value.Rat()), nil
	case *term.Identity:
		return b.lower(t.Inner)
	case *term.Decision:
		return b.decision(t, nil)
	case *term.IndexTerm:
		return b.decision(t.Decision, t.Indexes)
	case *term.Row:
		return b.row(t)
	case *term.Operator:
		return b.operator(t)
	}
	return ir.NoVid, fmt.Errorf("%w: %s", ir.ErrUnrecognizedTerm, term.TypeName(t))
}

func (b *Builder) operator(t *term.Operator) (ir.Vid, error) {
	o := t.Op
	if !o.Valid() {
		return ir.NoVid, fmt.Errorf("%w: operator %s", ir.ErrUnrecognizedTerm, o)
	}
	if !o.AcceptsArity(len(t.Operands)) {
		return ir.NoVid, fmt.Errorf("%w: %s with %d operands", ir.ErrInvalidArgumentCount, o, len(t.Operands))
	}
	vids, err := b.operands(t.Operands)
	if err != nil {
		return ir.NoVid, err
	}
	if o.IsAssociative() {
		if len(vids) == 1 && (o == op.Plus || o == op.Times) {
			return vids[0], nil
		}
		if len(vids) == 1 {
			return b.operation(o, vids[0])
		}
		acc := vids[0]
		for _, v := range vids[1:] {
			if acc, err = b.operation(o, acc, v); err != nil {
				return ir.NoVid, err
			}
		}
		return acc, nil
	}
	return b.operation(o, vids...)
}

// operands lowers the operands of one operator. Symbols are mapped to
// ordinals of the enumerated decision they are compared with.
func (b *Builder) operands(ts []term.Term) ([]ir.Vid, error) {
	enum := enumContext(ts)
	vids := make([]ir.Vid, len(ts))
	for i, t := range ts {
		if c, ok := t.(*term.Constant); ok && c.Value.IsSymbol() {
			r, err := ordinal(c.Value, enum)
			if err != nil {
				return nil, err
			}
			vids[i] = b.g.AllocateConstant(r)
			continue
		}
		v, err := b.lower(t)
		if err != nil {
			return nil, err
		}
		vids[i] = v
	}
	return vids, nil
}

// operation allocates o over vids after constant folding and identity
// elimination.
func (b *Builder) operation(o op.Op, vids ...ir.Vid) (ir.Vid, error) {
	if !b.opts.FoldConstants {
		return b.allocate(o, vids)
	}
	allConst := true
	for _, v := range vids {
		if !b.g.IsConstant(v) {
			allConst = false
			break
		}
	}
	if allConst {
		vals := make([]*big.Rat, len(vids))
		for i, v := range vids {
			vals[i] = b.g.ConstantValue(v)
		}
		if r, ok := op.Fold(o, vals); ok {
			return b.g.AllocateConstant(r), nil
		}
	}
	if len(vids) == 2 && (o == op.Plus || o == op.Times) {
		for i, v := range vids {
			if !b.g.IsConstant(v) {
				continue
			}
			c := b.g.ConstantValue(v)
			switch {
			case o == op.Plus && op.IsZero(c), o == op.Times && op.IsOne(c):
				return vids[1-i], nil
			case o == op.Times && op.IsZero(c):
				return v, nil
			}
		}
	}
	return b.allocate(o, vids)
}

func (b *Builder) allocate(o op.Op, vids []ir.Vid) (ir.Vid, error) {
	vid, err := b.g.AllocateOperation(o, vids...)
	if err != nil {
		return ir.NoVid, fmt.Errorf("%s: %w", o, err)
	}
	for _, v := range vids {
		b.shared[v] = true
	}
	return vid, nil
}

func (b *Builder) row(r *term.Row) (ir.Vid, error) {
	acc := ir.NoVid
	for _, e := range r.Entries {
		if e.Coefficient == nil {
			return ir.NoVid, fmt.Errorf("%w: row entry without coefficient", ir.ErrUnrecognizedTerm)
		}
		v, err := b.lower(e.Operand)
		if err != nil {
			return ir.NoVid, err
		}
		if !op.IsOne(e.Coefficient) {
			if v, err = b.operation(op.Times, b.g.AllocateConstant(e.Coefficient), v); err != nil {
				return ir.NoVid, err
			}
		}
		if acc == ir.NoVid {
			acc = v
			continue
		}
		if acc, err = b.operation(op.Plus, acc, v); err != nil {
			return ir.NoVid, err
		}
	}
	if acc == ir.NoVid {
		return b.g.AllocateInt(0), nil
	}
	return acc, nil
}

// ============================================================
// Decisions
// ============================================================

func (b *Builder) decision(d *term.Decision, idx []term.Value) (ir.Vid, error) {
	if d == nil {
		return ir.NoVid, fmt.Errorf("%w: nil decision", ir.ErrUnrecognizedTerm)
	}
	if len(idx) != len(d.Domains) {
		return ir.NoVid, fmt.Errorf("%w: %s takes %d indexes, got %d", ir.ErrInvalidArgumentCount, d.Name, len(d.Domains), len(idx))
	}
	key := decisionKey{id: d.ID, tuple: term.TupleKey(idx)}
	if vid, ok := b.decisions[key]; ok {
		return vid, nil
	}
	for i, v := range idx {
		if !d.Domains[i].Contains(v) {
			return ir.NoVid, fmt.Errorf("%w: %s index %d value %s not in %s",
				ir.ErrDomainIndexOutOfRange, d.Name, i, v, d.Domains[i].Name())
		}
	}
	bd, integer, discrete, err := shape(d)
	if err != nil {
		return ir.NoVid, err
	}
	vid := b.g.AllocateVariable(bd, integer, discrete)
	svid := b.model.AllocateVariable()
	b.g.BindSolver(vid, svid)
	if integer {
		b.model.SetIntegrality(svid, true)
	}
	if len(discrete) > 0 {
		if ds, ok := b.model.(solver.DiscreteSetter); ok {
			vals := make([]float64, len(discrete))
			for i, r := range discrete {
				vals[i], _ = r.Float64()
			}
			ds.SetDiscrete(svid, vals)
		}
	}
	if d.Hint != nil {
		if h, ok := d.Hint(idx); ok && h != nil {
			f, _ := h.Float64()
			b.model.SetValue(svid, f)
		}
	}
	b.decisions[key] = vid
	return vid, nil
}

// shape derives the bound, integrality and discrete domain of a decision.
func shape(d *term.Decision) (ir.Bound, bool, []*big.Rat, error) {
	bd := ir.Between(d.Lower, d.Upper)
	integer := false
	switch d.Kind {
	case term.Integer:
		integer = true
	case term.Boolean:
		integer = true
		bd, _ = bd.Intersect(ir.Bound{Lo: ir.Int(0), Hi: ir.Int(1)})
	case term.Enumerated:
		if d.Values == nil || d.Values.Len() == 0 {
			return ir.Bound{}, false, nil, fmt.Errorf("%w: enumerated decision %s has no values", ir.ErrUnrecognizedTerm, d.Name)
		}
		integer = true
		bd, _ = bd.Intersect(ir.Bound{Lo: ir.Int(0), Hi: ir.Int(int64(d.Values.Len() - 1))})
	}
	var discrete []*big.Rat
	if len(d.Discrete) > 0 {
		lo, hi := d.Discrete[0], d.Discrete[0]
		for _, r := range d.Discrete {
			discrete = append(discrete, new(big.Rat).Set(r))
			if r.Cmp(lo) < 0 {
				lo = r
			}
			if r.Cmp(hi) > 0 {
				hi = r
			}
		}
		bd, _ = bd.Intersect(ir.Between(lo, hi))
	}
	if bd.Empty() {
		return ir.Bound{}, false, nil, fmt.Errorf("%w: decision %s has an empty range", ir.ErrModelShape, d.Name)
	}
	return bd, integer, discrete, nil
}

// enumContext returns the value set of the first enumerated decision among
// ts, looking through identity wrappers.
func enumContext(ts []term.Term) *term.EnumSet {
	for _, t := range ts {
		for {
			id, ok := t.(*term.Identity)
			if !ok {
				break
			}
			t = id.Inner
		}
		var d *term.Decision
		switch t := t.(type) {
		case *term.Decision:
			d = t
		case *term.IndexTerm:
			d = t.Decision
		}
		if d != nil && d.Kind == term.Enumerated && d.Values != nil {
			return d.Values
		}
	}
	return nil
}

func ordinal(v term.Value, enum *term.EnumSet) (*big.Rat, error) {
	if enum == nil {
		return nil, fmt.Errorf("%w: symbol %q outside an enumerated context", ir.ErrUnrecognizedTerm, v.Symbol())
	}
	i, ok := enum.Ordinal(v.Symbol())
	if !ok {
		return nil, fmt.Errorf("%w: %q not in %s", ir.ErrDomainIndexOutOfRange, v.Symbol(), enum.Name())
	}
	return new(big.Rat).SetInt64(int64(i)), nil
}

package lower

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/op"
	"github.com/njchilds90/gosymopt/term"
)

var (
	ratZero = new(big.Rat)
	ratOne  = new(big.Rat).SetInt64(1)
)

// ============================================================
// Top-level constraint specializations
// ============================================================

func (b *Builder) constrain(t term.Term) error {
	for {
		id, ok := t.(*term.Identity)
		if !ok {
			break
		}
		t = id.Inner
	}
	if o, ok := t.(*term.Operator); ok && o.Op.AcceptsArity(len(o.Operands)) {
		switch o.Op {
		case op.And:
			for _, c := range o.Operands {
				if err := b.constrain(c); err != nil {
					return err
				}
			}
			return nil
		case op.Or:
			for _, d := range o.Operands {
				if v, ok := constValue(d); ok && v.Sign() != 0 {
					b.tautologies++
					b.log.Debug("tautology dropped", slog.String("constraint", o.String()))
					return nil
				}
			}
		case op.Equal:
			if len(o.Operands) >= 2 {
				return b.constrainEqual(o.Operands)
			}
		case op.Less, op.LessEqual, op.Greater, op.GreaterEqual:
			if n := len(o.Operands); n == 2 || n == 3 {
				return b.constrainOrder(o.Op, o.Operands)
			}
		}
	}
	vid, err := b.lower(t)
	if err != nil {
		return err
	}
	_, err = b.bind(vid, ir.Point(ratOne))
	return err
}

// operandSet lowers the operands of one specialized relation at most once
// each and remembers which are compile-time constants.
type operandSet struct {
	b      *Builder
	terms  []term.Term
	consts []*big.Rat
	vids   []ir.Vid
}

func (b *Builder) newOperandSet(ts []term.Term) (*operandSet, error) {
	s := &operandSet{b: b, terms: ts, consts: make([]*big.Rat, len(ts)), vids: make([]ir.Vid, len(ts))}
	enum := enumContext(ts)
	for i, t := range ts {
		s.vids[i] = ir.NoVid
		if c, ok := t.(*term.Constant); ok && c.Value.IsSymbol() {
			r, err := ordinal(c.Value, enum)
			if err != nil {
				return nil, err
			}
			s.consts[i] = r
			continue
		}
		if r, ok := constValue(t); ok {
			s.consts[i] = r
		}
	}
	return s, nil
}

func (s *operandSet) isConst(i int) bool { return s.consts[i] != nil }

func (s *operandSet) vid(i int) (ir.Vid, error) {
	if s.vids[i] != ir.NoVid {
		return s.vids[i], nil
	}
	var err error
	if s.isConst(i) {
		s.vids[i] = s.b.g.AllocateConstant(s.consts[i])
	} else {
		s.vids[i], err = s.b.lower(s.terms[i])
	}
	return s.vids[i], err
}

// constrainEqual binds every non-constant operand to the constant operand's
// value, or chains difference rows against the first operand when there is
// no constant.
func (b *Builder) constrainEqual(ts []term.Term) error {
	s, err := b.newOperandSet(ts)
	if err != nil {
		return err
	}
	var pivot *big.Rat
	for i := range ts {
		if !s.isConst(i) {
			continue
		}
		if pivot == nil {
			pivot = s.consts[i]
		} else if pivot.Cmp(s.consts[i]) != 0 {
			return b.infeasible("conflicting constants in Equal")
		}
	}
	if pivot != nil {
		for i := range ts {
			if s.isConst(i) {
				continue
			}
			v, err := s.vid(i)
			if err != nil {
				return err
			}
			if _, err := b.bind(v, ir.Point(pivot)); err != nil {
				return err
			}
		}
		return nil
	}
	first, err := s.vid(0)
	if err != nil {
		return err
	}
	for i := 1; i < len(ts); i++ {
		v, err := s.vid(i)
		if err != nil {
			return err
		}
		d, err := b.difference(v, first)
		if err != nil {
			return err
		}
		if _, err := b.bind(d, ir.Point(ratZero)); err != nil {
			return err
		}
	}
	return nil
}

// constrainOrder handles two- and three-operand comparisons. Strict
// comparisons bind closed ranges; strictness only matters when both sides
// are constants.
func (b *Builder) constrainOrder(o op.Op, ts []term.Term) error {
	if o == op.Greater || o == op.GreaterEqual {
		rev := make([]term.Term, len(ts))
		for i, t := range ts {
			rev[len(ts)-1-i] = t
		}
		ts, o = rev, o.Reverse()
	}
	s, err := b.newOperandSet(ts)
	if err != nil {
		return err
	}
	strict := o == op.Less
	if len(ts) == 3 && s.isConst(0) && s.isConst(2) && !s.isConst(1) {
		if c := s.consts[0].Cmp(s.consts[2]); c > 0 || (strict && c == 0) {
			return b.infeasible("empty range")
		}
		v, err := s.vid(1)
		if err != nil {
			return err
		}
		_, err = b.bind(v, ir.Between(s.consts[0], s.consts[2]))
		return err
	}
	for i := 1; i < len(ts); i++ {
		if err := b.orderPair(s, i-1, i, strict); err != nil {
			return err
		}
	}
	return nil
}

// orderPair enforces operand lo <= operand hi.
func (b *Builder) orderPair(s *operandSet, lo, hi int, strict bool) error {
	switch {
	case s.isConst(lo) && s.isConst(hi):
		if c := s.consts[lo].Cmp(s.consts[hi]); c > 0 || (strict && c == 0) {
			return b.infeasible("constant comparison is false")
		}
		return nil
	case s.isConst(hi):
		v, err := s.vid(lo)
		if err != nil {
			return err
		}
		_, err = b.bind(v, ir.AtMost(s.consts[hi]))
		return err
	case s.isConst(lo):
		v, err := s.vid(hi)
		if err != nil {
			return err
		}
		_, err = b.bind(v, ir.AtLeast(s.consts[lo]))
		return err
	}
	l, err := s.vid(lo)
	if err != nil {
		return err
	}
	h, err := s.vid(hi)
	if err != nil {
		return err
	}
	d, err := b.difference(h, l)
	if err != nil {
		return err
	}
	_, err = b.bind(d, ir.AtLeast(ratZero))
	return err
}

// difference returns a vid for a - c.
func (b *Builder) difference(a, c ir.Vid) (ir.Vid, error) {
	neg, err := b.operation(op.Minus, c)
	if err != nil {
		return ir.NoVid, err
	}
	return b.operation(op.Plus, a, neg)
}

// infeasible records a constraint that can never hold as a row over the
// constant 0 bound to [1, 1].
func (b *Builder) infeasible(reason string) error {
	b.log.Debug("infeasible constraint", slog.String("reason", reason))
	_, err := b.bind(b.g.AllocateInt(0), ir.Point(ratOne))
	return err
}

// ============================================================
// Bound merging
// ============================================================

// private reports whether v is an operation nothing else references and
// that carries no bound yet.
func (b *Builder) private(v ir.Vid) bool {
	return b.g.IsOperation(v) && !b.g.IsRow(v) && !b.shared[v] && b.g.Bound(v).IsUnbounded()
}

// bind merges bd onto v and returns the vid that carries it.
func (b *Builder) bind(v ir.Vid, bd ir.Bound) (ir.Vid, error) {
	switch b.g.Kind(v) {
	case ir.KindConstant:
		c := ir.Finite(b.g.ConstantValue(v))
		if bd.Lo.Cmp(c) <= 0 && c.Cmp(bd.Hi) <= 0 {
			return v, nil
		}
	case ir.KindVariable:
		if merged, ok := b.g.Bound(v).Intersect(bd); ok {
			return v, b.g.SetBound(v, merged)
		}
	case ir.KindOperation:
		if b.private(v) {
			if err := b.g.SetBound(v, bd); err != nil {
				return ir.NoVid, err
			}
			b.markRow(v)
			return v, nil
		}
		if b.g.IsRow(v) {
			if merged, ok := b.g.Bound(v).Intersect(bd); ok {
				return v, b.g.SetBound(v, merged)
			}
		}
	}
	id, err := b.identity(v)
	if err != nil {
		return ir.NoVid, err
	}
	if err := b.g.SetBound(id, bd); err != nil {
		return ir.NoVid, err
	}
	b.markRow(id)
	b.log.Debug("bound carried by identity copy",
		slog.Int("vid", int(v)), slog.Int("copy", int(id)), slog.String("bound", bd.String()))
	return id, nil
}

// identity copies v through an Identity operation to obtain a private slot.
func (b *Builder) identity(v ir.Vid) (ir.Vid, error) {
	id, err := b.g.AllocateOperation(op.Identity, v)
	if err != nil {
		return ir.NoVid, fmt.Errorf("identity copy: %w", err)
	}
	b.shared[v] = true
	b.identityCopies++
	return id, nil
}

func (b *Builder) markRow(v ir.Vid) {
	if b.g.IsRow(v) {
		return
	}
	b.g.MarkRow(v)
	b.g.BindSolver(v, b.model.AllocateRow())
}

// ============================================================
// Compile-time constants
// ============================================================

// constValue evaluates t without touching the graph. ok is false when t
// depends on a decision, contains a symbol, or folds to an undefined value.
func constValue(t term.Term) (*big.Rat, bool) {
	switch t := t.(type) {
	case *term.Constant:
		if t.Value.IsSymbol() || !t.Value.Valid() {
			return nil, false
		}
		return t.Value.Rat(), true
	case *term.Identity:
		return constValue(t.Inner)
	case *term.Operator:
		if !t.Op.AcceptsArity(len(t.Operands)) {
			return nil, false
		}
		vals := make([]*big.Rat, len(t.Operands))
		for i, o := range t.Operands {
			v, ok := constValue(o)
			if !ok {
				return nil, false
			}
			vals[i] = v
		}
		return op.Fold(t.Op, vals)
	case *term.Row:
		acc := new(big.Rat)
		for _, e := range t.Entries {
			if e.Coefficient == nil {
				return nil, false
			}
			v, ok := constValue(e.Operand)
			if !ok {
				return nil, false
			}
			acc.Add(acc, v.Mul(v, e.Coefficient))
		}
		return acc, true
	}
	return nil, false
}

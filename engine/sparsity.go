package engine

import (
	"math/bits"

	"github.com/njchilds90/gosymopt/ir"
)

// leafSet is a bit vector over dense leaf slots. Bit i of word i/64 marks
// slot i.
type leafSet []uint64

func newLeafSet(slots int) leafSet { return make(leafSet, (slots+63)/64) }

func (s leafSet) add(slot int) { s[slot/64] |= 1 << uint(slot%64) }

func (s leafSet) union(o leafSet) {
	for i := range o {
		s[i] |= o[i]
	}
}

func (s leafSet) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// each calls fn for every set slot in increasing order.
func (s leafSet) each(fn func(slot int)) {
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(i*64 + b)
			w &^= 1 << uint(b)
		}
	}
}

// Sparsity holds, for every vid up to the last row, the leaf variables it
// depends on.
type Sparsity struct {
	leaves []ir.Vid // slot -> variable vid
	sets   []leafSet
}

// Analyze computes dependency bit vectors for vids [0, upto]. Constants are
// empty, a variable marks its own slot and an operation is the union of its
// operands.
func Analyze(g *ir.Graph, upto ir.Vid) *Sparsity {
	vars := g.Variables()
	slot := make(map[ir.Vid]int, len(vars))
	for i, v := range vars {
		slot[v] = i
	}
	s := &Sparsity{leaves: vars, sets: make([]leafSet, int(upto)+1)}
	for v := ir.Vid(0); v <= upto; v++ {
		set := newLeafSet(len(vars))
		switch g.Kind(v) {
		case ir.KindVariable:
			set.add(slot[v])
		case ir.KindOperation:
			for _, w := range g.Operands(v) {
				set.union(s.sets[w])
			}
		}
		s.sets[v] = set
	}
	return s
}

// Leaves returns the variables v depends on, ascending.
func (s *Sparsity) Leaves(v ir.Vid) []ir.Vid {
	set := s.sets[v]
	out := make([]ir.Vid, 0, set.count())
	set.each(func(slot int) {
		out = append(out, s.leaves[slot])
	})
	return out
}

// Count returns how many variables v depends on.
func (s *Sparsity) Count(v ir.Vid) int { return s.sets[v].count() }

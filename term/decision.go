package term

import (
	"fmt"
	"math/big"
	"strings"
)

// DecisionKind is the value class of a decision.
type DecisionKind uint8

const (
	Continuous DecisionKind = iota
	Integer
	Boolean
	Enumerated
)

func (k DecisionKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	case Enumerated:
		return "enumerated"
	}
	return fmt.Sprintf("DecisionKind(%d)", uint8(k))
}

// HintFunc returns an initial value for the decision at the given index
// tuple, if one is known.
type HintFunc func(index []Value) (*big.Rat, bool)

// Decision is a decision variable family. A Decision with no Domains is a
// scalar and may be used directly as a Term; indexed decisions are referenced
// through IndexTerm.
type Decision struct {
	ID   int
	Name string

	// Domains holds one index set per index position.
	Domains []IndexSet

	Kind DecisionKind

	// Lower and Upper bound the value; nil means unbounded on that side.
	Lower, Upper *big.Rat

	// Values enumerates the admissible symbols of an Enumerated decision.
	Values *EnumSet

	// Discrete optionally restricts a numeric decision to a finite set.
	Discrete []*big.Rat

	Hint HintFunc
}

func (d *Decision) String() string {
	if len(d.Domains) == 0 {
		return d.Name
	}
	names := make([]string, len(d.Domains))
	for i, s := range d.Domains {
		names[i] = s.Name()
	}
	return d.Name + "[" + strings.Join(names, ",") + "]"
}
func (d *Decision) termType() string { return "decision" }

// Bounded sets Lower and Upper from integers and returns d.
func (d *Decision) Bounded(lo, hi int64) *Decision {
	d.Lower = new(big.Rat).SetInt64(lo)
	d.Upper = new(big.Rat).SetInt64(hi)
	return d
}

// ============================================================
// Index sets
// ============================================================

// IndexSet is the domain of one index position.
type IndexSet interface {
	Name() string
	Contains(v Value) bool
}

// Ordinals is implemented by enumerated sets whose symbols map to dense
// integer ordinals.
type Ordinals interface {
	Ordinal(symbol string) (int, bool)
}

// RangeSet is the inclusive integer range [Lo, Hi].
type RangeSet struct {
	Label  string
	Lo, Hi int64
}

func Range(name string, lo, hi int64) *RangeSet { return &RangeSet{Label: name, Lo: lo, Hi: hi} }

func (r *RangeSet) Name() string { return r.Label }
func (r *RangeSet) Contains(v Value) bool {
	n, ok := v.Int64()
	return ok && v.Kind() == KindNumber && n >= r.Lo && n <= r.Hi
}

// EnumSet is an ordered set of symbols.
type EnumSet struct {
	label   string
	members []string
	index   map[string]int
}

func Enum(name string, members ...string) *EnumSet {
	e := &EnumSet{label: name, members: members, index: make(map[string]int, len(members))}
	for i, m := range members {
		e.index[m] = i
	}
	return e
}

func (e *EnumSet) Name() string      { return e.label }
func (e *EnumSet) Len() int          { return len(e.members) }
func (e *EnumSet) Members() []string { return append([]string(nil), e.members...) }
func (e *EnumSet) Contains(v Value) bool {
	if !v.IsSymbol() {
		return false
	}
	_, ok := e.index[v.Symbol()]
	return ok
}
func (e *EnumSet) Ordinal(symbol string) (int, bool) {
	i, ok := e.index[symbol]
	return i, ok
}

// ValueSet is an explicit finite set of numbers.
type ValueSet struct {
	Label  string
	Values []Value
}

func (s *ValueSet) Name() string { return s.Label }
func (s *ValueSet) Contains(v Value) bool {
	for _, m := range s.Values {
		if m.Equal(v) {
			return true
		}
	}
	return false
}

// Package ir implements the intermediate representation handed to numerical
// solvers: an append-only arena of Variable, Constant and Operation nodes
// addressed by dense integer vids.
//
// Every operand of an operation has a smaller vid than the operation itself,
// so one forward scan over the vids visits operands before their users.
// Operand lists live in one shared slice addressed by (start, count).
//
// A Graph is owned by one goroutine while it is built. Once construction and
// differentiation are complete it is only read.
package ir

import (
	"math/big"

	"github.com/njchilds90/gosymopt/op"
)

// Vid is a dense node handle.
type Vid int32

// NoVid marks an absent vid.
const NoVid Vid = -1

// Kind is the node kind.
type Kind uint8

const (
	KindVariable Kind = iota
	KindConstant
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindConstant:
		return "constant"
	case KindOperation:
		return "operation"
	}
	return "unknown"
}

// RowInfo describes a vid exposed to the solver.
type RowInfo struct {
	Vid      Vid
	Goal     bool
	Minimize bool
	Priority int
}

// GradientEntry pairs a leaf variable with the vid holding the partial
// derivative of some row with respect to it.
type GradientEntry struct {
	Variable   Vid
	Derivative Vid
}

type node struct {
	kind  Kind
	op    op.Op
	start int32 // operand offset, constant index or variable index
	count int32
	bound Bound
	row   int32
}

type variable struct {
	vid      Vid
	integer  bool
	discrete []*big.Rat
}

// Graph is the IR node store.
type Graph struct {
	nodes    []node
	operands []Vid

	constants  []*big.Rat
	constFloat []float64
	constIndex map[string]Vid

	vars []variable
	rows []RowInfo

	toSolver   map[Vid]int
	fromSolver map[int]Vid
}

// New returns an empty graph.
func New() *Graph { return NewWithCapacity(64) }

// NewWithCapacity returns an empty graph sized for about n nodes.
func NewWithCapacity(n int) *Graph {
	return &Graph{
		nodes:      make([]node, 0, n),
		operands:   make([]Vid, 0, 2*n),
		constIndex: make(map[string]Vid),
		toSolver:   make(map[Vid]int),
		fromSolver: make(map[int]Vid),
	}
}

func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) check(v Vid) *node {
	if v < 0 || int(v) >= len(g.nodes) {
		Invariantf("vid %d out of range [0,%d)", v, len(g.nodes))
	}
	return &g.nodes[v]
}

func (g *Graph) push(n node) Vid {
	n.row = -1
	g.nodes = append(g.nodes, n)
	return Vid(len(g.nodes) - 1)
}

// ============================================================
// Allocation
// ============================================================

// AllocateVariable appends a leaf variable. discrete, when non-empty,
// restricts the variable to a finite set of values.
func (g *Graph) AllocateVariable(b Bound, integer bool, discrete []*big.Rat) Vid {
	vid := g.push(node{kind: KindVariable, start: int32(len(g.vars)), bound: b})
	g.vars = append(g.vars, variable{vid: vid, integer: integer, discrete: discrete})
	return vid
}

// AllocateConstant returns the vid of the constant v, appending it on first
// use. Constants are interned by exact value.
func (g *Graph) AllocateConstant(v *big.Rat) Vid {
	key := v.RatString()
	if vid, ok := g.constIndex[key]; ok {
		return vid
	}
	r := new(big.Rat).Set(v)
	f, _ := r.Float64()
	vid := g.push(node{kind: KindConstant, start: int32(len(g.constants)), bound: Point(r)})
	g.constants = append(g.constants, r)
	g.constFloat = append(g.constFloat, f)
	g.constIndex[key] = vid
	return vid
}

// AllocateInt is AllocateConstant for an integer.
func (g *Graph) AllocateInt(n int64) Vid { return g.AllocateConstant(new(big.Rat).SetInt64(n)) }

// AllocateOperation appends an operation over existing vids. Fixed-arity
// operators reject any other operand count with ErrInvalidArgumentCount.
// An operand that does not exist yet is an invariant violation.
func (g *Graph) AllocateOperation(o op.Op, operands ...Vid) (Vid, error) {
	if !o.Valid() {
		return NoVid, ErrUnrecognizedTerm
	}
	if !o.AcceptsArity(len(operands)) {
		return NoVid, ErrInvalidArgumentCount
	}
	for _, v := range operands {
		g.check(v)
	}
	start := int32(len(g.operands))
	g.operands = append(g.operands, operands...)
	return g.push(node{kind: KindOperation, op: o, start: start, count: int32(len(operands)), bound: Unbounded()}), nil
}

// ============================================================
// Access
// ============================================================

func (g *Graph) Kind(v Vid) Kind        { return g.check(v).kind }
func (g *Graph) IsOperation(v Vid) bool { return g.check(v).kind == KindOperation }
func (g *Graph) IsConstant(v Vid) bool  { return g.check(v).kind == KindConstant }
func (g *Graph) IsVariable(v Vid) bool  { return g.check(v).kind == KindVariable }
func (g *Graph) Op(v Vid) op.Op         { return g.check(v).op }
func (g *Graph) OperandCount(v Vid) int { return int(g.check(v).count) }
func (g *Graph) Bound(v Vid) Bound      { return g.check(v).bound }
func (g *Graph) IsRow(v Vid) bool       { return g.check(v).row >= 0 }

// Operand returns the i-th operand of the operation v.
func (g *Graph) Operand(v Vid, i int) Vid {
	n := g.check(v)
	if i < 0 || int32(i) >= n.count {
		Invariantf("operand %d out of range for vid %d with %d operands", i, v, n.count)
	}
	return g.operands[n.start+int32(i)]
}

// Operands returns the operand list of v. The slice aliases graph storage
// and must not be modified.
func (g *Graph) Operands(v Vid) []Vid {
	n := g.check(v)
	if n.kind != KindOperation {
		return nil
	}
	return g.operands[n.start : n.start+n.count : n.start+n.count]
}

// ConstantValue returns a copy of the value of the constant v.
func (g *Graph) ConstantValue(v Vid) *big.Rat {
	n := g.check(v)
	if n.kind != KindConstant {
		Invariantf("vid %d is a %s, not a constant", v, n.kind)
	}
	return new(big.Rat).Set(g.constants[n.start])
}

// ConstantFloat returns the float64 value of the constant v.
func (g *Graph) ConstantFloat(v Vid) float64 {
	n := g.check(v)
	if n.kind != KindConstant {
		Invariantf("vid %d is a %s, not a constant", v, n.kind)
	}
	return g.constFloat[n.start]
}

// IsInteger reports whether the variable v is integral.
func (g *Graph) IsInteger(v Vid) bool {
	n := g.check(v)
	return n.kind == KindVariable && g.vars[n.start].integer
}

// Discrete returns the discrete domain of the variable v, if any.
func (g *Graph) Discrete(v Vid) []*big.Rat {
	n := g.check(v)
	if n.kind != KindVariable {
		return nil
	}
	return g.vars[n.start].discrete
}

// Variables returns the leaf variable vids in allocation order.
func (g *Graph) Variables() []Vid {
	out := make([]Vid, len(g.vars))
	for i, v := range g.vars {
		out[i] = v.vid
	}
	return out
}

// VariableCount returns the number of leaf variables.
func (g *Graph) VariableCount() int { return len(g.vars) }

// ============================================================
// Bounds and rows
// ============================================================

// SetBound replaces the bound of v. Constants cannot be rebounded and an
// inverted range is rejected; both fail with ErrInvalidOperation.
func (g *Graph) SetBound(v Vid, b Bound) error {
	n := g.check(v)
	if n.kind == KindConstant {
		return ErrInvalidOperation
	}
	if b.Empty() {
		return ErrInvalidOperation
	}
	n.bound = b
	return nil
}

// MarkRow exposes v to the solver. Marking an existing row is a no-op.
func (g *Graph) MarkRow(v Vid) {
	n := g.check(v)
	if n.row >= 0 {
		return
	}
	n.row = int32(len(g.rows))
	g.rows = append(g.rows, RowInfo{Vid: v})
}

// SetGoal marks v as a goal row with the given direction and priority.
func (g *Graph) SetGoal(v Vid, minimize bool, priority int) {
	g.MarkRow(v)
	r := &g.rows[g.nodes[v].row]
	r.Goal = true
	r.Minimize = minimize
	r.Priority = priority
}

// RowInfo returns the row metadata of v.
func (g *Graph) RowInfo(v Vid) (RowInfo, bool) {
	n := g.check(v)
	if n.row < 0 {
		return RowInfo{}, false
	}
	return g.rows[n.row], true
}

// Rows returns all rows in the order they were marked.
func (g *Graph) Rows() []RowInfo { return append([]RowInfo(nil), g.rows...) }

// RowCount returns the number of rows.
func (g *Graph) RowCount() int { return len(g.rows) }

// ============================================================
// Solver numbering
// ============================================================

// BindSolver records that the solver knows v as svid.
func (g *Graph) BindSolver(v Vid, svid int) {
	g.check(v)
	if old, ok := g.fromSolver[svid]; ok && old != v {
		Invariantf("solver vid %d already bound to vid %d", svid, old)
	}
	g.toSolver[v] = svid
	g.fromSolver[svid] = v
}

// SolverVid returns the solver's number for v.
func (g *Graph) SolverVid(v Vid) (int, bool) {
	s, ok := g.toSolver[v]
	return s, ok
}

// TermVid returns the vid the solver knows as svid.
func (g *Graph) TermVid(svid int) (Vid, bool) {
	v, ok := g.fromSolver[svid]
	return v, ok
}

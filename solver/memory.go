package solver

import (
	"math"
	"sort"
)

// Point is a Values backed by a map. Missing vids read as 0.
type Point map[int]float64

func (p Point) Value(vid int) float64 { return p[vid] }

// Vector is a Gradient backed by a map.
type Vector map[int]float64

func (v Vector) Set(vid int, x float64) { v[vid] = x }

// Goal is a recorded goal registration.
type Goal struct {
	Vid      int
	Priority int
	Minimize bool
}

type entry struct {
	row      bool
	lo, hi   float64
	integer  bool
	hint     float64
	hinted   bool
	discrete []float64
}

// Memory records everything the compiler publishes. It is not safe for
// concurrent use.
type Memory struct {
	entries   []entry
	goals     []Goal
	active    map[int]map[int]bool
	evaluator Evaluator
}

// NewMemory returns an empty model.
func NewMemory() *Memory {
	return &Memory{active: make(map[int]map[int]bool)}
}

func (m *Memory) alloc(row bool) int {
	m.entries = append(m.entries, entry{row: row, lo: math.Inf(-1), hi: math.Inf(1)})
	return len(m.entries) - 1
}

func (m *Memory) AllocateRow() int      { return m.alloc(true) }
func (m *Memory) AllocateVariable() int { return m.alloc(false) }

func (m *Memory) SetBounds(vid int, lo, hi float64) {
	m.entries[vid].lo, m.entries[vid].hi = lo, hi
}

func (m *Memory) SetIntegrality(vid int, integer bool) { m.entries[vid].integer = integer }

func (m *Memory) SetValue(vid int, v float64) {
	m.entries[vid].hint, m.entries[vid].hinted = v, true
}

func (m *Memory) SetDiscrete(vid int, values []float64) {
	m.entries[vid].discrete = append([]float64(nil), values...)
}

func (m *Memory) AddGoal(vid int, priority int, minimize bool) {
	m.goals = append(m.goals, Goal{Vid: vid, Priority: priority, Minimize: minimize})
}

func (m *Memory) SetActiveVariable(row, variable int, active bool) {
	vars, ok := m.active[row]
	if !ok {
		vars = make(map[int]bool)
		m.active[row] = vars
	}
	if active {
		vars[variable] = true
	} else {
		delete(vars, variable)
	}
}

func (m *Memory) SetEvaluator(e Evaluator) { m.evaluator = e }

// ============================================================
// Inspection
// ============================================================

func (m *Memory) Evaluator() Evaluator { return m.evaluator }
func (m *Memory) Goals() []Goal        { return append([]Goal(nil), m.goals...) }

// Bounds returns the bounds recorded for vid.
func (m *Memory) Bounds(vid int) (lo, hi float64) { return m.entries[vid].lo, m.entries[vid].hi }

func (m *Memory) IsInteger(vid int) bool { return m.entries[vid].integer }

// Hint returns the initial value recorded for vid.
func (m *Memory) Hint(vid int) (float64, bool) { return m.entries[vid].hint, m.entries[vid].hinted }

func (m *Memory) Discrete(vid int) []float64 { return m.entries[vid].discrete }

// Rows returns the row vids in allocation order.
func (m *Memory) Rows() []int { return m.collect(true) }

// Variables returns the variable vids in allocation order.
func (m *Memory) Variables() []int { return m.collect(false) }

func (m *Memory) collect(row bool) []int {
	var out []int
	for i, e := range m.entries {
		if e.row == row {
			out = append(out, i)
		}
	}
	return out
}

// ActiveVariables returns the variables registered for row, sorted.
func (m *Memory) ActiveVariables(row int) []int {
	out := make([]int, 0, len(m.active[row]))
	for v := range m.active[row] {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Value evaluates row at p through the registered evaluator.
func (m *Memory) Value(row int, p Point, needsRecalc bool) float64 {
	return m.evaluator.Value(row, p, needsRecalc)
}

// GradientAt evaluates the gradient of row at p.
func (m *Memory) GradientAt(row int, p Point, needsRecalc bool) Vector {
	out := make(Vector)
	m.evaluator.Gradient(row, p, needsRecalc, out)
	return out
}

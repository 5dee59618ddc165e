// Package term defines the expression tree handed to the compiler by the
// upstream model builder: constants, operator applications, decisions
// (optionally indexed), transparent identity wrappers and precomputed
// linear rows.
//
// Trees are expected to be fully expanded: every index is a concrete value
// and every constraint is one boolean-valued tree.
package term

import (
	"math/big"
	"strings"

	"github.com/njchilds90/gosymopt/op"
)

// ============================================================
// Core Interface
// ============================================================

type Term interface {
	String() string
	termType() string
}

// ============================================================
// Constant
// ============================================================

type Constant struct{ Value Value }

func C(v Value) *Constant            { return &Constant{Value: v} }
func N(n int64) *Constant            { return C(Num(n)) }
func F(p, q int64) *Constant         { return C(Frac(p, q)) }
func True() *Constant                { return C(Bool(true)) }
func False() *Constant               { return C(Bool(false)) }
func Sym(s string) *Constant         { return C(Symbol(s)) }
func (c *Constant) String() string   { return c.Value.String() }
func (c *Constant) termType() string { return "constant" }

// ============================================================
// Operator: n-ary application
// ============================================================

type Operator struct {
	Op       op.Op
	Operands []Term
}

func Apply(o op.Op, operands ...Term) *Operator {
	return &Operator{Op: o, Operands: operands}
}

func Plus(ts ...Term) *Operator         { return Apply(op.Plus, ts...) }
func Times(ts ...Term) *Operator        { return Apply(op.Times, ts...) }
func Neg(t Term) *Operator              { return Apply(op.Minus, t) }
func And(ts ...Term) *Operator          { return Apply(op.And, ts...) }
func Or(ts ...Term) *Operator           { return Apply(op.Or, ts...) }
func Not(t Term) *Operator              { return Apply(op.Not, t) }
func Equal(ts ...Term) *Operator        { return Apply(op.Equal, ts...) }
func Less(ts ...Term) *Operator         { return Apply(op.Less, ts...) }
func LessEqual(ts ...Term) *Operator    { return Apply(op.LessEqual, ts...) }
func Greater(ts ...Term) *Operator      { return Apply(op.Greater, ts...) }
func GreaterEqual(ts ...Term) *Operator { return Apply(op.GreaterEqual, ts...) }
func If(c, t, e Term) *Operator         { return Apply(op.If, c, t, e) }

func (o *Operator) String() string {
	parts := make([]string, len(o.Operands))
	for i, t := range o.Operands {
		parts[i] = t.String()
	}
	return o.Op.String() + "(" + strings.Join(parts, ", ") + ")"
}
func (o *Operator) termType() string { return "operator" }

// ============================================================
// IndexTerm: decision applied to a concrete index tuple
// ============================================================

type IndexTerm struct {
	Decision *Decision
	Indexes  []Value
}

// At applies d to an index tuple.
func (d *Decision) At(indexes ...Value) *IndexTerm {
	return &IndexTerm{Decision: d, Indexes: indexes}
}

func (t *IndexTerm) String() string {
	parts := make([]string, len(t.Indexes))
	for i, v := range t.Indexes {
		parts[i] = v.String()
	}
	return t.Decision.Name + "[" + strings.Join(parts, ",") + "]"
}
func (t *IndexTerm) termType() string { return "index" }

// ============================================================
// Identity: transparent wrapper
// ============================================================

type Identity struct{ Inner Term }

func Wrap(t Term) *Identity          { return &Identity{Inner: t} }
func (i *Identity) String() string   { return i.Inner.String() }
func (i *Identity) termType() string { return "identity" }

// ============================================================
// Row: precomputed linear combination
// ============================================================

type RowEntry struct {
	Coefficient *big.Rat
	Operand     Term
}

type Row struct{ Entries []RowEntry }

// Linear builds a Row from its entries.
func Linear(entries ...RowEntry) *Row { return &Row{Entries: entries} }

// Coef pairs an integer coefficient with an operand.
func Coef(c int64, t Term) RowEntry {
	return RowEntry{Coefficient: new(big.Rat).SetInt64(c), Operand: t}
}

func (r *Row) String() string {
	if len(r.Entries) == 0 {
		return "0"
	}
	parts := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		parts[i] = e.Coefficient.RatString() + "*" + e.Operand.String()
	}
	return strings.Join(parts, " + ")
}
func (r *Row) termType() string { return "row" }

// TypeName returns the variant name of t, for diagnostics.
func TypeName(t Term) string {
	if t == nil {
		return "nil"
	}
	return t.termType()
}

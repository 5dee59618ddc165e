package term

import (
	"fmt"
	"math/big"
	"strings"
)

// ============================================================
// Value: exact constant payload
// ============================================================

// ValueKind classifies a constant value.
type ValueKind uint8

const (
	KindNumber ValueKind = iota
	KindBoolean
	KindSymbol
)

// Value is an exact rational, a boolean, or an enumerated symbol.
// Booleans carry the rational 0 or 1 so they mix freely with numbers.
type Value struct {
	kind ValueKind
	rat  *big.Rat
	sym  string
}

func Num(n int64) Value { return Value{kind: KindNumber, rat: new(big.Rat).SetInt64(n)} }

func Frac(p, q int64) Value {
	if q == 0 {
		panic("term: denominator is zero")
	}
	return Value{kind: KindNumber, rat: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// Real converts f exactly. A non-finite f yields a Value with no payload,
// which lowering rejects.
func Real(f float64) Value { return Value{kind: KindNumber, rat: new(big.Rat).SetFloat64(f)} }

func Rat(r *big.Rat) Value { return Value{kind: KindNumber, rat: new(big.Rat).Set(r)} }

func Bool(b bool) Value {
	v := Value{kind: KindBoolean, rat: new(big.Rat)}
	if b {
		v.rat.SetInt64(1)
	}
	return v
}

func Symbol(s string) Value { return Value{kind: KindSymbol, sym: s} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsSymbol() bool  { return v.kind == KindSymbol }

// Valid reports whether v is a symbol or carries a finite rational. The zero
// Value and Real of ±Inf or NaN are not valid.
func (v Value) Valid() bool { return v.kind == KindSymbol || v.rat != nil }

// Rat returns a copy of the numeric payload, or nil for symbols.
func (v Value) Rat() *big.Rat {
	if v.rat == nil {
		return nil
	}
	return new(big.Rat).Set(v.rat)
}

func (v Value) Symbol() string { return v.sym }

// Int64 returns the value as an integer when it is an integral number.
func (v Value) Int64() (int64, bool) {
	if v.rat == nil || !v.rat.IsInt() || !v.rat.Num().IsInt64() {
		return 0, false
	}
	return v.rat.Num().Int64(), true
}

func (v Value) Equal(o Value) bool {
	if v.kind == KindSymbol || o.kind == KindSymbol {
		return v.kind == o.kind && v.sym == o.sym
	}
	if v.rat == nil || o.rat == nil {
		return v.rat == nil && o.rat == nil
	}
	return v.rat.Cmp(o.rat) == 0
}

func (v Value) String() string {
	switch {
	case v.kind == KindSymbol:
		return v.sym
	case v.rat == nil:
		return "invalid"
	case v.kind == KindBoolean:
		if v.rat.Sign() != 0 {
			return "true"
		}
		return "false"
	}
	if v.rat.IsInt() {
		return v.rat.Num().String()
	}
	return v.rat.RatString()
}

// TupleKey renders an index tuple as a stable map key. Symbols and numbers
// are tagged so that "1" and 1 never collide.
func TupleKey(values []Value) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte('|')
		}
		switch {
		case v.kind == KindSymbol:
			fmt.Fprintf(&sb, "s:%s", v.sym)
		case v.rat == nil:
			sb.WriteString("x:")
		default:
			fmt.Fprintf(&sb, "n:%s", v.rat.RatString())
		}
	}
	return sb.String()
}

package ir

import (
	"math"
	"math/big"
)

// ============================================================
// Ext: extended rational
// ============================================================

// Ext is a rational number or one of ±infinity. The zero value is 0.
type Ext struct {
	inf int8
	r   *big.Rat
}

var (
	NegInf = Ext{inf: -1}
	PosInf = Ext{inf: 1}
)

func Finite(r *big.Rat) Ext { return Ext{r: new(big.Rat).Set(r)} }
func Int(n int64) Ext       { return Ext{r: new(big.Rat).SetInt64(n)} }

func (e Ext) IsFinite() bool { return e.inf == 0 }
func (e Ext) IsNegInf() bool { return e.inf < 0 }
func (e Ext) IsPosInf() bool { return e.inf > 0 }

// Rat returns a copy of the finite value, or nil for an infinity.
func (e Ext) Rat() *big.Rat {
	if e.inf != 0 {
		return nil
	}
	if e.r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(e.r)
}

func (e Ext) Float64() float64 {
	switch {
	case e.inf < 0:
		return math.Inf(-1)
	case e.inf > 0:
		return math.Inf(1)
	case e.r == nil:
		return 0
	}
	f, _ := e.r.Float64()
	return f
}

func (e Ext) Cmp(o Ext) int {
	if e.inf != o.inf {
		if e.inf < o.inf {
			return -1
		}
		return 1
	}
	if e.inf != 0 {
		return 0
	}
	return e.Rat().Cmp(o.Rat())
}

func (e Ext) String() string {
	switch {
	case e.inf < 0:
		return "-inf"
	case e.inf > 0:
		return "+inf"
	}
	r := e.Rat()
	if r.IsInt() {
		return r.Num().String()
	}
	return r.RatString()
}

// ============================================================
// Bound: closed admissible range
// ============================================================

// Bound is the admissible range [Lo, Hi] of a vid.
type Bound struct{ Lo, Hi Ext }

func Unbounded() Bound { return Bound{Lo: NegInf, Hi: PosInf} }

// Point returns [v, v].
func Point(v *big.Rat) Bound { return Bound{Lo: Finite(v), Hi: Finite(v)} }

// AtLeast returns [v, +inf].
func AtLeast(v *big.Rat) Bound { return Bound{Lo: Finite(v), Hi: PosInf} }

// AtMost returns [-inf, v].
func AtMost(v *big.Rat) Bound { return Bound{Lo: NegInf, Hi: Finite(v)} }

// Between returns [lo, hi]; nil endpoints are unbounded.
func Between(lo, hi *big.Rat) Bound {
	b := Unbounded()
	if lo != nil {
		b.Lo = Finite(lo)
	}
	if hi != nil {
		b.Hi = Finite(hi)
	}
	return b
}

func (b Bound) IsUnbounded() bool { return b.Lo.IsNegInf() && b.Hi.IsPosInf() }
func (b Bound) Empty() bool       { return b.Lo.Cmp(b.Hi) > 0 }
func (b Bound) Equal(o Bound) bool {
	return b.Lo.Cmp(o.Lo) == 0 && b.Hi.Cmp(o.Hi) == 0
}

// Intersect returns the intersection of b and o. ok is false when the
// intersection is empty.
func (b Bound) Intersect(o Bound) (Bound, bool) {
	r := b
	if o.Lo.Cmp(r.Lo) > 0 {
		r.Lo = o.Lo
	}
	if o.Hi.Cmp(r.Hi) < 0 {
		r.Hi = o.Hi
	}
	return r, !r.Empty()
}

func (b Bound) String() string { return "[" + b.Lo.String() + ", " + b.Hi.String() + "]" }

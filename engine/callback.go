package engine

import (
	"github.com/njchilds90/gosymopt/ir"
	"github.com/njchilds90/gosymopt/solver"
)

// CallbackKind tags a Callback.
type CallbackKind uint8

const (
	ValueCallback CallbackKind = iota
	GradientCallback
)

func (k CallbackKind) String() string {
	switch k {
	case ValueCallback:
		return "value"
	case GradientCallback:
		return "gradient"
	}
	return "unknown"
}

// Callback identifies one row evaluation. It holds indices into the engine
// state only.
type Callback struct {
	Kind    CallbackKind
	Row     ir.Vid
	Entries []ir.GradientEntry
	// Targets holds the solver vid of each entry's variable.
	Targets []int
}

// Invoke runs c against the current solver values. Value callbacks return
// the row value; gradient callbacks write into out and report ok=false.
func (e *Engine) Invoke(c Callback, values solver.Values, needsRecalc bool, out solver.Gradient) (float64, bool) {
	switch c.Kind {
	case ValueCallback:
		e.valueCalls.Inc()
		if needsRecalc {
			e.recompute(values, true, false)
			e.gradientFresh = false
		}
		return e.buf[c.Row], true
	case GradientCallback:
		e.gradientCalls.Inc()
		switch {
		case needsRecalc:
			e.recompute(values, true, true)
			e.gradientFresh = true
		case !e.gradientFresh || e.opts.GradientCache == CacheNone:
			e.recompute(values, false, true)
			e.gradientFresh = true
		}
		for i, en := range c.Entries {
			out.Set(c.Targets[i], e.buf[en.Derivative])
		}
		return 0, false
	}
	ir.Invariantf("unknown callback kind %d", c.Kind)
	return 0, false
}

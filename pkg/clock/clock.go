// Package clock converts between linear time and Zeilumara time.
//
// An Engine is bound to one epoch, the linear instant at which every
// structured field reads zero. Conversion is a mixed-radix decomposition:
//
//	total  = trunc((t - epoch) / yaonSeconds)          elapsed yaon
//	digit  = total mod radix  (Euclidean, never < 0)    finest first
//	total  = (total - digit) / radix                    carry upward
//	era    = whatever is left after the archive digit
//
// Euclidean remainders matter for instants before the epoch: a truncating
// remainder would leave negative digits, and every sub-era field must stay
// in [0, radix).
//
// The visible beat is a parallel display counter, total / 432e6 truncated
// toward zero,
// computed directly from the whole-yaon total rather than from the
// hierarchy. It is not consulted by ToLinear.
//
// Engines are immutable and safe for concurrent use. To change the epoch,
// build a new Engine.
package clock

import (
	"math"

	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/units"
)

// Engine converts between LinearTime and StructuredTime for one epoch.
type Engine struct {
	epoch model.LinearTime
	units *units.Table
}

// New returns an engine for epoch. A nil table selects units.Default.
func New(epoch model.LinearTime, table *units.Table) *Engine {
	if table == nil {
		table = units.Default
	}
	return &Engine{epoch: epoch, units: table}
}

// Epoch returns the instant that maps to all-zero fields.
func (e *Engine) Epoch() model.LinearTime { return e.epoch }

// Units returns the engine's unit table.
func (e *Engine) Units() *units.Table { return e.units }

// SecondsSinceEpoch returns t - epoch in linear seconds. Negative before
// the epoch.
func (e *Engine) SecondsSinceEpoch(t model.LinearTime) float64 {
	return float64(t - e.epoch)
}

// ToStructured converts a linear instant to Zeilumara fields.
//
// Precision follows float64: with the default table a present-day
// instant is around 1e51 yaon, so the finest digits are determined by the
// float representation rather than the true instant. The result is still
// deterministic and every digit is in range.
func (e *Engine) ToStructured(t model.LinearTime) model.StructuredTime {
	q := math.Trunc(e.SecondsSinceEpoch(t) / e.units.BaseSeconds())

	var s model.StructuredTime
	s.VisibleBeat = normZero(math.Trunc(q / e.units.VisibleBeatSize()))
	for l := units.Yaon; l < units.Era; l++ {
		r := float64(e.units.Radix(l))
		d := math.Mod(q, r)
		if d < 0 {
			d += r
		}
		s = s.WithDigit(l, int64(d))
		q = math.Round((q - d) / r)
	}
	s.Era = normZero(q)
	return s
}

// ToLinear is the inverse of ToStructured up to the sub-yaon fraction that
// ToStructured discards. VisibleBeat is ignored.
func (e *Engine) ToLinear(s model.StructuredTime) model.LinearTime {
	total := s.Era * e.units.Size(units.Era)
	for l := units.Archive; l >= units.Yaon; l-- {
		total += float64(s.Digit(l)) * e.units.Size(l)
	}
	return e.epoch + model.LinearTime(total*e.units.BaseSeconds())
}

// normZero folds -0 into 0 so pre-epoch fractions don't print as "-0".
func normZero(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

// Package recur projects repeating Zeilumara events onto absolute time.
//
// A repeat rule with an alternate-calendar frequency steps the anchor by
// Interval units at one level of the hierarchy. Each step is a mixed-radix
// addition: the stepped field keeps its remainder and the quotient carries
// into the next coarser field, up to Era if necessary.
//
// Expansion is lazy. The sequence ends at the first of the occurrence cap,
// the rule's end bound and a horizon past "now". Civil frequencies
// (daily, weekly, monthly) are not expanded here; they map onto ordinary
// calendar stepping and are left to the notification center.
package recur

import (
	"iter"
	"time"

	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/units"
)

const (
	// DefaultMaxOccurrences matches the per-series reservation of the
	// notification quota.
	DefaultMaxOccurrences = 50

	// DefaultHorizon bounds rules without an end: one linear year.
	DefaultHorizon = 365 * 24 * time.Hour
)

// Converter is what the expander needs from a conversion engine.
// *clock.Engine satisfies it.
type Converter interface {
	model.Converter
	Units() *units.Table
}

// Options bound an expansion. Zero values select the defaults; a zero Now
// means the current wall-clock time.
type Options struct {
	MaxOccurrences int
	Horizon        time.Duration
	Now            model.LinearTime
}

func (o Options) withDefaults() Options {
	if o.MaxOccurrences <= 0 {
		o.MaxOccurrences = DefaultMaxOccurrences
	}
	if o.Horizon <= 0 {
		o.Horizon = DefaultHorizon
	}
	if o.Now == 0 {
		o.Now = model.Now()
	}
	return o
}

// Occurrence is one projected repetition. Index counts from 1; the anchor
// itself is not an occurrence.
type Occurrence struct {
	Index int                  `json:"index"`
	Time  model.StructuredTime `json:"time"`
	At    model.LinearTime     `json:"at"`
}

// Advance adds n units at level to s and carries into coarser fields.
// VisibleBeat is left as it was; it is a display counter outside the
// hierarchy.
func Advance(table *units.Table, s model.StructuredTime, level units.Level, n int64) model.StructuredTime {
	if table == nil {
		table = units.Default
	}
	carry := n
	for l := level; l < units.Era && carry != 0; l++ {
		r := table.Radix(l)
		v := s.Digit(l) + carry
		d := v % r
		if d < 0 {
			d += r
		}
		s = s.WithDigit(l, d)
		carry = (v - d) / r
	}
	if carry != 0 {
		s.Era += float64(carry)
	}
	return s
}

// Expand returns the occurrences of rule starting after anchor. The
// sequence is empty for civil frequencies, none, and intervals below 1.
// It may be ranged over any number of times and abandoned at any point.
func Expand(c Converter, anchor model.StructuredTime, rule model.RepeatRule, opts Options) iter.Seq[Occurrence] {
	level, ok := rule.Frequency.Level()
	if !ok || rule.Interval < 1 {
		return func(func(Occurrence) bool) {}
	}
	opts = opts.withDefaults()
	limit := opts.Now.Add(opts.Horizon)
	table := c.Units()

	return func(yield func(Occurrence) bool) {
		cur := anchor
		for i := 1; i <= opts.MaxOccurrences; i++ {
			cur = Advance(table, cur, level, rule.Interval)
			at := c.ToLinear(cur)
			if rule.End != nil && at > *rule.End {
				return
			}
			if at > limit {
				return
			}
			if !yield(Occurrence{Index: i, Time: cur, At: at}) {
				return
			}
		}
	}
}

// Collect drains Expand into a slice.
func Collect(c Converter, anchor model.StructuredTime, rule model.RepeatRule, opts Options) []Occurrence {
	var out []Occurrence
	for o := range Expand(c, anchor, rule, opts) {
		out = append(out, o)
	}
	return out
}

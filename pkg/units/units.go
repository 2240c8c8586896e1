// Package units holds the fixed ratios of the Zeilumara calendar.
//
// The calendar is a positional numeral system over time. Its finest unit,
// the yaon, is a tiny fixed fraction of a linear second. Each coarser level
// groups a fixed count (the radix) of the level below it:
//
//	432000 yaon     = 1 beat      (lumibeat)
//	64 beats        = 1 weave     (mindlace)
//	6 weaves        = 1 loop      (reverloop)
//	9 loops         = 1 dreamday  (dreamdiem)
//	7 dreamdays     = 1 archive   (yuxi)
//	360 archives    = 1 era       (yaogen)
//
// A separate "visible beat" (xingbeat) of 1000 beats is a display unit
// that sits outside the hierarchy.
//
// Every compound size is derived by multiplication when a Table is built.
// Nothing is inferred at runtime.
package units

import (
	"errors"
	"fmt"
)

// Calendar constants.
const (
	YaonSeconds         = 1.036e-43
	YaonPerBeat         = 432_000
	BeatsPerWeave       = 64
	WeavesPerLoop       = 6
	LoopsPerDreamday    = 9
	DreamdaysPerArchive = 7
	ArchivesPerEra      = 360
	BeatsPerVisibleBeat = 1000
)

// Level identifies one position in the hierarchy, finest first.
type Level int

const (
	Yaon Level = iota
	Beat
	Weave
	Loop
	Dreamday
	Archive
	Era
)

// NumLevels is the number of hierarchy levels, Yaon through Era.
const NumLevels = int(Era) + 1

var levelNames = [NumLevels]string{"yaon", "beat", "weave", "loop", "dreamday", "archive", "era"}

func (l Level) String() string {
	if l < Yaon || l > Era {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l names a hierarchy level.
func (l Level) Valid() bool { return l >= Yaon && l <= Era }

var (
	ErrInvalidRadix    = errors.New("units: radix must be at least 1")
	ErrInvalidBaseUnit = errors.New("units: base unit duration must be positive")
)

// Config describes a unit table. Radices[l] is the number of level-l units
// in one unit of level l+1.
type Config struct {
	BaseSeconds         float64
	Radices             [NumLevels - 1]int64
	BeatsPerVisibleBeat int64
}

// DefaultConfig returns the Zeilumara calendar constants.
func DefaultConfig() Config {
	return Config{
		BaseSeconds: YaonSeconds,
		Radices: [NumLevels - 1]int64{
			YaonPerBeat,
			BeatsPerWeave,
			WeavesPerLoop,
			LoopsPerDreamday,
			DreamdaysPerArchive,
			ArchivesPerEra,
		},
		BeatsPerVisibleBeat: BeatsPerVisibleBeat,
	}
}

// Table is a validated, read-only unit table. Safe for concurrent use.
type Table struct {
	base    float64
	radix   [NumLevels - 1]int64
	size    [NumLevels]float64 // base units per one unit of each level
	visible float64            // base units per visible beat
}

// Default is the standard Zeilumara table.
var Default = mustNew(DefaultConfig())

// New validates cfg and derives the compound sizes.
func New(cfg Config) (*Table, error) {
	if !(cfg.BaseSeconds > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidBaseUnit, cfg.BaseSeconds)
	}
	for i, r := range cfg.Radices {
		if r < 1 {
			return nil, fmt.Errorf("%w: %s radix is %d", ErrInvalidRadix, Level(i), r)
		}
	}
	if cfg.BeatsPerVisibleBeat < 1 {
		return nil, fmt.Errorf("%w: visible beat is %d beats", ErrInvalidRadix, cfg.BeatsPerVisibleBeat)
	}

	t := &Table{base: cfg.BaseSeconds, radix: cfg.Radices}
	t.size[Yaon] = 1
	for l := Beat; l <= Era; l++ {
		t.size[l] = t.size[l-1] * float64(t.radix[l-1])
	}
	t.visible = t.size[Beat] * float64(cfg.BeatsPerVisibleBeat)
	return t, nil
}

func mustNew(cfg Config) *Table {
	t, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// BaseSeconds returns the duration of one yaon in linear seconds.
func (t *Table) BaseSeconds() float64 { return t.base }

// Radix returns how many units of l make one unit of the next coarser
// level. Era has no coarser level and reports 0.
func (t *Table) Radix(l Level) int64 {
	if l < Yaon || l >= Era {
		return 0
	}
	return t.radix[l]
}

// Size returns the number of base units in one unit of l.
func (t *Table) Size(l Level) float64 {
	if !l.Valid() {
		return 0
	}
	return t.size[l]
}

// UnitSeconds returns the duration of one unit of l in linear seconds.
func (t *Table) UnitSeconds(l Level) float64 { return t.Size(l) * t.base }

// VisibleBeatSize returns the number of base units in one visible beat.
func (t *Table) VisibleBeatSize() float64 { return t.visible }

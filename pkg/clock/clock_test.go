package clock

import (
	"math"
	"sync"
	"testing"

	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/units"
)

const epoch = model.DefaultEpoch

// civilTable makes the hierarchy read like seconds, minutes, hours, days,
// weeks and four-week months so expectations can be written by hand.
func civilTable(t *testing.T) *units.Table {
	t.Helper()
	tbl, err := units.New(units.Config{
		BaseSeconds:         1,
		Radices:             [units.NumLevels - 1]int64{60, 60, 24, 7, 4, 12},
		BeatsPerVisibleBeat: 10,
	})
	if err != nil {
		t.Fatalf("units.New: %v", err)
	}
	return tbl
}

func TestEpochIsZero(t *testing.T) {
	e := New(epoch, nil)
	got := e.ToStructured(e.Epoch())
	if got != (model.StructuredTime{}) {
		t.Fatalf("ToStructured(epoch) = %+v, want all zero", got)
	}
	if math.Signbit(got.Era) || math.Signbit(got.VisibleBeat) {
		t.Fatal("epoch fields should not be negative zero")
	}
}

func TestRoundTripDefaultTable(t *testing.T) {
	e := New(epoch, nil)
	const year = 365.25 * 86400
	offsets := []float64{
		-100 * year, -86400, -1, -0.25,
		0, 1, 3600, 86400, 604800, 2592000,
		30 * year, 100 * year,
	}
	for _, off := range offsets {
		in := epoch + model.LinearTime(off)
		got := e.ToLinear(e.ToStructured(in))
		if d := math.Abs(float64(got - in)); d > 1.0 {
			t.Errorf("round trip at offset %g: got %v, want %v (diff %g)", off, got, in, d)
		}
	}
}

func TestRoundTripCoarseTableExact(t *testing.T) {
	e := New(epoch, civilTable(t))
	for _, off := range []int64{0, 1, 59, 60, 3599, 86399, 604801, 29030400, 36047167, -1, -61, -86401, -29030401} {
		in := epoch + model.LinearTime(off)
		if got := e.ToLinear(e.ToStructured(in)); got != in {
			t.Errorf("offset %d: round trip got %v, want %v", off, got, in)
		}
	}
}

func TestToStructuredCoarseTable(t *testing.T) {
	e := New(epoch, civilTable(t))
	// 1 era + 2 archives + 3 dreamdays + 4 loops + 5 weaves + 6 beats + 7 yaon
	got := e.ToStructured(epoch + 36047167)
	want := model.StructuredTime{
		Era: 1, Archive: 2, Dreamday: 3, Loop: 4, Weave: 5, Beat: 6, Yaon: 7,
		VisibleBeat: 60078, // 36047167 / 600
	}
	if got != want {
		t.Fatalf("ToStructured = %+v, want %+v", got, want)
	}
}

func TestNegativeTimeUsesEuclideanRemainder(t *testing.T) {
	e := New(epoch, civilTable(t))
	got := e.ToStructured(epoch - 1)
	want := model.StructuredTime{
		Era: -1, Archive: 11, Dreamday: 3, Loop: 6, Weave: 23, Beat: 59, Yaon: 59,
		VisibleBeat: 0,
	}
	if got != want {
		t.Fatalf("one second before epoch = %+v, want %+v", got, want)
	}
}

func TestVisibleBeatTruncatesBeforeEpoch(t *testing.T) {
	e := New(epoch, civilTable(t))
	tests := []struct {
		off  float64
		want float64
	}{
		{-100, 0},
		{-599, 0},
		{-600, -1},
		{-601, -1},
		{-1199, -1},
		{-1200, -2},
		{599, 0},
		{600, 1},
	}
	for _, tt := range tests {
		got := e.ToStructured(epoch + model.LinearTime(tt.off)).VisibleBeat
		if got != tt.want {
			t.Errorf("offset %v: visible beat = %v, want %v", tt.off, got, tt.want)
		}
		if math.Signbit(got) {
			t.Errorf("offset %v: visible beat is negative zero", tt.off)
		}
	}
}

func TestSubYaonBeforeEpochTruncatesToZero(t *testing.T) {
	e := New(epoch, civilTable(t))
	got := e.ToStructured(epoch - 0.5)
	if got != (model.StructuredTime{}) {
		t.Fatalf("half a yaon before epoch = %+v, want all zero", got)
	}
}

func TestFieldRangeInvariant(t *testing.T) {
	engines := map[string]*Engine{
		"default": New(epoch, nil),
		"civil":   New(epoch, civilTable(t)),
	}
	for name, e := range engines {
		t.Run(name, func(t *testing.T) {
			for i := -500; i <= 500; i++ {
				off := float64(i) * 7919.37 // arbitrary stride
				s := e.ToStructured(epoch + model.LinearTime(off))
				if !s.Normalized(e.Units()) {
					t.Fatalf("offset %g: fields out of range: %+v", off, s)
				}
				if s.Era != math.Trunc(s.Era) {
					t.Fatalf("offset %g: era not integral: %v", off, s.Era)
				}
			}
		})
	}
}

func TestPreEpochFieldsNeverNegative(t *testing.T) {
	e := New(epoch, nil)
	for _, off := range []float64{-1e-40, -1, -3600, -86400 * 365, -3e9} {
		s := e.ToStructured(epoch + model.LinearTime(off))
		for l := units.Yaon; l < units.Era; l++ {
			if s.Digit(l) < 0 {
				t.Fatalf("offset %g: %s = %d", off, l, s.Digit(l))
			}
		}
	}
}

func TestOneFullBeatCycleRollsWeave(t *testing.T) {
	// A power-of-two base unit keeps every product exact while the
	// radices stay at their defaults.
	cfg := units.DefaultConfig()
	cfg.BaseSeconds = 1.0 / 1024
	tbl, err := units.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e := New(0, tbl)

	before := e.ToStructured(model.LinearTime(63 * 432000.0 / 1024))
	if before.Beat != 63 || before.Weave != 0 {
		t.Fatalf("63 beats: got beat=%d weave=%d", before.Beat, before.Weave)
	}

	got := e.ToStructured(model.LinearTime(64 * 432000.0 / 1024))
	want := model.StructuredTime{Weave: 1}
	want.VisibleBeat = 0
	if got != want {
		t.Fatalf("64 beats: got %+v, want %+v", got, want)
	}
}

func TestVisibleBeatIsIndependent(t *testing.T) {
	e := New(epoch, civilTable(t))
	s := e.ToStructured(epoch + 36047167)
	moved := s
	moved.VisibleBeat += 1000
	if e.ToLinear(s) != e.ToLinear(moved) {
		t.Fatal("ToLinear should ignore VisibleBeat")
	}
}

func TestFarFutureHasEra(t *testing.T) {
	e := New(epoch, nil)
	s := e.ToStructured(epoch + 100*365.25*86400)
	if s.Era <= 0 {
		t.Fatalf("100 years out: era = %v, want > 0", s.Era)
	}
	if s.VisibleBeat <= 0 {
		t.Fatalf("100 years out: visible beat = %v, want > 0", s.VisibleBeat)
	}
}

func TestSecondsSinceEpoch(t *testing.T) {
	e := New(epoch, nil)
	if got := e.SecondsSinceEpoch(epoch - 86400); got != -86400 {
		t.Fatalf("one day before: got %v, want -86400", got)
	}
}

func TestDistinctEpochsDistinctEngines(t *testing.T) {
	a := New(epoch, nil)
	b := New(epoch+86400, nil)
	t0 := epoch + 86400
	if b.ToStructured(t0) != (model.StructuredTime{}) {
		t.Fatal("engine b should read zero at its own epoch")
	}
	if a.ToStructured(t0) == (model.StructuredTime{}) {
		t.Fatal("engine a should not read zero one day after its epoch")
	}
}

func TestConcurrentUse(t *testing.T) {
	e := New(epoch, civilTable(t))
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				in := epoch + model.LinearTime(g*100000+i)
				if got := e.ToLinear(e.ToStructured(in)); got != in {
					t.Errorf("goroutine %d: round trip %v != %v", g, got, in)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

package notify

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/daviddao/zeilumara/pkg/clock"
	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/units"
)

const day = 86400

// newTestScheduler uses a table where a loop is one day and a dreamday one
// week, with "now" pinned to the epoch.
func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *MemoryCenter) {
	t.Helper()
	tbl, err := units.New(units.Config{
		BaseSeconds:         1,
		Radices:             [units.NumLevels - 1]int64{60, 60, 24, 7, 4, 12},
		BeatsPerVisibleBeat: 10,
	})
	if err != nil {
		t.Fatalf("units.New: %v", err)
	}
	center := NewMemoryCenter()
	base := []Option{
		WithClock(func() model.LinearTime { return model.DefaultEpoch }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	s := NewScheduler(clock.New(model.DefaultEpoch, tbl), center, append(base, opts...)...)
	return s, center
}

func event(id string, anchor model.StructuredTime, repeat *model.RepeatRule) model.Event {
	return model.Event{
		ID:                  id,
		Title:               "Tea with " + id,
		Anchor:              anchor,
		Repeat:              repeat,
		NotificationEnabled: true,
	}
}

func pending(t *testing.T, c Center) []Trigger {
	t.Helper()
	p, err := c.PendingTriggers()
	if err != nil {
		t.Fatalf("PendingTriggers: %v", err)
	}
	return p
}

func TestSchedule_BaseTrigger(t *testing.T) {
	s, c := newTestScheduler(t)
	n, err := s.Schedule(event("a", model.StructuredTime{Loop: 1}, nil))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if n != 1 {
		t.Fatalf("added %d, want 1", n)
	}
	p := pending(t, c)
	if len(p) != 1 {
		t.Fatalf("pending %d, want 1", len(p))
	}
	got := p[0]
	if got.ID != "a" || got.EventID != "a" {
		t.Fatalf("ids = %q/%q", got.ID, got.EventID)
	}
	if got.FireAt != model.DefaultEpoch+day {
		t.Fatalf("fire at %v, want epoch+1d", got.FireAt)
	}
	if got.Body != DefaultBody {
		t.Fatalf("body = %q", got.Body)
	}
	if got.ZTime != "D0 R1 M0 L0" {
		t.Fatalf("z time = %q", got.ZTime)
	}
	if got.Repeat != "" || got.Occurrence != 0 {
		t.Fatalf("base trigger repeat=%q occurrence=%d", got.Repeat, got.Occurrence)
	}
}

func TestSchedule_NotesBecomeBody(t *testing.T) {
	s, c := newTestScheduler(t)
	ev := event("a", model.StructuredTime{Loop: 1}, nil)
	notes := "bring the good cups"
	ev.Notes = &notes
	if _, err := s.Schedule(ev); err != nil {
		t.Fatal(err)
	}
	if got := pending(t, c)[0].Body; got != notes {
		t.Fatalf("body = %q, want %q", got, notes)
	}
}

func TestSchedule_CivilRepeatIsNative(t *testing.T) {
	s, c := newTestScheduler(t)
	n, err := s.Schedule(event("a", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.FrequencyWeekly, Interval: 1}))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("added %d, want 1", n)
	}
	if got := pending(t, c)[0].Repeat; got != model.FrequencyWeekly {
		t.Fatalf("repeat = %q, want weekly", got)
	}
}

func TestSchedule_AlternateRepeatExpands(t *testing.T) {
	s, c := newTestScheduler(t)
	n, err := s.Schedule(event("a", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1}))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1+DefaultMaxPerSeries {
		t.Fatalf("added %d, want %d", n, 1+DefaultMaxPerSeries)
	}
	p := pending(t, c)
	if p[0].ID != "a" {
		t.Fatalf("first trigger %q, want base", p[0].ID)
	}
	if p[1].ID != "a_repeat_1" || p[1].Occurrence != 1 || p[1].FireAt != model.DefaultEpoch+2*day {
		t.Fatalf("first repeat = %+v", p[1])
	}
	last := p[len(p)-1]
	if last.ID != "a_repeat_50" {
		t.Fatalf("last repeat id = %q", last.ID)
	}
	for _, tr := range p[1:] {
		if tr.Repeat != "" {
			t.Fatalf("%s: repeat triggers fire once, got repeat %q", tr.ID, tr.Repeat)
		}
	}
}

func TestSchedule_EndBoundLimitsRepeats(t *testing.T) {
	s, c := newTestScheduler(t)
	end := model.DefaultEpoch + 3.5*day
	if _, err := s.Schedule(event("a", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1, End: &end})); err != nil {
		t.Fatal(err)
	}
	if got := len(pending(t, c)); got != 3 {
		t.Fatalf("pending %d, want base + 2 repeats", got)
	}
}

func TestSchedule_SkipsPastAndDisabled(t *testing.T) {
	s, c := newTestScheduler(t)

	if n, err := s.Schedule(event("epoch", model.StructuredTime{}, nil)); err != nil || n != 0 {
		t.Fatalf("anchor at now: n=%d err=%v", n, err)
	}

	off := event("off", model.StructuredTime{Loop: 1}, nil)
	off.NotificationEnabled = false
	if n, err := s.Schedule(off); err != nil || n != 0 {
		t.Fatalf("disabled: n=%d err=%v", n, err)
	}

	later, _ := newTestScheduler(t, WithClock(func() model.LinearTime { return model.DefaultEpoch + 2*day }))
	if n, err := later.Schedule(event("past", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1})); err != nil || n != 0 {
		t.Fatalf("past anchor: n=%d err=%v", n, err)
	}

	if got := len(pending(t, c)); got != 0 {
		t.Fatalf("pending %d, want 0", got)
	}
}

func TestSchedule_Quota(t *testing.T) {
	s, c := newTestScheduler(t, WithLimits(Limits{MaxPending: 10}))
	n, err := s.Schedule(event("a", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1}))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if n != 10 {
		t.Fatalf("added %d, want 10", n)
	}
	if got := len(pending(t, c)); got != 10 {
		t.Fatalf("pending %d, want 10", got)
	}
	if s.Limits().MaxPerSeries != DefaultMaxPerSeries {
		t.Fatalf("per-series cap changed to %d", s.Limits().MaxPerSeries)
	}
}

func TestSchedule_PerSeriesCap(t *testing.T) {
	s, c := newTestScheduler(t, WithLimits(Limits{MaxPerSeries: 5}))
	if _, err := s.Schedule(event("a", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.EveryBeat, Interval: 1})); err != nil {
		t.Fatal(err)
	}
	if got := len(pending(t, c)); got != 6 {
		t.Fatalf("pending %d, want 6", got)
	}
}

func TestSchedule_RepeatCallReplacesOwnTriggers(t *testing.T) {
	s, c := newTestScheduler(t, WithLimits(Limits{MaxPending: 8, MaxPerSeries: 5}))
	ev := event("a", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1})
	if _, err := s.Schedule(ev); err != nil {
		t.Fatal(err)
	}
	n, err := s.Schedule(ev)
	if err != nil {
		t.Fatalf("second Schedule: %v", err)
	}
	if n != 6 {
		t.Fatalf("added %d, want 6", n)
	}
	if got := len(pending(t, c)); got != 6 {
		t.Fatalf("pending %d, want 6", got)
	}

	if _, err := s.Schedule(event("b", model.StructuredTime{Loop: 2}, &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1})); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("other series: err = %v, want ErrQuotaExceeded", err)
	}
}

func TestCancel_RemovesOnlyThatSeries(t *testing.T) {
	s, c := newTestScheduler(t)
	rule := &model.RepeatRule{Frequency: model.EveryDreamday, Interval: 1}
	if _, err := s.Schedule(event("a", model.StructuredTime{Loop: 1}, rule)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(event("ab", model.StructuredTime{Loop: 2}, nil)); err != nil {
		t.Fatal(err)
	}

	if err := s.Cancel("a"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	p := pending(t, c)
	if len(p) != 1 || p[0].ID != "ab" {
		t.Fatalf("pending after cancel = %v", ids(p))
	}
}

func TestCancelAll(t *testing.T) {
	s, c := newTestScheduler(t)
	s.Schedule(event("a", model.StructuredTime{Loop: 1}, nil))
	s.Schedule(event("b", model.StructuredTime{Loop: 2}, nil))
	if err := s.CancelAll(); err != nil {
		t.Fatal(err)
	}
	if got := len(pending(t, c)); got != 0 {
		t.Fatalf("pending %d, want 0", got)
	}
}

func TestReschedule_DropsStaleRepeats(t *testing.T) {
	s, c := newTestScheduler(t)
	ev := event("a", model.StructuredTime{Loop: 1}, &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1})
	if _, err := s.Schedule(ev); err != nil {
		t.Fatal(err)
	}
	ev.Repeat = nil
	n, err := s.Reschedule(ev)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(pending(t, c)) != 1 {
		t.Fatalf("after reschedule n=%d pending=%d, want 1/1", n, len(pending(t, c)))
	}
}

func TestRescheduleAll(t *testing.T) {
	s, c := newTestScheduler(t)
	c.AddTrigger(Trigger{ID: "stale", FireAt: 1})

	events := []model.Event{
		event("a", model.StructuredTime{Loop: 1}, nil),
		event("b", model.StructuredTime{Loop: 2}, &model.RepeatRule{Frequency: model.FrequencyDaily, Interval: 1}),
		event("c", model.StructuredTime{}, nil), // at now, skipped
	}
	n, err := s.RescheduleAll(events)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("scheduled %d, want 2", n)
	}
	got := strings.Join(ids(pending(t, c)), ",")
	if got != "a,b" {
		t.Fatalf("pending = %s, want a,b", got)
	}
}

func TestRescheduleAll_StopsAtQuota(t *testing.T) {
	s, _ := newTestScheduler(t, WithLimits(Limits{MaxPending: 3}))
	rule := &model.RepeatRule{Frequency: model.EveryLoop, Interval: 1}
	events := []model.Event{
		event("a", model.StructuredTime{Loop: 1}, rule),
		event("b", model.StructuredTime{Loop: 2}, rule),
	}
	n, err := s.RescheduleAll(events)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if n != 3 {
		t.Fatalf("scheduled %d, want 3", n)
	}
}

func ids(ts []Trigger) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/recur"
)

// Scheduler projects events into a Center.
type Scheduler struct {
	engine  recur.Converter
	center  Center
	limits  Limits
	horizon time.Duration
	now     func() model.LinearTime
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLimits overrides the pending and per-series caps. Non-positive
// fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(s *Scheduler) {
		if l.MaxPending > 0 {
			s.limits.MaxPending = l.MaxPending
		}
		if l.MaxPerSeries > 0 {
			s.limits.MaxPerSeries = l.MaxPerSeries
		}
	}
}

// WithHorizon bounds how far ahead repeats are projected.
func WithHorizon(d time.Duration) Option {
	return func(s *Scheduler) { s.horizon = d }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() model.LinearTime) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler returns a scheduler that converts anchors with engine and
// registers triggers in center.
func NewScheduler(engine recur.Converter, center Center, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine:  engine,
		center:  center,
		limits:  DefaultLimits(),
		horizon: recur.DefaultHorizon,
		now:     model.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Limits returns the caps in effect.
func (s *Scheduler) Limits() Limits { return s.limits }

// Schedule registers the triggers for ev and returns how many were added.
// Disabled events and anchors at or before now add nothing. Triggers already
// pending for ev are replaced in place and do not count against the quota.
// Schedule does not remove repeats a shorter series no longer produces; use
// Reschedule for that.
func (s *Scheduler) Schedule(ev model.Event) (int, error) {
	if !ev.NotificationEnabled {
		return 0, nil
	}
	now := s.now()
	fireAt := ev.FireAt(s.engine)
	if fireAt <= now {
		s.logger.Debug("skipping past event",
			slog.String("event", ev.ID),
			slog.String("title", ev.Title))
		return 0, nil
	}

	pending, err := s.center.PendingTriggers()
	if err != nil {
		return 0, fmt.Errorf("pending triggers: %w", err)
	}
	used := 0
	for _, t := range pending {
		if t.EventID != ev.ID {
			used++
		}
	}

	body := DefaultBody
	if ev.Notes != nil && *ev.Notes != "" {
		body = *ev.Notes
	}

	base := Trigger{
		ID:      ev.ID,
		EventID: ev.ID,
		FireAt:  fireAt,
		Title:   ev.Title,
		Body:    body,
		ZTime:   ev.Anchor.Compact(),
	}
	if ev.Repeat != nil && ev.Repeat.Frequency.IsCivil() {
		base.Repeat = ev.Repeat.Frequency
	}
	if err := s.add(&used, base); err != nil {
		return 0, err
	}
	added := 1

	if ev.Repeat != nil && ev.Repeat.Frequency.IsAlternate() {
		opts := recur.Options{
			MaxOccurrences: s.limits.MaxPerSeries,
			Horizon:        s.horizon,
			Now:            now,
		}
		for o := range recur.Expand(s.engine, ev.Anchor, *ev.Repeat, opts) {
			t := base
			t.ID = RepeatID(ev.ID, o.Index)
			t.FireAt = o.At
			t.Occurrence = o.Index
			t.ZTime = o.Time.Compact()
			if err := s.add(&used, t); err != nil {
				return added, err
			}
			added++
		}
	}

	s.logger.Info("scheduled event",
		slog.String("event", ev.ID),
		slog.String("title", ev.Title),
		slog.Int("triggers", added),
		slog.Time("fire_at", fireAt.Time()))
	return added, nil
}

func (s *Scheduler) add(used *int, t Trigger) error {
	if *used >= s.limits.MaxPending {
		s.logger.Warn("trigger quota reached",
			slog.String("trigger", t.ID),
			slog.Int("max_pending", s.limits.MaxPending))
		return fmt.Errorf("add %s: %w", t.ID, ErrQuotaExceeded)
	}
	if err := s.center.AddTrigger(t); err != nil {
		return fmt.Errorf("add %s: %w", t.ID, err)
	}
	*used++
	return nil
}

// Cancel removes the base trigger and every repeat trigger of an event.
func (s *Scheduler) Cancel(eventID string) error {
	if err := s.center.RemoveTriggers(eventID); err != nil {
		return fmt.Errorf("cancel %s: %w", eventID, err)
	}
	if err := s.center.RemoveTriggersWithPrefix(SeriesPrefix(eventID)); err != nil {
		return fmt.Errorf("cancel %s repeats: %w", eventID, err)
	}
	return nil
}

// CancelAll empties the center.
func (s *Scheduler) CancelAll() error {
	if err := s.center.RemoveAllTriggers(); err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	return nil
}

// Reschedule replaces the triggers of one event.
func (s *Scheduler) Reschedule(ev model.Event) (int, error) {
	if err := s.Cancel(ev.ID); err != nil {
		return 0, err
	}
	return s.Schedule(ev)
}

// RescheduleAll clears the center and schedules events in order. Errors
// for individual events are joined; scheduling stops once the quota is
// exhausted.
func (s *Scheduler) RescheduleAll(events []model.Event) (int, error) {
	if err := s.CancelAll(); err != nil {
		return 0, err
	}
	var (
		total int
		errs  []error
	)
	for _, ev := range events {
		n, err := s.Schedule(ev)
		total += n
		if err != nil {
			errs = append(errs, err)
			if errors.Is(err, ErrQuotaExceeded) {
				break
			}
		}
	}
	s.logger.Info("rescheduled events",
		slog.Int("events", len(events)),
		slog.Int("triggers", total))
	return total, errors.Join(errs...)
}

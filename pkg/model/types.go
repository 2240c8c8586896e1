// Package model defines the core domain types for Zeilumara time.
//
// Two time axes meet here:
//
//   - LinearTime: ordinary elapsed seconds since the Unix epoch, the axis
//     every human clock and notification trigger lives on.
//
//   - StructuredTime: the same instant written as a mixed-radix numeral in
//     the Zeilumara hierarchy (era, archive, dreamday, loop, weave, beat,
//     yaon), plus an independent visible-beat counter used for display.
//
// Values are immutable in practice: every conversion returns a fresh value
// and nothing here holds shared state.
package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/zeilumara/pkg/units"
)

// LinearTime is elapsed seconds since 1970-01-01T00:00:00Z.
type LinearTime float64

// DefaultEpoch is 2025-01-01T00:00:00Z.
const DefaultEpoch LinearTime = 1735689600

// FromTime converts a wall-clock time to LinearTime.
func FromTime(t time.Time) LinearTime {
	return LinearTime(float64(t.Unix()) + float64(t.Nanosecond())/1e9)
}

// Now returns the current LinearTime.
func Now() LinearTime { return FromTime(time.Now()) }

// Time converts back to a UTC wall-clock time. Values far outside the
// time.Time range are clamped by the conversion and lose meaning.
func (t LinearTime) Time() time.Time {
	sec, frac := math.Modf(float64(t))
	if frac < 0 {
		sec--
		frac++
	}
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// ParseLinearTime accepts "now", Unix seconds ("1735689600.5") or an
// RFC 3339 timestamp.
func ParseLinearTime(s string) (LinearTime, error) {
	s = strings.TrimSpace(s)
	if s == "now" {
		return Now(), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("time must be finite: %q", s)
		}
		return LinearTime(f), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: want unix seconds or RFC 3339", s)
	}
	return FromTime(t), nil
}

// Sub returns the duration t-u.
func (t LinearTime) Sub(u LinearTime) time.Duration {
	return time.Duration((float64(t) - float64(u)) * float64(time.Second))
}

// Add returns t+d.
func (t LinearTime) Add(d time.Duration) LinearTime {
	return t + LinearTime(d.Seconds())
}

// StructuredTime is one instant in Zeilumara notation.
//
// Archive through Yaon are digits: forward conversion keeps each in
// [0, radix). Era is the unbounded leading digit and may be negative before
// the epoch. Era and VisibleBeat hold integral values in float64 because
// with the default near-Planck base unit present-day instants sit around
// 1e38 eras, far past int64.
type StructuredTime struct {
	Era         float64 `json:"era" toml:"era"`
	Archive     int64   `json:"archive" toml:"archive"`
	Dreamday    int64   `json:"dreamday" toml:"dreamday"`
	Loop        int64   `json:"loop" toml:"loop"`
	Weave       int64   `json:"weave" toml:"weave"`
	Beat        int64   `json:"beat" toml:"beat"`
	Yaon        int64   `json:"yaon" toml:"yaon"`
	VisibleBeat float64 `json:"visible_beat" toml:"visible_beat"`
}

// Digit returns the field at a sub-era level. Era is not a digit; use the
// Era field directly.
func (s StructuredTime) Digit(l units.Level) int64 {
	switch l {
	case units.Yaon:
		return s.Yaon
	case units.Beat:
		return s.Beat
	case units.Weave:
		return s.Weave
	case units.Loop:
		return s.Loop
	case units.Dreamday:
		return s.Dreamday
	case units.Archive:
		return s.Archive
	}
	return 0
}

// WithDigit returns a copy of s with the sub-era field at l set to v.
func (s StructuredTime) WithDigit(l units.Level, v int64) StructuredTime {
	switch l {
	case units.Yaon:
		s.Yaon = v
	case units.Beat:
		s.Beat = v
	case units.Weave:
		s.Weave = v
	case units.Loop:
		s.Loop = v
	case units.Dreamday:
		s.Dreamday = v
	case units.Archive:
		s.Archive = v
	}
	return s
}

// Normalized reports whether every sub-era digit lies in [0, radix) for
// the given table.
func (s StructuredTime) Normalized(t *units.Table) bool {
	for l := units.Yaon; l < units.Era; l++ {
		d := s.Digit(l)
		if d < 0 || d >= t.Radix(l) {
			return false
		}
	}
	return true
}

// Frequency names how an event repeats.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	EveryBeat        Frequency = "every_beat"
	EveryWeave       Frequency = "every_weave"
	EveryLoop        Frequency = "every_loop"
	EveryDreamday    Frequency = "every_dreamday"
	EveryArchive     Frequency = "every_archive"
	EveryEra         Frequency = "every_era"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Frequencies lists every known frequency in display order.
var Frequencies = []Frequency{
	FrequencyNone,
	EveryBeat, EveryWeave, EveryLoop, EveryDreamday, EveryArchive, EveryEra,
	FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
}

var frequencyLevels = map[Frequency]units.Level{
	EveryBeat:     units.Beat,
	EveryWeave:    units.Weave,
	EveryLoop:     units.Loop,
	EveryDreamday: units.Dreamday,
	EveryArchive:  units.Archive,
	EveryEra:      units.Era,
}

var frequencyNames = map[Frequency]string{
	FrequencyNone:    "None",
	EveryBeat:        "Every Lumibeat",
	EveryWeave:       "Every Mindlace",
	EveryLoop:        "Every Reverloop",
	EveryDreamday:    "Every Dreamdiem",
	EveryArchive:     "Every Yuxi",
	EveryEra:         "Every Yaogen",
	FrequencyDaily:   "Daily (Human)",
	FrequencyWeekly:  "Weekly (Human)",
	FrequencyMonthly: "Monthly (Human)",
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	_, ok := frequencyNames[f]
	return ok
}

// DisplayName returns the human label, e.g. "Every Reverloop".
func (f Frequency) DisplayName() string {
	if n, ok := frequencyNames[f]; ok {
		return n
	}
	return string(f)
}

// Level returns the hierarchy level an alternate-calendar frequency steps.
// Civil frequencies and none report false.
func (f Frequency) Level() (units.Level, bool) {
	l, ok := frequencyLevels[f]
	return l, ok
}

// IsAlternate reports whether f steps through the Zeilumara hierarchy.
func (f Frequency) IsAlternate() bool {
	_, ok := frequencyLevels[f]
	return ok
}

// IsCivil reports whether f is a human-calendar repeat, left to the
// notification center's native recurring triggers.
func (f Frequency) IsCivil() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// ParseFrequency accepts either the identifier ("every_loop") or the
// display name ("Every Reverloop").
func ParseFrequency(s string) (Frequency, error) {
	if f := Frequency(s); f.Valid() {
		return f, nil
	}
	for f, name := range frequencyNames {
		if name == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

var (
	ErrInvalidInterval  = errors.New("repeat interval must be at least 1")
	ErrInvalidFrequency = errors.New("unknown repeat frequency")
	ErrInvalidEvent     = errors.New("invalid event")
)

// RepeatRule describes how an event recurs. An End earlier than the
// event's anchor is allowed and simply produces no occurrences.
type RepeatRule struct {
	Frequency Frequency   `json:"frequency" toml:"frequency"`
	Interval  int64       `json:"interval" toml:"interval"`
	End       *LinearTime `json:"end,omitempty" toml:"end,omitempty"`
}

// Validate rejects rules that cannot be expanded.
func (r RepeatRule) Validate() error {
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, r.Interval)
	}
	return nil
}

// Converter maps structured time onto the linear axis. *clock.Engine
// satisfies it.
type Converter interface {
	ToLinear(StructuredTime) LinearTime
}

// Event is a scheduled event anchored in Zeilumara time. The core never
// stores events; callers own them.
type Event struct {
	ID                  string         `json:"id" toml:"id"`
	Title               string         `json:"title" toml:"title"`
	Notes               *string        `json:"notes,omitempty" toml:"notes,omitempty"`
	Anchor              StructuredTime `json:"anchor" toml:"anchor"`
	Repeat              *RepeatRule    `json:"repeat,omitempty" toml:"repeat,omitempty"`
	NotificationEnabled bool           `json:"notification_enabled" toml:"notification_enabled"`
	CreatedAt           LinearTime     `json:"created_at" toml:"created_at"`
	CalendarEventID     *string        `json:"calendar_event_id,omitempty" toml:"calendar_event_id,omitempty"`
}

// NewEventID returns a time-ordered UUIDv7 string.
func NewEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy failure; fall back to a random v4.
		return uuid.NewString()
	}
	return id.String()
}

// Validate checks the invariants the store and scheduler rely on.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Title == "" {
		return fmt.Errorf("%w %s: missing title", ErrInvalidEvent, e.ID)
	}
	if !e.Anchor.Normalized(units.Default) {
		return fmt.Errorf("%w %s: anchor field out of range", ErrInvalidEvent, e.ID)
	}
	if e.Repeat != nil {
		if err := e.Repeat.Validate(); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
	}
	return nil
}

// FireAt returns the anchor's linear time under c.
func (e Event) FireAt(c Converter) LinearTime { return c.ToLinear(e.Anchor) }

// IsPast reports whether the anchor lies strictly before now.
func (e Event) IsPast(c Converter, now LinearTime) bool { return e.FireAt(c) < now }

// DisplayLanguage selects the unit labels used when formatting.
type DisplayLanguage string

const (
	LanguageChinese   DisplayLanguage = "chinese"
	LanguageRomanized DisplayLanguage = "romanized"
	LanguageBoth      DisplayLanguage = "both"
)

// Theme is the UI theme preference carried in settings.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// Settings is the single user-settings record.
type Settings struct {
	Epoch                      LinearTime      `json:"epoch" toml:"epoch"`
	DisplayLanguage            DisplayLanguage `json:"display_language" toml:"display_language"`
	Use24HourFormat            bool            `json:"use_24_hour_format" toml:"use_24_hour_format"`
	NotificationsEnabled       bool            `json:"notifications_enabled" toml:"notifications_enabled"`
	CalendarIntegrationEnabled bool            `json:"calendar_integration_enabled" toml:"calendar_integration_enabled"`
	Theme                      Theme           `json:"theme" toml:"theme"`
}

// DefaultSettings mirrors a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Epoch:                DefaultEpoch,
		DisplayLanguage:      LanguageRomanized,
		Use24HourFormat:      true,
		NotificationsEnabled: true,
		Theme:                ThemeAuto,
	}
}

// Validate checks enum fields.
func (s Settings) Validate() error {
	switch s.DisplayLanguage {
	case LanguageChinese, LanguageRomanized, LanguageBoth:
	default:
		return fmt.Errorf("unknown display language %q", s.DisplayLanguage)
	}
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		return fmt.Errorf("unknown theme %q", s.Theme)
	}
	if math.IsNaN(float64(s.Epoch)) || math.IsInf(float64(s.Epoch), 0) {
		return fmt.Errorf("epoch must be finite")
	}
	return nil
}

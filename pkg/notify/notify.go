// Package notify turns Zeilumara events into pending notification
// triggers.
//
// A notification center holds triggers keyed by ID. Each event owns one
// base trigger, whose ID is the event ID, and for alternate-calendar
// repeats one trigger per projected occurrence, with IDs of the form
// "<event id>_repeat_<n>". Civil repeats (daily, weekly, monthly) ride on
// the base trigger as a native repeat and are left to the center.
package notify

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/daviddao/zeilumara/pkg/model"
)

const (
	// DefaultMaxPending is the assumed cap on simultaneously pending
	// triggers in the downstream center.
	DefaultMaxPending = 64

	// DefaultMaxPerSeries is the share of DefaultMaxPending a single
	// repeating event may use.
	DefaultMaxPerSeries = 50

	// DefaultBody is used when an event has no notes.
	DefaultBody = "Zeilumara event reminder"

	repeatInfix = "_repeat_"
)

// ErrQuotaExceeded is returned when adding a trigger would exceed
// Limits.MaxPending.
var ErrQuotaExceeded = errors.New("pending trigger quota exceeded")

// Limits caps how many triggers are scheduled.
type Limits struct {
	MaxPending   int `mapstructure:"max_pending" json:"max_pending"`
	MaxPerSeries int `mapstructure:"max_per_series" json:"max_per_series"`
}

// DefaultLimits returns the stock caps.
func DefaultLimits() Limits {
	return Limits{MaxPending: DefaultMaxPending, MaxPerSeries: DefaultMaxPerSeries}
}

// Trigger is one pending notification.
type Trigger struct {
	ID      string           `json:"id"`
	EventID string           `json:"event_id"`
	FireAt  model.LinearTime `json:"fire_at"`
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	// Repeat is a civil frequency the center repeats natively, or empty.
	Repeat model.Frequency `json:"repeat,omitempty"`
	// Occurrence is the 1-based repeat index; 0 for the base trigger.
	Occurrence int    `json:"occurrence,omitempty"`
	ZTime      string `json:"z_time"`
}

// RepeatID returns the trigger ID for occurrence n of an event.
func RepeatID(eventID string, n int) string {
	return eventID + repeatInfix + strconv.Itoa(n)
}

// SeriesPrefix is the ID prefix shared by every repeat trigger of an event.
func SeriesPrefix(eventID string) string { return eventID + repeatInfix }

// Center stores pending triggers. Adding a trigger whose ID already exists
// replaces it.
type Center interface {
	AddTrigger(t Trigger) error
	RemoveTriggers(ids ...string) error
	RemoveTriggersWithPrefix(prefix string) error
	RemoveAllTriggers() error
	PendingTriggers() ([]Trigger, error)
}

// MemoryCenter is an in-process Center. Safe for concurrent use.
type MemoryCenter struct {
	mu       sync.Mutex
	triggers map[string]Trigger
}

// NewMemoryCenter returns an empty center.
func NewMemoryCenter() *MemoryCenter {
	return &MemoryCenter{triggers: make(map[string]Trigger)}
}

var _ Center = (*MemoryCenter)(nil)

func (m *MemoryCenter) AddTrigger(t Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[t.ID] = t
	return nil
}

func (m *MemoryCenter) RemoveTriggers(ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.triggers, id)
	}
	return nil
}

func (m *MemoryCenter) RemoveTriggersWithPrefix(prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.triggers {
		if strings.HasPrefix(id, prefix) {
			delete(m.triggers, id)
		}
	}
	return nil
}

func (m *MemoryCenter) RemoveAllTriggers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.triggers)
	return nil
}

// PendingTriggers returns triggers ordered by fire time, then ID.
func (m *MemoryCenter) PendingTriggers() ([]Trigger, error) {
	m.mu.Lock()
	out := make([]Trigger, 0, len(m.triggers))
	for _, t := range m.triggers {
		out = append(out, t)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt != out[j].FireAt {
			return out[i].FireAt < out[j].FireAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

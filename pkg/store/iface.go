// iface.go defines the StoreInterface for dependency injection and testing.
//
// The cmd layer and the HTTP server accept StoreInterface instead of
// *Store so tests can swap in a fake.
package store

import (
	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/notify"
)

// StoreInterface defines the full set of store operations.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// --- Events ---

	// SaveEvent upserts an event, keeping its position on update.
	SaveEvent(e *model.Event) error

	// SaveEvents upserts a batch atomically.
	SaveEvents(events []model.Event) error

	// GetEvent retrieves an event by ID. Missing IDs wrap ErrNotFound.
	GetEvent(id string) (*model.Event, error)

	// ListEvents returns every event in insertion order.
	ListEvents() ([]model.Event, error)

	// CountEvents returns the number of stored events.
	CountEvents() int64

	// DeleteEvent removes one event. Missing IDs wrap ErrNotFound.
	DeleteEvent(id string) error

	// DeleteAllEvents removes every event.
	DeleteAllEvents() error

	// --- Settings ---

	// LoadSettings returns stored settings or the defaults.
	LoadSettings() (model.Settings, error)

	// SaveSettings replaces the settings record.
	SaveSettings(st model.Settings) error

	// --- Triggers ---

	notify.Center
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)

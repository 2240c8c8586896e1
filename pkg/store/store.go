// Package store manages all SQLite persistence for zeilumara.
//
// One database holds the user's events (in insertion order), the single
// settings record and the pending notification triggers. The store is the
// durable notification center: *Store satisfies notify.Center.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/notify"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp from retry.go with the default config.
func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

// Era and visible_beat are REAL: present-day values exceed int64. created_at
// is LinearTime seconds like repeat_end.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
		id                   TEXT NOT NULL UNIQUE,
		title                TEXT NOT NULL,
		notes                TEXT,
		era                  REAL NOT NULL DEFAULT 0,
		archive              INTEGER NOT NULL DEFAULT 0,
		dreamday             INTEGER NOT NULL DEFAULT 0,
		loop                 INTEGER NOT NULL DEFAULT 0,
		weave                INTEGER NOT NULL DEFAULT 0,
		beat                 INTEGER NOT NULL DEFAULT 0,
		yaon                 INTEGER NOT NULL DEFAULT 0,
		visible_beat         REAL NOT NULL DEFAULT 0,
		repeat_frequency     TEXT,
		repeat_interval      INTEGER,
		repeat_end           REAL,
		notification_enabled INTEGER NOT NULL DEFAULT 1,
		calendar_event_id    TEXT,
		created_at           REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		id                           INTEGER PRIMARY KEY CHECK (id = 1),
		epoch                        REAL NOT NULL,
		display_language             TEXT NOT NULL,
		use_24_hour_format           INTEGER NOT NULL,
		notifications_enabled        INTEGER NOT NULL,
		calendar_integration_enabled INTEGER NOT NULL,
		theme                        TEXT NOT NULL,
		updated_at                   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS triggers (
		id         TEXT PRIMARY KEY,
		event_id   TEXT NOT NULL,
		fire_at    REAL NOT NULL,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		repeat     TEXT NOT NULL DEFAULT '',
		occurrence INTEGER NOT NULL DEFAULT 0,
		z_time     TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_triggers_fire ON triggers(fire_at, id);
	CREATE INDEX IF NOT EXISTS idx_triggers_event ON triggers(event_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

const eventColumns = `id, title, notes, era, archive, dreamday, loop, weave, beat, yaon,
	visible_beat, repeat_frequency, repeat_interval, repeat_end,
	notification_enabled, calendar_event_id, created_at`

const upsertEvent = `INSERT INTO events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	  title = excluded.title,
	  notes = excluded.notes,
	  era = excluded.era,
	  archive = excluded.archive,
	  dreamday = excluded.dreamday,
	  loop = excluded.loop,
	  weave = excluded.weave,
	  beat = excluded.beat,
	  yaon = excluded.yaon,
	  visible_beat = excluded.visible_beat,
	  repeat_frequency = excluded.repeat_frequency,
	  repeat_interval = excluded.repeat_interval,
	  repeat_end = excluded.repeat_end,
	  notification_enabled = excluded.notification_enabled,
	  calendar_event_id = excluded.calendar_event_id,
	  created_at = excluded.created_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func execUpsertEvent(x execer, e *model.Event) error {
	var freq sql.NullString
	var interval sql.NullInt64
	var end sql.NullFloat64
	if e.Repeat != nil {
		freq = sql.NullString{String: string(e.Repeat.Frequency), Valid: true}
		interval = sql.NullInt64{Int64: e.Repeat.Interval, Valid: true}
		if e.Repeat.End != nil {
			end = sql.NullFloat64{Float64: float64(*e.Repeat.End), Valid: true}
		}
	}
	a := e.Anchor
	_, err := x.Exec(upsertEvent,
		e.ID, e.Title, e.Notes,
		a.Era, a.Archive, a.Dreamday, a.Loop, a.Weave, a.Beat, a.Yaon, a.VisibleBeat,
		freq, interval, end,
		boolToInt(e.NotificationEnabled), e.CalendarEventID,
		float64(e.CreatedAt),
	)
	return err
}

// SaveEvent inserts e, or updates it in place if the ID exists. An update
// keeps the event's position in the list.
func (s *Store) SaveEvent(e *model.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = model.Now()
	}
	return retryOnContention(func() error {
		return execUpsertEvent(s.db, e)
	})
}

// SaveEvents upserts every event in one transaction. Either all are saved
// or none are.
func (s *Store) SaveEvents(events []model.Event) error {
	now := model.Now()
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return err
		}
		if events[i].CreatedAt == 0 {
			events[i].CreatedAt = now
		}
	}
	return retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
		for i := range events {
			if err := execUpsertEvent(tx, &events[i]); err != nil {
				return fmt.Errorf("save event %s: %w", events[i].ID, err)
			}
		}
		return tx.Commit()
	})
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(id string) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return e, err
}

// ListEvents returns all events in insertion order.
func (s *Store) ListEvents() ([]model.Event, error) {
	rows, err := s.db.Query(`SELECT ` + eventColumns + ` FROM events ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents() int64 {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// DeleteEvent removes an event. Its triggers are left to the caller.
func (s *Store) DeleteEvent(id string) error {
	var n int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAllEvents removes every event.
func (s *Store) DeleteAllEvents() error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM events`)
		return err
	})
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*model.Event, error) {
	var (
		e        model.Event
		notes    sql.NullString
		freq     sql.NullString
		interval sql.NullInt64
		end      sql.NullFloat64
		enabled  int
		calID    sql.NullString
		created  float64
	)
	a := &e.Anchor
	if err := sc.Scan(&e.ID, &e.Title, &notes,
		&a.Era, &a.Archive, &a.Dreamday, &a.Loop, &a.Weave, &a.Beat, &a.Yaon, &a.VisibleBeat,
		&freq, &interval, &end, &enabled, &calID, &created); err != nil {
		return nil, err
	}
	if notes.Valid {
		e.Notes = &notes.String
	}
	if freq.Valid {
		e.Repeat = &model.RepeatRule{
			Frequency: model.Frequency(freq.String),
			Interval:  interval.Int64,
		}
		if end.Valid {
			t := model.LinearTime(end.Float64)
			e.Repeat.End = &t
		}
	}
	e.NotificationEnabled = enabled != 0
	if calID.Valid {
		e.CalendarEventID = &calID.String
	}
	e.CreatedAt = model.LinearTime(created)
	return &e, nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// LoadSettings returns the stored settings, or model.DefaultSettings if
// none have been saved.
func (s *Store) LoadSettings() (model.Settings, error) {
	var (
		st                     model.Settings
		epoch                  float64
		use24, notif, calendar int
		lang, theme            string
	)
	err := s.db.QueryRow(
		`SELECT epoch, display_language, use_24_hour_format, notifications_enabled,
		        calendar_integration_enabled, theme
		 FROM settings WHERE id = 1`,
	).Scan(&epoch, &lang, &use24, &notif, &calendar, &theme)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return st, err
	}
	st.Epoch = model.LinearTime(epoch)
	st.DisplayLanguage = model.DisplayLanguage(lang)
	st.Use24HourFormat = use24 != 0
	st.NotificationsEnabled = notif != 0
	st.CalendarIntegrationEnabled = calendar != 0
	st.Theme = model.Theme(theme)
	return st, nil
}

// SaveSettings replaces the settings record.
func (s *Store) SaveSettings(st model.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO settings (id, epoch, display_language, use_24_hour_format,
			   notifications_enabled, calendar_integration_enabled, theme, updated_at)
			 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   epoch = excluded.epoch,
			   display_language = excluded.display_language,
			   use_24_hour_format = excluded.use_24_hour_format,
			   notifications_enabled = excluded.notifications_enabled,
			   calendar_integration_enabled = excluded.calendar_integration_enabled,
			   theme = excluded.theme,
			   updated_at = excluded.updated_at`,
			float64(st.Epoch), string(st.DisplayLanguage), boolToInt(st.Use24HourFormat),
			boolToInt(st.NotificationsEnabled), boolToInt(st.CalendarIntegrationEnabled),
			string(st.Theme), now,
		)
		return err
	})
}

// ---------------------------------------------------------------------------
// Triggers (notify.Center)
// ---------------------------------------------------------------------------

// AddTrigger inserts t, replacing any trigger with the same ID.
func (s *Store) AddTrigger(t notify.Trigger) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO triggers (id, event_id, fire_at, title, body, repeat, occurrence, z_time)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   event_id = excluded.event_id,
			   fire_at = excluded.fire_at,
			   title = excluded.title,
			   body = excluded.body,
			   repeat = excluded.repeat,
			   occurrence = excluded.occurrence,
			   z_time = excluded.z_time`,
			t.ID, t.EventID, float64(t.FireAt), t.Title, t.Body,
			string(t.Repeat), t.Occurrence, t.ZTime,
		)
		return err
	})
}

// RemoveTriggers deletes triggers by ID. Unknown IDs are ignored.
func (s *Store) RemoveTriggers(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
		for _, id := range ids {
			if _, err := tx.Exec(`DELETE FROM triggers WHERE id = ?`, id); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// RemoveTriggersWithPrefix deletes every trigger whose ID starts with
// prefix. The match is literal; LIKE wildcards in prefix have no effect.
func (s *Store) RemoveTriggersWithPrefix(prefix string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`DELETE FROM triggers WHERE substr(id, 1, length(?)) = ?`,
			prefix, prefix,
		)
		return err
	})
}

// RemoveAllTriggers empties the trigger table.
func (s *Store) RemoveAllTriggers() error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM triggers`)
		return err
	})
}

// PendingTriggers returns all triggers ordered by fire time, then ID.
func (s *Store) PendingTriggers() ([]notify.Trigger, error) {
	rows, err := s.db.Query(
		`SELECT id, event_id, fire_at, title, body, repeat, occurrence, z_time
		 FROM triggers ORDER BY fire_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Trigger
	for rows.Next() {
		var t notify.Trigger
		var fireAt float64
		var repeat string
		if err := rows.Scan(&t.ID, &t.EventID, &fireAt, &t.Title, &t.Body,
			&repeat, &t.Occurrence, &t.ZTime); err != nil {
			return nil, err
		}
		t.FireAt = model.LinearTime(fireAt)
		t.Repeat = model.Frequency(repeat)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daviddao/zeilumara/pkg/clock"
	"github.com/daviddao/zeilumara/pkg/config"
	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/notify"
	"github.com/daviddao/zeilumara/pkg/store"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg      config.Config
	store    *store.Store
	settings model.Settings
	engine   *clock.Engine
	logger   *slog.Logger

	out     io.Writer
	jsonOut bool
}

// openApp loads config, opens the database and builds the engine for the
// stored epoch. The database directory is created if missing.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	st, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", cfg.DB, err)
	}
	settings, err := st.LoadSettings()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	return &app{
		cfg:      cfg,
		store:    st,
		settings: settings,
		engine:   clock.New(settings.Epoch, nil),
		logger:   logger,
		out:      cmd.OutOrStdout(),
		jsonOut:  jsonOut,
	}, nil
}

// Close releases the database connection.
func (a *app) Close() { a.store.Close() }

func (a *app) scheduler() *notify.Scheduler {
	return notify.NewScheduler(a.engine, a.store,
		notify.WithLimits(a.cfg.Notify.Limits()),
		notify.WithHorizon(a.cfg.Notify.Horizon),
		notify.WithLogger(a.logger))
}

// reschedule replaces one event's triggers. A disabled notifications
// setting only cancels.
func (a *app) reschedule(ev model.Event) (int, error) {
	s := a.scheduler()
	if !a.settings.NotificationsEnabled {
		return 0, s.Cancel(ev.ID)
	}
	return s.Reschedule(ev)
}

// rescheduleAll rebuilds every trigger from the stored events.
func (a *app) rescheduleAll() (int, error) {
	s := a.scheduler()
	if !a.settings.NotificationsEnabled {
		return 0, s.CancelAll()
	}
	events, err := a.store.ListEvents()
	if err != nil {
		return 0, err
	}
	return s.RescheduleAll(events)
}

// printJSON writes v to the command's output as indented JSON.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/daviddao/zeilumara/pkg/clock"
	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/notify"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.jsonOut {
				return a.printJSON(a.settings)
			}
			a.printSettings()
			return nil
		},
	})

	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings; a new epoch reschedules every event",
		Args:  cobra.NoArgs,
		RunE:  runSettingsSet,
	}
	f := set.Flags()
	f.String("epoch", "", "epoch as unix seconds or RFC 3339")
	f.String("language", "", "display language: chinese, romanized or both")
	f.Bool("24h", true, "24-hour clock")
	f.Bool("notifications", true, "schedule reminders")
	f.Bool("calendar", false, "calendar integration")
	f.String("theme", "", "light, dark or auto")
	cmd.AddCommand(set)
	return cmd
}

func (a *app) printSettings() {
	s := a.settings
	a.printf("epoch:         %s (%s)\n", model.FormatCount(float64(s.Epoch)),
		s.Epoch.Time().Format("2006-01-02T15:04:05Z07:00"))
	a.printf("language:      %s\n", s.DisplayLanguage)
	a.printf("24h clock:     %t\n", s.Use24HourFormat)
	a.printf("notifications: %t\n", s.NotificationsEnabled)
	a.printf("calendar:      %t\n", s.CalendarIntegrationEnabled)
	a.printf("theme:         %s\n", s.Theme)
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := cmd.Flags()
	next := a.settings
	if f.Changed("epoch") {
		v, _ := f.GetString("epoch")
		t, err := model.ParseLinearTime(v)
		if err != nil {
			return fmt.Errorf("--epoch: %w", err)
		}
		next.Epoch = t
	}
	if f.Changed("language") {
		v, _ := f.GetString("language")
		next.DisplayLanguage = model.DisplayLanguage(v)
	}
	if f.Changed("24h") {
		next.Use24HourFormat, _ = f.GetBool("24h")
	}
	if f.Changed("notifications") {
		next.NotificationsEnabled, _ = f.GetBool("notifications")
	}
	if f.Changed("calendar") {
		next.CalendarIntegrationEnabled, _ = f.GetBool("calendar")
	}
	if f.Changed("theme") {
		v, _ := f.GetString("theme")
		next.Theme = model.Theme(v)
	}

	prev := a.settings
	if err := a.applySettings(next); err != nil {
		return err
	}
	if next.Epoch != prev.Epoch || next.NotificationsEnabled != prev.NotificationsEnabled {
		n, err := a.rescheduleAll()
		if err != nil && !errors.Is(err, notify.ErrQuotaExceeded) {
			return fmt.Errorf("settings set: schedule: %w", err)
		}
		a.logger.Info("rescheduled after settings change", slog.Int("triggers", n))
	}

	if a.jsonOut {
		return a.printJSON(a.settings)
	}
	a.printSettings()
	return nil
}

// applySettings validates and stores s, swapping the engine when the epoch
// moves. Triggers are not touched.
func (a *app) applySettings(s model.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := a.store.SaveSettings(s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if s.Epoch != a.settings.Epoch {
		a.engine = clock.New(s.Epoch, nil)
	}
	a.settings = s
	return nil
}

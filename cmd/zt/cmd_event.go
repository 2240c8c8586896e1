package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/notify"
	"github.com/daviddao/zeilumara/pkg/recur"
)

func newEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage events anchored in Zeilumara time",
	}
	cmd.AddCommand(
		newEventAddCmd(),
		newEventListCmd(),
		newEventShowCmd(),
		newEventRmCmd(),
		newEventOccurrencesCmd(),
	)
	return cmd
}

func newEventAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an event and schedule its reminders",
		Long: `Create an event. The anchor is --at (ordinary time) or the individual
Zeilumara field flags, which override the matching fields of --at.`,
		Args: cobra.ExactArgs(1),
		RunE: runEventAdd,
	}
	f := cmd.Flags()
	f.String("id", "", "event ID (default: a new UUIDv7)")
	f.String("at", "now", "anchor as unix seconds or RFC 3339")
	addStructuredFlags(f)
	f.String("notes", "", "notes, used as the reminder body")
	f.String("repeat", "", "repeat frequency (every_beat ... every_era, daily, weekly, monthly)")
	f.Int64("interval", 1, "repeat every N units")
	f.String("until", "", "last instant a repeat may fall on")
	f.Bool("no-notify", false, "store the event without reminders")
	return cmd
}

func runEventAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := cmd.Flags()
	ev, err := eventFromFlags(a, cmd, args[0])
	if err != nil {
		return err
	}
	if err := a.store.SaveEvent(&ev); err != nil {
		return fmt.Errorf("event add: %w", err)
	}

	n, err := a.reschedule(ev)
	if err != nil && !errors.Is(err, notify.ErrQuotaExceeded) {
		return fmt.Errorf("event add: schedule: %w", err)
	}

	if a.jsonOut {
		return a.printJSON(map[string]any{
			"event":    ev,
			"fire_at":  ev.FireAt(a.engine),
			"triggers": n,
		})
	}
	a.printf("added %s %q at %s\n", ev.ID, ev.Title, ev.Anchor.Compact())
	if noNotify, _ := f.GetBool("no-notify"); !noNotify {
		a.printf("  %d reminder(s) scheduled\n", n)
	}
	if err != nil {
		a.printf("  notification quota reached; some reminders were not scheduled\n")
	}
	return nil
}

func eventFromFlags(a *app, cmd *cobra.Command, title string) (model.Event, error) {
	f := cmd.Flags()
	at, _ := f.GetString("at")
	t, err := model.ParseLinearTime(at)
	if err != nil {
		return model.Event{}, err
	}
	anchor, err := structuredFromFlags(f, a.engine.ToStructured(t))
	if err != nil {
		return model.Event{}, err
	}

	id, _ := f.GetString("id")
	if id == "" {
		id = model.NewEventID()
	}
	noNotify, _ := f.GetBool("no-notify")
	ev := model.Event{
		ID:                  id,
		Title:               title,
		Anchor:              anchor,
		NotificationEnabled: !noNotify,
	}
	if notes, _ := f.GetString("notes"); notes != "" {
		ev.Notes = &notes
	}

	if rep, _ := f.GetString("repeat"); rep != "" {
		freq, err := model.ParseFrequency(rep)
		if err != nil {
			return model.Event{}, err
		}
		interval, _ := f.GetInt64("interval")
		rule := &model.RepeatRule{Frequency: freq, Interval: interval}
		if until, _ := f.GetString("until"); until != "" {
			end, err := model.ParseLinearTime(until)
			if err != nil {
				return model.Event{}, fmt.Errorf("--until: %w", err)
			}
			rule.End = &end
		}
		ev.Repeat = rule
	}
	return ev, ev.Validate()
}

func newEventListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.store.ListEvents()
			if err != nil {
				return fmt.Errorf("event list: %w", err)
			}
			if a.jsonOut {
				if events == nil {
					events = []model.Event{}
				}
				return a.printJSON(events)
			}
			if len(events) == 0 {
				a.printf("no events\n")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tANCHOR\tWHEN\tREPEAT")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					ev.ID, ev.Title, ev.Anchor.Compact(),
					humanize.Time(ev.FireAt(a.engine).Time()), repeatLabel(ev.Repeat))
			}
			return w.Flush()
		},
	}
}

func repeatLabel(r *model.RepeatRule) string {
	if r == nil || r.Frequency == model.FrequencyNone {
		return "-"
	}
	label := r.Frequency.DisplayName()
	if r.Interval > 1 {
		label = fmt.Sprintf("%s x%d", label, r.Interval)
	}
	return label
}

func newEventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ev, err := a.store.GetEvent(args[0])
			if err != nil {
				return err
			}
			fireAt := ev.FireAt(a.engine)
			if a.jsonOut {
				return a.printJSON(map[string]any{
					"event":   ev,
					"fire_at": fireAt,
					"past":    ev.IsPast(a.engine, model.Now()),
				})
			}
			a.printf("%s  %s\n", ev.ID, ev.Title)
			a.printf("%s\n", ev.Anchor.Format(a.settings.DisplayLanguage))
			a.printf("fires %s (%s)\n", humanClock(fireAt.Time().Local(), a.settings.Use24HourFormat),
				humanize.Time(fireAt.Time()))
			a.printf("repeat: %s\n", repeatLabel(ev.Repeat))
			if ev.Repeat != nil && ev.Repeat.End != nil {
				a.printf("until: %s\n", humanClock(ev.Repeat.End.Time().Local(), a.settings.Use24HourFormat))
			}
			if ev.Notes != nil {
				a.printf("notes: %s\n", *ev.Notes)
			}
			a.printf("reminders: %t\n", ev.NotificationEnabled)
			return nil
		},
	}
}

func newEventRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete events and cancel their reminders",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if !all && len(args) == 0 {
				return fmt.Errorf("event rm: give at least one id, or --all")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.scheduler()
			if all {
				if err := a.store.DeleteAllEvents(); err != nil {
					return fmt.Errorf("event rm: %w", err)
				}
				if err := s.CancelAll(); err != nil {
					return err
				}
				a.printf("deleted all events\n")
				return nil
			}
			for _, id := range args {
				if err := a.store.DeleteEvent(id); err != nil {
					return fmt.Errorf("event rm: %w", err)
				}
				if err := s.Cancel(id); err != nil {
					return err
				}
				a.printf("deleted %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "delete every event")
	return cmd
}

func newEventOccurrencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "occurrences <id>",
		Short: "Project the repeats of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ev, err := a.store.GetEvent(args[0])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("max")
			var occ []recur.Occurrence
			if ev.Repeat != nil {
				occ = recur.Collect(a.engine, ev.Anchor, *ev.Repeat, recur.Options{
					MaxOccurrences: limit,
					Horizon:        a.cfg.Notify.Horizon,
				})
			}
			if a.jsonOut {
				if occ == nil {
					occ = []recur.Occurrence{}
				}
				return a.printJSON(occ)
			}
			if len(occ) == 0 {
				a.printf("no occurrences\n")
				return nil
			}
			for _, o := range occ {
				a.printf("%3d  %s  %s\n", o.Index, o.Time.Compact(),
					humanClock(o.At.Time().Local(), a.settings.Use24HourFormat))
			}
			return nil
		},
	}
	cmd.Flags().Int("max", recur.DefaultMaxOccurrences, "maximum occurrences")
	return cmd
}

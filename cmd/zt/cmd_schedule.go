package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/daviddao/zeilumara/pkg/notify"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and rebuild notification triggers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "sync",
			Short: "Clear every trigger and reschedule all events",
			Args:  cobra.NoArgs,
			RunE:  runScheduleSync,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List pending triggers by fire time",
			Args:  cobra.NoArgs,
			RunE:  runScheduleList,
		},
		&cobra.Command{
			Use:   "cancel <event-id>...",
			Short: "Cancel the triggers of events, keeping the events",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runScheduleCancel,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every pending trigger",
			Args:  cobra.NoArgs,
			RunE:  runScheduleClear,
		},
	)
	return cmd
}

func runScheduleSync(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.rescheduleAll()
	quota := errors.Is(err, notify.ErrQuotaExceeded)
	if err != nil && !quota {
		return fmt.Errorf("schedule sync: %w", err)
	}
	if a.jsonOut {
		return a.printJSON(map[string]any{
			"scheduled":      n,
			"quota_exceeded": quota,
		})
	}
	a.printf("scheduled %d trigger(s)\n", n)
	if quota {
		a.printf("notification quota reached (%d pending max)\n", a.cfg.Notify.MaxPending)
	}
	return nil
}

func runScheduleList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.store.PendingTriggers()
	if err != nil {
		return fmt.Errorf("schedule list: %w", err)
	}
	if a.jsonOut {
		if pending == nil {
			pending = []notify.Trigger{}
		}
		return a.printJSON(pending)
	}
	if len(pending) == 0 {
		a.printf("no pending triggers\n")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRIGGER\tTITLE\tZ\tFIRES\tREPEAT")
	for _, t := range pending {
		repeat := "-"
		if t.Repeat != "" {
			repeat = t.Repeat.DisplayName()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Title, t.ZTime, humanize.Time(t.FireAt.Time()), repeat)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	a.printf("%d of %d slots used\n", len(pending), a.cfg.Notify.MaxPending)
	return nil
}

func runScheduleCancel(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.scheduler()
	for _, id := range args {
		if err := s.Cancel(id); err != nil {
			return err
		}
		a.printf("cancelled %s\n", id)
	}
	return nil
}

func runScheduleClear(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scheduler().CancelAll(); err != nil {
		return err
	}
	a.printf("cleared all triggers\n")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/zeilumara/pkg/model"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the live dual clock until ctrl-c",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			interval := a.cfg.Clock.Interval
			if cmd.Flags().Changed("interval") {
				interval, _ = cmd.Flags().GetDuration("interval")
			}
			if interval <= 0 {
				return fmt.Errorf("watch: interval must be positive")
			}
			count, _ := cmd.Flags().GetInt("count")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "watching (every %s, ctrl-c to stop)\n", interval)
			a.watch(ctx, interval, count, model.Now)
			fmt.Fprintln(cmd.ErrOrStderr(), "\nstopped")
			return nil
		},
	}
	cmd.Flags().Duration("interval", time.Second, "refresh interval (default clock.interval)")
	cmd.Flags().Int("count", 0, "stop after N readings (0 = until interrupted)")
	return cmd
}

// watch prints one reading immediately and one per tick until ctx ends or
// count readings have been printed.
func (a *app) watch(ctx context.Context, interval time.Duration, count int, now func() model.LinearTime) {
	printed := 0
	emit := func() bool {
		r := newReading(a.engine, now())
		if a.jsonOut {
			b, _ := json.Marshal(r)
			fmt.Fprintln(a.out, string(b))
		} else {
			line := fmt.Sprintf("%s | %s | VB %s",
				humanClock(r.UTC.Local(), a.settings.Use24HourFormat), r.Compact, r.VisibleBeat)
			if len(r.Omens) > 0 {
				line += " | " + joinOmens(r.Omens)
			}
			fmt.Fprintln(a.out, line)
		}
		printed++
		return count <= 0 || printed < count
	}

	if !emit() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}

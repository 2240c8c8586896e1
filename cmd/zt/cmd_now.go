package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/daviddao/zeilumara/pkg/clock"
	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/omen"
)

// reading is one instant on both clocks.
type reading struct {
	Linear      model.LinearTime     `json:"linear"`
	UTC         time.Time            `json:"utc"`
	Z           model.StructuredTime `json:"z"`
	Compact     string               `json:"compact"`
	Short       string               `json:"short"`
	VisibleBeat string               `json:"visible_beat"`
	Omens       []omen.Omen          `json:"omens,omitempty"`
}

func newReading(e *clock.Engine, t model.LinearTime) reading {
	z := e.ToStructured(t)
	return reading{
		Linear:      t,
		UTC:         t.Time(),
		Z:           z,
		Compact:     z.Compact(),
		Short:       z.Short(),
		VisibleBeat: model.FormatCount(z.VisibleBeat),
		Omens:       omen.Evaluate(z),
	}
}

// humanClock renders the civil side according to the 24h setting.
func humanClock(t time.Time, use24 bool) string {
	if use24 {
		return t.Format("2006-01-02 15:04:05 MST")
	}
	return t.Format("2006-01-02 3:04:05 PM MST")
}

func (a *app) printReading(r reading) {
	a.printf("%s\n", humanClock(r.UTC.Local(), a.settings.Use24HourFormat))
	a.printf("%s\n", r.Z.Format(a.settings.DisplayLanguage))
	a.printf("visible beat %s  (%s)\n", r.VisibleBeat, r.Short)
	for _, o := range r.Omens {
		a.printf("%s\n", o.Message)
	}
}

func newNowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "now",
		Short: "Show the current time on both clocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			at, _ := cmd.Flags().GetString("at")
			t, err := model.ParseLinearTime(at)
			if err != nil {
				return err
			}
			r := newReading(a.engine, t)
			if a.jsonOut {
				return a.printJSON(r)
			}
			a.printReading(r)
			return nil
		},
	}
	cmd.Flags().String("at", "now", "instant to show (unix seconds or RFC 3339)")
	return cmd
}

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert between ordinary time and Zeilumara time",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "to-z <time>",
		Short: "Convert unix seconds or an RFC 3339 timestamp to Zeilumara time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := model.ParseLinearTime(args[0])
			if err != nil {
				return err
			}
			r := newReading(a.engine, t)
			if a.jsonOut {
				return a.printJSON(r)
			}
			a.printReading(r)
			return nil
		},
	})

	toHuman := &cobra.Command{
		Use:   "to-human",
		Short: "Convert Zeilumara fields to ordinary time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			z, err := structuredFromFlags(cmd.Flags(), model.StructuredTime{})
			if err != nil {
				return err
			}
			if !z.Normalized(a.engine.Units()) {
				return fmt.Errorf("field out of range: %s", z.Compact())
			}
			t := a.engine.ToLinear(z)
			if a.jsonOut {
				return a.printJSON(map[string]any{
					"linear": t,
					"utc":    t.Time(),
					"z":      z,
				})
			}
			a.printf("%s\n", humanClock(t.Time().Local(), a.settings.Use24HourFormat))
			a.printf("unix %s\n", model.FormatCount(float64(t)))
			return nil
		},
	}
	addStructuredFlags(toHuman.Flags())
	cmd.AddCommand(toHuman)
	return cmd
}

var digitFlags = []string{"archive", "dreamday", "loop", "weave", "beat", "yaon"}

// addStructuredFlags registers one flag per Zeilumara field.
func addStructuredFlags(fs *pflag.FlagSet) {
	fs.Float64("era", 0, "era (Yaogen)")
	for _, name := range digitFlags {
		fs.Int64(name, 0, name)
	}
}

// structuredFromFlags overlays every changed field flag onto base.
func structuredFromFlags(fs *pflag.FlagSet, base model.StructuredTime) (model.StructuredTime, error) {
	z := base
	if fs.Changed("era") {
		v, err := fs.GetFloat64("era")
		if err != nil {
			return z, err
		}
		z.Era = v
	}
	fields := map[string]*int64{
		"archive":  &z.Archive,
		"dreamday": &z.Dreamday,
		"loop":     &z.Loop,
		"weave":    &z.Weave,
		"beat":     &z.Beat,
		"yaon":     &z.Yaon,
	}
	for _, name := range digitFlags {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetInt64(name)
		if err != nil {
			return z, err
		}
		*fields[name] = v
	}
	return z, nil
}

func joinOmens(omens []omen.Omen) string {
	msgs := make([]string, len(omens))
	for i, o := range omens {
		msgs[i] = o.Message
	}
	return strings.Join(msgs, " ")
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/zeilumara/pkg/exchange"
	"github.com/daviddao/zeilumara/pkg/notify"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events and settings as JSON or TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.store.ListEvents()
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			doc := exchange.NewDocument(&a.settings, events, time.Now())

			out, _ := cmd.Flags().GetString("out")
			if out != "" {
				if err := exchange.WriteFile(out, doc); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d event(s) to %s\n", len(events), out)
				return nil
			}

			name, _ := cmd.Flags().GetString("format")
			f, err := exchange.ParseFormat(name)
			if err != nil {
				return err
			}
			return exchange.Encode(a.out, doc, f)
		},
	}
	cmd.Flags().String("format", "json", "json or toml (stdout only; --out uses the extension)")
	cmd.Flags().StringP("out", "o", "", "write to a .json or .toml file instead of stdout")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import events from an export, replacing events with the same ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := exchange.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			existing, err := a.store.ListEvents()
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			merged := exchange.Merge(existing, doc.Events)
			added := len(merged) - len(existing)

			if err := a.store.SaveEvents(doc.Events); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			if withSettings, _ := cmd.Flags().GetBool("settings"); withSettings && doc.Settings != nil {
				if err := a.applySettings(*doc.Settings); err != nil {
					return fmt.Errorf("import: %w", err)
				}
			}
			n, err := a.rescheduleAll()
			if err != nil && !errors.Is(err, notify.ErrQuotaExceeded) {
				return fmt.Errorf("import: schedule: %w", err)
			}

			if a.jsonOut {
				return a.printJSON(map[string]int{
					"imported":  len(doc.Events),
					"added":     added,
					"replaced":  len(doc.Events) - added,
					"scheduled": n,
				})
			}
			a.printf("imported %d event(s): %d new, %d replaced\n", len(doc.Events), added, len(doc.Events)-added)
			a.printf("scheduled %d trigger(s)\n", n)
			return nil
		},
	}
	cmd.Flags().Bool("settings", false, "also apply the settings stored in the file")
	return cmd
}

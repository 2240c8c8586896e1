package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daviddao/zeilumara/pkg/config"
	"github.com/daviddao/zeilumara/pkg/model"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and a default config file",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	cmd.Flags().String("epoch", "", "epoch as unix seconds or RFC 3339 (default 2025-01-01T00:00:00Z)")
	cmd.Flags().Bool("skip-config", false, "don't write "+config.FileName+".yaml")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	settings := a.settings
	if v, _ := cmd.Flags().GetString("epoch"); v != "" {
		t, err := model.ParseLinearTime(v)
		if err != nil {
			return fmt.Errorf("--epoch: %w", err)
		}
		settings.Epoch = t
	}
	if err := a.applySettings(settings); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	a.printf("initialized zeilumara (db: %s)\n", a.cfg.DB)
	if n := a.store.CountEvents(); n > 0 {
		a.printf("  %d existing event(s)\n", n)
	}
	a.printf("  epoch %s\n", a.settings.Epoch.Time().Format("2006-01-02T15:04:05Z07:00"))

	if skip, _ := cmd.Flags().GetBool("skip-config"); skip {
		return nil
	}
	path := config.FileName + ".yaml"
	if used := viper.ConfigFileUsed(); used != "" {
		a.printf("  config: %s (unchanged)\n", used)
		return nil
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		a.printf("  config: %s (unchanged)\n", path)
		return nil
	}
	if err := config.WriteFile(path); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	a.printf("  wrote %s\n", path)
	return nil
}

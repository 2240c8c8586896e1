package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daviddao/zeilumara/pkg/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "zt",
		Short:   "Zeilumara time: a dual clock with events and reminders",
		Long:    "zt converts between ordinary time and Zeilumara time, keeps events anchored in Zeilumara time and schedules their reminders.",
		Version: version,

		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file (default .zeilumara.yaml)")
	root.PersistentFlags().String("db", "", "SQLite database path (default zeilumara.db)")
	root.PersistentFlags().Bool("json", false, "JSON output")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	root.AddCommand(
		newInitCmd(),
		newNowCmd(),
		newConvertCmd(),
		newEventCmd(),
		newScheduleCmd(),
		newExportCmd(),
		newImportCmd(),
		newSettingsCmd(),
		newWatchCmd(),
		newServeCmd(),
	)
	return root
}

func initConfig(cmd *cobra.Command) error {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(config.FileName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	config.SetupEnv()

	if f := cmd.Flags().Lookup("db"); f != nil {
		if err := viper.BindPFlag("db", f); err != nil {
			return err
		}
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		viper.Set("log.level", "debug")
	}

	// A missing config file is fine; defaults apply.
	_ = viper.ReadInConfig()
	return nil
}

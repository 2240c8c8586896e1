package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daviddao/zeilumara/pkg/config"
	"github.com/daviddao/zeilumara/pkg/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, live clock WebSocket and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := viper.BindPFlag("addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(a.store, server.Options{
				Limits:   a.cfg.Notify.Limits(),
				Horizon:  a.cfg.Notify.Horizon,
				Interval: a.cfg.Clock.Interval,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}

			err = config.Watch(func(cfg config.Config, err error) {
				if err != nil {
					a.logger.Warn("config reload rejected", slog.Any("error", err))
					return
				}
				a.logger.Info("config file changed; restart to apply",
					slog.String("addr", cfg.Addr),
					slog.String("db", cfg.DB))
			})
			if err != nil {
				a.logger.Debug("not watching config", slog.Any("error", err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, a.cfg.Addr)
		},
	}
	cmd.Flags().String("addr", ":8090", "listen address")
	return cmd
}

package main

import (
	"os/signal"
	"syscall"

	"backdesk/internal/app"
	"backdesk/internal/config"
	"backdesk/internal/logger"

	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Infof("config loaded (env=%s, file=%s)", c.cfg.App.Env, orDefault(c.cfgPath, "built-in"))
			if c.cfgPath != "" {
				err := config.Watch(c.cfgPath, func(next *config.Config) {
					logger.SetLevel(next.App.LogLevel)
					logger.Infof("config reloaded, log level %s", next.App.LogLevel)
				})
				if err != nil {
					logger.Warnf("config watch disabled: %v", err)
				}
			}

			a, err := app.NewApp(c.cfg)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

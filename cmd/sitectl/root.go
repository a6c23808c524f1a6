package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/lacuina/content-service/internal/app"
	"github.com/lacuina/content-service/internal/config"
	"github.com/lacuina/content-service/pkg/logger"
)

// openApp connects to the configured backends. Tests replace it.
var openApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

var globalFlags struct {
	LogLevel string
	Timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Maintain the restaurant site document",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(globalFlags.LogLevel)
			logger.SetOutput(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&globalFlags.Timeout, "timeout", 30*time.Second, "how long to wait for the store")

	root.AddCommand(newConfigCmd(), newBackupCmd(), newFactoryResetCmd())
	return root
}

// withApp runs fn with a started App whose document has been loaded.
func withApp(fn func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), globalFlags.Timeout)
		defer cancel()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Start(ctx, globalFlags.Timeout); err != nil {
			return err
		}
		return fn(ctx, a, cmd, args)
	}
}

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/queuekit/pkg/config"
	"github.com/dmitrymomot/queuekit/pkg/logger"
	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// appConfig holds process wide settings
type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_SERVICE" envDefault:"queuekit"`
	Tracing bool   `env:"APP_TRACING" envDefault:"false"`
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:          "queuekit",
		Short:        "Background job queue worker",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "additional .env files to load (earlier files win)")

	root.AddCommand(newWorkCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func loadApp() (appConfig, error) {
	var app appConfig
	err := config.Load(&app)
	return app, err
}

// newLogger builds the process logger from appConfig and makes it the slog default
func newLogger() (*slog.Logger, error) {
	app, err := loadApp()
	if err != nil {
		return nil, err
	}

	log := logger.New(
		logger.WithEnvironment(app.Env, app.Service),
		logger.WithContextExtractors(queue.JobContextExtractor, traceContextExtractor),
	)
	logger.SetAsDefault(log)
	return log, nil
}

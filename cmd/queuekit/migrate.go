package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/queuekit/pkg/config"
	"github.com/dmitrymomot/queuekit/pkg/queue"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables or indexes the configured driver needs",
		Long: "Applies embedded goose migrations for postgres and creates collection indexes for mongo.\n" +
			"The memory and redis drivers need no schema.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			log, err := newLogger()
			if err != nil {
				return err
			}

			var cfg queue.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}

			b, err := openBackend(ctx, cfg.Driver, log)
			if err != nil {
				return err
			}
			defer b.close()

			if err := b.migrate(ctx); err != nil {
				return err
			}
			log.InfoContext(ctx, "schema is up to date")
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/app"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := repository.OpenFromConfig(ctx, opts.cfg.Database, opts.logger)
			if err != nil {
				return err
			}
			defer repository.Close(db, opts.logger)
			if err := repository.Migrate(ctx, db); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Append taxonomy entries to the placements table",
		Long: `Loads the taxonomy YAML (the bundled file unless --file is given) and inserts
entries whose canonical name is not present yet. Existing rows are never changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Build(cmd.Context(), opts.cfg, opts.logger, app.Options{SkipSeed: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Seed(cmd.Context(), file); err != nil {
				return err
			}
			entries, err := a.Placements.ListPlacements(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d placements\n", len(entries))
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "taxonomy YAML file (default: bundled taxonomy)")
	return cmd
}

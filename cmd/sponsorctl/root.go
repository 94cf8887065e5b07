package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
)

type rootOptions struct {
	logLevel string
	cfg      *common.Config
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "sponsorctl",
		Short: "Analyze sponsorship documents and manage the placement taxonomy",
		Long: `sponsorctl drives the sponsorship analysis pipeline from the command line.

Database and extraction settings come from the same environment variables as the
daemon (DB_DRIVER, DB_URL, OPENAI_API_KEY, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg = common.LoadConfig()
			if opts.logLevel != "" {
				opts.cfg.Log.Level = opts.logLevel
			}
			opts.logger = common.NewLogger(opts.cfg.Log, os.Stderr)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newMatchCmd(opts),
		newAnalyzeCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

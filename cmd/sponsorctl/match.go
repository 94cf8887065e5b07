package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/matcher"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/taxonomy"
)

func newMatchCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "match PHRASE...",
		Short: "Match raw placement phrases against the taxonomy",
		Long: `Runs the placement matcher offline, without a database, so thresholds
(MATCH_ACCEPT, MATCH_MEDIUM, MATCH_HIGH, MATCH_EXACT_HIGH_RATIO) can be tuned.

Example:
  sponsorctl match "logo on jersey" "outfield banner" "pizza night"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := taxonomy.LoadEntries(file)
			if err != nil {
				return err
			}
			tax, err := taxonomy.New(entries)
			if err != nil {
				return err
			}
			m, err := matcher.New(tax, matcher.FromCommon(opts.cfg.Matcher))
			if err != nil {
				return err
			}
			results, stats := m.MatchAll(args)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"results": results, "stats": stats})
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PHRASE\tPLACEMENT\tCONFIDENCE\tMETHOD\tSCORE")
			for _, r := range results {
				name := "-"
				if r.Matched() {
					name = r.Entry.CanonicalName
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\n", r.RawText, name, r.Confidence, r.Method, r.Score)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "\n%d/%d matched (high %d, medium %d, low %d)\n",
				stats.Matched, stats.Total, stats.High, stats.Medium, stats.Low)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "taxonomy YAML file (default: bundled taxonomy)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/app"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/async"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/server"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/services/analysis"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var ownerID, jobID string
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "analyze URL",
		Short: "Run one document through the pipeline in-process and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			a, err := app.Build(ctx, opts.cfg, opts.logger, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			queue := async.NewProcessorQueue(a.Processor, opts.logger,
				async.WithWorkers(1),
				async.WithProcessTimeout(opts.cfg.Queue.JobTimeout),
			)
			defer queue.Shutdown(context.Background())

			svc := analysis.NewService(a.Jobs, a.Offers, a.Packages, a.Placements, queue, a.Status, opts.logger)
			resp, err := svc.Submit(ctx, analysis.SubmitRequest{SourceDocumentURL: args[0], JobID: jobID, OwnerID: ownerID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "submitted %s\n", resp.JobID)

			if interval <= 0 {
				interval = 500 * time.Millisecond
			}
			attempts := int(opts.cfg.Queue.JobTimeout/interval) + 1
			view, err := analysis.Poll(ctx, svc, resp.JobID, interval, attempts)
			if err != nil {
				return err
			}
			if view.Status == constants.JobStatusError {
				printStatus(cmd.OutOrStdout(), view)
				return fmt.Errorf("analysis failed: %s", view.ErrorCategory)
			}
			res, err := svc.GetResult(ctx, resp.JobID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "cli", "owner id recorded on the job")
	cmd.Flags().StringVar(&jobID, "job-id", "", "job id (default: random UUID)")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "status poll interval")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var (
		addr     string
		wait     bool
		interval time.Duration
		attempts int
	)
	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Read a job status from a running daemon over gRPC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = dialAddr(opts.cfg.Server.GRPCAddr)
			}
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()
			client := server.NewAnalysisClient(conn)

			var view analysis.StatusView
			if wait {
				view, err = analysis.Poll(cmd.Context(), client, args[0], interval, attempts)
				if errors.Is(err, analysis.ErrPollTimeout) {
					printStatus(cmd.OutOrStdout(), view)
					return fmt.Errorf("job %s still %s after %d checks", args[0], view.Status, attempts)
				}
			} else {
				view, err = client.GetStatus(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "daemon gRPC address (default: GRPC_ADDR)")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job is completed or failed")
	cmd.Flags().DurationVar(&interval, "interval", analysis.DefaultPollInterval, "poll interval with --wait")
	cmd.Flags().IntVar(&attempts, "attempts", analysis.DefaultPollAttempts, "maximum polls with --wait")
	return cmd
}

func printStatus(w io.Writer, v analysis.StatusView) {
	fmt.Fprintf(w, "job:     %s\nstatus:  %s\n", v.JobID, v.Status)
	if v.ErrorCategory != "" {
		fmt.Fprintf(w, "error:   %s\nmessage: %s\naction:  %s\n", v.ErrorCategory, v.UserMessage, v.SuggestedAction)
	}
}

// dialAddr turns a listen address such as ":8080" into a dialable one.
func dialAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}

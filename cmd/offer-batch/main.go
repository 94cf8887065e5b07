package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/app"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/async"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/export"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/services/analysis"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// inlineQueue runs each job on the caller's goroutine; a batch needs no worker pool.
type inlineQueue struct {
	a *app.App
}

func (q inlineQueue) Enqueue(ctx context.Context, job async.Job) error {
	// pipeline failures are recorded on the job and read back below
	_ = q.a.Processor.ProcessJob(ctx, job.JobID)
	return nil
}

func (q inlineQueue) Shutdown(context.Context) {}

func main() {
	var (
		inmem = flag.Bool("inmem", false, "use in-memory SQLite database")
		list  = flag.String("urls", "", "file with one document URL per line (required)")
		out   = flag.String("out", "", "output XLSX file path (optional, defaults next to --urls)")
		owner = flag.String("owner", "local-batch", "owner id for the analyzed offers")
	)
	flag.Parse()

	if *list == "" {
		printError("Error: --urls is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*list), "offers.xlsx")
	}

	urls, err := readURLs(*list)
	if err != nil {
		printError("Error: reading %s: %v\n", *list, err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = "file:offer-batch?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	svc := analysis.NewService(a.Jobs, a.Offers, a.Packages, a.Placements, inlineQueue{a: a}, a.Status, logger)

	processed, failures := 0, 0
	for _, u := range urls {
		logger.Info("processing document", "url", u)
		resp, err := svc.Submit(ctx, analysis.SubmitRequest{SourceDocumentURL: u, OwnerID: *owner})
		if err != nil {
			logger.Error("failed to submit document", "url", u, "error", err)
			failures++
			continue
		}
		view, err := svc.GetStatus(ctx, resp.JobID)
		if err != nil || view.ErrorCategory != "" {
			logger.Error("failed to analyze document", "url", u, "category", string(view.ErrorCategory), "message", view.UserMessage)
			failures++
			continue
		}
		processed++
	}

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := export.NewService(a.Offers, a.Packages, a.Placements, logger).ExportOffersXLSX(ctx, *owner)
	if err != nil {
		logger.Error("failed to export offers", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"documents", len(urls),
		"processed", processed,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents: %d\n", len(urls))
	fmt.Printf("- Analyzed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}

// readURLs returns the non-empty, non-comment lines of path.
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

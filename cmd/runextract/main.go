package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/fetch"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/textextract"
)

// runextract prints the cleaned text the pipeline would send for a URL or local file.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runextract <url-or-path>")
		os.Exit(2)
	}
	target := os.Args[1]

	cfg := common.LoadConfig()
	ex := textextract.NewExtractor(textextract.Config{
		MaxPages:    cfg.Extract.MaxPages,
		MinChars:    cfg.Extract.MinChars,
		BudgetChars: cfg.Extract.BudgetChars,
		Watchdog:    cfg.Extract.Watchdog,
		Pdftotext:   cfg.Extract.Pdftotext,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	var (
		res textextract.Result
		err error
	)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		f := fetch.New(fetch.Config{Timeout: cfg.Fetch.Timeout, MaxBytes: cfg.Fetch.MaxBytes}, logger)
		res, err = ex.FetchAndExtract(ctx, f, target)
	} else {
		var data []byte
		data, err = os.ReadFile(target)
		if err == nil {
			res, err = ex.Extract(ctx, fetch.Document{
				URL:         target,
				Bytes:       data,
				Size:        int64(len(data)),
				ContentType: mime.TypeByExtension(filepath.Ext(target)),
			})
		}
	}
	dur := time.Since(start)

	if err != nil {
		logger.Error("text extraction failed",
			"target", target, "category", string(common.Classify(err)), "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"pages_total", res.PagesTotal,
		"chars", res.RawChars,
		"chunked", res.Chunked,
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}

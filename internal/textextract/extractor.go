// Package textextract turns fetched documents into bounded, cleaned text.
package textextract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/fetch"
)

type Config struct {
	MaxPages    int           // default 50
	MinChars    int           // default 100
	BudgetChars int           // default 8000
	Watchdog    time.Duration // download + parse, default 45s
	Pdftotext   string        // optional fallback binary; empty disables it
}

// Result is the cleaned text handed to the extraction client.
type Result struct {
	Text       string
	Format     constants.DocumentFormat
	Method     string // "pdfcpu" | "pdftotext" | "html" | "text"
	Pages      int    // pages read
	PagesTotal int    // pages in the document
	Truncated  bool   // page cap applied
	Chunked    bool   // budget applied
	RawChars   int    // cleaned length before chunking
	Duration   time.Duration
}

// DocumentFetcher is satisfied by *fetch.Fetcher.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Document, error)
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = 100
	}
	if cfg.BudgetChars <= 0 {
		cfg.BudgetChars = 8000
	}
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = 45 * time.Second
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner used for the pdftotext fallback.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// FetchAndExtract downloads and parses url under the watchdog. Exceeding it
// yields common.ErrExtractionTimeout regardless of which step was running.
func (e *Extractor) FetchAndExtract(ctx context.Context, f DocumentFetcher, url string) (Result, error) {
	wctx, cancel := context.WithTimeout(ctx, e.cfg.Watchdog)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		doc, err := f.Fetch(wctx, url)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		res, err := e.Extract(wctx, doc)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(wctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{}, e.timeout(url)
		}
		return o.res, o.err
	case <-wctx.Done():
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, e.timeout(url)
	}
}

func (e *Extractor) timeout(url string) error {
	e.logger.Error("extract.watchdog_expired", "url", url, "watchdog", e.cfg.Watchdog.String())
	return fmt.Errorf("%w: download and parse exceeded %s", common.ErrExtractionTimeout, e.cfg.Watchdog)
}

// Extract parses doc into cleaned, page-capped, budget-bounded text.
func (e *Extractor) Extract(ctx context.Context, doc fetch.Document) (Result, error) {
	start := time.Now()
	format := constants.DetectFormat(doc.Bytes, doc.ContentType)
	res := Result{Format: format}

	var pages []string
	switch format {
	case constants.FormatPDF:
		var err error
		pages, res.PagesTotal, res.Method, err = e.extractPDF(ctx, doc.Bytes)
		if err != nil {
			e.logger.Warn("extract.pdf_unreadable", "url", doc.URL, "error", err)
			return res, fmt.Errorf("%w: %v", common.ErrNoExtractableText, err)
		}
	case constants.FormatHTML:
		pages, res.PagesTotal, res.Method = []string{htmlText(doc.Bytes)}, 1, "html"
	case constants.FormatText:
		pages, res.PagesTotal, res.Method = []string{string(doc.Bytes)}, 1, "text"
	default:
		e.logger.Warn("extract.unsupported_format", "url", doc.URL, "content_type", doc.ContentType)
		return res, fmt.Errorf("%w: unsupported document format", common.ErrNoExtractableText)
	}

	res.Pages = len(pages)
	if res.PagesTotal > e.cfg.MaxPages {
		res.Truncated = true
		e.logger.Warn("extract.pages_truncated",
			"url", doc.URL,
			"pages_total", res.PagesTotal,
			"pages_kept", res.Pages,
		)
	}

	text := JoinPages(pages)
	res.RawChars = utf8.RuneCountInString(text)
	if res.RawChars < e.cfg.MinChars {
		e.logger.Warn("extract.no_text", "url", doc.URL, "chars", res.RawChars, "method", res.Method)
		return res, fmt.Errorf("%w: %d characters after cleaning", common.ErrNoExtractableText, res.RawChars)
	}

	res.Text, res.Chunked = Chunk(text, e.cfg.BudgetChars)
	res.Duration = time.Since(start)
	e.logger.Info("extract.ok",
		"url", doc.URL,
		"format", string(format),
		"method", res.Method,
		"pages", res.Pages,
		"chars", res.RawChars,
		"chunked", res.Chunked,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// extractPDF prefers pdfcpu and falls back to pdftotext when configured and
// pdfcpu produced too little text (hex-encoded fonts, unusual encodings).
func (e *Extractor) extractPDF(ctx context.Context, data []byte) ([]string, int, string, error) {
	pages, total, err := pdfPages(data, e.cfg.MaxPages)
	if err == nil && utf8.RuneCountInString(JoinPages(pages)) >= e.cfg.MinChars {
		return pages, total, "pdfcpu", nil
	}
	if e.cfg.Pdftotext == "" {
		return pages, total, "pdfcpu", err
	}
	e.logger.Info("extract.pdf_fallback", "reason", fallbackReason(err))
	alt, altErr := e.pdftotextPages(ctx, data, e.cfg.MaxPages)
	if altErr != nil {
		if err != nil {
			return nil, 0, "pdftotext", errors.Join(err, altErr)
		}
		return pages, total, "pdfcpu", nil
	}
	if total == 0 {
		total = len(alt)
	}
	return alt, total, "pdftotext", nil
}

func fallbackReason(err error) string {
	if err != nil {
		return err.Error()
	}
	return "too little text"
}

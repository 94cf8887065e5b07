// Package fetch downloads source documents.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
)

type Config struct {
	Timeout   time.Duration // whole request including body, default 30s
	MaxBytes  int64         // default 25 MiB
	UserAgent string
}

// Document is a downloaded payload.
type Document struct {
	URL         string
	Bytes       []byte
	Size        int64
	ContentType string
}

// Fetcher retrieves documents over HTTP. It never retries; the pipeline owns retry policy.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 25 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "sponsorship-analyzer/1.0"
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Fetch downloads rawURL. Every failure wraps common.ErrDownloadFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	rid := uuid.New().String()
	jobID := common.JobIDFromContext(ctx)
	start := time.Now()

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		f.logger.Warn("fetch.invalid_url", "req_id", rid, "url", rawURL)
		return Document{}, fmt.Errorf("%w: invalid url %q", common.ErrDownloadFailed, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: build request: %v", common.ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	f.logger.Info("fetch.start", "req_id", rid, "job_id", jobID, "host", u.Host)
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("fetch.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Document{}, fmt.Errorf("%w: %v", common.ErrDownloadFailed, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			f.logger.Warn("fetch.body_close_error", "req_id", rid, "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("fetch.bad_status", "req_id", rid, "status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Document{}, fmt.Errorf("%w: status %d", common.ErrDownloadFailed, resp.StatusCode)
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return Document{}, fmt.Errorf("%w: content length %d exceeds %d bytes", common.ErrDownloadFailed, resp.ContentLength, f.cfg.MaxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		f.logger.Error("fetch.read_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return Document{}, fmt.Errorf("%w: timed out reading body", common.ErrDownloadFailed)
		}
		return Document{}, fmt.Errorf("%w: read body: %v", common.ErrDownloadFailed, err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return Document{}, fmt.Errorf("%w: body exceeds %d bytes", common.ErrDownloadFailed, f.cfg.MaxBytes)
	}
	if len(body) == 0 {
		f.logger.Warn("fetch.empty_body", "req_id", rid)
		return Document{}, fmt.Errorf("%w: empty body", common.ErrDownloadFailed)
	}

	f.logger.Info("fetch.ok",
		"req_id", rid,
		"job_id", jobID,
		"bytes", len(body),
		"content_type", resp.Header.Get("Content-Type"),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Document{
		URL:         rawURL,
		Bytes:       body,
		Size:        int64(len(body)),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

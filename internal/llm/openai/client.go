package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
)

var _ llm.Extractor = (*Client)(nil)

// Extract implements llm.Extractor using text-only chat/completions in JSON mode.
// Transport failures and non-2xx statuses are retried per cfg.Retry; malformed
// content and empty package lists are not.
func (c *Client) Extract(ctx context.Context, req llm.ExtractRequest) (llm.ExtractedResult, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"job_id", req.JobID,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.DocumentText),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.SystemTaskSpec},
			{"role": "user", "content": llm.UserPrompt(req.DocumentText)},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var raw []byte
	attempts := 0
	retrier := c.cfg.Retry.Retrier(c.sleep)
	err := retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		b, status, err := llm.SendJSON(actx, c.http, endpoint, body, headers, c.logger)
		if err != nil {
			ae := llm.NewAttemptError(err, status)
			c.logger.Warn("llm.extract.attempt_failed",
				"req_id", rid,
				"job_id", req.JobID,
				"attempt", attempt,
				"status", status,
				"timeout", ae.Timeout,
				"error", err,
			)
			return ae
		}
		raw = b
		return nil
	})
	if err != nil {
		final := llm.Exhausted(err, attempts)
		c.logger.Error("llm.extract.http_error",
			"req_id", rid,
			"job_id", req.JobID,
			"attempts", attempts,
			"category", string(common.Classify(final)),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractedResult{}, nil, final
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractedResult{}, raw, fmt.Errorf("%w: decode openai response: %v", common.ErrMalformedResponse, err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw", common.Truncate(string(raw), 512),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractedResult{}, raw, fmt.Errorf("%w: no choices in openai response", common.ErrMalformedResponse)
	}
	content := []byte(llm.StripCodeFences(cc.Choices[0].Message.Content))

	if err := llm.ValidateExtraction(content); err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", common.Truncate(string(content), 512),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ExtractedResult{}, content, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	out, err := llm.Normalize(content)
	if err != nil {
		c.logger.Warn("llm.extract.normalize_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, content, err
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"job_id", req.JobID,
		"attempts", attempts,
		"packages", len(out.Packages),
		"has_funding_goal", out.FundingGoal != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

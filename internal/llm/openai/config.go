package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // per attempt, default 60s
	Retry       llm.RetryPolicy
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	sleep  common.SleepFunc
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		// per-attempt deadlines come from the request context
		http:   &http.Client{},
		logger: logger,
		sleep:  common.SleepCtx,
	}
}

// FromCommon builds the client config from application config.
func FromCommon(c common.LLMConfig) Config {
	return Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		Retry:       llm.DefaultRetryPolicy(),
	}
}

// WithSleep replaces the backoff sleeper; tests use it to avoid real waits.
func (c *Client) WithSleep(fn common.SleepFunc) *Client {
	c.sleep = fn
	return c
}

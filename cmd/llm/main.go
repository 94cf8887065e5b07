package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm/openai"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/textextract"
)

// runllm sends the same document text to the extraction service several times
// to check how stable the structured output is for a given prompt and model.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: runllm <text-file> [times]")
		os.Exit(2)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read text file", "path", os.Args[1], "error", err)
		os.Exit(2)
	}
	times := 3
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}
	client := openai.NewClient(openai.FromCommon(cfg.LLM), logger)

	text, chunked := textextract.Chunk(textextract.CleanPage(string(data)), cfg.Extract.BudgetChars)
	logger.Info("document.loaded", "path", os.Args[1], "chars", len(text), "chunked", chunked)

	for i := 1; i <= times; i++ {
		runCtx, cancelRun := context.WithTimeout(context.Background(), 4*time.Minute)
		start := time.Now()
		res, _, err := client.Extract(runCtx, llm.ExtractRequest{DocumentText: text, JobID: "runllm-" + strconv.Itoa(i)})
		cancelRun()

		if err != nil {
			logger.Error("extract.run.error", "iter", i, "category", string(common.Classify(err)), "err", err)
		} else {
			out, _ := json.Marshal(res)
			logger.Info("extract.run.ok",
				"iter", i,
				"packages", len(res.Packages),
				"elapsed_ms", time.Since(start).Milliseconds(),
				"result", string(out),
			)
		}

		if i < times {
			time.Sleep(750 * time.Millisecond)
		}
	}
	logger.Info("done", "times", times)
}

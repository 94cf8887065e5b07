package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/textextract"
)

// Processor runs one analysis job: fetch, extract text, call the extraction
// service, persist, and finalize the job status.
type Processor struct {
	logger    *slog.Logger
	jobs      repository.JobRepository
	fetcher   textextract.DocumentFetcher
	text      *textextract.Extractor
	extractor llm.Extractor
	persister *Persister
	status    *StatusWriter
}

func NewProcessor(
	logger *slog.Logger,
	jobs repository.JobRepository,
	fetcher textextract.DocumentFetcher,
	text *textextract.Extractor,
	extractor llm.Extractor,
	persister *Persister,
	status *StatusWriter,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:    logger,
		jobs:      jobs,
		fetcher:   fetcher,
		text:      text,
		extractor: extractor,
		persister: persister,
		status:    status,
	}
}

// ProcessJob drives an analyzing job to a terminal status. The returned error is
// the pipeline failure (already recorded on the job) or a status write failure.
func (p *Processor) ProcessJob(ctx context.Context, jobID string) (err error) {
	start := time.Now()
	ctx = common.WithJobID(ctx, jobID)

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		p.logger.Error("pipeline.job.load_failed", "job_id", jobID, "error", err)
		return err
	}
	if job.Status != constants.JobStatusAnalyzing {
		p.logger.Warn("pipeline.job.skipped", "job_id", jobID, "status", string(job.Status))
		return fmt.Errorf("%w: job %s is %s", common.ErrInvalidTransition, jobID, job.Status)
	}

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("pipeline panic: %v", r)
			p.logger.Error("pipeline.job.panic", "job_id", jobID, "panic", fmt.Sprint(r))
			_ = p.status.Fail(ctx, jobID, perr)
			err = perr
		}
	}()

	p.logger.Info("pipeline.job.start", "job_id", jobID, "url", job.SourceDocumentURL)

	stats, runErr := p.run(ctx, job.ID, job.SourceDocumentURL)
	if runErr != nil {
		category := common.Classify(runErr)
		p.logger.Error("pipeline.job.failed",
			"job_id", jobID,
			"category", string(category),
			"error", runErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if werr := p.status.Fail(ctx, jobID, runErr); werr != nil {
			return errors.Join(runErr, werr)
		}
		return runErr
	}

	if err := p.status.Complete(ctx, jobID); err != nil {
		return err
	}
	p.logger.Info("pipeline.job.completed",
		"job_id", jobID,
		"packages", stats.Packages,
		"skipped_packages", stats.Failed,
		"links", stats.Links,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Processor) run(ctx context.Context, jobID, url string) (PersistStats, error) {
	text, err := p.text.FetchAndExtract(ctx, p.fetcher, url)
	if err != nil {
		return PersistStats{}, err
	}
	p.logger.Debug("pipeline.job.text",
		"job_id", jobID,
		"format", string(text.Format),
		"chars", text.RawChars,
		"chunked", text.Chunked,
	)

	res, _, err := p.extractor.Extract(ctx, llm.ExtractRequest{DocumentText: text.Text, JobID: jobID})
	if err != nil {
		return PersistStats{}, err
	}

	// reload: the gate must see the status as of now, not as of the start
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return PersistStats{}, err
	}
	return p.persister.Persist(ctx, job, res)
}

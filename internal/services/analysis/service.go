package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/async"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/core"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
)

const maxIDLength = 128

// Service handles analysis submission and status reads. It never waits on the pipeline.
type Service struct {
	jobs       repository.JobRepository
	offers     repository.OfferRepository
	packages   repository.PackageRepository
	placements repository.PlacementRepository
	queue      async.Queue
	status     *core.StatusWriter
	logger     *slog.Logger
}

// NewService creates a new analysis service.
func NewService(
	jobs repository.JobRepository,
	offers repository.OfferRepository,
	packages repository.PackageRepository,
	placements repository.PlacementRepository,
	q async.Queue,
	status *core.StatusWriter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:       jobs,
		offers:     offers,
		packages:   packages,
		placements: placements,
		queue:      q,
		status:     status,
		logger:     logger,
	}
}

// SubmitRequest represents job submission parameters.
type SubmitRequest struct {
	SourceDocumentURL string `json:"sourceDocumentUrl"`
	JobID             string `json:"jobId"`
	OwnerID           string `json:"ownerId"`
	ProfileID         string `json:"profileId,omitempty"`
}

type SubmitResponse struct {
	Accepted bool   `json:"accepted"`
	JobID    string `json:"jobId"`
}

// StatusView is what a polling client sees.
type StatusView struct {
	JobID           string                  `json:"jobId"`
	Status          constants.JobStatus     `json:"status"`
	ErrorCategory   constants.ErrorCategory `json:"errorCategory,omitempty"`
	UserMessage     string                  `json:"userMessage,omitempty"`
	SuggestedAction string                  `json:"suggestedAction,omitempty"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// Result is a completed analysis.
type Result struct {
	JobID    string                         `json:"jobId"`
	Offer    *entity.Offer                  `json:"offer"`
	Packages []entity.PackageWithPlacements `json:"packages"`
}

// Submit creates the job and its offer, marks it analyzing and hands it to the
// worker queue. A job that cannot be enqueued is failed right away.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	req.SourceDocumentURL = strings.TrimSpace(req.SourceDocumentURL)
	req.JobID = strings.TrimSpace(req.JobID)
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.ProfileID = strings.TrimSpace(req.ProfileID)

	validator := common.NewValidator()
	validator.Field("source_document_url", req.SourceDocumentURL, common.Required, common.HTTPURL, common.MaxLen(2048))
	validator.Field("owner_id", req.OwnerID, common.Required, common.MaxLen(maxIDLength))
	validator.Field("job_id", req.JobID, common.MaxLen(maxIDLength))
	validator.Field("profile_id", req.ProfileID, common.MaxLen(maxIDLength))
	if err := validator.Error(); err != nil {
		s.logger.Warn("analysis.submit.invalid", "error", err)
		return SubmitResponse{}, err
	}

	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	var profileID *string
	if req.ProfileID != "" {
		profileID = &req.ProfileID
	}

	job := &entity.AnalysisJob{
		ID:                req.JobID,
		OwnerID:           req.OwnerID,
		ProfileID:         profileID,
		SourceDocumentURL: req.SourceDocumentURL,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return SubmitResponse{}, err
	}
	offer := &entity.Offer{
		ID:        req.JobID,
		OwnerID:   req.OwnerID,
		ProfileID: profileID,
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		s.abandon(ctx, req.JobID, err)
		return SubmitResponse{}, err
	}
	if err := s.jobs.Transition(ctx, repository.TransitionRequest{
		JobID: req.JobID,
		From:  constants.JobStatusPending,
		To:    constants.JobStatusAnalyzing,
	}); err != nil {
		s.abandon(ctx, req.JobID, err)
		return SubmitResponse{}, err
	}

	if err := s.queue.Enqueue(ctx, async.Job{
		JobID:       req.JobID,
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	}); err != nil {
		s.logger.Error("analysis.submit.enqueue_failed", "job_id", req.JobID, "error", err)
		if ferr := s.status.Fail(ctx, req.JobID, fmt.Errorf("enqueue: %w", err)); ferr != nil {
			s.logger.Error("analysis.submit.fail_write_failed", "job_id", req.JobID, "error", ferr)
		}
		return SubmitResponse{}, fmt.Errorf("%w: enqueue job %s: %v", common.ErrInternal, req.JobID, err)
	}

	s.logger.Info("analysis.submit.accepted",
		"job_id", req.JobID,
		"owner_id", req.OwnerID,
		"url", req.SourceDocumentURL,
	)
	return SubmitResponse{Accepted: true, JobID: req.JobID}, nil
}

// abandon finalizes a job whose submission failed after its row was created,
// so a polling client sees error instead of pending forever. A job already
// past pending is left to the normal path.
func (s *Service) abandon(ctx context.Context, jobID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := s.jobs.Transition(ctx, repository.TransitionRequest{
		JobID: jobID,
		From:  constants.JobStatusPending,
		To:    constants.JobStatusAnalyzing,
	})
	if err != nil && !errors.Is(err, common.ErrInvalidTransition) {
		s.logger.Error("analysis.submit.abandon_failed", "job_id", jobID, "error", err, "cause", cause)
		return
	}
	if err := s.status.Fail(ctx, jobID, cause); err != nil {
		s.logger.Error("analysis.submit.abandon_failed", "job_id", jobID, "error", err, "cause", cause)
		return
	}
	s.logger.Warn("analysis.submit.abandoned", "job_id", jobID, "cause", cause)
}

// GetStatus reads the job status. Failed jobs carry the category's user message
// and suggested action, never the raw internal error.
func (s *Service) GetStatus(ctx context.Context, jobID string) (StatusView, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return StatusView{}, fmt.Errorf("%w: job_id is required", common.ErrInvalidInput)
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return StatusView{}, err
	}

	view := StatusView{JobID: job.ID, Status: job.Status, UpdatedAt: job.UpdatedAt}
	if job.Status == constants.JobStatusError {
		category := constants.ErrorUnknown
		if job.ErrorCategory != nil {
			category = *job.ErrorCategory
		}
		var detail string
		if job.ErrorMessage != nil {
			detail = *job.ErrorMessage
		}
		desc := common.Describe(category, detail)
		view.ErrorCategory = category
		view.UserMessage = desc.UserMessage
		view.SuggestedAction = desc.SuggestedAction
	}
	return view, nil
}

// GetResult returns the offer with its packages and links. Only completed jobs have one.
func (s *Service) GetResult(ctx context.Context, jobID string) (*Result, error) {
	view, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if view.Status != constants.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", common.ErrInvalidTransition, view.JobID, view.Status)
	}

	offer, err := s.offers.Get(ctx, view.JobID)
	if err != nil {
		return nil, err
	}
	pkgs, err := s.packages.ListByOffer(ctx, view.JobID)
	if err != nil {
		return nil, err
	}
	out := &Result{JobID: view.JobID, Offer: offer, Packages: make([]entity.PackageWithPlacements, 0, len(pkgs))}
	for _, p := range pkgs {
		links, err := s.placements.ListLinks(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out.Packages = append(out.Packages, entity.PackageWithPlacements{Package: *p, Placements: links})
	}
	return out, nil
}

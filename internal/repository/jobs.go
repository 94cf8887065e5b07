package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
)

// TransitionRequest moves a job from one status to another.
type TransitionRequest struct {
	JobID         string
	From          constants.JobStatus
	To            constants.JobStatus
	ErrorCategory constants.ErrorCategory // only with To == error
	ErrorMessage  string
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.AnalysisJob) error
	Get(ctx context.Context, id string) (*entity.AnalysisJob, error)
	Transition(ctx context.Context, req TransitionRequest) error
	ListStale(ctx context.Context, status constants.JobStatus, olderThan time.Time) ([]*entity.AnalysisJob, error)
}

type jobRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewJobRepository(db *DB, logger *slog.Logger) JobRepository {
	return &jobRepository{db: db, logger: logger}
}

var jobColumns = []string{
	"id", "owner_id", "profile_id", "source_document_url", "status",
	"error_category", "error_message", "created_at", "updated_at",
}

// Create inserts a new job. An existing id yields common.ErrAlreadySubmitted.
func (r *jobRepository) Create(ctx context.Context, job *entity.AnalysisJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}

	q, args := r.db.builder().Insert(tableJobs).
		Columns(jobColumns...).
		Values(job.ID, job.OwnerID, nullable(job.ProfileID), job.SourceDocumentURL, string(job.Status),
			nil, nil, job.CreatedAt, job.UpdatedAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return dbError(r.logger, "job.create", err, "job_id", job.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", common.ErrAlreadySubmitted, job.ID)
	}
	r.logger.Info("job created", "job_id", job.ID, "owner_id", job.OwnerID)
	return nil
}

func (r *jobRepository) Get(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	q, args := r.db.builder().Select(jobColumns...).
		From(r.db.builder().Table(tableJobs)).
		Where(entsql.EQ("id", id)).
		Query()
	job, err := scanJob(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, dbError(r.logger, "job.get", err, "job_id", id)
	}
	return job, nil
}

// Transition is a compare-and-set on status, so concurrent writers cannot skip
// or repeat an edge. Edges outside the state machine are rejected up front.
func (r *jobRepository) Transition(ctx context.Context, req TransitionRequest) error {
	if !constants.CanTransition(req.From, req.To) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, req.From, req.To)
	}

	u := r.db.builder().Update(tableJobs).
		Set("status", string(req.To)).
		Set("updated_at", time.Now().UTC())
	if req.To == constants.JobStatusError {
		u.Set("error_category", string(req.ErrorCategory)).
			Set("error_message", common.Truncate(req.ErrorMessage, 1000))
	}
	q, args := u.Where(entsql.And(
		entsql.EQ("id", req.JobID),
		entsql.EQ("status", string(req.From)),
	)).Query()

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return dbError(r.logger, "job.transition", err, "job_id", req.JobID, "to", string(req.To))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(r.logger, "job.transition", err, "job_id", req.JobID)
	}
	if n == 0 {
		cur, err := r.Get(ctx, req.JobID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s is %s, not %s", common.ErrInvalidTransition, req.JobID, cur.Status, req.From)
	}
	r.logger.Info("job transitioned",
		"job_id", req.JobID,
		"from", string(req.From),
		"to", string(req.To),
		"error_category", string(req.ErrorCategory),
	)
	return nil
}

// ListStale returns jobs in status whose last update is before olderThan.
func (r *jobRepository) ListStale(ctx context.Context, status constants.JobStatus, olderThan time.Time) ([]*entity.AnalysisJob, error) {
	q, args := r.db.builder().Select(jobColumns...).
		From(r.db.builder().Table(tableJobs)).
		Where(entsql.And(
			entsql.EQ("status", string(status)),
			entsql.LT("updated_at", olderThan.UTC()),
		)).
		OrderBy("updated_at").
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbError(r.logger, "job.list_stale", err)
	}
	defer rows.Close()

	var out []*entity.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dbError(r.logger, "job.list_stale", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(r.logger, "job.list_stale", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*entity.AnalysisJob, error) {
	var (
		job                         entity.AnalysisJob
		status                      string
		profileID, category, errMsg sql.NullString
	)
	if err := s.Scan(&job.ID, &job.OwnerID, &profileID, &job.SourceDocumentURL, &status,
		&category, &errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	job.ProfileID = nullString(profileID)
	job.ErrorMessage = nullString(errMsg)
	if category.Valid {
		c := constants.ErrorCategory(category.String)
		job.ErrorCategory = &c
	}
	return &job, nil
}

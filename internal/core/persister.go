package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/matcher"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/taxonomy"
)

// TaxonomyProvider is satisfied by *taxonomy.Cache.
type TaxonomyProvider interface {
	Get(ctx context.Context) (*taxonomy.Taxonomy, error)
}

// PersistStats summarizes one Persist call.
type PersistStats struct {
	Skipped  bool // one-shot gate closed; nothing written
	Packages int  // package rows written
	Failed   int  // packages logged and skipped
	Links    int
	Matches  matcher.BatchStats
}

// Persister writes an extraction result as offer, package and link rows.
type Persister struct {
	offers     repository.OfferRepository
	packages   repository.PackageRepository
	placements repository.PlacementRepository
	taxonomy   TaxonomyProvider
	cfg        matcher.Config
	retry      common.Retrier
	logger     *slog.Logger
}

func NewPersister(
	offers repository.OfferRepository,
	packages repository.PackageRepository,
	placements repository.PlacementRepository,
	tax TaxonomyProvider,
	cfg matcher.Config,
	logger *slog.Logger,
) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		offers:     offers,
		packages:   packages,
		placements: placements,
		taxonomy:   tax,
		cfg:        cfg,
		retry: common.Retrier{
			Attempts: 3,
			Backoff:  common.LinearBackoff(time.Second),
			Retryable: func(err error) bool {
				return !errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrInvalidInput)
			},
		},
		logger: logger,
	}
}

// WithSleep replaces the backoff sleeper; tests use it to avoid real waits.
func (p *Persister) WithSleep(fn common.SleepFunc) *Persister {
	p.retry.Sleep = fn
	return p
}

// write retries an idempotent single-row write. Package inserts are not
// idempotent and never go through here.
func (p *Persister) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return p.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		err := fn(ctx)
		if err != nil {
			p.logger.Warn("persist.write.failed", "op", op, "attempt", attempt, "error", err)
		}
		return err
	})
}

// Persist runs once per job: it is skipped when the job is no longer analyzing or
// its offer already has packages, so re-running a job never duplicates rows.
// Order: offer terms, then per package the row, its links and display benefits.
// A failing package is logged and skipped; zero written packages is an error.
func (p *Persister) Persist(ctx context.Context, job *entity.AnalysisJob, res llm.ExtractedResult) (PersistStats, error) {
	var stats PersistStats
	start := time.Now()

	if job.Status != constants.JobStatusAnalyzing {
		p.logger.Warn("persist.skipped", "job_id", job.ID, "reason", "job not analyzing", "status", string(job.Status))
		stats.Skipped = true
		return stats, nil
	}
	existing, err := p.packages.CountByOffer(ctx, job.ID)
	if err != nil {
		return stats, err
	}
	if existing > 0 {
		p.logger.Warn("persist.skipped", "job_id", job.ID, "reason", "packages exist", "packages", existing)
		stats.Skipped = true
		return stats, nil
	}

	tax, err := p.taxonomy.Get(ctx)
	if err != nil {
		return stats, common.WrapError(err, "load taxonomy")
	}
	m, err := matcher.New(tax, p.cfg)
	if err != nil {
		return stats, err
	}

	terms := DeriveTerms(res)
	err = p.write(ctx, "offer.update_terms", func(ctx context.Context) error {
		return p.offers.UpdateTerms(ctx, job.ID, terms)
	})
	if err != nil {
		return stats, err
	}

	for i, pkg := range res.Packages {
		if err := p.persistPackage(ctx, m, job.ID, i, pkg, &stats); err != nil {
			stats.Failed++
			p.logger.Warn("persist.package.failed",
				"job_id", job.ID,
				"package", pkg.Name,
				"position", i,
				"error", err,
			)
			continue
		}
		stats.Packages++
	}

	if stats.Packages == 0 {
		return stats, fmt.Errorf("%w: none of %d packages could be written", common.ErrDatabase, len(res.Packages))
	}

	p.logger.Info("persist.ok",
		"job_id", job.ID,
		"title", terms.Title,
		"packages", stats.Packages,
		"failed", stats.Failed,
		"links", stats.Links,
		"matched", stats.Matches.Matched,
		"unmatched", stats.Matches.Unmatched,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}

func (p *Persister) persistPackage(ctx context.Context, m *matcher.Matcher, offerID string, pos int, pkg llm.ExtractedPackage, stats *PersistStats) error {
	row := &entity.Package{
		ID:            uuid.New(),
		OfferID:       offerID,
		Name:          pkg.Name,
		Cost:          pkg.Cost,
		Position:      pos,
		RawPlacements: pkg.RawPlacements,
		// raw phrases until matching has run
		DisplayBenefits: pkg.RawPlacements,
	}
	if _, err := p.packages.Insert(ctx, row); err != nil {
		return err
	}

	results, bs := m.MatchAll(pkg.RawPlacements)
	stats.Matches.Merge(bs)

	for _, r := range bestPerEntry(results) {
		link := entity.PackagePlacement{
			PackageID:   row.ID,
			PlacementID: r.Entry.ID,
			RawText:     r.RawText,
			Confidence:  string(r.Confidence),
			Method:      string(r.Method),
			Score:       r.Score,
		}
		var ok bool
		err := p.write(ctx, "placement.link", func(ctx context.Context) error {
			var err error
			ok, err = p.placements.LinkPackage(ctx, link)
			return err
		})
		if err != nil {
			p.logger.Warn("persist.link.failed", "package_id", row.ID, "placement", r.Entry.CanonicalName, "error", err)
			continue
		}
		if ok {
			stats.Links++
		}
	}

	benefits := matcher.DisplayBenefits(results)
	err := p.write(ctx, "package.display_benefits", func(ctx context.Context) error {
		return p.packages.SetDisplayBenefits(ctx, row.ID, benefits)
	})
	if err != nil {
		p.logger.Warn("persist.display_benefits.failed", "package_id", row.ID, "error", err)
	}
	p.logger.Debug("persist.package.ok",
		"package_id", row.ID,
		"name", row.Name,
		"phrases", bs.Total,
		"matched", bs.Matched,
	)
	return nil
}

// bestPerEntry keeps, per canonical entry, the strongest match in phrase order:
// higher confidence first, then higher score.
func bestPerEntry(results []matcher.MatchResult) []matcher.MatchResult {
	idx := make(map[int64]int)
	var out []matcher.MatchResult
	for _, r := range results {
		if !r.Matched() {
			continue
		}
		i, seen := idx[r.Entry.ID]
		if !seen {
			idx[r.Entry.ID] = len(out)
			out = append(out, r)
			continue
		}
		cur := out[i]
		if r.Confidence.Rank() > cur.Confidence.Rank() ||
			(r.Confidence.Rank() == cur.Confidence.Rank() && r.Score > cur.Score) {
			out[i] = r
		}
	}
	return out
}

// DeriveTerms computes the offer fields written before packages.
// fundingGoal falls back to 2 x the sum of known package costs, else 0.
// The title uses the first available of funding goal, term, package count.
func DeriveTerms(res llm.ExtractedResult) entity.OfferTerms {
	t := entity.OfferTerms{
		Term:           res.Term,
		Impact:         res.Impact,
		TotalSupported: res.TotalSupported,
		FundingGoal:    FundingGoal(res),
	}
	switch {
	case t.FundingGoal > 0:
		t.Title = formatAmount(t.FundingGoal) + " Sponsorship Program"
	case t.Term != "":
		t.Title = t.Term + " Sponsorship"
	default:
		t.Title = fmt.Sprintf("Sponsorship Offer (%s)", english.Plural(len(res.Packages), "Package", "Packages"))
	}
	return t
}

func FundingGoal(res llm.ExtractedResult) float64 {
	if res.FundingGoal != nil {
		return *res.FundingGoal
	}
	var sum float64
	for _, p := range res.Packages {
		if p.Cost != nil {
			sum += *p.Cost
		}
	}
	return 2 * sum
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) && v < math.MaxInt64 {
		return "$" + humanize.Comma(int64(v))
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

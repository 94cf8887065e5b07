package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/fetch"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm/openai"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/matcher"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/taxonomy"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/textextract"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func noSleep(context.Context, time.Duration) error { return nil }

func ptr[T any](v T) *T { return &v }

type harness struct {
	jobs       repository.JobRepository
	offers     repository.OfferRepository
	packages   repository.PackageRepository
	placements repository.PlacementRepository
	persister  *Persister
	status     *StatusWriter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log := testLogger()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.OpenMemory(ctx, name, log)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, log) })

	h := &harness{
		jobs:       repository.NewJobRepository(db, log),
		offers:     repository.NewOfferRepository(db, log),
		packages:   repository.NewPackageRepository(db, log),
		placements: repository.NewPlacementRepository(db, log),
	}
	entries, err := taxonomy.Default()
	require.NoError(t, err)
	_, err = h.placements.Seed(ctx, entries)
	require.NoError(t, err)

	cache := taxonomy.NewCache(h.placements, log)
	h.persister = NewPersister(h.offers, h.packages, h.placements, cache, matcher.DefaultConfig(), log).WithSleep(noSleep)
	h.status = NewStatusWriter(h.jobs, log).WithSleep(noSleep)
	return h
}

// submit creates an analyzing job with its placeholder offer.
func (h *harness) submit(t *testing.T, id, url string) *entity.AnalysisJob {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.jobs.Create(ctx, &entity.AnalysisJob{ID: id, OwnerID: "owner-1", SourceDocumentURL: url}))
	require.NoError(t, h.offers.Create(ctx, &entity.Offer{ID: id, OwnerID: "owner-1"}))
	require.NoError(t, h.jobs.Transition(ctx, repository.TransitionRequest{
		JobID: id, From: constants.JobStatusPending, To: constants.JobStatusAnalyzing,
	}))
	job, err := h.jobs.Get(ctx, id)
	require.NoError(t, err)
	return job
}

func (h *harness) processor(extractor llm.Extractor) *Processor {
	log := testLogger()
	return NewProcessor(log, h.jobs, fetch.New(fetch.Config{Timeout: 5 * time.Second}, log),
		textextract.NewExtractor(textextract.Config{}, log), extractor, h.persister, h.status)
}

func (h *harness) finalStatus(t *testing.T, id string) (constants.JobStatus, constants.ErrorCategory) {
	t.Helper()
	job, err := h.jobs.Get(context.Background(), id)
	require.NoError(t, err)
	var cat constants.ErrorCategory
	if job.ErrorCategory != nil {
		cat = *job.ErrorCategory
	}
	return job.Status, cat
}

func serveText(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/packages.txt"
}

type fakeExtractor struct {
	res   llm.ExtractedResult
	err   error
	calls int32
}

func (f *fakeExtractor) Extract(context.Context, llm.ExtractRequest) (llm.ExtractedResult, []byte, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.res, nil, f.err
}

const goldDocument = "Riverside Youth Baseball 2025 Sponsorship Packages\n\n" +
	"Gold Sponsor – $500: logo on jersey, fence banner\n\n" +
	"Every dollar goes to uniforms, field maintenance and scholarships for families in need."

func TestProcessJobGoldSponsorEndToEnd(t *testing.T) {
	h := newHarness(t)
	docURL := serveText(t, goldDocument)

	var seenText string
	var mu sync.Mutex
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		for _, m := range req.Messages {
			if m.Role == "user" {
				seenText = m.Content
			}
		}
		mu.Unlock()
		content := `{"fundingGoal": null, "term": "2025 season", "impact": "Uniforms, field maintenance and scholarships",
			"totalSupported": null,
			"packages": [{"name": "Gold Sponsor", "cost": "$500", "rawPlacements": ["logo on jersey", "fence banner"]}]}`
		b, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}})
		_, _ = w.Write(b)
	}))
	t.Cleanup(stub.Close)
	client := openai.NewClient(openai.Config{APIKey: "sk-test", BaseURL: stub.URL, Timeout: 5 * time.Second}, testLogger()).
		WithSleep(noSleep)

	h.submit(t, "job-gold", docURL)
	require.NoError(t, h.processor(client).ProcessJob(context.Background(), "job-gold"))

	mu.Lock()
	assert.Contains(t, seenText, "Gold Sponsor – $500: logo on jersey, fence banner")
	mu.Unlock()

	status, _ := h.finalStatus(t, "job-gold")
	assert.Equal(t, constants.JobStatusCompleted, status)

	ctx := context.Background()
	pkgs, err := h.packages.ListByOffer(ctx, "job-gold")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	gold := pkgs[0]
	assert.Equal(t, "Gold Sponsor", gold.Name)
	require.NotNil(t, gold.Cost)
	assert.Equal(t, 500.0, *gold.Cost)
	assert.Len(t, gold.RawPlacements, 2)
	assert.Equal(t, []string{"Jersey Front Logo", "Fence Banner (Standard)"}, gold.DisplayBenefits)

	links, err := h.placements.ListLinks(ctx, gold.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "Jersey Front Logo", links[0].CanonicalName)
	assert.Equal(t, "Fence Banner (Standard)", links[1].CanonicalName)
	for _, l := range links {
		assert.GreaterOrEqual(t, matcher.Confidence(l.Confidence).Rank(), matcher.ConfidenceMedium.Rank())
	}

	offer, err := h.offers.Get(ctx, "job-gold")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, offer.FundingGoal)
	assert.Equal(t, "$1,000 Sponsorship Program", offer.Title)
	assert.Equal(t, "2025 season", offer.Term)
}

func TestProcessJobShortDocumentIsNoText(t *testing.T) {
	h := newHarness(t)
	doc := strings.Repeat("a", 40)
	require.Len(t, doc, 40)
	ext := &fakeExtractor{}

	h.submit(t, "job-short", serveText(t, doc))
	err := h.processor(ext).ProcessJob(context.Background(), "job-short")
	assert.ErrorIs(t, err, common.ErrNoExtractableText)
	assert.Zero(t, atomic.LoadInt32(&ext.calls))

	status, cat := h.finalStatus(t, "job-short")
	assert.Equal(t, constants.JobStatusError, status)
	assert.Equal(t, constants.ErrorNoText, cat)
}

func TestProcessJobClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want constants.ErrorCategory
	}{
		{"rate limit", common.ErrRateLimited, constants.ErrorRateLimit},
		{"api", common.ErrExtractionAPI, constants.ErrorAPI},
		{"malformed", common.ErrMalformedResponse, constants.ErrorUnclearStructure},
		{"no packages", common.ErrNoPackagesExtracted, constants.ErrorNoPackages},
		{"unknown", errors.New("something odd"), constants.ErrorUnknown},
	}
	h := newHarness(t)
	docURL := serveText(t, goldDocument)
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := "job-fail-" + string(rune('a'+i))
			h.submit(t, id, docURL)
			err := h.processor(&fakeExtractor{err: tc.err}).ProcessJob(context.Background(), id)
			assert.Error(t, err)
			status, cat := h.finalStatus(t, id)
			assert.Equal(t, constants.JobStatusError, status)
			assert.Equal(t, tc.want, cat)
		})
	}
}

func TestProcessJobDownloadFailure(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	h.submit(t, "job-404", srv.URL+"/gone.pdf")
	err := h.processor(&fakeExtractor{}).ProcessJob(context.Background(), "job-404")
	assert.ErrorIs(t, err, common.ErrDownloadFailed)
	_, cat := h.finalStatus(t, "job-404")
	assert.Equal(t, constants.ErrorDownload, cat)
}

func TestProcessJobRejectsNonAnalyzingJob(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.jobs.Create(context.Background(), &entity.AnalysisJob{ID: "job-pending", OwnerID: "o", SourceDocumentURL: "https://x"}))
	err := h.processor(&fakeExtractor{}).ProcessJob(context.Background(), "job-pending")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	status, _ := h.finalStatus(t, "job-pending")
	assert.Equal(t, constants.JobStatusPending, status)
}

func TestPersistRowsFundingGoalAndOneShot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.submit(t, "job-p", "https://example.com/p.pdf")

	res := llm.ExtractedResult{
		Term: "",
		Packages: []llm.ExtractedPackage{
			{Name: "Gold", Cost: ptr(100.0), RawPlacements: []string{"logo on jersey", "logo on jerseys", "mystery perk"}},
			{Name: "Silver", Cost: ptr(200.0), RawPlacements: []string{}},
			{Name: "Bronze", RawPlacements: []string{"social media post"}},
		},
	}
	stats, err := h.persister.Persist(ctx, job, res)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Packages)
	assert.Equal(t, 4, stats.Matches.Total)
	assert.Equal(t, 3, stats.Matches.Matched)
	assert.Equal(t, 2, stats.Links, "two gold aliases share one entry")

	count, err := h.packages.CountByOffer(ctx, "job-p")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	offer, err := h.offers.Get(ctx, "job-p")
	require.NoError(t, err)
	assert.Equal(t, 600.0, offer.FundingGoal)

	pkgs, err := h.packages.ListByOffer(ctx, "job-p")
	require.NoError(t, err)
	assert.Equal(t, []string{"Jersey Front Logo", "mystery perk"}, pkgs[0].DisplayBenefits)
	assert.Equal(t, []string{}, pkgs[1].DisplayBenefits)

	again, err := h.persister.Persist(ctx, job, res)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	count, err = h.packages.CountByOffer(ctx, "job-p")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPersistSkipsWhenJobNotAnalyzing(t *testing.T) {
	h := newHarness(t)
	job := h.submit(t, "job-done", "https://example.com/p.pdf")
	job.Status = constants.JobStatusCompleted

	stats, err := h.persister.Persist(context.Background(), job, llm.ExtractedResult{
		Packages: []llm.ExtractedPackage{{Name: "Gold"}},
	})
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	count, err := h.packages.CountByOffer(context.Background(), "job-done")
	require.NoError(t, err)
	assert.Zero(t, count)
}

type flakyOffers struct {
	repository.OfferRepository
	failures int32
	calls    int32
}

func (f *flakyOffers) UpdateTerms(ctx context.Context, id string, terms entity.OfferTerms) error {
	if atomic.AddInt32(&f.calls, 1) <= f.failures {
		return errors.Join(common.ErrDatabase, errors.New("connection reset"))
	}
	return f.OfferRepository.UpdateTerms(ctx, id, terms)
}

func TestPersistRetriesTransientOfferWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.submit(t, "job-flaky", "https://example.com/f.pdf")

	offers := &flakyOffers{OfferRepository: h.offers, failures: 1}
	var waits []time.Duration
	p := NewPersister(offers, h.packages, h.placements, taxonomy.NewCache(h.placements, testLogger()), matcher.DefaultConfig(), testLogger()).
		WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		})

	stats, err := p.Persist(ctx, job, llm.ExtractedResult{
		Packages: []llm.ExtractedPackage{{Name: "Gold", Cost: ptr(500.0), RawPlacements: []string{"fence banner"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Packages)
	assert.EqualValues(t, 2, atomic.LoadInt32(&offers.calls))
	assert.Equal(t, []time.Duration{time.Second}, waits)

	offer, err := h.offers.Get(ctx, "job-flaky")
	require.NoError(t, err)
	assert.Equal(t, "$1,000 Sponsorship Program", offer.Title)
}

func TestPersistOfferWriteExhausted(t *testing.T) {
	h := newHarness(t)
	job := h.submit(t, "job-down", "https://example.com/d.pdf")

	offers := &flakyOffers{OfferRepository: h.offers, failures: 10}
	p := NewPersister(offers, h.packages, h.placements, taxonomy.NewCache(h.placements, testLogger()), matcher.DefaultConfig(), testLogger()).
		WithSleep(noSleep)

	_, err := p.Persist(context.Background(), job, llm.ExtractedResult{
		Packages: []llm.ExtractedPackage{{Name: "Gold"}},
	})
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.EqualValues(t, 3, atomic.LoadInt32(&offers.calls))
	assert.Equal(t, constants.ErrorDatabase, common.Classify(err))
}

type failingPackages struct {
	repository.PackageRepository
	failName string
	inserts  int32
}

func (f *failingPackages) Insert(ctx context.Context, pkg *entity.Package) (bool, error) {
	atomic.AddInt32(&f.inserts, 1)
	if pkg.Name == f.failName {
		return false, errors.Join(common.ErrDatabase, errors.New("value too long"))
	}
	return f.PackageRepository.Insert(ctx, pkg)
}

func TestPersistSkipsFailingPackage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.submit(t, "job-partial", "https://example.com/p.pdf")

	pkgs := &failingPackages{PackageRepository: h.packages, failName: "Silver"}
	p := NewPersister(h.offers, pkgs, h.placements, taxonomy.NewCache(h.placements, testLogger()), matcher.DefaultConfig(), testLogger()).
		WithSleep(noSleep)

	stats, err := p.Persist(ctx, job, llm.ExtractedResult{
		Packages: []llm.ExtractedPackage{
			{Name: "Gold", Cost: ptr(500.0), RawPlacements: []string{"logo on jersey"}},
			{Name: "Silver", Cost: ptr(250.0), RawPlacements: []string{"fence banner"}},
			{Name: "Bronze", Cost: ptr(100.0), RawPlacements: []string{"social media post"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Packages)
	assert.Equal(t, 1, stats.Failed)
	assert.EqualValues(t, 3, atomic.LoadInt32(&pkgs.inserts), "package inserts are not retried")

	rows, err := h.packages.ListByOffer(ctx, "job-partial")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Gold", rows[0].Name)
	assert.Equal(t, "Bronze", rows[1].Name)
}

func TestDeriveTerms(t *testing.T) {
	withGoal := DeriveTerms(llm.ExtractedResult{FundingGoal: ptr(12500.5), Term: "2025"})
	assert.Equal(t, "$12,500.50 Sponsorship Program", withGoal.Title)
	assert.Equal(t, 12500.5, withGoal.FundingGoal)

	derived := DeriveTerms(llm.ExtractedResult{Packages: []llm.ExtractedPackage{{Name: "A", Cost: ptr(100.0)}, {Name: "B", Cost: ptr(200.0)}, {Name: "C"}}})
	assert.Equal(t, 600.0, derived.FundingGoal)
	assert.Equal(t, "$600 Sponsorship Program", derived.Title)

	byTerm := DeriveTerms(llm.ExtractedResult{Term: "Fall 2025", Packages: []llm.ExtractedPackage{{Name: "A"}}})
	assert.Zero(t, byTerm.FundingGoal)
	assert.Equal(t, "Fall 2025 Sponsorship", byTerm.Title)

	byCount := DeriveTerms(llm.ExtractedResult{Packages: []llm.ExtractedPackage{{Name: "A"}, {Name: "B"}}})
	assert.Equal(t, "Sponsorship Offer (2 Packages)", byCount.Title)
}

type flakyJobs struct {
	repository.JobRepository
	err   error
	calls int32
}

func (f *flakyJobs) Transition(context.Context, repository.TransitionRequest) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func TestStatusWriterRetryBound(t *testing.T) {
	jobs := &flakyJobs{err: common.ErrDatabase}
	var waits []time.Duration
	w := NewStatusWriter(jobs, testLogger()).WithSleep(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})

	err := w.Complete(context.Background(), "job-x")
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.EqualValues(t, 3, atomic.LoadInt32(&jobs.calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestStatusWriterDoesNotRetryInvalidTransition(t *testing.T) {
	jobs := &flakyJobs{err: common.ErrInvalidTransition}
	w := NewStatusWriter(jobs, testLogger()).WithSleep(noSleep)

	err := w.Fail(context.Background(), "job-x", common.ErrNoExtractableText)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	assert.EqualValues(t, 1, atomic.LoadInt32(&jobs.calls))
}

func TestStatusWriterIgnoresCancelledContext(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "job-c", "https://example.com/c.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.status.Fail(ctx, "job-c", context.DeadlineExceeded))
	status, cat := h.finalStatus(t, "job-c")
	assert.Equal(t, constants.JobStatusError, status)
	assert.Equal(t, constants.ErrorTimeout, cat)
}

func TestReconcilerTimesOutStaleJobs(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "job-stuck", "https://example.com/s.pdf")
	require.NoError(t, h.jobs.Create(context.Background(), &entity.AnalysisJob{ID: "job-waiting", OwnerID: "o", SourceDocumentURL: "u"}))

	r := NewReconciler(h.jobs, h.status, 10*time.Minute, testLogger())
	r.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status, cat := h.finalStatus(t, "job-stuck")
	assert.Equal(t, constants.JobStatusError, status)
	assert.Equal(t, constants.ErrorTimeout, cat)

	status, _ = h.finalStatus(t, "job-waiting")
	assert.Equal(t, constants.JobStatusPending, status, "only analyzing jobs are reconciled")

	n, err = r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

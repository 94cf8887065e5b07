package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/core"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/fetch"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm/openai"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/matcher"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/taxonomy"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/textextract"
)

// App holds the wired pipeline shared by the daemon and the CLI.
type App struct {
	Config *common.Config
	Logger *slog.Logger
	DB     *repository.DB

	Jobs       repository.JobRepository
	Offers     repository.OfferRepository
	Packages   repository.PackageRepository
	Placements repository.PlacementRepository

	Taxonomy  *taxonomy.Cache
	Matcher   matcher.Config
	Status    *core.StatusWriter
	Persister *core.Persister
	Processor *core.Processor
}

// Options tweak Build for callers that do not need the whole pipeline.
type Options struct {
	// Extractor replaces the OpenAI client; nil builds one from cfg.LLM.
	Extractor llm.Extractor
	// SkipSeed leaves the placements table as it is.
	SkipSeed bool
}

// Build opens the database, migrates it, seeds the taxonomy and wires the pipeline.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	mcfg := matcher.FromCommon(cfg.Matcher)
	if err := mcfg.Validate(); err != nil {
		return nil, err
	}

	db, err := repository.OpenFromConfig(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		repository.Close(db, logger)
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		repository.Close(db, logger)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Jobs:       repository.NewJobRepository(db, logger),
		Offers:     repository.NewOfferRepository(db, logger),
		Packages:   repository.NewPackageRepository(db, logger),
		Placements: repository.NewPlacementRepository(db, logger),
		Matcher:    mcfg,
	}

	if !opts.SkipSeed {
		if err := a.Seed(ctx, cfg.TaxonomyPath); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Taxonomy = taxonomy.NewCache(a.Placements, logger)
	if err := a.Taxonomy.Warm(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = openai.NewClient(openai.FromCommon(cfg.LLM), logger)
	}

	a.Status = core.NewStatusWriter(a.Jobs, logger)
	a.Persister = core.NewPersister(a.Offers, a.Packages, a.Placements, a.Taxonomy, mcfg, logger)
	a.Processor = core.NewProcessor(logger, a.Jobs,
		fetch.New(fetch.Config{Timeout: cfg.Fetch.Timeout, MaxBytes: cfg.Fetch.MaxBytes}, logger),
		textextract.NewExtractor(textextract.Config{
			MaxPages:    cfg.Extract.MaxPages,
			MinChars:    cfg.Extract.MinChars,
			BudgetChars: cfg.Extract.BudgetChars,
			Watchdog:    cfg.Extract.Watchdog,
			Pdftotext:   cfg.Extract.Pdftotext,
		}, logger),
		extractor, a.Persister, a.Status)
	return a, nil
}

// Seed appends taxonomy entries from path (or the bundled file) to the placements table.
func (a *App) Seed(ctx context.Context, path string) error {
	entries, err := taxonomy.LoadEntries(path)
	if err != nil {
		return fmt.Errorf("load taxonomy file: %w", err)
	}
	n, err := a.Placements.Seed(ctx, entries)
	if err != nil {
		return fmt.Errorf("seed placements: %w", err)
	}
	a.Logger.Info("taxonomy.seed.ok", "entries", len(entries), "inserted", n)
	return nil
}

func (a *App) Close() {
	repository.Close(a.DB, a.Logger)
}

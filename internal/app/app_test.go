package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/llm"
)

type nopExtractor struct{}

func (nopExtractor) Extract(context.Context, llm.ExtractRequest) (llm.ExtractedResult, []byte, error) {
	return llm.ExtractedResult{}, nil, common.ErrNoPackagesExtracted
}

func sqliteConfig(t *testing.T) *common.Config {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", "file:"+t.Name()+"?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	return common.LoadConfig()
}

func TestBuildSeedsAndWarmsTaxonomy(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, sqliteConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Extractor: nopExtractor{}})
	require.NoError(t, err)
	defer a.Close()

	tax, err := a.Taxonomy.Get(ctx)
	require.NoError(t, err)
	assert.Greater(t, tax.Len(), 30)
	assert.NotNil(t, a.Processor)

	// seeding again inserts nothing
	require.NoError(t, a.Seed(ctx, ""))
	entries, err := a.Placements.ListPlacements(ctx)
	require.NoError(t, err)
	assert.Equal(t, tax.Len(), len(entries))
}

func TestBuildRejectsBadThresholds(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Matcher.MediumThreshold = 0.9
	_, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Extractor: nopExtractor{}})
	assert.Error(t, err)
}

package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/taxonomy"
)

type PlacementRepository interface {
	// Seed inserts entries missing by canonical name. Existing rows are never
	// changed, so IDs stay stable across releases.
	Seed(ctx context.Context, entries []taxonomy.Entry) (inserted int, err error)
	// ListPlacements returns the taxonomy in registration (id) order.
	ListPlacements(ctx context.Context) ([]taxonomy.Entry, error)
	LinkPackage(ctx context.Context, link entity.PackagePlacement) (inserted bool, err error)
	ListLinks(ctx context.Context, packageID uuid.UUID) ([]entity.PackagePlacement, error)
}

var _ taxonomy.Source = PlacementRepository(nil)

type placementRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPlacementRepository(db *DB, logger *slog.Logger) PlacementRepository {
	return &placementRepository{db: db, logger: logger}
}

func (r *placementRepository) Seed(ctx context.Context, entries []taxonomy.Entry) (int, error) {
	inserted := 0
	for _, e := range entries {
		q, args := r.db.builder().Insert(tablePlacements).
			Columns("canonical_name", "category", "is_popular", "aliases").
			Values(e.CanonicalName, string(e.Category), e.IsPopular, jsonList(e.Aliases)).
			OnConflict(entsql.ConflictColumns("canonical_name"), entsql.DoNothing()).
			Query()
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return inserted, dbError(r.logger, "placement.seed", err, "name", e.CanonicalName)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	r.logger.Info("placements seeded", "entries", len(entries), "inserted", inserted)
	return inserted, nil
}

func (r *placementRepository) ListPlacements(ctx context.Context) ([]taxonomy.Entry, error) {
	q, args := r.db.builder().Select("id", "canonical_name", "category", "is_popular", "aliases").
		From(r.db.builder().Table(tablePlacements)).
		OrderBy("id").
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbError(r.logger, "placement.list", err)
	}
	defer rows.Close()

	var out []taxonomy.Entry
	for rows.Next() {
		var (
			e        taxonomy.Entry
			category string
			aliases  string
		)
		if err := rows.Scan(&e.ID, &e.CanonicalName, &category, &e.IsPopular, &aliases); err != nil {
			return nil, dbError(r.logger, "placement.list", err)
		}
		e.Category = constants.PlacementCategory(category)
		e.Aliases = parseList(aliases)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(r.logger, "placement.list", err)
	}
	return out, nil
}

// LinkPackage is idempotent on (package, placement); the first link wins.
func (r *placementRepository) LinkPackage(ctx context.Context, l entity.PackagePlacement) (bool, error) {
	if l.PackageID == uuid.Nil || l.PlacementID == 0 {
		return false, fmt.Errorf("%w: link requires package and placement ids", common.ErrInvalidInput)
	}
	q, args := r.db.builder().Insert(tablePackagePlacements).
		Columns("package_id", "placement_id", "raw_text", "confidence", "method", "score").
		Values(l.PackageID, l.PlacementID, l.RawText, l.Confidence, l.Method, l.Score).
		OnConflict(entsql.ConflictColumns("package_id", "placement_id"), entsql.DoNothing()).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, dbError(r.logger, "placement.link", err, "package_id", l.PackageID, "placement_id", l.PlacementID)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *placementRepository) ListLinks(ctx context.Context, packageID uuid.UUID) ([]entity.PackagePlacement, error) {
	b := r.db.builder()
	l := b.Table(tablePackagePlacements).As("l")
	p := b.Table(tablePlacements).As("p")
	q, args := b.Select(
		l.C("package_id"), l.C("placement_id"), p.C("canonical_name"),
		l.C("raw_text"), l.C("confidence"), l.C("method"), l.C("score"),
	).
		From(l).
		Join(p).On(l.C("placement_id"), p.C("id")).
		Where(entsql.EQ(l.C("package_id"), packageID)).
		OrderBy(l.C("id")).
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbError(r.logger, "placement.list_links", err, "package_id", packageID)
	}
	defer rows.Close()

	var out []entity.PackagePlacement
	for rows.Next() {
		var pp entity.PackagePlacement
		if err := rows.Scan(&pp.PackageID, &pp.PlacementID, &pp.CanonicalName,
			&pp.RawText, &pp.Confidence, &pp.Method, &pp.Score); err != nil {
			return nil, dbError(r.logger, "placement.list_links", err, "package_id", packageID)
		}
		out = append(out, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(r.logger, "placement.list_links", err, "package_id", packageID)
	}
	return out, nil
}

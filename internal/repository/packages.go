package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
)

type PackageRepository interface {
	// Insert writes pkg unless a row with its id exists; inserted reports which.
	Insert(ctx context.Context, pkg *entity.Package) (inserted bool, err error)
	CountByOffer(ctx context.Context, offerID string) (int, error)
	ListByOffer(ctx context.Context, offerID string) ([]*entity.Package, error)
	SetDisplayBenefits(ctx context.Context, id uuid.UUID, benefits []string) error
}

type packageRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPackageRepository(db *DB, logger *slog.Logger) PackageRepository {
	return &packageRepository{db: db, logger: logger}
}

var packageColumns = []string{
	"id", "offer_id", "name", "cost", "position", "raw_placements", "display_benefits", "created_at",
}

func (r *packageRepository) Insert(ctx context.Context, pkg *entity.Package) (bool, error) {
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = time.Now().UTC()
	}
	q, args := r.db.builder().Insert(tablePackages).
		Columns(packageColumns...).
		Values(pkg.ID, pkg.OfferID, pkg.Name, nullable(pkg.Cost), pkg.Position,
			jsonList(pkg.RawPlacements), jsonList(pkg.DisplayBenefits), pkg.CreatedAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, dbError(r.logger, "package.insert", err, "offer_id", pkg.OfferID, "package", pkg.Name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(r.logger, "package.insert", err, "offer_id", pkg.OfferID)
	}
	return n > 0, nil
}

func (r *packageRepository) CountByOffer(ctx context.Context, offerID string) (int, error) {
	q, args := r.db.builder().Select(entsql.Count("*")).
		From(r.db.builder().Table(tablePackages)).
		Where(entsql.EQ("offer_id", offerID)).
		Query()
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, dbError(r.logger, "package.count", err, "offer_id", offerID)
	}
	return n, nil
}

func (r *packageRepository) ListByOffer(ctx context.Context, offerID string) ([]*entity.Package, error) {
	q, args := r.db.builder().Select(packageColumns...).
		From(r.db.builder().Table(tablePackages)).
		Where(entsql.EQ("offer_id", offerID)).
		OrderBy("position").
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbError(r.logger, "package.list", err, "offer_id", offerID)
	}
	defer rows.Close()

	var out []*entity.Package
	for rows.Next() {
		var (
			p             entity.Package
			cost          sql.NullFloat64
			raw, benefits string
		)
		if err := rows.Scan(&p.ID, &p.OfferID, &p.Name, &cost, &p.Position, &raw, &benefits, &p.CreatedAt); err != nil {
			return nil, dbError(r.logger, "package.list", err, "offer_id", offerID)
		}
		if cost.Valid {
			c := cost.Float64
			p.Cost = &c
		}
		p.RawPlacements = parseList(raw)
		p.DisplayBenefits = parseList(benefits)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(r.logger, "package.list", err, "offer_id", offerID)
	}
	return out, nil
}

func (r *packageRepository) SetDisplayBenefits(ctx context.Context, id uuid.UUID, benefits []string) error {
	q, args := r.db.builder().Update(tablePackages).
		Set("display_benefits", jsonList(benefits)).
		Where(entsql.EQ("id", id)).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return dbError(r.logger, "package.set_display_benefits", err, "package_id", id)
	}
	return nil
}

// jsonList encodes a string list for a JSON column; nil encodes as [].
func jsonList(xs []string) string {
	if xs == nil {
		return "[]"
	}
	b, _ := json.Marshal(xs)
	return string(b)
}

func parseList(s string) []string {
	out := []string{}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

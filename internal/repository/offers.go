package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *entity.Offer) error
	Get(ctx context.Context, id string) (*entity.Offer, error)
	UpdateTerms(ctx context.Context, id string, terms entity.OfferTerms) error
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.Offer, error)
}

type offerRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewOfferRepository(db *DB, logger *slog.Logger) OfferRepository {
	return &offerRepository{db: db, logger: logger}
}

var offerColumns = []string{
	"id", "owner_id", "profile_id", "title", "term", "impact",
	"funding_goal", "total_supported", "created_at", "updated_at",
}

// Create inserts the placeholder offer for a job; re-creating it is a no-op.
func (r *offerRepository) Create(ctx context.Context, offer *entity.Offer) error {
	now := time.Now().UTC()
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = now
	}
	offer.UpdatedAt = offer.CreatedAt

	q, args := r.db.builder().Insert(tableOffers).
		Columns(offerColumns...).
		Values(offer.ID, offer.OwnerID, nullable(offer.ProfileID), offer.Title, offer.Term, offer.Impact,
			offer.FundingGoal, nullable(offer.TotalSupported), offer.CreatedAt, offer.UpdatedAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return dbError(r.logger, "offer.create", err, "offer_id", offer.ID)
	}
	return nil
}

func (r *offerRepository) Get(ctx context.Context, id string) (*entity.Offer, error) {
	q, args := r.db.builder().Select(offerColumns...).
		From(r.db.builder().Table(tableOffers)).
		Where(entsql.EQ("id", id)).
		Query()
	offer, err := scanOffer(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: offer %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, dbError(r.logger, "offer.get", err, "offer_id", id)
	}
	return offer, nil
}

func (r *offerRepository) UpdateTerms(ctx context.Context, id string, t entity.OfferTerms) error {
	q, args := r.db.builder().Update(tableOffers).
		Set("title", t.Title).
		Set("term", t.Term).
		Set("impact", t.Impact).
		Set("funding_goal", t.FundingGoal).
		Set("total_supported", nullable(t.TotalSupported)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return dbError(r.logger, "offer.update_terms", err, "offer_id", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: offer %s", common.ErrNotFound, id)
	}
	r.logger.Info("offer updated", "offer_id", id, "title", t.Title, "funding_goal", t.FundingGoal)
	return nil
}

func (r *offerRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Offer, error) {
	q, args := r.db.builder().Select(offerColumns...).
		From(r.db.builder().Table(tableOffers)).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy("created_at", "id").
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbError(r.logger, "offer.list", err, "owner_id", ownerID)
	}
	defer rows.Close()

	var out []*entity.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, dbError(r.logger, "offer.list", err, "owner_id", ownerID)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(r.logger, "offer.list", err, "owner_id", ownerID)
	}
	return out, nil
}

func scanOffer(s rowScanner) (*entity.Offer, error) {
	var (
		o         entity.Offer
		profileID sql.NullString
		supported sql.NullInt64
	)
	if err := s.Scan(&o.ID, &o.OwnerID, &profileID, &o.Title, &o.Term, &o.Impact,
		&o.FundingGoal, &supported, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ProfileID = nullString(profileID)
	if supported.Valid {
		n := int(supported.Int64)
		o.TotalSupported = &n
	}
	return &o, nil
}

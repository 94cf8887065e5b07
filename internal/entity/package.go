package entity

import (
	"time"

	"github.com/google/uuid"
)

// Package is one sponsorship tier of an offer.
type Package struct {
	ID              uuid.UUID `json:"id"`
	OfferID         string    `json:"offer_id"`
	Name            string    `json:"name"`
	Cost            *float64  `json:"cost,omitempty"`
	Position        int       `json:"position"`
	RawPlacements   []string  `json:"raw_placements"`
	DisplayBenefits []string  `json:"display_benefits"`
	CreatedAt       time.Time `json:"created_at"`
}

// PackagePlacement links a package to a canonical placement.
type PackagePlacement struct {
	PackageID     uuid.UUID `json:"package_id"`
	PlacementID   int64     `json:"placement_id"`
	CanonicalName string    `json:"canonical_name,omitempty"`
	RawText       string    `json:"raw_text"`
	Confidence    string    `json:"confidence"`
	Method        string    `json:"method"`
	Score         float64   `json:"score"`
}

// PackageWithPlacements is a package and its links, as returned to clients.
type PackageWithPlacements struct {
	Package
	Placements []PackagePlacement `json:"placements"`
}

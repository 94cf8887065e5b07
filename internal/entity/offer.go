package entity

import "time"

// Offer is the persisted sponsorship offer. Its ID is the analysis job ID.
type Offer struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	ProfileID      *string   `json:"profile_id,omitempty"`
	Title          string    `json:"title"`
	Term           string    `json:"term"`
	Impact         string    `json:"impact"`
	FundingGoal    float64   `json:"funding_goal"`
	TotalSupported *int      `json:"total_supported,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OfferTerms is the derived part of an offer written after extraction.
type OfferTerms struct {
	Title          string
	Term           string
	Impact         string
	FundingGoal    float64
	TotalSupported *int
}

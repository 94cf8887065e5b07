package llm

import "context"

// ExtractedResult is the normalized shape we want from the extraction service.
// Absent numbers are nil, absent strings are "", absent arrays are empty.
type ExtractedResult struct {
	FundingGoal    *float64           `json:"fundingGoal"`
	Term           string             `json:"term"`
	Impact         string             `json:"impact"`
	TotalSupported *int               `json:"totalSupported"`
	Packages       []ExtractedPackage `json:"packages"`
}

type ExtractedPackage struct {
	Name          string   `json:"name"`
	Cost          *float64 `json:"cost"`
	RawPlacements []string `json:"rawPlacements"`
}

type ExtractRequest struct {
	DocumentText string
	JobID        string
}

// Extractor is the interface the pipeline depends on. The raw bytes are the
// service's JSON content before normalization, kept for diagnostics.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (ExtractedResult, []byte, error)
}

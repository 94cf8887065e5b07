package entity

import (
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
)

// AnalysisJob represents an analysis job for data transfer between layers.
type AnalysisJob struct {
	ID                string                   `json:"id"`
	OwnerID           string                   `json:"owner_id"`
	ProfileID         *string                  `json:"profile_id,omitempty"`
	SourceDocumentURL string                   `json:"source_document_url"`
	Status            constants.JobStatus      `json:"status"`
	ErrorCategory     *constants.ErrorCategory `json:"error_category,omitempty"`
	ErrorMessage      *string                  `json:"error_message,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

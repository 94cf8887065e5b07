package constants

// JobStatus is the canonical status for rows in analysis_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending   JobStatus = "pending"   // created, not yet picked up
	JobStatusAnalyzing JobStatus = "analyzing" // submitted to the worker pool
	JobStatusCompleted JobStatus = "completed" // terminal success
	JobStatusError     JobStatus = "error"     // terminal failure
)

// IsTerminal reports whether no further transition may leave this status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusAnalyzing, JobStatusCompleted, JobStatusError:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the job state machine:
// pending -> analyzing -> {completed, error}.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusAnalyzing
	case JobStatusAnalyzing:
		return to == JobStatusCompleted || to == JobStatusError
	default:
		return false
	}
}

// ErrorCategory is the stable, client-facing failure taxonomy.
type ErrorCategory string

const (
	ErrorDownload         ErrorCategory = "download"
	ErrorNoText           ErrorCategory = "no_text"
	ErrorRateLimit        ErrorCategory = "rate_limit"
	ErrorAPI              ErrorCategory = "api_error"
	ErrorNoPackages       ErrorCategory = "no_packages"
	ErrorUnclearStructure ErrorCategory = "unclear_structure"
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorDatabase         ErrorCategory = "database"
	ErrorUnknown          ErrorCategory = "unknown"
)

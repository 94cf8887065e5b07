package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrDatabase          = errors.New("database error")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrAlreadySubmitted  = errors.New("job already submitted")
)

// Pipeline failures. Each maps to exactly one ErrorCategory.
var (
	ErrDownloadFailed      = errors.New("document download failed")
	ErrNoExtractableText   = errors.New("no extractable text")
	ErrExtractionTimeout   = errors.New("extraction timed out")
	ErrRateLimited         = errors.New("extraction service rate limited")
	ErrExtractionAPI       = errors.New("extraction service failed")
	ErrMalformedResponse   = errors.New("malformed extraction response")
	ErrNoPackagesExtracted = errors.New("no packages extracted")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Classify maps a pipeline error to its client-facing category.
func Classify(err error) constants.ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDownloadFailed):
		return constants.ErrorDownload
	case errors.Is(err, ErrNoExtractableText):
		return constants.ErrorNoText
	case errors.Is(err, ErrRateLimited):
		return constants.ErrorRateLimit
	case errors.Is(err, ErrExtractionTimeout), errors.Is(err, context.DeadlineExceeded):
		return constants.ErrorTimeout
	case errors.Is(err, ErrExtractionAPI):
		return constants.ErrorAPI
	case errors.Is(err, ErrNoPackagesExtracted):
		return constants.ErrorNoPackages
	case errors.Is(err, ErrMalformedResponse):
		return constants.ErrorUnclearStructure
	case errors.Is(err, ErrDatabase):
		return constants.ErrorDatabase
	default:
		return constants.ErrorUnknown
	}
}

// ErrorDescription is what a polling client sees for a failed job.
type ErrorDescription struct {
	UserMessage     string
	SuggestedAction string
}

var descriptions = map[constants.ErrorCategory]ErrorDescription{
	constants.ErrorDownload: {
		UserMessage:     "We couldn't download your document.",
		SuggestedAction: "Check that the file link is still valid and try uploading again.",
	},
	constants.ErrorNoText: {
		UserMessage:     "We couldn't find readable text in your document.",
		SuggestedAction: "Upload a text-based PDF rather than a scanned image.",
	},
	constants.ErrorRateLimit: {
		UserMessage:     "Our analysis service is busy right now.",
		SuggestedAction: "Wait a few minutes and try again.",
	},
	constants.ErrorAPI: {
		UserMessage:     "The analysis service returned an error.",
		SuggestedAction: "Try again shortly. If it keeps failing, enter your packages manually.",
	},
	constants.ErrorNoPackages: {
		UserMessage:     "We couldn't find any sponsorship packages in your document.",
		SuggestedAction: "Make sure the document lists package names and prices, or add packages manually.",
	},
	constants.ErrorUnclearStructure: {
		UserMessage:     "We couldn't understand the structure of your document.",
		SuggestedAction: "Try a simpler layout with one package per section, or add packages manually.",
	},
	constants.ErrorTimeout: {
		UserMessage:     "Analyzing your document took too long.",
		SuggestedAction: "Try a shorter document or split it into smaller files.",
	},
	constants.ErrorDatabase: {
		UserMessage:     "We couldn't save the analysis results.",
		SuggestedAction: "Try again. If the problem continues, contact support.",
	},
}

const maxUnknownDetail = 100

// Describe returns the user message and action for a category. For unknown failures the
// internal detail is appended, capped at 100 characters.
func Describe(category constants.ErrorCategory, detail string) ErrorDescription {
	if d, ok := descriptions[category]; ok {
		return d
	}
	msg := "Something went wrong while analyzing your document."
	if detail = strings.TrimSpace(detail); detail != "" {
		msg += " (" + Truncate(detail, maxUnknownDetail) + ")"
	}
	return ErrorDescription{
		UserMessage:     msg,
		SuggestedAction: "Try again. If the problem continues, add packages manually.",
	}
}

// Truncate caps s at n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

// ToStatus converts service errors to gRPC status errors.
func ToStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrAlreadySubmitted):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return InternalError("internal error")
	}
}

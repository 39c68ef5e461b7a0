package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidSource      = errors.New("invalid source URL")
	ErrNoArticles         = errors.New("no valid articles found")
	ErrBrowserUnavailable = errors.New("headless browser unavailable")
	ErrAgentDisabled      = errors.New("agent extractor disabled")
	ErrQuotaExceeded      = errors.New("agent quota exceeded")
	ErrModelNotFound      = errors.New("agent model not found")
	ErrToolUnsupported    = errors.New("model does not support the search tool")
	ErrBatchInFlight      = errors.New("enrichment batch already running")
)

// ExtractionError reports that a strategy's upstream dependency confirmed
// it cannot proceed. Distinct from finding nothing, which is an empty
// result with a nil error. Permanent errors disable the strategy for the
// remainder of the process run.
type ExtractionError struct {
	Strategy  string
	Permanent bool
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (strategy=%s): %v", e.Strategy, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// FetchError wraps errors that occur during page fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// StorageError wraps errors from the storage collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

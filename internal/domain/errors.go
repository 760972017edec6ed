package domain

import "fmt"

// ValidationError reports bad caller input, such as an empty station code.
// Surfaced immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError reports a failure retrieving station data: either a non-2xx
// response, carrying the server's detail text and status code, or a
// transport-level failure, carrying the cause. Not retried automatically.
type FetchError struct {
	StatusCode int    // 0 for transport failures
	Detail     string // server-provided detail, if any
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("station data fetch failed: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("station data fetch failed: %s", e.Detail)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// AnalysisUnavailableError reports that the backing model is not ready to
// serve an analysis request. Maps to HTTP 503 at the API boundary.
type AnalysisUnavailableError struct {
	Model  string
	Detail string
}

func (e *AnalysisUnavailableError) Error() string {
	return fmt.Sprintf("model %q unavailable: %s", e.Model, e.Detail)
}

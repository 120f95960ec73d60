package llm

import "fmt"

// APIError is a provider-level failure: a non-200 response, an in-stream
// error object, or a transport error while talking to the provider. The
// raw body is retained so callers can pattern-match the provider's
// message without parsing vendor-specific error shapes.
type APIError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("provider request failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("provider error: %s", e.Body)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

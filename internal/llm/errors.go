package llm

import "fmt"

// APIError preserves the upstream HTTP status and response body when the
// endpoint answers outside the 2xx range
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("llm endpoint returned status %d: %s", e.StatusCode, e.Body)
}

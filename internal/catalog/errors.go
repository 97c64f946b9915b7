package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the catalog after retries were
// exhausted. Transient conditions (rate limiting, server errors) are
// retried inside the HTTP client; an APIError reaching a caller is
// either permanent or a transient condition that outlived its retries.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Temporary reports whether the error could succeed on a later attempt.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsAuthError reports whether err is a permanent authentication or
// authorization rejection from the catalog.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

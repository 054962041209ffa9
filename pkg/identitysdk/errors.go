package identitysdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the identity backend.
const (
	ErrorCodeInvalidRequest   = "invalid_request"
	ErrorCodeValidation       = "validation_failed"
	ErrorCodeInvalidGrant     = "invalid_grant"
	ErrorCodeInvalidToken     = "invalid_token"
	ErrorCodeEmailTaken       = "email_taken"
	ErrorCodePermissionDenied = "permission_denied"
	ErrorCodeNotFound         = "not_found"
	ErrorCodeRateLimited      = "rate_limit_exceeded"
	ErrorCodeUnsupported      = "unsupported_provider"
	ErrorCodeServerError      = "server_error"
)

var (
	// ErrNoSession is returned by calls that need a signed-in user.
	ErrNoSession = errors.New("identitysdk: no active session")

	// ErrProfileNotFound is returned by GetProfile for a missing row.
	ErrProfileNotFound = errors.New("identitysdk: profile not found")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Temporary reports whether retrying the same request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns a non-2xx response into an *APIError, falling back
// to the status text when the body is not the usual JSON shape.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err == nil && apiErr.Code != "" {
		return apiErr
	}

	apiErr.Code = ErrorCodeServerError
	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.Code = ErrorCodeNotFound
	case http.StatusUnauthorized:
		apiErr.Code = ErrorCodeInvalidToken
	case http.StatusForbidden:
		apiErr.Code = ErrorCodePermissionDenied
	}
	apiErr.Description = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return apiErr
}

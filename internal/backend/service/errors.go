package service

import (
	"errors"

	"github.com/aussiebroadwan/askbar/pkg/validx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidGrant       = errors.New("invalid_grant")
	ErrEmailTaken         = errors.New("email_taken")
	ErrNotFound           = errors.New("not_found")
	ErrPermissionDenied   = errors.New("permission_denied")
	ErrProfileExists      = errors.New("profile_exists")
)

// ValidationError wraps a rejected input. Its message is safe to return to
// the client.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return validx.Message(e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

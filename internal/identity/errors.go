package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/validx"
	"github.com/go-playground/validator/v10"
)

// Kind selects the message shown for a failure. It never changes control flow.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindProviderAuth
	KindValidation
	KindPermission
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindProviderAuth:
		return "provider_auth"
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

var (
	ErrUsernameTaken = errors.New("identity: username already taken")
	ErrNotSignedIn   = errors.New("identity: not signed in")
	ErrClosed        = errors.New("identity: manager closed")
)

// Error is returned by every mutation. Msg is safe to show to the user.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrap classifies err for op, keeping err reachable through errors.Is/As.
func wrap(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	kind := Classify(err)
	return &Error{Kind: kind, Op: op, Msg: message(kind, err), Err: err}
}

// Classify guesses the kind of err: typed errors first, then the message.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var ve validator.ValidationErrors
	switch {
	case errors.Is(err, ErrUsernameTaken), errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrNotSignedIn), errors.Is(err, identitysdk.ErrNoSession):
		return KindProviderAuth
	case errors.Is(err, identitysdk.ErrProfileNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}

	var apiErr *identitysdk.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == identitysdk.ErrorCodeInvalidGrant,
			apiErr.Code == identitysdk.ErrorCodeInvalidToken,
			apiErr.StatusCode == http.StatusUnauthorized:
			return KindProviderAuth
		case apiErr.Code == identitysdk.ErrorCodeValidation,
			apiErr.Code == identitysdk.ErrorCodeInvalidRequest,
			apiErr.Code == identitysdk.ErrorCodeEmailTaken:
			return KindValidation
		case apiErr.Code == identitysdk.ErrorCodePermissionDenied,
			apiErr.StatusCode == http.StatusForbidden:
			return KindPermission
		case apiErr.StatusCode == http.StatusNotFound:
			return KindNotFound
		case apiErr.Temporary():
			return KindNetwork
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "network", "connection refused", "timeout", "no such host", "eof", "fetch"):
		return KindNetwork
	case containsAny(msg, "invalid login", "invalid credentials", "jwt", "token", "unauthorized", "email not confirmed"):
		return KindProviderAuth
	case containsAny(msg, "duplicate", "already", "invalid", "required", "must be"):
		return KindValidation
	case containsAny(msg, "permission", "forbidden", "not allowed", "row-level security"):
		return KindPermission
	case containsAny(msg, "not found", "no rows"):
		return KindNotFound
	}
	return KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// message picks the user-facing text for a failure.
func message(kind Kind, err error) string {
	switch {
	case errors.Is(err, ErrUsernameTaken):
		return "That username is already taken."
	case errors.Is(err, ErrNotSignedIn):
		return "You need to be signed in to do that."
	case identitysdk.IsCode(err, identitysdk.ErrorCodeEmailTaken):
		return "An account with that email already exists."
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return validx.Message(err)
	}

	switch kind {
	case KindNetwork:
		return "We couldn't reach the server. Check your connection and try again."
	case KindProviderAuth:
		return "Invalid email or password, or your session has expired."
	case KindValidation:
		return "Some of the details you entered are not valid."
	case KindPermission:
		return "You don't have permission to do that."
	case KindNotFound:
		return "We couldn't find what you were looking for."
	default:
		return "Something went wrong. Please try again."
	}
}

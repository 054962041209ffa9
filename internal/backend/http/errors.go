package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/askbar/internal/backend/service"
	"github.com/aussiebroadwan/askbar/pkg/httpx"
	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/slogx"
)

// writeServiceError maps service errors onto the error codes clients
// understand. Anything unexpected is logged and reported as server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeValidation, ve.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidGrant, "invalid email or password")
	case errors.Is(err, service.ErrInvalidGrant):
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidGrant, "refresh token is invalid, expired or revoked")
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, identitysdk.ErrorCodeEmailTaken, "an account with this email already exists")
	case errors.Is(err, service.ErrProfileExists):
		httpx.WriteError(w, http.StatusConflict, identitysdk.ErrorCodeInvalidRequest, "profile already exists")
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, identitysdk.ErrorCodeNotFound, "not found")
	case errors.Is(err, service.ErrPermissionDenied):
		httpx.WriteError(w, http.StatusForbidden, identitysdk.ErrorCodePermissionDenied, "not the owner of this resource")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, identitysdk.ErrorCodeServerError, "internal error")
	}
}

func writeInvalidRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeInvalidRequest, desc)
}

// parseForm accepts only url-encoded bodies.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/x-www-form-urlencoded") {
		writeInvalidRequest(w, "content type must be application/x-www-form-urlencoded")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, httpx.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeInvalidRequest(w, "malformed form body")
		return false
	}
	return true
}

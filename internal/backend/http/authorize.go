package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/askbar/pkg/httpx"
	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/slogx"
)

// AuthorizeHandler is the start of the OAuth redirect flow. The backend
// federates with no external providers, so a well-formed request is
// answered with unsupported_provider.
//
//	@Summary		Start OAuth sign-in
//	@Description	Validates a PKCE authorization request for an external provider.
//	@Tags			Accounts
//	@Produce		json
//	@Param			provider				query		string	true	"External provider"
//	@Param			code_challenge			query		string	true	"PKCE challenge"
//	@Param			code_challenge_method	query		string	true	"PKCE method"	Enums(S256)
//	@Param			redirect_to				query		string	false	"Where to send the user afterwards"
//	@Failure		400						{object}	httpx.ErrorResponse	"invalid_request, unsupported_provider"
//	@Router			/v1/authorize [get]
func AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		provider := strings.ToLower(strings.TrimSpace(q.Get("provider")))

		switch {
		case provider == "":
			writeInvalidRequest(w, "provider is required")
			return
		case q.Get("code_challenge") == "":
			writeInvalidRequest(w, "code_challenge is required")
			return
		case q.Get("code_challenge_method") != "S256":
			writeInvalidRequest(w, "code_challenge_method must be S256")
			return
		}

		slogx.FromContext(r.Context()).Info("oauth provider not available", "provider", provider)
		httpx.WriteError(w, http.StatusBadRequest, identitysdk.ErrorCodeUnsupported,
			"sign-in with "+provider+" is not available")
	}
}

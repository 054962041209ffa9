package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
	"github.com/aussiebroadwan/askbar/internal/backend/service"
	"github.com/aussiebroadwan/askbar/pkg/httpx"
	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/slogx"
)

// AccountHandler serves sign-up, the token endpoint, revocation and the
// signed-in user's record.
type AccountHandler struct {
	Accounts *service.AccountService
}

// HandleSignUp godoc
//
//	@Summary		Sign up
//	@Description	Creates an identity and signs it in. Metadata is stored on the user record.
//	@Tags			Accounts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		identitysdk.SignUpRequest	true	"email, password, metadata"
//	@Success		201		{object}	identitysdk.TokenResponse
//	@Failure		400		{object}	httpx.ErrorResponse	"invalid_request, validation_failed"
//	@Failure		409		{object}	httpx.ErrorResponse	"email_taken"
//	@Failure		429		{object}	httpx.ErrorResponse	"rate_limit_exceeded"
//	@Router			/v1/signup [post]
func (h *AccountHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.SignUpRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	pair, err := h.Accounts.SignUp(r.Context(), req.Email, req.Password, req.Metadata)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(pair))
}

// HandleToken godoc
//
//	@Summary		Token endpoint
//	@Description	Issues an access and refresh token. The password grant opens a new session; the refresh grant rotates the refresh token and keeps the session.
//	@Tags			Accounts
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string	true	"Grant type"	Enums(password, refresh_token)
//	@Param			email			formData	string	false	"Email (password grant)"
//	@Param			password		formData	string	false	"Password (password grant)"
//	@Param			refresh_token	formData	string	false	"Refresh token (refresh_token grant)"
//	@Success		200				{object}	identitysdk.TokenResponse
//	@Failure		400				{object}	httpx.ErrorResponse	"invalid_request, invalid_grant"
//	@Failure		429				{object}	httpx.ErrorResponse	"rate_limit_exceeded"
//	@Header			200				{string}	Cache-Control	"no-store"
//	@Router			/v1/token [post]
func (h *AccountHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	var (
		pair *domain.TokenPair
		err  error
	)
	switch grant := r.PostForm.Get("grant_type"); grant {
	case service.GrantPassword:
		pair, err = h.Accounts.PasswordGrant(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	case service.GrantRefresh:
		refresh := strings.TrimSpace(r.PostForm.Get("refresh_token"))
		if refresh == "" {
			writeInvalidRequest(w, "refresh_token is required")
			return
		}
		pair, err = h.Accounts.RefreshGrant(r.Context(), refresh)
	case "":
		writeInvalidRequest(w, "grant_type is required")
		return
	default:
		writeInvalidRequest(w, "unsupported grant_type "+grant)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleRevoke godoc
//
//	@Summary		Revoke session
//	@Description	Ends the session the refresh token belongs to. Unknown tokens are accepted so the call is idempotent.
//	@Tags			Accounts
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			token	formData	string	true	"Refresh token"
//	@Success		200		"Session revoked (or already gone)"
//	@Failure		400		{object}	httpx.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	httpx.ErrorResponse	"invalid_token"
//	@Router			/v1/token/revoke [post]
func (h *AccountHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		writeInvalidRequest(w, "token is required")
		return
	}

	ctx := r.Context()
	if err := h.Accounts.Revoke(ctx, httpx.UserIDFromContext(ctx), token); err != nil {
		slogx.FromContext(ctx).Warn("revoke failed", "err", err)
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// HandleGetUser godoc
//
//	@Summary		Current user
//	@Tags			Accounts
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	identitysdk.User
//	@Failure		401	{object}	httpx.ErrorResponse	"invalid_token"
//	@Failure		404	{object}	httpx.ErrorResponse	"not_found"
//	@Router			/v1/user [get]
func (h *AccountHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Accounts.GetUser(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse(u))
}

// HandleUpdateUser godoc
//
//	@Summary		Update current user
//	@Description	Changes email, password or metadata. Omitted fields are left alone.
//	@Tags			Accounts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		identitysdk.UserUpdate	true	"fields to change"
//	@Success		200		{object}	identitysdk.User
//	@Failure		400		{object}	httpx.ErrorResponse	"invalid_request, validation_failed"
//	@Failure		401		{object}	httpx.ErrorResponse	"invalid_token"
//	@Failure		409		{object}	httpx.ErrorResponse	"email_taken"
//	@Router			/v1/user [patch]
func (h *AccountHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.UserUpdate
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	u, err := h.Accounts.UpdateUser(r.Context(), httpx.UserIDFromContext(r.Context()), domain.UserUpdate{
		Email:    req.Email,
		Password: req.Password,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse(u))
}

func tokenResponse(p *domain.TokenPair) identitysdk.TokenResponse {
	return identitysdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
	}
}

func userResponse(u domain.User) identitysdk.User {
	return identitysdk.User{ID: u.ID, Email: u.Email, Metadata: u.Metadata}
}

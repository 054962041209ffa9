package http

import (
	"net/http"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
	"github.com/aussiebroadwan/askbar/internal/backend/service"
	"github.com/aussiebroadwan/askbar/pkg/httpx"
	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
)

// ProfilesHandler serves the profile table and notification preferences.
type ProfilesHandler struct {
	Profiles *service.ProfileService
}

// HandleGet godoc
//
//	@Summary	Get profile
//	@Tags		Profiles
//	@Produce	json
//	@Param		id	path		string	true	"Identity id"
//	@Success	200	{object}	identitysdk.Profile
//	@Failure	404	{object}	httpx.ErrorResponse	"not_found"
//	@Router		/v1/profiles/{id} [get]
func (h *ProfilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profileResponse(p))
}

// HandleUsername godoc
//
//	@Summary		Username availability
//	@Description	Advisory only: a free name can still be claimed by a concurrent sign-up.
//	@Tags			Profiles
//	@Produce		json
//	@Param			username	path		string	true	"Username"
//	@Success		200			{object}	identitysdk.UsernameAvailability
//	@Failure		400			{object}	httpx.ErrorResponse	"validation_failed"
//	@Router			/v1/usernames/{username} [get]
func (h *ProfilesHandler) HandleUsername(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	available, err := h.Profiles.UsernameAvailable(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, identitysdk.UsernameAvailability{Username: username, Available: available})
}

// HandleCreate godoc
//
//	@Summary		Create profile
//	@Description	Creates the caller's profile with level 1, no points and the user role.
//	@Tags			Profiles
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		identitysdk.NewProfile	true	"id, username, email"
//	@Success		201		{object}	identitysdk.Profile
//	@Failure		400		{object}	httpx.ErrorResponse	"invalid_request, validation_failed"
//	@Failure		403		{object}	httpx.ErrorResponse	"permission_denied"
//	@Failure		409		{object}	httpx.ErrorResponse	"profile already exists"
//	@Router			/v1/profiles [post]
func (h *ProfilesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.NewProfile
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	p, err := h.Profiles.Create(r.Context(), httpx.UserIDFromContext(r.Context()), service.NewProfileInput{
		ID:       req.ID,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, profileResponse(p))
}

// HandleUpdate godoc
//
//	@Summary		Update profile
//	@Description	Applies the fields present in the body. The bio is stripped of markup.
//	@Tags			Profiles
//	@Accept			json
//	@Security		BearerAuth
//	@Param			id		path	string					true	"Identity id"
//	@Param			request	body	identitysdk.ProfilePatch	true	"fields to change"
//	@Success		204
//	@Failure		400	{object}	httpx.ErrorResponse	"invalid_request, validation_failed"
//	@Failure		403	{object}	httpx.ErrorResponse	"permission_denied"
//	@Failure		404	{object}	httpx.ErrorResponse	"not_found"
//	@Router			/v1/profiles/{id} [patch]
func (h *ProfilesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.ProfilePatch
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	err := h.Profiles.Update(r.Context(), httpx.UserIDFromContext(r.Context()), r.PathValue("id"), domain.ProfileUpdate{
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		Bio:       req.Bio,
		Interests: req.Interests,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreatePreferences godoc
//
//	@Summary	Create default notification preferences
//	@Tags		Profiles
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Identity id"
//	@Success	204
//	@Failure	403	{object}	httpx.ErrorResponse	"permission_denied"
//	@Router		/v1/profiles/{id}/preferences [post]
func (h *ProfilesHandler) HandleCreatePreferences(w http.ResponseWriter, r *http.Request) {
	err := h.Profiles.CreateDefaultPreferences(r.Context(), httpx.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPreferences godoc
//
//	@Summary	Get notification preferences
//	@Tags		Profiles
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Identity id"
//	@Success	200	{object}	identitysdk.NotificationPreferences
//	@Failure	403	{object}	httpx.ErrorResponse	"permission_denied"
//	@Failure	404	{object}	httpx.ErrorResponse	"not_found"
//	@Router		/v1/profiles/{id}/preferences [get]
func (h *ProfilesHandler) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.GetPreferences(r.Context(), httpx.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, identitysdk.NotificationPreferences{
		UserID:         p.UserID,
		EmailOnAnswer:  p.EmailOnAnswer,
		EmailOnMention: p.EmailOnMention,
		WeeklyDigest:   p.WeeklyDigest,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	})
}

func profileResponse(p domain.Profile) identitysdk.Profile {
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	return identitysdk.Profile{
		ID:             p.ID,
		Username:       p.Username,
		Email:          p.Email,
		AvatarURL:      p.AvatarURL,
		Bio:            p.Bio,
		Level:          p.Level,
		Points:         p.Points,
		Role:           identitysdk.Role(p.Role),
		QuestionsAsked: p.QuestionsAsked,
		AnswersGiven:   p.AnswersGiven,
		BestAnswers:    p.BestAnswers,
		Reputation:     p.Reputation,
		Interests:      interests,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

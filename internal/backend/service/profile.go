package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
	"github.com/aussiebroadwan/askbar/internal/backend/store"
	"github.com/aussiebroadwan/askbar/pkg/idx"
	"github.com/aussiebroadwan/askbar/pkg/slogx"
	"github.com/aussiebroadwan/askbar/pkg/validx"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// NewProfileInput is the row a client creates right after sign-up.
type NewProfileInput struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

type profileUpdateInput struct {
	Username  *string   `json:"username" validate:"omitempty,username"`
	AvatarURL *string   `json:"avatar_url" validate:"omitempty,http_url,max=2048"`
	Bio       *string   `json:"bio" validate:"omitempty,max=500"`
	Interests *[]string `json:"interests" validate:"omitempty,max=5,dive,min=1,max=32"`
}

type usernameInput struct {
	Username string `json:"username" validate:"required,username"`
}

// ProfileService owns the profile table. Only the owner of a row may create
// or change it; reads are public.
type ProfileService struct {
	Store store.Store

	validate *validator.Validate
	policy   *bluemonday.Policy
}

func NewProfileService(st store.Store) *ProfileService {
	return &ProfileService{
		Store:    st,
		validate: validx.New(),
		policy:   bluemonday.StrictPolicy(),
	}
}

func (s *ProfileService) Get(ctx context.Context, id string) (domain.Profile, error) {
	if !idx.Valid(id) {
		return domain.Profile{}, ErrNotFound
	}
	p, err := s.Store.Profiles().GetProfile(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Profile{}, ErrNotFound
	}
	return p, err
}

// UsernameAvailable reports whether no profile uses username. The answer
// is advisory: nothing stops two sign-ups from claiming the same name.
func (s *ProfileService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	in := usernameInput{Username: strings.TrimSpace(username)}
	if err := s.validate.Struct(in); err != nil {
		return false, invalid(err)
	}
	exists, err := s.Store.Profiles().UsernameExists(ctx, in.Username)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Create inserts the caller's profile with level 1, no points and the user
// role.
func (s *ProfileService) Create(ctx context.Context, callerID string, in NewProfileInput) (domain.Profile, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return domain.Profile{}, invalid(err)
	}
	if in.ID != callerID {
		return domain.Profile{}, ErrPermissionDenied
	}

	p := domain.Profile{
		ID:        in.ID,
		Username:  in.Username,
		Email:     in.Email,
		Level:     1,
		Points:    0,
		Role:      domain.RoleUser,
		Interests: []string{},
	}
	if err := s.Store.Profiles().CreateProfile(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Profile{}, ErrProfileExists
		}
		return domain.Profile{}, err
	}

	slogx.FromContext(ctx).Info("profile created",
		slog.String("user_id", p.ID),
		slog.String("username", p.Username),
	)
	return s.Get(ctx, p.ID)
}

// Update applies the non-nil fields of upd to the caller's own profile. The
// bio is stripped of markup before it is stored.
func (s *ProfileService) Update(ctx context.Context, callerID, id string, upd domain.ProfileUpdate) error {
	if id != callerID {
		return ErrPermissionDenied
	}
	if upd.IsEmpty() {
		return nil
	}

	in := profileUpdateInput(upd)
	if err := s.validate.Struct(in); err != nil {
		return invalid(err)
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(s.policy.Sanitize(*upd.Bio))
		upd.Bio = &bio
	}

	err := s.Store.Profiles().UpdateProfile(ctx, id, upd)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateDefaultPreferences provisions notification preferences for the
// caller. Calling it twice is harmless.
func (s *ProfileService) CreateDefaultPreferences(ctx context.Context, callerID, id string) error {
	if id != callerID {
		return ErrPermissionDenied
	}
	return s.Store.Preferences().CreateDefaultPreferences(ctx, id)
}

func (s *ProfileService) GetPreferences(ctx context.Context, callerID, id string) (domain.NotificationPreferences, error) {
	if id != callerID {
		return domain.NotificationPreferences{}, ErrPermissionDenied
	}
	p, err := s.Store.Preferences().GetPreferences(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotificationPreferences{}, ErrNotFound
	}
	return p, err
}

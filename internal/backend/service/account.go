package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/askbar/internal/backend/domain"
	"github.com/aussiebroadwan/askbar/internal/backend/metrics"
	"github.com/aussiebroadwan/askbar/internal/backend/store"
	"github.com/aussiebroadwan/askbar/pkg/cryptox"
	"github.com/aussiebroadwan/askbar/pkg/idx"
	"github.com/aussiebroadwan/askbar/pkg/jwtx"
	"github.com/aussiebroadwan/askbar/pkg/slogx"
	"github.com/aussiebroadwan/askbar/pkg/validx"
	"github.com/go-playground/validator/v10"
)

// Grant names used for metrics.
const (
	GrantSignUp   = "signup"
	GrantPassword = "password"
	GrantRefresh  = "refresh_token"
)

type signUpInput struct {
	Email    string            `json:"email" validate:"required,email,max=254"`
	Password string            `json:"password" validate:"required,min=8,max=72"`
	Metadata map[string]string `json:"metadata" validate:"max=16,dive,keys,min=1,max=64,endkeys,max=256"`
}

type userUpdateInput struct {
	Email    *string           `json:"email" validate:"omitempty,email,max=254"`
	Password *string           `json:"password" validate:"omitempty,min=8,max=72"`
	Metadata map[string]string `json:"metadata" validate:"max=16,dive,keys,min=1,max=64,endkeys,max=256"`
}

// AccountService owns identities and their refresh-token sessions.
type AccountService struct {
	Store      store.Store
	Signer     jwtx.Signer
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Metrics    *metrics.Collector

	validate *validator.Validate
	now      func() time.Time
}

func NewAccountService(st store.Store, signer jwtx.Signer, issuer string, audience []string, m *metrics.Collector) *AccountService {
	return &AccountService{
		Store:      st,
		Signer:     signer,
		Issuer:     issuer,
		Audience:   audience,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
		Metrics:    m,
		validate:   validx.New(),
		now:        time.Now,
	}
}

// SignUp creates an identity and opens its first session. Metadata is kept
// on the user record as given.
func (s *AccountService) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.TokenPair, error) {
	in := signUpInput{Email: strings.TrimSpace(email), Password: password, Metadata: metadata}
	if err := s.validate.Struct(in); err != nil {
		s.Metrics.RecordGrant(GrantSignUp, "validation_failed")
		return nil, invalid(err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        in.Email,
		PasswordHash: hash,
		Metadata:     metadata,
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		pair, err = s.issue(ctx, tx.RefreshTokens(), u, idx.New().String())
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.Metrics.RecordGrant(GrantSignUp, "email_taken")
		}
		return nil, err
	}

	slogx.FromContext(ctx).Info("identity created", slog.String("user_id", u.ID))
	s.Metrics.RecordSignUp()
	s.Metrics.RecordGrant(GrantSignUp, "ok")
	return pair, nil
}

// PasswordGrant signs in with email and password and opens a new session.
func (s *AccountService) PasswordGrant(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.Metrics.RecordGrant(GrantPassword, "invalid_request")
		return nil, ErrInvalidCredentials
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.RecordGrant(GrantPassword, "invalid_grant")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		slogx.FromContext(ctx).Info("password grant rejected", slog.String("user_id", u.ID))
		s.Metrics.RecordGrant(GrantPassword, "invalid_grant")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, s.Store.RefreshTokens(), u, idx.New().String())
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordGrant(GrantPassword, "ok")
	return pair, nil
}

// RefreshGrant rotates a refresh token. The old token is revoked and the new
// pair keeps the session id.
func (s *AccountService) RefreshGrant(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := s.now()

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.RecordGrant(GrantRefresh, "invalid_grant")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if rt.Revoked || now.After(rt.ExpiresAt) {
		s.Metrics.RecordGrant(GrantRefresh, "invalid_grant")
		return nil, ErrInvalidGrant
	}

	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		pair, err = s.issue(ctx, tx.RefreshTokens(), u, rt.SessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordGrant(GrantRefresh, "ok")
	return pair, nil
}

// Revoke ends the session a refresh token belongs to. Unknown tokens and
// tokens of other users are ignored.
func (s *AccountService) Revoke(ctx context.Context, userID, refreshOpaque string) error {
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshOpaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if rt.UserID != userID {
		slogx.FromContext(ctx).Warn("revoke of foreign token ignored",
			slog.String("user_id", userID),
			slog.String("owner_id", rt.UserID),
		)
		return nil
	}

	if err := s.Store.RefreshTokens().RevokeSession(ctx, rt.SessionID); err != nil {
		return err
	}
	s.Metrics.RecordRevocation()
	return nil
}

func (s *AccountService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// UpdateUser applies upd and returns the stored user.
func (s *AccountService) UpdateUser(ctx context.Context, userID string, upd domain.UserUpdate) (domain.User, error) {
	in := userUpdateInput{Email: upd.Email, Password: upd.Password, Metadata: upd.Metadata}
	if in.Email != nil {
		trimmed := strings.TrimSpace(*in.Email)
		in.Email = &trimmed
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.User{}, invalid(err)
	}

	var hash string
	if in.Password != nil {
		h, err := cryptox.HashPassword(*in.Password)
		if err != nil {
			return domain.User{}, err
		}
		hash = h
	}

	var out domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		users := tx.Users()
		if in.Email != nil {
			if err := users.UpdateEmail(ctx, userID, *in.Email); err != nil {
				if errors.Is(err, store.ErrAlreadyExists) {
					return ErrEmailTaken
				}
				return err
			}
		}
		if hash != "" {
			if err := users.UpdatePasswordHash(ctx, userID, hash); err != nil {
				return err
			}
		}
		if in.Metadata != nil {
			if err := users.UpdateMetadata(ctx, userID, in.Metadata); err != nil {
				return err
			}
		}

		u, err := users.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return out, err
}

// issue signs an access token and stores a fresh refresh token under
// sessionID.
func (s *AccountService) issue(ctx context.Context, rts store.RefreshTokens, u domain.User, sessionID string) (*domain.TokenPair, error) {
	now := s.now()

	claims := jwtx.NewAccessClaims(u.ID, sessionID, u.Email, s.AccessTTL, s.Issuer, s.Audience, now)
	access, err := s.Signer.Sign(claims)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to sign access token", "error", err)
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		ExpiresAt: now.Add(s.RefreshTTL),
	}
	if err := rts.CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshOpaque,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

package identitysdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/askbar/pkg/cryptox"
)

func tokenForm(grantType string, kv ...string) url.Values {
	data := url.Values{"grant_type": {grantType}}
	for i := 0; i+1 < len(kv); i += 2 {
		data.Set(kv[i], kv[i+1])
	}
	return data
}

// SignUp creates an identity and signs it in. Publishes SIGNED_IN.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Session, error) {
	var tok TokenResponse
	req := SignUpRequest{Email: email, Password: password, Metadata: metadata}
	if err := c.do(ctx, http.MethodPost, "/v1/signup", "", req, &tok); err != nil {
		return nil, err
	}

	sess, err := c.sessionFromToken(tok, metadata)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(sess, EventSignedIn); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// SignInWithPassword runs the password grant. Publishes SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var tok TokenResponse
	form := tokenForm("password", "email", email, "password", password)
	if err := c.do(ctx, http.MethodPost, "/v1/token", "", form, &tok); err != nil {
		return nil, err
	}

	sess, err := c.sessionFromToken(tok, nil)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(sess, EventSignedIn); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// SignOut revokes the refresh token and forgets the local session even when
// the revoke call fails. Publishes SIGNED_OUT when a session existed. The
// revoke error, if any, is returned.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.RLock()
	sess := c.session.Clone()
	loaded := c.loaded
	c.mu.RUnlock()

	if !loaded {
		c.mu.Lock()
		if !c.loaded {
			restored, err := c.loadSessionLocked()
			if err != nil {
				c.mu.Unlock()
				return err
			}
			c.session, c.loaded = restored, true
		}
		sess = c.session.Clone()
		c.mu.Unlock()
	}
	if sess == nil {
		return nil
	}

	revokeErr := c.do(ctx, http.MethodPost, "/v1/token/revoke", sess.AccessToken,
		url.Values{"token": {sess.RefreshToken}}, nil)
	if IsCode(revokeErr, ErrorCodeInvalidGrant) || IsCode(revokeErr, ErrorCodeInvalidToken) {
		// Already gone server side.
		revokeErr = nil
	}

	if err := c.setSession(nil, EventSignedOut); err != nil {
		return errors.Join(revokeErr, err)
	}
	return revokeErr
}

// SignInWithOAuth prepares a PKCE authorization redirect for provider and
// returns the URL the user agent should navigate to. The code verifier is
// kept in storage for the callback.
func (c *Client) SignInWithOAuth(_ context.Context, provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("identitysdk: provider is required")
	}

	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	if err := c.Storage.Set(c.verifierKey(), verifier); err != nil {
		return "", fmt.Errorf("identitysdk: store code verifier: %w", err)
	}

	q := url.Values{
		"provider":              {provider},
		"code_challenge":        {cryptox.CodeChallengeS256(verifier)},
		"code_challenge_method": {"S256"},
	}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.url("/v1/authorize?" + q.Encode()), nil
}

// GetUser fetches the signed-in identity from the backend.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.doAuth(ctx, http.MethodGet, "/v1/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser changes identity-level fields. Publishes USER_UPDATED with the
// session carrying the new user.
func (c *Client) UpdateUser(ctx context.Context, upd UserUpdate) (*User, error) {
	var u User
	if err := c.doAuth(ctx, http.MethodPatch, "/v1/user", upd, &u); err != nil {
		return nil, err
	}

	c.mu.RLock()
	sess := c.session.Clone()
	c.mu.RUnlock()
	if sess == nil {
		return &u, nil
	}

	sess.User = u
	if err := c.setSession(sess, EventUserUpdated); err != nil {
		return nil, err
	}
	return &u, nil
}

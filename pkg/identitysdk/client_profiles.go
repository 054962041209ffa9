package identitysdk

import (
	"context"
	"net/http"
	"net/url"
)

// GetProfile fetches the profile row for an identity id. A missing row is
// reported as ErrProfileNotFound.
func (c *Client) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(id), c.bearer(ctx), nil, &p)
	if IsCode(err, ErrorCodeNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UsernameAvailable reports whether no profile uses username yet.
func (c *Client) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var out UsernameAvailability
	if err := c.do(ctx, http.MethodGet, "/v1/usernames/"+url.PathEscape(username), "", nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// InsertProfile creates the profile row for the signed-in identity.
func (c *Client) InsertProfile(ctx context.Context, p NewProfile) (*Profile, error) {
	var out Profile
	if err := c.doAuth(ctx, http.MethodPost, "/v1/profiles", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile persists the patch. The backend answers 204; callers merge
// the patch into their own copy.
func (c *Client) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error {
	return c.doAuth(ctx, http.MethodPatch, "/v1/profiles/"+url.PathEscape(id), patch, nil)
}

// CreateDefaultPreferences provisions notification preferences for id.
func (c *Client) CreateDefaultPreferences(ctx context.Context, id string) error {
	return c.doAuth(ctx, http.MethodPost, "/v1/profiles/"+url.PathEscape(id)+"/preferences", nil, nil)
}

// GetPreferences reads the signed-in user's notification preferences.
func (c *Client) GetPreferences(ctx context.Context, id string) (*NotificationPreferences, error) {
	var out NotificationPreferences
	if err := c.doAuth(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(id)+"/preferences", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// bearer returns the cached access token without refreshing. Profile reads
// are public, the token only lets the backend log who asked.
func (c *Client) bearer(context.Context) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

package identitysdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/jwtx"
)

const (
	// DefaultStorageKeyPrefix namespaces every key the client persists.
	DefaultStorageKeyPrefix = "askbar.auth."

	// RefreshMargin is how close to expiry an access token gets refreshed.
	RefreshMargin = 30 * time.Second
)

// Client talks to the identity backend and owns the persisted session.
type Client struct {
	BaseURL          string
	HTTPClient       *http.Client
	Storage          Storage
	StorageKeyPrefix string

	now    func() time.Time
	events *broadcaster

	mu      sync.RWMutex
	loaded  bool
	session *Session

	// pubMu is taken before mu is released so events go out in the order
	// the session changed.
	pubMu sync.Mutex
}

// NewClient creates a client persisting its session in storage. A nil
// storage keeps the session in memory only.
func NewClient(baseURL string, storage Storage) *Client {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Client{
		BaseURL:          strings.TrimSuffix(baseURL, "/"),
		HTTPClient:       &http.Client{Timeout: 10 * time.Second},
		Storage:          storage,
		StorageKeyPrefix: DefaultStorageKeyPrefix,
		now:              time.Now,
		events:           newBroadcaster(),
	}
}

// Subscribe returns a new subscription to auth events.
func (c *Client) Subscribe() Subscription {
	return c.events.subscribe()
}

func (c *Client) sessionKey() string  { return c.StorageKeyPrefix + "token" }
func (c *Client) verifierKey() string { return c.StorageKeyPrefix + "code-verifier" }

// GetSession returns the current session, restoring it from storage on first
// use and refreshing it when it is close to expiry. It returns nil, nil when
// nobody is signed in.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.RLock()
	if c.loaded && (c.session == nil || !c.session.ExpiresWithin(c.now(), RefreshMargin)) {
		sess := c.session.Clone()
		c.mu.RUnlock()
		return sess, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()

	// Another goroutine may have loaded or refreshed while we waited.
	if !c.loaded {
		sess, err := c.loadSessionLocked()
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.session = sess
		c.loaded = true
	}
	if c.session == nil || !c.session.ExpiresWithin(c.now(), RefreshMargin) {
		sess := c.session.Clone()
		c.mu.Unlock()
		return sess, nil
	}

	ev, err := c.refreshLocked(ctx)
	sess := c.session.Clone()
	c.unlockAndPublish(ev)

	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RefreshSession forces a refresh grant regardless of expiry.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	if _, err := c.GetSession(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	ev, err := c.refreshLocked(ctx)
	sess := c.session.Clone()
	c.unlockAndPublish(ev)

	if err != nil {
		return nil, err
	}
	return sess, nil
}

// unlockAndPublish releases c.mu, which the caller holds, and then publishes
// ev if there is one.
func (c *Client) unlockAndPublish(ev *AuthEvent) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.mu.Unlock()

	if ev != nil {
		c.events.publish(*ev)
	}
}

// refreshLocked runs the refresh grant. A rejected refresh token signs the
// client out locally; transport errors leave the session untouched.
func (c *Client) refreshLocked(ctx context.Context) (*AuthEvent, error) {
	var tok TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/token", "", tokenForm("refresh_token", "refresh_token", c.session.RefreshToken), &tok)
	switch {
	case IsCode(err, ErrorCodeInvalidGrant):
		c.session = nil
		if err := c.removeSessionLocked(); err != nil {
			return nil, err
		}
		return &AuthEvent{Kind: EventSignedOut}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	sess, err := c.sessionFromToken(tok, c.session.User.Metadata)
	if err != nil {
		return nil, err
	}
	if err := c.storeSessionLocked(sess); err != nil {
		return nil, err
	}
	c.session = sess
	return &AuthEvent{Kind: EventTokenRefreshed, Session: sess}, nil
}

// setSession replaces the cached session, persists it and publishes kind.
func (c *Client) setSession(sess *Session, kind EventKind) error {
	c.mu.Lock()
	if sess == nil {
		if err := c.removeSessionLocked(); err != nil {
			c.mu.Unlock()
			return err
		}
	} else if err := c.storeSessionLocked(sess); err != nil {
		c.mu.Unlock()
		return err
	}
	c.session = sess
	c.loaded = true
	c.unlockAndPublish(&AuthEvent{Kind: kind, Session: sess})
	return nil
}

func (c *Client) sessionFromToken(tok TokenResponse, metadata map[string]string) (*Session, error) {
	claims, err := jwtx.ParseUnverified(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("identitysdk: bad access token: %w", err)
	}

	expiresAt := claims.Expiry()
	if tok.ExpiresIn > 0 {
		expiresAt = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    expiresAt.UTC(),
		User: User{
			ID:       claims.Subject,
			Email:    claims.Email,
			Metadata: metadata,
		},
	}, nil
}

func (c *Client) loadSessionLocked() (*Session, error) {
	raw, ok, err := c.Storage.Get(c.sessionKey())
	if err != nil {
		return nil, fmt.Errorf("identitysdk: read session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.RefreshToken == "" {
		// Unreadable session data is treated as signed out.
		return nil, c.Storage.Remove(c.sessionKey())
	}
	return &sess, nil
}

func (c *Client) storeSessionLocked(sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := c.Storage.Set(c.sessionKey(), string(raw)); err != nil {
		return fmt.Errorf("identitysdk: write session: %w", err)
	}
	return nil
}

func (c *Client) removeSessionLocked() error {
	if err := c.Storage.Remove(c.sessionKey()); err != nil {
		return fmt.Errorf("identitysdk: remove session: %w", err)
	}
	return nil
}

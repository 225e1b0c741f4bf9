// Package auth manages the Zoho OAuth refresh-token lifecycle.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stockbridge/zinv/internal/output"
)

const (
	// RefreshMargin is how long before expiry a token is treated as stale.
	RefreshMargin = 5 * time.Minute

	// DefaultExpiresIn applies when the token endpoint omits expires_in.
	DefaultExpiresIn = 3600 * time.Second

	// DefaultTokenURL is the EU accounts server token endpoint.
	DefaultTokenURL = "https://accounts.zoho.eu/oauth/v2/token"
)

// Identity is the credential set used for the refresh exchange.
type Identity struct {
	RefreshToken   string
	ClientID       string
	ClientSecret   string
	APIDomain      string
	OrganizationID string
}

// Token is a short-lived access token and its absolute expiry.
// The zero value means no token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// FreshAt reports whether the token is usable at now without a refresh.
func (t Token) FreshAt(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-RefreshMargin))
}

// Header returns the request headers carrying the token. It does not check
// validity.
func (t Token) Header() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Zoho-oauthtoken "+t.AccessToken)
	h.Set("Content-Type", "application/json")
	return h
}

// Manager owns the cached token and renews it through the refresh grant.
type Manager struct {
	id         Identity
	cache      *TokenCache
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
	log        *zap.Logger

	mu    sync.Mutex
	token Token
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) Option {
	return func(m *Manager) { m.tokenURL = u }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager adopts the cached token when one is still valid, otherwise
// performs an immediate refresh. A failed initial refresh is logged and
// retried on the next EnsureValid.
func NewManager(ctx context.Context, id Identity, cache *TokenCache, opts ...Option) *Manager {
	m := &Manager{
		id:         id,
		cache:      cache,
		tokenURL:   DefaultTokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = NewTokenCache("", m.now)
	}

	if tok, ok := m.cache.Load(); ok {
		m.token = tok
		m.log.Debug("loaded cached access token",
			zap.String("path", m.cache.Path()),
			zap.Time("expires_at", tok.ExpiresAt))
		return m
	}

	if _, err := m.Refresh(ctx); err != nil {
		m.log.Warn("initial token refresh failed", zap.Error(err))
	}
	return m
}

// EnsureValid returns the current token, refreshing it first when it is
// missing or within RefreshMargin of expiry.
func (m *Manager) EnsureValid(ctx context.Context) (Token, error) {
	tok := m.Current()
	if tok.FreshAt(m.now()) {
		return tok, nil
	}
	m.log.Debug("access token stale, refreshing", zap.Time("expires_at", tok.ExpiresAt))
	return m.Refresh(ctx)
}

// Current returns the held token without checking it.
func (m *Manager) Current() Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Refresh exchanges the refresh token for a new access token. On failure the
// previous token is kept and an auth error is returned. Failures are not
// retried here.
func (m *Manager) Refresh(ctx context.Context) (Token, error) {
	params := url.Values{}
	params.Set("refresh_token", m.id.RefreshToken)
	params.Set("client_id", m.id.ClientID)
	params.Set("client_secret", m.id.ClientSecret)
	params.Set("grant_type", "refresh_token")

	endpoint := m.tokenURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + params.Encode()
	} else {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Token{}, output.ErrAuthCause("Token refresh failed", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.log.Warn("token refresh request failed", zap.Error(err))
		return Token{}, output.ErrAuthCause("Token refresh failed", output.ErrNetwork(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, output.ErrAuthCause("Token refresh failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.log.Warn("token refresh rejected", zap.Int("status", resp.StatusCode))
		return Token{}, output.ErrAuthCause("Token refresh failed",
			output.ErrAPIBody(resp.StatusCode, fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode), string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return Token{}, output.ErrAuthCause("Token refresh failed", fmt.Errorf("decoding token response: %w", err))
	}
	if tokenResp.AccessToken == "" {
		msg := "Token refresh failed: no access_token in response"
		if tokenResp.Error != "" {
			msg = fmt.Sprintf("Token refresh failed: %s", tokenResp.Error)
		}
		m.log.Warn("token refresh returned no access token", zap.String("error", tokenResp.Error))
		return Token{}, output.ErrAuth(msg)
	}

	expiresIn := DefaultExpiresIn
	if tokenResp.ExpiresIn > 0 {
		expiresIn = time.Duration(tokenResp.ExpiresIn) * time.Second
	}

	tok, err := m.cache.Save(tokenResp.AccessToken, expiresIn)
	if err != nil {
		m.log.Warn("could not persist access token",
			zap.String("path", m.cache.Path()), zap.Error(err))
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	m.log.Info("access token refreshed", zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// Status describes the held token.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	ExpiresIn     string    `json:"expires_in,omitempty"`
	RefreshDue    bool      `json:"refresh_due"`
	CachePath     string    `json:"cache_path"`
	Organization  string    `json:"organization_id,omitempty"`
}

// Status reports token presence and expiry without touching the network.
func (m *Manager) Status() Status {
	tok := m.Current()
	now := m.now()
	s := Status{
		Authenticated: tok.AccessToken != "" && now.Before(tok.ExpiresAt),
		RefreshDue:    !tok.FreshAt(now),
		CachePath:     m.cache.Path(),
		Organization:  m.id.OrganizationID,
	}
	if tok.AccessToken != "" {
		s.ExpiresAt = tok.ExpiresAt
		s.ExpiresIn = tok.ExpiresAt.Sub(now).Round(time.Second).String()
	}
	return s
}

// Logout drops the held token and removes the cache file.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.token = Token{}
	m.mu.Unlock()
	return m.cache.Clear()
}

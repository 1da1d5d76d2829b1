package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultOAuthBaseURL = "https://zoom.us"
	DefaultRedirectURI  = "http://localhost:3000/oauth/callback"
)

// ErrLoginRequired means the authorization-code flow has no cached token.
var ErrLoginRequired = errors.New("zoom login required: run `huddle zoom login`")

// Credentials identify the Zoom OAuth app.
type Credentials struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	OAuthBaseURL string // Default: https://zoom.us.
}

func (c Credentials) oauthBase() string {
	if c.OAuthBaseURL != "" {
		return strings.TrimRight(c.OAuthBaseURL, "/")
	}
	return DefaultOAuthBaseURL
}

func (c Credentials) redirect() string {
	if c.RedirectURI != "" {
		return c.RedirectURI
	}
	return DefaultRedirectURI
}

// AccountTokenSource returns a server-to-server token source. Zoom's S2S
// grant replaces client_credentials with account_credentials and needs the
// account ID; the client credentials travel in the basic auth header.
func AccountTokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	if creds.AccountID == "" || creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New("zoom account credentials need account_id, client_id and client_secret")
	}
	cfg := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.oauthBase() + "/oauth/token",
		EndpointParams: url.Values{
			"grant_type": {"account_credentials"},
			"account_id": {creds.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	return cfg.TokenSource(ctx), nil
}

// OAuthConfig returns the authorization-code configuration for creds.
func OAuthConfig(creds Credentials) *oauth2.Config {
	base := creds.oauthBase()
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.redirect(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/oauth/authorize",
			TokenURL:  base + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// TokenCache stores an authorization-code token as JSON.
type TokenCache struct {
	path string
}

func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

func (tc *TokenCache) Path() string { return tc.path }

// Load returns the cached token or ErrLoginRequired when there is none.
func (tc *TokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(tc.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrLoginRequired
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token cache %s: %w", tc.path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrLoginRequired
	}
	return &tok, nil
}

// Save writes tok with owner-only permissions.
func (tc *TokenCache) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(tc.path), 0o700); err != nil {
		return fmt.Errorf("creating token cache directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(tc.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// CachedTokenSource builds a refreshing source from the cached token.
// Refreshed tokens are written back to the cache.
func CachedTokenSource(ctx context.Context, conf *oauth2.Config, cache *TokenCache) (oauth2.TokenSource, error) {
	tok, err := cache.Load()
	if err != nil {
		return nil, err
	}
	return newSavingSource(conf.TokenSource(ctx, tok), cache, tok), nil
}

// savingSource persists each token it has not seen before.
type savingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	cache *TokenCache
	last  string
}

func newSavingSource(base oauth2.TokenSource, cache *TokenCache, current *oauth2.Token) oauth2.TokenSource {
	s := &savingSource{base: base, cache: cache}
	if current != nil {
		s.last = current.AccessToken
	}
	return oauth2.ReuseTokenSource(current, s)
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.cache.Save(tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

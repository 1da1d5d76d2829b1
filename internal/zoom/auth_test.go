package zoom

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/jkaninda/huddle/internal/config"
)

func tokenServer(t *testing.T, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("token path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "secret" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"access-1","refresh_token":"refresh-1","token_type":"bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAccountTokenSource(t *testing.T) {
	srv := tokenServer(t, func(r *http.Request) {
		if got := r.PostForm.Get("grant_type"); got != "account_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("account_id"); got != "acct" {
			t.Errorf("account_id = %q", got)
		}
	})

	ts, err := AccountTokenSource(context.Background(), Credentials{
		AccountID: "acct", ClientID: "cid", ClientSecret: "secret", OAuthBaseURL: srv.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "access-1" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
}

func TestAccountTokenSource_MissingCredentials(t *testing.T) {
	if _, err := AccountTokenSource(context.Background(), Credentials{ClientID: "cid"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTokenCache(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "nested", "zoom_token.json"))
	if _, err := cache.Load(); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("Load on empty cache = %v", err)
	}
	if err := cache.Save(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(cache.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v", info.Mode().Perm())
	}
	tok, err := cache.Load()
	if err != nil || tok.RefreshToken != "r" {
		t.Errorf("Load = %+v, %v", tok, err)
	}
}

func TestCachedTokenSource_SavesRefreshedToken(t *testing.T) {
	srv := tokenServer(t, func(r *http.Request) {
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "old-refresh" {
			t.Errorf("refresh form = %v", r.PostForm)
		}
	})
	cache := NewTokenCache(filepath.Join(t.TempDir(), "zoom_token.json"))
	expired := &oauth2.Token{AccessToken: "stale", RefreshToken: "old-refresh", Expiry: time.Now().Add(-time.Hour)}
	if err := cache.Save(expired); err != nil {
		t.Fatal(err)
	}

	conf := OAuthConfig(Credentials{ClientID: "cid", ClientSecret: "secret", OAuthBaseURL: srv.URL})
	ts, err := CachedTokenSource(context.Background(), conf, cache)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "access-1" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	saved, _ := cache.Load()
	if saved.AccessToken != "access-1" {
		t.Errorf("refreshed token not cached: %q", saved.AccessToken)
	}
}

func TestLogin_Run(t *testing.T) {
	srv := tokenServer(t, func(r *http.Request) {
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "the-code" {
			t.Errorf("exchange form = %v", r.PostForm)
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	conf := OAuthConfig(Credentials{
		ClientID:     "cid",
		ClientSecret: "secret",
		OAuthBaseURL: srv.URL,
		RedirectURI:  "http://" + ln.Addr().String() + "/oauth/callback",
	})
	cache := NewTokenCache(filepath.Join(t.TempDir(), "zoom_token.json"))

	browser := func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		if u.Path != "/oauth/authorize" || u.Query().Get("client_id") != "cid" {
			t.Errorf("auth URL = %s", authURL)
		}
		go func() {
			cb := conf.RedirectURL + "?code=the-code&state=" + url.QueryEscape(u.Query().Get("state"))
			resp, err := http.Get(cb)
			if err != nil {
				t.Errorf("callback: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	login := NewLogin(conf, cache, slog.New(slog.NewTextHandler(io.Discard, nil)), WithBrowser(browser), WithListener(ln))
	ts, err := login.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tok, err := ts.Token()
	if err != nil || tok.AccessToken != "access-1" {
		t.Fatalf("Token = %+v, %v", tok, err)
	}
	if saved, err := cache.Load(); err != nil || saved.RefreshToken != "refresh-1" {
		t.Errorf("cache = %+v, %v", saved, err)
	}
}

func TestTokenSourceFor_LoginRequired(t *testing.T) {
	_, err := TokenSourceFor(context.Background(), config.ZoomConfig{ClientID: "cid", ClientSecret: "s"},
		filepath.Join(t.TempDir(), "none.json"))
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("err = %v", err)
	}
}

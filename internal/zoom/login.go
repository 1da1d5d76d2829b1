package zoom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type callbackResult struct {
	code string
	err  error
}

// Login runs the authorization-code flow through a loopback callback server.
type Login struct {
	conf     *oauth2.Config
	cache    *TokenCache
	logger   *slog.Logger
	open     func(url string) error
	listener net.Listener
}

type LoginOption func(*Login)

// WithBrowser sets the function used to open the authorization page.
func WithBrowser(open func(url string) error) LoginOption {
	return func(l *Login) { l.open = open }
}

// WithListener serves the callback on ln instead of the redirect URI address.
func WithListener(ln net.Listener) LoginOption {
	return func(l *Login) { l.listener = ln }
}

func NewLogin(conf *oauth2.Config, cache *TokenCache, logger *slog.Logger, opts ...LoginOption) *Login {
	l := &Login{conf: conf, cache: cache, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until the browser hits the callback or ctx is done, exchanges
// the code and caches the token.
func (l *Login) Run(ctx context.Context) (oauth2.TokenSource, error) {
	redirect, err := url.Parse(l.conf.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}
	ln := l.listener
	if ln == nil {
		ln, err = net.Listen("tcp", redirect.Host)
		if err != nil {
			return nil, fmt.Errorf("listening for OAuth callback on %s: %w", redirect.Host, err)
		}
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("authorization callback state mismatch")
		case q.Get("code") == "":
			res.err = errors.New("authorization callback without code")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, "Authorization failed", http.StatusBadRequest)
		} else {
			_, _ = fmt.Fprintln(w, "Authorization successful! You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("oauth callback server", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := l.conf.AuthCodeURL(state)
	l.logger.Info("waiting for Zoom authorization", slog.String("url", authURL))
	if l.open != nil {
		if err := l.open(authURL); err != nil {
			l.logger.Warn("could not open browser, visit the URL manually", slog.String("error", err.Error()))
		}
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := l.conf.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if err := l.cache.Save(tok); err != nil {
		return nil, err
	}
	l.logger.Info("zoom authorization complete", slog.String("token_cache", l.cache.Path()))
	return newSavingSource(l.conf.TokenSource(context.WithoutCancel(ctx), tok), l.cache, tok), nil
}

package zoom

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/jkaninda/huddle/internal/config"
)

// CredentialsFromConfig maps the zoom config section onto Credentials.
func CredentialsFromConfig(cfg config.ZoomConfig) Credentials {
	return Credentials{
		AccountID:    cfg.AccountID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.Redirect(),
		OAuthBaseURL: cfg.OAuthBaseURL,
	}
}

// TokenSourceFor picks the token source for the configured auth mode. The
// authorization-code mode returns ErrLoginRequired until a login has been
// cached at cachePath.
func TokenSourceFor(ctx context.Context, cfg config.ZoomConfig, cachePath string) (oauth2.TokenSource, error) {
	creds := CredentialsFromConfig(cfg)
	if cfg.AuthMode() == config.ZoomAuthAccount {
		return AccountTokenSource(ctx, creds)
	}
	return CachedTokenSource(ctx, OAuthConfig(creds), NewTokenCache(cachePath))
}

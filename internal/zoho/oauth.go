// Package zoho holds the OAuth and HTTP plumbing shared by the WorkDrive and
// CRM clients.
package zoho

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAccountsURL is the US data-center accounts server.
const DefaultAccountsURL = "https://accounts.zoho.com"

// authScheme is the Authorization scheme Zoho expects instead of Bearer.
const authScheme = "Zoho-oauthtoken"

// Credentials identify a self-client with an offline refresh token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountsURL  string
}

// Configured reports whether all credential fields are present.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.RefreshToken) != ""
}

func (c Credentials) oauthConfig() *oauth2.Config {
	accounts := strings.TrimRight(strings.TrimSpace(c.AccountsURL), "/")
	if accounts == "" {
		accounts = DefaultAccountsURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   accounts + "/oauth/v2/auth",
			TokenURL:  accounts + "/oauth/v2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// TokenSource returns a cached, auto-refreshing token source. ctx carries the
// HTTP client used for refresh calls (oauth2.HTTPClient) and must outlive
// the source.
func TokenSource(ctx context.Context, creds Credentials) oauth2.TokenSource {
	base := creds.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	return oauth2.ReuseTokenSource(nil, schemeSource{src: base})
}

// schemeSource rewrites the token type so oauth2.Transport sends
// "Authorization: Zoho-oauthtoken <token>".
type schemeSource struct {
	src oauth2.TokenSource
}

func (s schemeSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	out := *tok
	out.TokenType = authScheme
	return &out, nil
}

// NewHTTPClient builds an *http.Client that authorizes every request from src.
func NewHTTPClient(src oauth2.TokenSource, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
	}
}

package auth

import (
	"fmt"
	"net/url"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// HTTPSAuthProvider authenticates HTTPS remotes with a basic-auth token.
type HTTPSAuthProvider struct {
	auth *http.BasicAuth
}

// NewHTTPSTokenProvider creates an HTTPS provider for token authentication.
// Most git hosts accept the token as password under any username.
func NewHTTPSTokenProvider(username, token string) *HTTPSAuthProvider {
	if username == "" {
		username = "token"
	}
	return &HTTPSAuthProvider{
		auth: &http.BasicAuth{
			Username: username,
			Password: token,
		},
	}
}

// Method returns the basic-auth method for http(s) URLs.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *HTTPSAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("HTTPS auth provider only supports http(s) URLs, got %q", u.Scheme)
	}
	return p.auth, nil
}

// Package auth resolves go-git transport credentials for remote URLs.
package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// DefaultTokenUser is the basic-auth user name hosting platforms accept
// alongside an access token.
const DefaultTokenUser = "x-access-token"

// TokenProvider authenticates HTTPS remotes with an access token.
// Remotes using any other scheme get no credentials.
type TokenProvider struct {
	auth         *http.BasicAuth
	allowedHosts []string
}

// NewTokenProvider creates a provider for token. An empty user selects
// DefaultTokenUser.
func NewTokenProvider(user, token string) *TokenProvider {
	if user == "" {
		user = DefaultTokenUser
	}
	return &TokenProvider{
		auth: &http.BasicAuth{Username: user, Password: token},
	}
}

// WithAllowedHosts restricts the token to hosts matching the patterns.
// Patterns may use a single leading "*." wildcard.
func (p *TokenProvider) WithAllowedHosts(hosts ...string) *TokenProvider {
	p.allowedHosts = hosts
	return p
}

// Method returns the credentials for remoteURL, or nil when none apply.
//
//nolint:ireturn // go-git consumes transport.AuthMethod
func (p *TokenProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL: %w", err)
	}
	if u.Scheme != "https" || p.auth.Password == "" {
		return nil, nil
	}
	if len(p.allowedHosts) > 0 && !p.hostAllowed(u.Hostname()) {
		return nil, nil
	}
	return p.auth, nil
}

func (p *TokenProvider) hostAllowed(host string) bool {
	for _, pattern := range p.allowedHosts {
		if host == pattern {
			return true
		}
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
	}
	return false
}

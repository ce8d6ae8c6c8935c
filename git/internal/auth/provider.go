// Package auth resolves go-git transport credentials for the remote of a
// settings repository.
package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Provider returns go-git's transport.AuthMethod for a remote URL.
type Provider interface {
	// Method returns nil when the URL needs no authentication.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Credentials are the user-supplied secrets for the settings remote.
type Credentials struct {
	// Username for HTTPS basic auth. Defaults to "token" when only a token is set.
	Username string

	// Token is an HTTPS access token used as the basic-auth password.
	Token string

	// SSHKeyPath points at a private key used for ssh:// and scp-style remotes.
	SSHKeyPath string

	// SSHPassphrase unlocks an encrypted SSHKeyPath.
	SSHPassphrase string

	// SSHAgent selects the running ssh-agent instead of a key file.
	SSHAgent bool

	// KnownHostsPath verifies ssh servers against this known_hosts file
	// instead of the user's default ones.
	KnownHostsPath string
}

// Empty reports whether no credential is configured.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.SSHKeyPath == "" && !c.SSHAgent
}

// FromCredentials builds a provider that routes each remote URL to the
// HTTPS or SSH method by scheme. Local remotes (file:// and plain paths)
// never carry credentials.
func FromCredentials(c Credentials) Provider {
	r := &SchemeRouter{}
	if c.Token != "" {
		r.HTTPS = NewHTTPSTokenProvider(c.Username, c.Token)
	}
	var sp *SSHAuthProvider
	switch {
	case c.SSHAgent:
		sp = NewSSHAgentProvider()
	case c.SSHKeyPath != "":
		sp = NewSSHKeyProvider(c.SSHKeyPath, c.SSHPassphrase)
	}
	if sp != nil {
		if c.KnownHostsPath != "" {
			sp.WithHostKeyCallback(KnownHosts(c.KnownHostsPath))
		}
		r.SSH = sp
	}
	return r
}

// SchemeRouter dispatches to a provider by URL scheme.
type SchemeRouter struct {
	HTTPS Provider
	SSH   Provider
}

// Method returns the method of the provider registered for the URL's scheme,
// or nil if none is registered.
//
//nolint:ireturn // transport.AuthMethod is an interface required by go-git
func (s *SchemeRouter) Method(remoteURL string) (transport.AuthMethod, error) {
	scheme, err := Scheme(remoteURL)
	if err != nil {
		return nil, err
	}

	var p Provider
	switch scheme {
	case "http", "https":
		p = s.HTTPS
	case "ssh", "git+ssh":
		p = s.SSH
	}
	if p == nil {
		return nil, nil
	}
	return p.Method(remoteURL)
}

// Scheme classifies a remote URL. scp-style addresses (user@host:path) are
// reported as "ssh" and bare filesystem paths as "file".
func Scheme(remoteURL string) (string, error) {
	if remoteURL == "" {
		return "", fmt.Errorf("empty remote URL")
	}

	if !strings.Contains(remoteURL, "://") {
		if at := strings.Index(remoteURL, "@"); at > 0 {
			if colon := strings.Index(remoteURL[at:], ":"); colon > 0 {
				return "ssh", nil
			}
		}
		return "file", nil
	}

	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	return strings.ToLower(u.Scheme), nil
}

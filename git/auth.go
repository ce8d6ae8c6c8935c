package git

import "github.com/input-output-hk/catalyst-forge-libs/settingsync/git/internal/auth"

// Credentials are the secrets used to reach a remote. See NewAuth.
type Credentials = auth.Credentials

// NewAuth returns an AuthProvider that picks HTTPS token or SSH key/agent
// authentication by remote URL scheme. It returns nil for empty credentials.
func NewAuth(c Credentials) AuthProvider {
	if c.Empty() {
		return nil
	}
	return auth.FromCredentials(c)
}

// RemoteScheme classifies a remote URL as "https", "ssh", "file" and so on.
func RemoteScheme(remoteURL string) (string, error) {
	return auth.Scheme(remoteURL)
}

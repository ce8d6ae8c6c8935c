package auth

import (
	"fmt"
	"net"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// SSHAuthProvider authenticates ssh remotes with a key file or the ssh agent.
type SSHAuthProvider struct {
	// PrivateKeyPath is the path to the SSH private key file.
	PrivateKeyPath string

	// Passphrase for encrypted private keys.
	Passphrase string

	// Username for SSH authentication (defaults to "git").
	Username string

	// UseSSHAgent enables SSH agent integration.
	UseSSHAgent bool

	// HostKeyCallback verifies the server key. If nil, go-git's default
	// known_hosts lookup applies.
	HostKeyCallback gossh.HostKeyCallback
}

// NewSSHKeyProvider creates an SSH provider using a private key file.
func NewSSHKeyProvider(keyPath, passphrase string) *SSHAuthProvider {
	return &SSHAuthProvider{
		PrivateKeyPath: keyPath,
		Passphrase:     passphrase,
		Username:       "git",
	}
}

// NewSSHAgentProvider creates an SSH provider that uses SSH agent.
func NewSSHAgentProvider() *SSHAuthProvider {
	return &SSHAuthProvider{
		UseSSHAgent: true,
		Username:    "git",
	}
}

// WithHostKeyCallback sets the host key verification callback.
func (p *SSHAuthProvider) WithHostKeyCallback(callback gossh.HostKeyCallback) *SSHAuthProvider {
	p.HostKeyCallback = callback
	return p
}

// KnownHosts returns a host key callback backed by the known_hosts file at
// path. The file is read on every connection, so edits apply without a
// restart and a missing file fails the connection, not the setup.
func KnownHosts(path string) gossh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key gossh.PublicKey) error {
		check, err := ssh.NewKnownHostsCallback(path)
		if err != nil {
			return fmt.Errorf("failed to load known hosts %q: %w", path, err)
		}
		return check(hostname, remote, key)
	}
}

// Method builds the agent or key-file method.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *SSHAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	scheme, err := Scheme(remoteURL)
	if err != nil {
		return nil, err
	}
	if scheme != "ssh" && scheme != "git+ssh" {
		return nil, fmt.Errorf("SSH auth provider only supports SSH URLs, got %q", scheme)
	}

	if p.UseSSHAgent {
		auth, err := ssh.NewSSHAgentAuth(p.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSH agent auth: %w", err)
		}
		if p.HostKeyCallback != nil {
			auth.HostKeyCallback = p.HostKeyCallback
		}
		return auth, nil
	}

	if p.PrivateKeyPath == "" {
		return nil, fmt.Errorf("no SSH credentials configured")
	}
	if _, err := os.Stat(p.PrivateKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("SSH private key file does not exist: %s", p.PrivateKeyPath)
	}
	auth, err := ssh.NewPublicKeysFromFile(p.Username, p.PrivateKeyPath, p.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key from file: %w", err)
	}
	if p.HostKeyCallback != nil {
		auth.HostKeyCallback = p.HostKeyCallback
	}
	return auth, nil
}

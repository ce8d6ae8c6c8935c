// Package settings holds the user-editable configuration of the
// synchronization engine and loads it from TOML, YAML or JSON files.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
)

// AppName names the per-user configuration and data directories.
const AppName = "settingsync"

// Environment variables that override file values.
const (
	EnvRemoteURL   = "SETTINGSYNC_REMOTE_URL"
	EnvToken       = "SETTINGSYNC_TOKEN"
	EnvCommitDelay = "SETTINGSYNC_COMMIT_DELAY"
)

// DefaultCommitDelay is how long changes settle before they are committed.
const DefaultCommitDelay = 10 * time.Minute

// Duration is a time.Duration written as a Go duration string ("10m", "90s").
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Repository locates the settings repository and its remote.
type Repository struct {
	// Path is the local clone. Defaults to DefaultRepositoryDir.
	Path string `toml:"path" yaml:"path" json:"path"`

	RemoteURL  string `toml:"remote_url" yaml:"remote_url" json:"remote_url"`
	RemoteName string `toml:"remote_name" yaml:"remote_name" json:"remote_name"`

	AuthorName  string `toml:"author_name" yaml:"author_name" json:"author_name"`
	AuthorEmail string `toml:"author_email" yaml:"author_email" json:"author_email"`

	Token      string `toml:"token" yaml:"token" json:"token"`
	SSHKeyPath string `toml:"ssh_key_path" yaml:"ssh_key_path" json:"ssh_key_path"`
	SSHAgent   bool   `toml:"ssh_agent" yaml:"ssh_agent" json:"ssh_agent"`

	// KnownHosts overrides the known_hosts file used to verify ssh remotes.
	KnownHosts string `toml:"known_hosts" yaml:"known_hosts" json:"known_hosts"`
}

// Settings is one immutable snapshot of the configuration. Components read
// a fresh snapshot whenever they need a value.
type Settings struct {
	// CommitDelay is the quiet period of the commit debouncer.
	CommitDelay Duration `toml:"commit_delay" yaml:"commit_delay" json:"commit_delay"`

	// UpdateOnStart pulls remote changes when the repository is opened.
	UpdateOnStart bool `toml:"update_on_start" yaml:"update_on_start" json:"update_on_start"`

	// ShareWorkspaceFiles includes the per-project workspace file.
	ShareWorkspaceFiles bool `toml:"share_workspace_files" yaml:"share_workspace_files" json:"share_workspace_files"`

	Repository Repository `toml:"repository" yaml:"repository" json:"repository"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		CommitDelay:   Duration{DefaultCommitDelay},
		UpdateOnStart: true,
		Repository: Repository{
			Path:       DefaultRepositoryDir(),
			RemoteName: "origin",
		},
	}
}

// Clone returns a copy of s.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// ApplyEnvOverrides replaces file values with the SETTINGSYNC_* environment.
func (s *Settings) ApplyEnvOverrides() error {
	if v, ok := os.LookupEnv(EnvRemoteURL); ok {
		s.Repository.RemoteURL = v
	}
	if v, ok := os.LookupEnv(EnvToken); ok {
		s.Repository.Token = v
	}
	if v, ok := os.LookupEnv(EnvCommitDelay); ok {
		if err := s.CommitDelay.UnmarshalText([]byte(v)); err != nil {
			return errors.Wrap(err, errors.CodeInvalidConfig, EnvCommitDelay)
		}
	}
	return nil
}

// Validate reports every invalid field at once.
func (s *Settings) Validate() error {
	var errs []error

	if s.CommitDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("commit_delay: must not be negative, got %s", s.CommitDelay))
	}
	if s.Repository.Path == "" {
		errs = append(errs, fmt.Errorf("repository.path: required"))
	}
	if (s.Repository.AuthorName == "") != (s.Repository.AuthorEmail == "") {
		errs = append(errs, fmt.Errorf("repository: author_name and author_email must be set together"))
	}
	if strings.ContainsAny(s.Repository.RemoteName, " /\t") {
		errs = append(errs, fmt.Errorf("repository.remote_name: invalid name %q", s.Repository.RemoteName))
	}
	if s.Repository.SSHAgent && s.Repository.SSHKeyPath != "" {
		errs = append(errs, fmt.Errorf("repository: ssh_agent and ssh_key_path are mutually exclusive"))
	}
	if s.Repository.KnownHosts != "" && !s.Repository.SSHAgent && s.Repository.SSHKeyPath == "" {
		errs = append(errs, fmt.Errorf("repository.known_hosts: requires ssh_agent or ssh_key_path"))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Wrap(errors.Join(errs...), errors.CodeInvalidConfig, "settings.validate")
}

// DefaultPath is the settings file under the XDG config home.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "settings.toml")
}

// DefaultRepositoryDir is the local clone under the XDG data home.
func DefaultRepositoryDir() string {
	return filepath.Join(xdg.DataHome, AppName, "repository")
}

// DataDir is the per-user directory for engine state such as project ids.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

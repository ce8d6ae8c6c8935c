package settings

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, 10*time.Minute, s.CommitDelay.Duration)
	assert.True(t, s.UpdateOnStart)
	assert.False(t, s.ShareWorkspaceFiles)
	assert.Equal(t, "origin", s.Repository.RemoteName)
	assert.Equal(t, DefaultRepositoryDir(), s.Repository.Path)
	assert.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"negative delay", func(s *Settings) { s.CommitDelay.Duration = -time.Second }},
		{"missing path", func(s *Settings) { s.Repository.Path = "" }},
		{"half author", func(s *Settings) { s.Repository.AuthorName = "me" }},
		{"bad remote name", func(s *Settings) { s.Repository.RemoteName = "my remote" }},
		{"agent and key", func(s *Settings) {
			s.Repository.SSHAgent = true
			s.Repository.SSHKeyPath = "/k"
		}},
		{"known hosts without ssh", func(s *Settings) { s.Repository.KnownHosts = "/kh" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), errors.ErrInvalidConfig)
		})
	}
}

func TestLoad_Formats(t *testing.T) {
	files := map[string]string{
		"settings.toml": `
commit_delay = "30s"
update_on_start = false
share_workspace_files = true

[repository]
path = "/tmp/repo"
remote_url = "https://example.com/settings.git"
author_name = "Me"
author_email = "me@example.com"
`,
		"settings.yaml": `
commit_delay: 30s
update_on_start: false
share_workspace_files: true
repository:
  path: /tmp/repo
  remote_url: https://example.com/settings.git
  author_name: Me
  author_email: me@example.com
`,
		"settings.json": `{
  "commit_delay": "30s",
  "update_on_start": false,
  "share_workspace_files": true,
  "repository": {
    "path": "/tmp/repo",
    "remote_url": "https://example.com/settings.git",
    "author_name": "Me",
    "author_email": "me@example.com"
  }
}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			s, err := NewLoader(path).Load()
			require.NoError(t, err)

			assert.Equal(t, 30*time.Second, s.CommitDelay.Duration)
			assert.False(t, s.UpdateOnStart)
			assert.True(t, s.ShareWorkspaceFiles)
			assert.Equal(t, "/tmp/repo", s.Repository.Path)
			assert.Equal(t, "https://example.com/settings.git", s.Repository.RemoteURL)
			assert.Equal(t, "origin", s.Repository.RemoteName, "unset fields keep defaults")
			assert.Equal(t, "Me", s.Repository.AuthorName)
		})
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.toml"))

	s, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	assert.Equal(t, s, l.Current())
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte(`commit_delay = "soon"`), 0o600))
	_, err := NewLoader(bad).Load()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	ext := filepath.Join(dir, "settings.ini")
	require.NoError(t, os.WriteFile(ext, []byte(`x=1`), 0o600))
	_, err = NewLoader(ext).Load()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvRemoteURL, "https://override.example.com/s.git")
	t.Setenv(EnvToken, "tok")
	t.Setenv(EnvCommitDelay, "2m")

	s, err := NewLoader(filepath.Join(t.TempDir(), "settings.toml")).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com/s.git", s.Repository.RemoteURL)
	assert.Equal(t, "tok", s.Repository.Token)
	assert.Equal(t, 2*time.Minute, s.CommitDelay.Duration)

	t.Setenv(EnvCommitDelay, "never")
	_, err = NewLoader(filepath.Join(t.TempDir(), "settings.toml")).Load()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestSave_RoundTrip(t *testing.T) {
	for _, name := range []string{"settings.toml", "settings.yaml", "settings.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			l := NewLoader(path)

			want := Default()
			want.CommitDelay.Duration = 45 * time.Second
			want.ShareWorkspaceFiles = true
			want.Repository.RemoteURL = "git@github.com:me/settings.git"
			require.NoError(t, l.Save(want))

			got, err := NewLoader(path).Load()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "settings.toml"))
	s := Default()
	s.CommitDelay.Duration = -1
	assert.ErrorIs(t, l.Save(s), errors.ErrInvalidConfig)
}

func TestWatch_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`commit_delay = "1m"`), 0o600))

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	var reloads atomic.Int32
	l.OnChange(func(*Settings) { reloads.Add(1) })
	require.NoError(t, l.Watch())
	defer l.Close()

	require.NoError(t, os.WriteFile(path, []byte(`commit_delay = "5s"`), 0o600))

	require.Eventually(t, func() bool {
		return l.Current().CommitDelay.Duration == 5*time.Second
	}, 2*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))

	// an invalid edit keeps the last good snapshot and reports the error
	require.NoError(t, os.WriteFile(path, []byte(`commit_delay = "-5s"`), 0o600))
	select {
	case err := <-l.Errors():
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reload error")
	}
	assert.Equal(t, 5*time.Second, l.Current().CommitDelay.Duration)
}

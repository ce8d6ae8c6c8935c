package bridge

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/repository"
)

// memManager is an in-memory repository.Manager that records every call.
type memManager struct {
	mu    sync.Mutex
	files map[string]string
	calls []string
}

func newMemManager() *memManager {
	return &memManager{files: map[string]string{}}
}

func (m *memManager) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *memManager) Read(p string) (io.ReadCloser, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("read " + p)
	v, ok := m.files[p]
	if !ok {
		return nil, false, nil
	}
	return io.NopCloser(strings.NewReader(v)), true, nil
}

func (m *memManager) Write(p string, content io.Reader, _ int64, _ bool) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("write " + p)
	m.files[p] = string(data)
	return nil
}

func (m *memManager) DeleteAsync(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete " + p)
	delete(m.files, p)
	return nil
}

func (m *memManager) ListSubFileNames(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("list " + prefix)
	var names []string
	for p := range m.files {
		if rest, ok := strings.CutPrefix(p, prefix+"/"); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	return names, nil
}

func (m *memManager) Commit(context.Context) *repository.Pending { return repository.Resolved(nil) }
func (m *memManager) Pull(context.Context) error                 { return nil }
func (m *memManager) Push(context.Context) *repository.Pending   { return repository.Resolved(nil) }
func (m *memManager) UpdateRepository(context.Context) error     { return nil }

func (m *memManager) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type stubBackend struct {
	manager  *memManager
	enabled  bool
	requests int
}

func (b *stubBackend) Manager() repository.Manager { return b.manager }
func (b *stubBackend) Enabled() bool               { return b.enabled }
func (b *stubBackend) RequestCommit()              { b.requests++ }

func newBackend() *stubBackend {
	return &stubBackend{manager: newMemManager(), enabled: true}
}

func TestApplicationBridge_SaveLoadDelete(t *testing.T) {
	backend := newBackend()
	b := NewApplication(backend, Exclude(StatisticsFile))

	require.NoError(t, b.Save("$APP_CONFIG$/editor.xml", strings.NewReader("<editor/>"), 9, pathmap.AppPerUser, false))
	assert.Equal(t, 1, backend.requests)
	assert.Contains(t, backend.manager.files, "per-user/$APP_CONFIG$/editor.xml")

	r, ok, err := b.Load("$APP_CONFIG$/editor.xml", pathmap.AppPerUser)
	require.NoError(t, err)
	require.True(t, ok)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "<editor/>", string(data))

	_, ok, err = b.Load("$APP_CONFIG$/editor.xml", pathmap.AppGlobal)
	require.NoError(t, err)
	assert.False(t, ok, "scopes do not overlap")

	names, err := b.List("$APP_CONFIG$", pathmap.AppPerUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor.xml"}, names)

	require.NoError(t, b.Delete("$APP_CONFIG$/editor.xml", pathmap.AppPerUser))
	assert.Equal(t, 2, backend.requests)
	assert.Empty(t, backend.manager.files)
}

func TestApplicationBridge_ExcludedFilesNeverReachManager(t *testing.T) {
	backend := newBackend()
	b := NewApplication(backend, Exclude(StatisticsFile))

	for _, spec := range []string{StatisticsFile, StatisticsFile + VersionFileSuffix} {
		require.NoError(t, b.Save(spec, strings.NewReader("x"), 1, pathmap.AppPerUser, true))
		r, ok, err := b.Load(spec, pathmap.AppPerUser)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, r)
		require.NoError(t, b.Delete(spec, pathmap.AppPerUser))
	}

	assert.Empty(t, backend.manager.Calls())
	assert.Zero(t, backend.requests)
}

func TestBridge_DisabledIsNoOp(t *testing.T) {
	backend := newBackend()
	backend.enabled = false
	b := NewApplication(backend, nil)

	assert.False(t, b.IsEnabled())
	require.NoError(t, b.Save("a.xml", strings.NewReader("x"), 1, pathmap.AppGlobal, false))
	_, ok, err := b.Load("a.xml", pathmap.AppGlobal)
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := b.List("", pathmap.AppGlobal)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	require.NoError(t, b.Delete("a.xml", pathmap.AppGlobal))
	assert.Empty(t, backend.manager.Calls())
	assert.Zero(t, backend.requests)
}

func TestBridge_ZeroScopeIsRejected(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		backend := newBackend()
		backend.enabled = enabled
		app := NewApplication(backend, nil)

		err := app.Save("a.xml", strings.NewReader("x"), 1, pathmap.AppScope{}, false)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
		_, ok, err := app.Load("a.xml", pathmap.AppScope{})
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
		assert.False(t, ok)
		_, err = app.List("", pathmap.AppScope{})
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
		assert.ErrorIs(t, app.Delete("a.xml", pathmap.AppScope{}), errors.ErrInvalidInput)

		project, err := NewProject(backend, "owner-1", nil)
		require.NoError(t, err)
		err = project.Save("misc.xml", strings.NewReader("x"), 1, pathmap.ProjectScope{}, false)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)

		assert.Empty(t, backend.manager.Calls())
		assert.Empty(t, backend.manager.files, "nothing is written under a bare spec path")
	}
}

func TestProjectBridge_Workspace(t *testing.T) {
	share := false
	backend := newBackend()
	b, err := NewProject(backend, "owner-1", Workspace(func() bool { return share }))
	require.NoError(t, err)
	assert.Equal(t, pathmap.OwnerID("owner-1"), b.Owner())

	require.NoError(t, b.Save(WorkspaceFile, strings.NewReader("w"), 1, pathmap.ProjectShared, false))
	require.NoError(t, b.Save(WorkspaceFile+VersionFileSuffix, strings.NewReader("v"), 1, pathmap.ProjectShared, false))
	assert.Empty(t, backend.manager.Calls(), "workspace is private by default")

	// the per-platform scope is not subject to the workspace rule
	require.NoError(t, b.Save(WorkspaceFile, strings.NewReader("w"), 1, pathmap.ProjectPlatform, false))
	assert.Contains(t, backend.manager.files, "project-per-platform/owner-1/$WORKSPACE_FILE$")

	share = true
	require.NoError(t, b.Save(WorkspaceFile, strings.NewReader("w"), 1, pathmap.ProjectShared, false))
	assert.Contains(t, backend.manager.files, "project-per-user/owner-1/$WORKSPACE_FILE$")
	assert.Equal(t, 2, backend.requests)
}

func TestNewProject_InvalidOwner(t *testing.T) {
	for _, owner := range []pathmap.OwnerID{"", "a/b"} {
		_, err := NewProject(newBackend(), owner, nil)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		pred  Predicate
		spec  string
		scope pathmap.Scope
		want  bool
	}{
		{"share all", ShareAll, "x", pathmap.Global, true},
		{"excluded", Exclude("a.xml"), "a.xml", pathmap.PerUser, false},
		{"excluded twin", Exclude("a.xml"), "a.xml.ver", pathmap.PerUser, false},
		{"not excluded", Exclude("a.xml"), "b.xml", pathmap.PerUser, true},
		{"ignore glob", IgnorePatterns("*.log"), "$APP_CONFIG$/idea.log", pathmap.PerUser, false},
		{"ignore dir", IgnorePatterns("caches/"), "caches/index.dat", pathmap.PerUser, false},
		{"ignore miss", IgnorePatterns("*.log"), "$APP_CONFIG$/idea.xml", pathmap.PerUser, true},
		{"all empty", All(), "x", pathmap.PerUser, true},
		{"all veto", All(ShareAll, Exclude("x")), "x", pathmap.PerUser, false},
		{"workspace other scope", Workspace(func() bool { return false }), WorkspaceFile, pathmap.ProjectPerPlatform, true},
		{"workspace private", Workspace(func() bool { return false }), WorkspaceFile, pathmap.ProjectPerUser, false},
		{"workspace shared", Workspace(func() bool { return true }), WorkspaceFile, pathmap.ProjectPerUser, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred(tt.spec, tt.scope))
		})
	}
}

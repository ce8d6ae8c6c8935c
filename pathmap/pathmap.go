// Package pathmap maps application configuration file specs onto repository paths.
//
// A repository path has the form
//
//	<scope-segment>/[<owner-id>/]<file-spec>
//
// where the scope segment is a fixed token per sharing scope and the owner id
// is present only for project-level scopes. The mapping is pure and injective:
// two distinct (file spec, scope, owner) triples never produce the same path,
// and Parse recovers the triple from a path.
//
// Application and project scopes are distinct types so that an owner can only
// ever be supplied together with a project scope:
//
//	pathmap.AppPath("$APP_CONFIG$/editor.xml", pathmap.AppPerUser)
//	pathmap.ProjectPath("misc.xml", pathmap.ProjectShared, owner)
package pathmap

import (
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
)

// Scope is the sharing policy dimension that partitions the repository.
type Scope uint8

const (
	// PerUser files follow the user across machines.
	PerUser Scope = iota + 1
	// PerPlatform files are shared only between machines of the same OS.
	PerPlatform
	// Global files are shared everywhere.
	Global
	// ProjectPerUser files belong to one project and follow the user.
	ProjectPerUser
	// ProjectPerPlatform files belong to one project and one OS.
	ProjectPerPlatform
)

var segments = map[Scope]string{
	PerUser:            "per-user",
	PerPlatform:        "per-platform",
	Global:             "global",
	ProjectPerUser:     "project-per-user",
	ProjectPerPlatform: "project-per-platform",
}

// Segment returns the fixed repository path token for the scope.
func (s Scope) Segment() string {
	return segments[s]
}

// RequiresOwner reports whether paths in this scope carry an owner id.
func (s Scope) RequiresOwner() bool {
	return s == ProjectPerUser || s == ProjectPerPlatform
}

// Valid reports whether s is one of the defined scopes.
func (s Scope) Valid() bool {
	_, ok := segments[s]
	return ok
}

// String returns the name of the scope.
func (s Scope) String() string {
	switch s {
	case PerUser:
		return "PER_USER"
	case PerPlatform:
		return "PER_PLATFORM"
	case Global:
		return "GLOBAL"
	case ProjectPerUser:
		return "PROJECT_PER_USER"
	case ProjectPerPlatform:
		return "PROJECT_PER_PLATFORM"
	default:
		return "UNKNOWN"
	}
}

// AppScope is an application-level scope. It never carries an owner.
// The zero value is not a scope; use AppPerUser, AppPerPlatform or AppGlobal.
type AppScope struct{ scope Scope }

// ProjectScope is a project-level scope. It always carries an owner.
// The zero value is not a scope; use ProjectShared or ProjectPlatform.
type ProjectScope struct{ scope Scope }

// Application and project scopes.
var (
	AppPerUser      = AppScope{PerUser}
	AppPerPlatform  = AppScope{PerPlatform}
	AppGlobal       = AppScope{Global}
	ProjectShared   = ProjectScope{ProjectPerUser}
	ProjectPlatform = ProjectScope{ProjectPerPlatform}
)

// Scope returns the underlying sharing scope.
func (s AppScope) Scope() Scope { return s.scope }

// Scope returns the underlying sharing scope.
func (s ProjectScope) Scope() Scope { return s.scope }

// Valid reports whether s is one of the declared application scopes.
func (s AppScope) Valid() bool { return s.scope.Valid() && !s.scope.RequiresOwner() }

// Valid reports whether s is one of the declared project scopes.
func (s ProjectScope) Valid() bool { return s.scope.RequiresOwner() }

// String returns the name of the scope.
func (s AppScope) String() string { return s.scope.String() }

// String returns the name of the scope.
func (s ProjectScope) String() string { return s.scope.String() }

// OwnerID identifies a project-like container. It is generated once by the
// host and never regenerated.
type OwnerID string

// Valid reports whether the id can be used as a single path segment.
func (o OwnerID) Valid() bool {
	return o != "" && !strings.Contains(string(o), "/")
}

// AppPath maps an application-level file spec to its repository path.
// scope must be valid.
func AppPath(fileSpec string, scope AppScope) string {
	return scope.scope.Segment() + "/" + fileSpec
}

// ProjectPath maps a project-level file spec to its repository path.
// scope and owner must be valid.
func ProjectPath(fileSpec string, scope ProjectScope, owner OwnerID) string {
	return scope.scope.Segment() + "/" + string(owner) + "/" + fileSpec
}

// BuildPath is the dynamic form of AppPath and ProjectPath. It fails when the
// owner requirement of the scope is not met.
func BuildPath(fileSpec string, scope Scope, owner OwnerID) (string, error) {
	switch {
	case !scope.Valid():
		return "", errors.New(errors.CodeInvalidInput, "build path", "unknown scope %d", scope)
	case scope.RequiresOwner() && !owner.Valid():
		return "", errors.New(errors.CodeInvalidInput, "build path", "scope %s requires an owner id, got %q", scope, owner)
	case !scope.RequiresOwner() && owner != "":
		return "", errors.New(errors.CodeInvalidInput, "build path", "scope %s does not take an owner id", scope)
	case scope.RequiresOwner():
		return ProjectPath(fileSpec, ProjectScope{scope}, owner), nil
	default:
		return AppPath(fileSpec, AppScope{scope}), nil
	}
}

// Location is a repository path split into its parts.
type Location struct {
	Scope    Scope
	Owner    OwnerID
	FileSpec string
}

// Path rebuilds the repository path of the location.
func (l Location) Path() (string, error) {
	return BuildPath(l.FileSpec, l.Scope, l.Owner)
}

// Parse splits a repository path back into scope, owner and file spec.
func Parse(path string) (Location, error) {
	segment, rest, ok := strings.Cut(path, "/")
	if !ok {
		return Location{}, errors.New(errors.CodeInvalidInput, "parse path", "%q has no scope segment", path)
	}

	scope, found := scopeBySegment(segment)
	if !found {
		return Location{}, errors.New(errors.CodeInvalidInput, "parse path", "unknown scope segment %q", segment)
	}

	if !scope.RequiresOwner() {
		return Location{Scope: scope, FileSpec: rest}, nil
	}

	owner, spec, ok := strings.Cut(rest, "/")
	if !ok || owner == "" {
		return Location{}, errors.New(errors.CodeInvalidInput, "parse path", "%q has no owner segment", path)
	}
	return Location{Scope: scope, Owner: OwnerID(owner), FileSpec: spec}, nil
}

func scopeBySegment(segment string) (Scope, bool) {
	for scope, s := range segments {
		if s == segment {
			return scope, true
		}
	}
	return 0, false
}

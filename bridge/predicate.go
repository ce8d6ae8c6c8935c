package bridge

import (
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/pathmap"
)

// Well-known file specs.
const (
	// StatisticsFile holds usage statistics and is never shared.
	StatisticsFile = "$APP_CONFIG$/statistics.application.usages.xml"

	// WorkspaceFile is the per-project workspace state.
	WorkspaceFile = "$WORKSPACE_FILE$"

	// VersionFileSuffix marks the version twin of a storage file.
	VersionFileSuffix = ".ver"
)

// Predicate decides whether a file spec in a scope is shared.
type Predicate func(fileSpec string, scope pathmap.Scope) bool

// ShareAll shares every file.
func ShareAll(string, pathmap.Scope) bool {
	return true
}

// Exclude never shares the given specs or their version twins.
func Exclude(specs ...string) Predicate {
	excluded := make(map[string]struct{}, 2*len(specs))
	for _, s := range specs {
		excluded[s] = struct{}{}
		excluded[s+VersionFileSuffix] = struct{}{}
	}
	return func(fileSpec string, _ pathmap.Scope) bool {
		_, skip := excluded[fileSpec]
		return !skip
	}
}

// IgnorePatterns never shares specs matching any of the gitignore-style lines.
func IgnorePatterns(lines ...string) Predicate {
	matcher := ignore.CompileIgnoreLines(lines...)
	return func(fileSpec string, _ pathmap.Scope) bool {
		return !matcher.MatchesPath(fileSpec)
	}
}

// Workspace shares the workspace file and its version twin in the
// project per-user scope only while shareWorkspace reports true. It is
// consulted on every call so a settings reload applies immediately.
func Workspace(shareWorkspace func() bool) Predicate {
	exclude := Exclude(WorkspaceFile)
	return func(fileSpec string, scope pathmap.Scope) bool {
		if scope != pathmap.ProjectPerUser || shareWorkspace() {
			return true
		}
		return exclude(fileSpec, scope)
	}
}

// All shares a file only when every predicate does. With no predicates it shares everything.
func All(preds ...Predicate) Predicate {
	return func(fileSpec string, scope pathmap.Scope) bool {
		for _, p := range preds {
			if p != nil && !p(fileSpec, scope) {
				return false
			}
		}
		return true
	}
}

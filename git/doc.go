// Package git is the go-git facade behind the settings repository.
//
// Every operation goes through the project's native filesystem abstraction,
// so the same code drives an on-disk clone and an in-memory repository in
// tests.
//
// # Basic Usage
//
//	fs := billyfs.NewOSFS("/home/me/.local/share/settingsync/repository")
//
//	repo, err := git.Open(ctx, &git.Options{FS: fs})
//	if errors.Is(err, git.ErrNotRepository) {
//	    repo, err = git.Init(ctx, &git.Options{FS: fs})
//	}
//
// # Worktree Files
//
// Settings are written into the worktree and committed in bulk:
//
//	err = repo.WriteFile(ctx, "per-user/options/editor.xml", r)
//	staged, err := repo.StageAll(ctx)
//	sha, err := repo.Commit(ctx, "chore(settings): sync 1 file", who, git.CommitOpts{})
//
// StageAll picks up deletions as well, so RemoveFile followed by StageAll
// records the removal.
//
// # Synchronization
//
// PullFFOnly and Push accept a context that aborts the transfer. Both report
// ErrAlreadyUpToDate when there is nothing to transfer, and PullFFOnly
// reports ErrEmptyRemote for a remote without commits:
//
//	err = repo.PullFFOnly(ctx, "origin")
//	switch {
//	case errors.Is(err, git.ErrAlreadyUpToDate), errors.Is(err, git.ErrEmptyRemote):
//	case errors.Is(err, git.ErrNotFastForward):
//	    // local and remote history diverged
//	}
//
// # Authentication
//
// NewAuth turns user credentials into an AuthProvider that selects HTTPS
// token or SSH key/agent authentication by the remote's URL scheme.
//
// # Error Handling
//
// The package exports sentinel errors to check with errors.Is:
//   - ErrAlreadyUpToDate: nothing to fetch, pull or push
//   - ErrAuthRequired, ErrAuthFailed: credential problems
//   - ErrNotFastForward: diverged history
//   - ErrEmptyCommit: nothing staged
//   - ErrEmptyRemote: the remote has no commits
//   - ErrRemoteMissing: no remote configured
//   - ErrNotRepository: Open found no repository
//   - ErrTransport: any other network failure
//
// # Thread Safety
//
// A Repo is not safe for concurrent use. Callers serialize all operations.
package git

package repository

import (
	"context"
	"strings"
	"time"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/git"
)

// Commit message header fields written by GitManager.
const (
	CommitType  = "chore"
	CommitScope = "settings"
)

// Revision is one entry of the settings history.
type Revision struct {
	Hash   string
	Author string
	When   time.Time

	// Conventional reports whether the message parsed as a conventional commit.
	// When false, Description holds the raw subject line.
	Conventional bool
	Type         string
	Scope        string
	Description  string
	Breaking     bool
}

// History returns up to n recent revisions, newest first. n <= 0 means all.
func (m *GitManager) History(ctx context.Context, n int) ([]Revision, error) {
	if err := m.drain(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	commits, err := m.repo.Log(ctx, git.LogFilter{MaxCount: n})
	m.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "repository.history")
	}

	machine := parser.NewMachine(parser.WithTypes(conventionalcommits.TypesConventional))

	revs := make([]Revision, 0, len(commits))
	for _, c := range commits {
		revs = append(revs, parseRevision(machine, c))
	}
	return revs, nil
}

func parseRevision(machine conventionalcommits.Machine, c git.Commit) Revision {
	rev := Revision{
		Hash:   c.Hash,
		Author: c.Author.Name,
		When:   c.Author.When,
	}

	msg := strings.TrimSpace(c.Message)
	parsed, err := machine.Parse([]byte(msg))
	if err != nil || parsed == nil || !parsed.Ok() {
		rev.Description, _, _ = strings.Cut(msg, "\n")
		return rev
	}

	cc, ok := parsed.(*conventionalcommits.ConventionalCommit)
	if !ok {
		rev.Description, _, _ = strings.Cut(msg, "\n")
		return rev
	}

	rev.Conventional = true
	rev.Type = cc.Type
	rev.Description = cc.Description
	rev.Breaking = cc.IsBreakingChange()
	if cc.Scope != nil {
		rev.Scope = *cc.Scope
	}
	return rev
}

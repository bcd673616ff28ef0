// Package git wraps the subset of git plumbing the write-back queue's
// commit drain needs: staging and committing archive artifacts into a
// project's working tree. Adapted from the teacher's
// internal/git/git.go — the task-branch helpers (BranchName,
// CreateBranch, SwitchBranch, Push, GetDiff, GetLog) are dropped since
// the bus never creates branches, only appends files to the working
// tree and commits them; run/Add/Commit/HasUncommittedChanges/
// CurrentBranch carry over unchanged in shape.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Git provides git operations for a repository working tree.
type Git struct {
	repoPath string
}

// New creates a Git instance for the given repository path.
func New(repoPath string) *Git {
	return &Git{repoPath: repoPath}
}

func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.repoPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the current branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// HasUncommittedChanges reports whether the working tree has pending changes.
func (g *Git) HasUncommittedChanges() (bool, error) {
	output, err := g.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return output != "", nil
}

// Add stages files for commit.
func (g *Git) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	_, err := g.run(args...)
	return err
}

// Commit creates a commit with the given message. Returns nil (no-op)
// when the working tree has no uncommitted changes at all
// (HasUncommittedChanges), since the commit-queue drain batches
// multiple archive writes and may be called with an empty batch.
func (g *Git) Commit(message string) error {
	dirty, err := g.HasUncommittedChanges()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	_, err = g.run("commit", "-m", message)
	return err
}

// LastCommitTime returns the commit time of the most recent commit
// touching pathspec as a Unix timestamp, or (0, nil) if no commit
// matches (including a repository with no commits yet). An empty
// pathspec scopes to the whole repository. Used by the file-reservation
// cleanup worker's staleness heuristic to test for recent git activity
// on the reservation's own path_pattern, not just anywhere in the repo.
func (g *Git) LastCommitTime(pathspec string) (int64, error) {
	args := []string{"log", "-1", "--format=%ct"}
	if pathspec != "" {
		args = append(args, "--", pathspec)
	}
	out, err := g.run(args...)
	if err != nil {
		if strings.Contains(err.Error(), "does not have any commits") {
			return 0, nil
		}
		return 0, err
	}
	if out == "" {
		return 0, nil
	}
	var ts int64
	if _, scanErr := fmt.Sscanf(out, "%d", &ts); scanErr != nil {
		return 0, scanErr
	}
	return ts, nil
}

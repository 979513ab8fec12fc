// Package git reads commit history from a repository. Two walkers are
// provided: NativeWalker reads the object database in-process and CLIWalker
// streams the output of the git binary. Both yield the same Commit model.
package git

import (
	"context"
	"time"
)

// ChangeKind is the kind of a path-level change in a commit.
type ChangeKind string

const (
	Added    ChangeKind = "add"
	Modified ChangeKind = "modify"
	Deleted  ChangeKind = "delete"
	Renamed  ChangeKind = "rename"
	Copied   ChangeKind = "copy"
)

// Change is one path-level change. Path is the path after the change, or the
// removed path for Deleted. OldPath is set for Renamed and Copied.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Path    string     `json:"path"`
	OldPath string     `json:"oldPath,omitempty"`
}

// ParentDiff holds the changes of a commit relative to one parent. Parent is
// empty for a root commit, which is diffed against the empty tree.
type ParentDiff struct {
	Parent  string   `json:"parent,omitempty"`
	Changes []Change `json:"changes"`
}

// Signature is a raw identity as recorded in a commit.
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

// Commit is a single commit with its parent links and per-parent diffs.
type Commit struct {
	ID        string       `json:"id"`
	Parents   []string     `json:"parents"`
	Author    Signature    `json:"author"`
	Committer Signature    `json:"committer"`
	Message   string       `json:"message"`
	Diffs     []ParentDiff `json:"diffs"`
}

// IsMerge reports whether the commit has two or more parents.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// RepoInfo describes the repository as a whole.
type RepoInfo struct {
	RemoteURL string `json:"remote_url,omitempty"`
	Head      string `json:"head,omitempty"`
}

// WalkStats counts what a walk recovered from.
type WalkStats struct {
	Walked       int `json:"walked"`
	Skipped      int `json:"skipped"`
	LossyDecodes int `json:"lossyDecodes"`
}

// History is the complete result of a walk. Commits are ordered so that every
// commit appears after all of its parents that are within the horizon.
type History struct {
	Commits   []Commit  `json:"commits"`
	Head      string    `json:"head"`
	LivePaths []string  `json:"livePaths"`
	Info      RepoInfo  `json:"info"`
	Stats     WalkStats `json:"stats"`
}

// WalkOptions bounds a walk.
type WalkOptions struct {
	// Since excludes commits whose committer time is before it.
	Since time.Time
	// FollowSymlinks treats symlinks in the tip tree as live files.
	FollowSymlinks bool
}

// Walker produces the bounded commit history of a repository.
type Walker interface {
	Walk(ctx context.Context, opts WalkOptions) (*History, error)
}

// Horizon returns the start of a history window of the given number of years
// ending at now.
func Horizon(now time.Time, years int) time.Time {
	return now.AddDate(-years, 0, 0)
}

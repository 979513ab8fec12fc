// Package testutil builds throwaway git repositories and compares output
// snapshots for tests.
package testutil

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Epoch is a fixed base time for test commits.
var Epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Person is a commit author or committer.
type Person struct {
	Name  string
	Email string
}

// Repo builds a history one commit at a time.
type Repo struct {
	t    *testing.T
	Repo *gogit.Repository
	FS   billy.Filesystem
	wt   *gogit.Worktree
}

// NewMemoryRepo creates a repository held entirely in memory.
func NewMemoryRepo(t *testing.T) *Repo {
	t.Helper()
	fs := memfs.New()
	repo, err := gogit.Init(memory.NewStorage(), fs)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return newRepo(t, repo, fs)
}

// NewDiskRepo creates a repository in a temporary directory and returns it
// with the directory path.
func NewDiskRepo(t *testing.T) (*Repo, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	return newRepo(t, repo, wt.Filesystem), dir
}

func newRepo(t *testing.T, repo *gogit.Repository, fs billy.Filesystem) *Repo {
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	return &Repo{t: t, Repo: repo, FS: fs, wt: wt}
}

// Write creates or replaces a file and stages it.
func (r *Repo) Write(path, content string) {
	r.t.Helper()
	if err := util.WriteFile(r.FS, path, []byte(content), 0o644); err != nil {
		r.t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
	if _, err := r.wt.Add(path); err != nil {
		r.t.Fatalf("Add(%s) error = %v", path, err)
	}
}

// Remove deletes a file and stages the deletion.
func (r *Repo) Remove(path string) {
	r.t.Helper()
	if _, err := r.wt.Remove(path); err != nil {
		r.t.Fatalf("Remove(%s) error = %v", path, err)
	}
}

// Move renames a file and stages the rename.
func (r *Repo) Move(from, to string) {
	r.t.Helper()
	if _, err := r.wt.Move(from, to); err != nil {
		r.t.Fatalf("Move(%s, %s) error = %v", from, to, err)
	}
}

// Commit records the staged changes as authored and committed by who at the
// given time. Without parents the commit goes on top of HEAD.
func (r *Repo) Commit(msg string, who Person, at time.Time, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()
	sig := &object.Signature{Name: who.Name, Email: who.Email, When: at}
	hash, err := r.wt.Commit(msg, &gogit.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	if err != nil {
		r.t.Fatalf("Commit(%q) error = %v", msg, err)
	}
	return hash
}

// Checkout replaces the work tree and index with the given commit and detaches
// HEAD there, so the next Commit starts a branch from it.
func (r *Repo) Checkout(hash plumbing.Hash) {
	r.t.Helper()
	if err := r.wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		r.t.Fatalf("Checkout(%s) error = %v", hash, err)
	}
}

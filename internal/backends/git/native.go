package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	scanerrors "github.com/kornysietsma/polyglot-code-scanner/internal/errors"
)

// OpenRepository opens the repository containing root, searching parent
// directories for the .git directory.
func OpenRepository(root string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, repositoryAccessError(root, err)
	}
	return repo, nil
}

func repositoryAccessError(root string, cause error) error {
	return scanerrors.NewScanError(
		scanerrors.RepositoryAccess,
		"Cannot read git repository",
		cause,
		scanerrors.GetSuggestedFixes(scanerrors.RepositoryAccess),
	).WithDetails(map[string]interface{}{"root": root})
}

// NativeWalker walks history through go-git without spawning processes.
type NativeWalker struct {
	repo   *gogit.Repository
	logger *slog.Logger
}

// NewNativeWalker creates a walker over an opened repository.
func NewNativeWalker(repo *gogit.Repository, logger *slog.Logger) *NativeWalker {
	return &NativeWalker{repo: repo, logger: logger}
}

// Walk implements Walker.
func (w *NativeWalker) Walk(ctx context.Context, opts WalkOptions) (*History, error) {
	head, err := w.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			w.logger.Warn("Repository has no commits")
			return &History{}, nil
		}
		return nil, repositoryAccessError("HEAD", err)
	}

	tip, err := w.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, repositoryAccessError(head.Hash().String(), err)
	}

	dec := &decoder{}
	hist := &History{
		Head: tip.Hash.String(),
		Info: w.repoInfo(tip.Hash),
	}

	hist.LivePaths, err = livePaths(tip, opts.FollowSymlinks, dec)
	if err != nil {
		return nil, repositoryAccessError(hist.Head, err)
	}

	ordered, missing, err := w.collect(ctx, tip, opts)
	if err != nil {
		return nil, err
	}
	hist.Stats.Skipped += missing

	hist.Commits = make([]Commit, 0, len(ordered))
	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		commit, err := w.convert(ctx, c, dec)
		if err != nil {
			hist.Stats.Skipped++
			w.logger.Warn("Skipping malformed commit",
				"commit", c.Hash.String(),
				"error", scanerrors.NewScanError(scanerrors.MalformedCommit, "cannot read commit", err, nil),
			)
			continue
		}
		hist.Commits = append(hist.Commits, commit)
	}

	hist.Stats.Walked = len(hist.Commits)
	hist.Stats.LossyDecodes = dec.lossy
	w.logger.Info("Walked git history",
		"head", hist.Head,
		"commits", hist.Stats.Walked,
		"skipped", hist.Stats.Skipped,
		"livePaths", len(hist.LivePaths),
	)
	return hist, nil
}

// collect returns commits reachable from tip within the horizon, parents
// before children. Walking stops at commits older than opts.Since.
func (w *NativeWalker) collect(ctx context.Context, tip *object.Commit, opts WalkOptions) ([]*object.Commit, int, error) {
	if tip.Committer.When.Before(opts.Since) {
		return nil, 0, nil
	}

	type frame struct {
		commit *object.Commit
		next   int
	}

	var (
		ordered []*object.Commit
		missing int
	)
	seen := map[plumbing.Hash]bool{tip.Hash: true}
	stack := []frame{{commit: tip}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		top := &stack[len(stack)-1]
		if top.next < len(top.commit.ParentHashes) {
			ph := top.commit.ParentHashes[top.next]
			top.next++
			if seen[ph] {
				continue
			}
			seen[ph] = true

			parent, err := w.repo.CommitObject(ph)
			if err != nil {
				missing++
				w.logger.Warn("Parent commit not readable", "commit", ph.String(), "error", err)
				continue
			}
			if parent.Committer.When.Before(opts.Since) {
				continue
			}
			stack = append(stack, frame{commit: parent})
			continue
		}
		ordered = append(ordered, top.commit)
		stack = stack[:len(stack)-1]
	}
	return ordered, missing, nil
}

func (w *NativeWalker) convert(ctx context.Context, c *object.Commit, dec *decoder) (Commit, error) {
	tree, err := c.Tree()
	if err != nil {
		return Commit{}, fmt.Errorf("tree: %w", err)
	}

	out := Commit{
		ID:        c.Hash.String(),
		Author:    dec.signature(Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When}),
		Committer: dec.signature(Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When}),
		Message:   dec.text(c.Message),
	}

	if len(c.ParentHashes) == 0 {
		changes, err := diffTrees(ctx, nil, tree)
		if err != nil {
			return Commit{}, err
		}
		out.Diffs = []ParentDiff{{Changes: dec.changes(changes)}}
		return out, nil
	}

	for _, ph := range c.ParentHashes {
		out.Parents = append(out.Parents, ph.String())

		parent, err := w.repo.CommitObject(ph)
		if err != nil {
			return Commit{}, fmt.Errorf("parent %s: %w", ph, err)
		}
		parentTree, err := parent.Tree()
		if err != nil {
			return Commit{}, fmt.Errorf("parent tree %s: %w", ph, err)
		}
		changes, err := diffTrees(ctx, parentTree, tree)
		if err != nil {
			return Commit{}, err
		}
		out.Diffs = append(out.Diffs, ParentDiff{Parent: ph.String(), Changes: dec.changes(changes)})
	}
	return out, nil
}

func diffTrees(ctx context.Context, from, to *object.Tree) ([]Change, error) {
	diffs, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	changes := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		action, err := d.Action()
		if err != nil {
			return nil, fmt.Errorf("diff action: %w", err)
		}
		switch action {
		case merkletrie.Insert:
			changes = append(changes, Change{Kind: Added, Path: d.To.Name})
		case merkletrie.Delete:
			changes = append(changes, Change{Kind: Deleted, Path: d.From.Name})
		case merkletrie.Modify:
			if d.From.Name != d.To.Name {
				changes = append(changes, Change{Kind: Renamed, Path: d.To.Name, OldPath: d.From.Name})
			} else {
				changes = append(changes, Change{Kind: Modified, Path: d.To.Name})
			}
		}
	}
	sortChanges(changes)
	return changes, nil
}

func sortChanges(changes []Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].OldPath < changes[j].OldPath
	})
}

func livePaths(tip *object.Commit, followSymlinks bool, dec *decoder) ([]string, error) {
	tree, err := tip.Tree()
	if err != nil {
		return nil, err
	}
	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if f.Mode == filemode.Symlink && !followSymlinks {
			return nil
		}
		paths = append(paths, dec.text(f.Name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (w *NativeWalker) repoInfo(head plumbing.Hash) RepoInfo {
	info := RepoInfo{Head: head.String()}
	remote, err := w.repo.Remote("origin")
	if err != nil {
		w.logger.Debug("No origin remote", "error", err)
		return info
	}
	if urls := remote.Config().URLs; len(urls) > 0 {
		info.RemoteURL = urls[0]
	}
	return info
}

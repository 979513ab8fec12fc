// Package scan runs the history pipeline over a repository and assembles the
// output document.
//
// The stages run in order: walk the commit history, resolve every change to
// its path at the tip, normalize users, index file activity, summarize each
// file, and optionally compute temporal coupling. Each stage that produces
// per-file results is a tree.Producer; the scanner owns the tree and applies
// every producer to it.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kornysietsma/polyglot-code-scanner/internal/activity"
	"github.com/kornysietsma/polyglot-code-scanner/internal/backends/git"
	"github.com/kornysietsma/polyglot-code-scanner/internal/config"
	"github.com/kornysietsma/polyglot-code-scanner/internal/coupling"
	"github.com/kornysietsma/polyglot-code-scanner/internal/identity"
	"github.com/kornysietsma/polyglot-code-scanner/internal/tree"
	"github.com/kornysietsma/polyglot-code-scanner/internal/users"
	"github.com/kornysietsma/polyglot-code-scanner/internal/version"
)

// Request describes one scan.
type Request struct {
	// Root is the directory to scan.
	Root string
	// Name labels the root node. Defaults to the base name of Root.
	Name string
	// ID identifies the document. A random UUID is used when empty.
	ID string
	// Now anchors the history horizon. Defaults to the wall clock.
	Now time.Time
	// Walker overrides the configured history backend. Its repository is
	// taken to be rooted at Root.
	Walker git.Walker
}

// Result is a finished scan.
type Result struct {
	Document *Document
	Report   Report
}

// Scanner runs scans with a fixed configuration.
type Scanner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewScanner validates cfg and returns a scanner for it.
func NewScanner(cfg *config.Config, logger *slog.Logger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{cfg: cfg, logger: logger}, nil
}

// Run scans req.Root.
func (s *Scanner) Run(ctx context.Context, req Request) (*Result, error) {
	abs, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req.Root, err)
	}
	name := req.Name
	if name == "" {
		name = filepath.Base(abs)
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	doc := &Document{
		Version:  version.DataFormatVersion,
		Name:     name,
		ID:       id,
		Metadata: &tree.Metadata{},
		Features: Features{
			Git:        s.cfg.History.Enabled,
			GitDetails: s.cfg.History.Enabled && s.cfg.History.Detailed,
			Coupling:   s.cfg.Coupling.Enabled,
		},
	}
	result := &Result{Document: doc}

	if !s.cfg.History.Enabled {
		t, err := tree.FromFilesystem(abs, s.cfg.History.FollowSymlinks)
		if err != nil {
			return nil, err
		}
		t.Root.Name = name
		doc.Tree = t.Root
		result.Report.Files = len(t.Files())
		s.logReport(result.Report)
		return result, nil
	}

	walker := req.Walker
	prefix := ""
	if walker == nil {
		var top string
		if walker, top, err = s.walker(ctx, abs); err != nil {
			return nil, err
		}
		if prefix, err = scopePrefix(top, abs); err != nil {
			return nil, err
		}
	}

	horizon := git.Horizon(now, s.cfg.History.Years)
	s.logger.Info("Walking history", "root", abs, "backend", s.cfg.History.Backend, "since", horizon.Format(time.RFC3339))
	hist, err := walker.Walk(ctx, git.WalkOptions{
		Since:          horizon,
		FollowSymlinks: s.cfg.History.FollowSymlinks,
	})
	if err != nil {
		return nil, err
	}
	result.Report.addWalk(hist.Stats)

	graph := identity.BuildGraph(hist)
	res, err := identity.NewResolver(s.logger).Resolve(ctx, graph, hist.LivePaths)
	if err != nil {
		return nil, fmt.Errorf("resolve identities: %w", err)
	}
	result.Report.Ambiguities = res.Ambiguities
	result.Report.Dropped = res.Dropped

	// Identities are resolved over the whole repository, then narrowed to root.
	res = res.Within(prefix)
	live := identity.ScopePaths(hist.LivePaths, prefix)

	dict := users.NewDictionary()
	norm := users.NewNormalizer(dict, s.cfg.Privacy.Mode == config.PrivacyRedacted)
	ix := activity.Build(res, norm)

	summaries, err := activity.Summarize(ctx, ix, dict, activity.SummaryOptions{
		Reference:    referenceTime(hist),
		HorizonStart: horizon,
		MinGap:       minutes(s.cfg.Coupling.MinActivityGapMinutes),
		Detailed:     s.cfg.History.Detailed,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize files: %w", err)
	}
	result.Report.Files = summaries.Len()

	producers := []tree.Producer{repoProducer{info: hist.Info}, summaries}

	if s.cfg.Coupling.Enabled {
		engine := coupling.NewEngine(CouplingOptions(s.cfg.Coupling), s.logger)
		cres, err := engine.Analyze(ctx, ix)
		if err != nil {
			return nil, fmt.Errorf("coupling: %w", err)
		}
		doc.Coupling = cres.Edges
		if doc.Coupling == nil {
			doc.Coupling = []coupling.Edge{}
		}
		result.Report.Edges = len(cres.Edges)
		producers = append(producers, cres)
	}

	t := tree.FromPaths(name, live)
	for _, p := range producers {
		if err := p.Apply(t); err != nil {
			return nil, fmt.Errorf("apply results: %w", err)
		}
		p.CollectMetadata(doc.Metadata)
	}
	doc.Tree = t.Root

	s.logReport(result.Report)
	return result, nil
}

// walker returns the configured walker and the top level of its work tree,
// which is empty when the repository has none.
func (s *Scanner) walker(ctx context.Context, root string) (git.Walker, string, error) {
	switch s.cfg.History.Backend {
	case config.BackendCLI:
		w, err := git.NewCLIWalker(ctx, root, s.logger)
		if err != nil {
			return nil, "", err
		}
		return w, w.Root(), nil
	default:
		repo, err := git.OpenRepository(root)
		if err != nil {
			return nil, "", err
		}
		top := ""
		if wt, err := repo.Worktree(); err == nil {
			top = wt.Filesystem.Root()
		}
		return git.NewNativeWalker(repo, s.logger), top, nil
	}
}

// scopePrefix returns dir relative to the work tree top as a slash path, or
// "" when dir is the top itself or top is unknown.
func scopePrefix(top, dir string) (string, error) {
	if top == "" {
		return "", nil
	}
	rel, err := filepath.Rel(canonical(top), canonical(dir))
	if err != nil {
		return "", fmt.Errorf("resolve %s within %s: %w", dir, top, err)
	}
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside work tree %s", dir, top)
	}
	return filepath.ToSlash(rel), nil
}

func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

func (s *Scanner) logReport(r Report) {
	s.logger.Info("Scan complete",
		"commits", r.Walked,
		"skipped", r.Skipped,
		"lossy_decodes", r.LossyDecodes,
		"ambiguities", r.Ambiguities,
		"dropped_changes", r.Dropped,
		"files", r.Files,
		"edges", r.Edges,
	)
	if r.Skipped > 0 || r.LossyDecodes > 0 {
		s.logger.Warn("Some history could not be read cleanly",
			"skipped", r.Skipped, "lossy_decodes", r.LossyDecodes)
	}
}

// CouplingOptions converts configuration into engine options.
func CouplingOptions(c config.CouplingConfig) coupling.Options {
	return coupling.Options{
		BucketDays:     c.BucketDays,
		MinBursts:      c.MinBursts,
		MinActivityGap: minutes(c.MinActivityGapMinutes),
		TimeOverlap:    minutes(c.TimeOverlapMinutes),
		MinRatio:       c.MinRatio,
		MinDistance:    c.MinDistance,
		MaxCommonRoots: c.MaxCommonRoots,
	}
}

// referenceTime is the latest commit time in hist, so ages do not depend on
// when the scan runs.
func referenceTime(hist *git.History) time.Time {
	var ref time.Time
	for i := range hist.Commits {
		if t := hist.Commits[i].Committer.When; t.After(ref) {
			ref = t
		}
	}
	if ref.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return ref
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

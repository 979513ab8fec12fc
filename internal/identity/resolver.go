package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kornysietsma/polyglot-code-scanner/internal/backends/git"
	scanerrors "github.com/kornysietsma/polyglot-code-scanner/internal/errors"
)

// ResolvedChange is a change of one commit projected onto a tip path.
type ResolvedChange struct {
	Path    string `json:"path"`
	Created bool   `json:"created,omitempty"`
}

// ResolvedCommit lists the tip paths a commit touched.
type ResolvedCommit struct {
	Commit  *git.Commit
	Changes []ResolvedChange
}

// Resolution is the output of the second pass. Commits are in topological
// order and only commits with at least one surviving change are listed.
type Resolution struct {
	Commits     []ResolvedCommit
	Ambiguities int
	// Dropped counts changes to paths that do not reach the tip.
	Dropped int
}

// pathMap maps a path as it existed at some commit to its tip path.
type pathMap map[string]string

// Resolver runs the backward projection over a Graph.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve projects every change in g onto the tip paths in livePaths.
func (r *Resolver) Resolve(ctx context.Context, g *Graph, livePaths []string) (*Resolution, error) {
	perNode := make([][]ResolvedChange, len(g.nodes))
	res := &Resolution{}

	amb, err := r.project(ctx, g, livePaths, func(i int, m pathMap) {
		changes, dropped := resolveChanges(g.nodes[i].commit, m)
		perNode[i] = changes
		res.Dropped += dropped
	})
	if err != nil {
		return nil, err
	}
	res.Ambiguities = amb

	for _, i := range g.order {
		if len(perNode[i]) == 0 {
			continue
		}
		res.Commits = append(res.Commits, ResolvedCommit{Commit: g.nodes[i].commit, Changes: perNode[i]})
	}

	r.logger.Debug("Resolved file identities",
		"commits", len(g.nodes),
		"withChanges", len(res.Commits),
		"dropped", res.Dropped,
		"ambiguities", res.Ambiguities,
	)
	return res, nil
}

// ResolvePath returns the tip path that path at commitID corresponds to. The
// boolean is false when the file does not survive to the tip.
func (r *Resolver) ResolvePath(ctx context.Context, g *Graph, livePaths []string, commitID, path string) (string, bool, error) {
	target, ok := g.index[commitID]
	if !ok {
		return "", false, fmt.Errorf("commit %s is not in the scanned history", commitID)
	}

	var (
		current string
		found   bool
	)
	_, err := r.project(ctx, g, livePaths, func(i int, m pathMap) {
		if i == target {
			current, found = m[path]
		}
	})
	if err != nil {
		return "", false, err
	}
	return current, found, nil
}

// project walks g from the tip toward the roots. visit is called once per
// node with the finished map for that commit; the map must not be retained.
// It returns the number of conflicting projections.
func (r *Resolver) project(ctx context.Context, g *Graph, livePaths []string, visit func(int, pathMap)) (int, error) {
	if g.tip < 0 {
		return 0, nil
	}

	maps := make([]pathMap, len(g.nodes))
	// pending counts parents that still need a node's map.
	pending := make([]int, len(g.nodes))
	for i := range g.nodes {
		pending[i] = len(g.nodes[i].parents)
	}

	ambiguities := 0
	for k := len(g.order) - 1; k >= 0; k-- {
		if k%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		i := g.order[k]

		var m pathMap
		if i == g.tip {
			m = make(pathMap, len(livePaths))
			for _, p := range livePaths {
				m[p] = p
			}
		} else {
			var conflicts int
			m, conflicts = r.fromChildren(g, i, maps, pending)
			ambiguities += conflicts
		}

		visit(i, m)
		if pending[i] > 0 {
			maps[i] = m
		}
	}
	return ambiguities, nil
}

// fromChildren builds the map of node i from the maps of its children. When
// children disagree the newest child wins.
func (r *Resolver) fromChildren(g *Graph, i int, maps []pathMap, pending []int) (pathMap, int) {
	children := append([]int(nil), g.nodes[i].children...)
	if len(children) == 0 {
		return pathMap{}, 0
	}
	sort.SliceStable(children, func(a, b int) bool { return g.newer(children[a], children[b]) })

	var (
		result    pathMap
		conflicts int
	)
	for k, c := range children {
		candidate := projectEdge(g, c, i, maps, pending)
		if k == 0 {
			result = candidate
			continue
		}
		for path, current := range candidate {
			existing, ok := result[path]
			if !ok {
				result[path] = current
				continue
			}
			if existing != current {
				conflicts++
				r.logger.Debug("Conflicting rename projection",
					"commit", g.nodes[i].commit.ID,
					"path", path,
					"chosen", existing,
					"discarded", current,
					"via", g.nodes[c].commit.ID,
				)
			}
		}
	}

	if conflicts > 0 {
		r.logger.Warn("Ambiguous rename history resolved by newest branch",
			"code", scanerrors.IdentityAmbiguity,
			"commit", g.nodes[i].commit.ID,
			"paths", conflicts,
		)
	}
	return result, conflicts
}

// projectEdge maps child c's paths back across its diff from parent p. The
// child's map is reused when p is the last parent that needs it.
func projectEdge(g *Graph, c, p int, maps []pathMap, pending []int) pathMap {
	src := maps[c]
	pending[c]--

	var dst pathMap
	if pending[c] == 0 {
		dst = src
		maps[c] = nil
	} else {
		dst = make(pathMap, len(src))
		for k, v := range src {
			dst[k] = v
		}
	}

	diff := g.nodes[c].diffTo(p)
	if diff == nil {
		return dst
	}

	// Read every rename from src before writing so swaps resolve correctly.
	type update struct {
		from    string
		current string
		live    bool
	}
	var updates []update
	for _, ch := range diff.Changes {
		if ch.Kind != git.Renamed {
			continue
		}
		current, live := src[ch.Path]
		updates = append(updates, update{from: ch.OldPath, current: current, live: live})
	}
	for _, u := range updates {
		if u.live {
			dst[u.from] = u.current
		} else {
			delete(dst, u.from)
		}
	}
	return dst
}

// resolveChanges projects the changes of c through m. A merge only counts a
// path that differs from every parent.
func resolveChanges(c *git.Commit, m pathMap) ([]ResolvedChange, int) {
	touched := touchedPaths(c)
	if len(touched) == 0 {
		return nil, 0
	}

	byPath := make(map[string]bool, len(touched))
	dropped := 0
	for path, kind := range touched {
		current, ok := m[path]
		if !ok {
			dropped++
			continue
		}
		created := kind == git.Added || kind == git.Copied
		byPath[current] = byPath[current] || created
	}

	changes := make([]ResolvedChange, 0, len(byPath))
	for path, created := range byPath {
		changes = append(changes, ResolvedChange{Path: path, Created: created})
	}
	sort.Slice(changes, func(a, b int) bool { return changes[a].Path < changes[b].Path })
	return changes, dropped
}

func touchedPaths(c *git.Commit) map[string]git.ChangeKind {
	if len(c.Diffs) == 0 {
		return nil
	}

	touched := make(map[string]git.ChangeKind, len(c.Diffs[0].Changes))
	for _, ch := range c.Diffs[0].Changes {
		touched[ch.Path] = ch.Kind
	}

	for _, d := range c.Diffs[1:] {
		inDiff := make(map[string]bool, len(d.Changes))
		for _, ch := range d.Changes {
			inDiff[ch.Path] = true
		}
		for path := range touched {
			if !inDiff[path] {
				delete(touched, path)
			}
		}
	}
	return touched
}

package identity

import "strings"

// ScopePaths keeps the paths under prefix, relative to it. An empty prefix
// keeps every path.
func ScopePaths(paths []string, prefix string) []string {
	if prefix == "" {
		return paths
	}
	var out []string
	for _, p := range paths {
		if rel, ok := underPrefix(p, prefix); ok {
			out = append(out, rel)
		}
	}
	return out
}

// Within returns the resolution restricted to tip paths under prefix, with
// the prefix stripped. Commits left without changes are dropped.
func (r *Resolution) Within(prefix string) *Resolution {
	if prefix == "" {
		return r
	}
	out := &Resolution{Ambiguities: r.Ambiguities, Dropped: r.Dropped}
	for _, rc := range r.Commits {
		var changes []ResolvedChange
		for _, ch := range rc.Changes {
			if rel, ok := underPrefix(ch.Path, prefix); ok {
				changes = append(changes, ResolvedChange{Path: rel, Created: ch.Created})
			}
		}
		if len(changes) > 0 {
			out.Commits = append(out.Commits, ResolvedCommit{Commit: rc.Commit, Changes: changes})
		}
	}
	return out
}

func underPrefix(p, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/")
	rel, ok := strings.CutPrefix(p, prefix+"/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

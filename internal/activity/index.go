// Package activity records, per tip path, the chronological change events
// that survive identity resolution, and derives bursts and file summaries
// from them.
package activity

import (
	"sort"
	"time"

	"github.com/kornysietsma/polyglot-code-scanner/internal/identity"
	"github.com/kornysietsma/polyglot-code-scanner/internal/users"
)

// Event is one commit's change to a file.
type Event struct {
	Commit string
	// Time is the author time and orders events.
	Time time.Time
	// CommitTime is the committer time and drives last-update.
	CommitTime time.Time
	Users      []int
	Created    bool
}

// Index maps tip paths to their events in time order.
type Index struct {
	files map[string][]Event
}

// Build creates the index. Users are registered in committer-time order so
// dictionary ids and display casing follow the history rather than the walk.
func Build(res *identity.Resolution, norm *users.Normalizer) *Index {
	commits := append([]identity.ResolvedCommit(nil), res.Commits...)
	sort.SliceStable(commits, func(i, j int) bool {
		a, b := commits[i].Commit, commits[j].Commit
		if !a.Committer.When.Equal(b.Committer.When) {
			return a.Committer.When.Before(b.Committer.When)
		}
		return a.ID < b.ID
	})

	ix := &Index{files: make(map[string][]Event)}
	for _, rc := range commits {
		ids := norm.CommitUsers(rc.Commit)
		for _, ch := range rc.Changes {
			ix.files[ch.Path] = append(ix.files[ch.Path], Event{
				Commit:     rc.Commit.ID,
				Time:       rc.Commit.Author.When,
				CommitTime: rc.Commit.Committer.When,
				Users:      ids,
				Created:    ch.Created,
			})
		}
	}

	for _, events := range ix.files {
		sortEvents(events)
	}
	return ix
}

// NewIndex creates an index from events already grouped by tip path.
func NewIndex(files map[string][]Event) *Index {
	ix := &Index{files: make(map[string][]Event, len(files))}
	for p, events := range files {
		events = append([]Event(nil), events...)
		sortEvents(events)
		ix.files[p] = events
	}
	return ix
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		return events[i].Commit < events[j].Commit
	})
}

// Paths returns the indexed paths in lexical order.
func (ix *Index) Paths() []string {
	paths := make([]string, 0, len(ix.files))
	for p := range ix.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Events returns the events of path in time order.
func (ix *Index) Events(path string) []Event {
	return ix.files[path]
}

// Len returns the number of files with at least one event.
func (ix *Index) Len() int {
	return len(ix.files)
}

package scan

import (
	"github.com/kornysietsma/polyglot-code-scanner/internal/backends/git"
	"github.com/kornysietsma/polyglot-code-scanner/internal/coupling"
	"github.com/kornysietsma/polyglot-code-scanner/internal/tree"
)

// Features records which indicators a document carries.
type Features struct {
	Git        bool `json:"git"`
	GitDetails bool `json:"git_details"`
	Coupling   bool `json:"coupling"`
}

// Document is the versioned scan output.
type Document struct {
	Version  string          `json:"version"`
	Name     string          `json:"name"`
	ID       string          `json:"id"`
	Features Features        `json:"features"`
	Tree     *tree.Node      `json:"tree"`
	Metadata *tree.Metadata  `json:"metadata"`
	Coupling []coupling.Edge `json:"coupling"`
}

// Report counts what a scan walked, recovered from and produced.
type Report struct {
	Walked       int
	Skipped      int
	LossyDecodes int
	Ambiguities  int
	Dropped      int
	Files        int
	Edges        int
}

func (r *Report) addWalk(s git.WalkStats) {
	r.Walked = s.Walked
	r.Skipped = s.Skipped
	r.LossyDecodes = s.LossyDecodes
}

// repoProducer attaches repository information to the root node.
type repoProducer struct {
	info git.RepoInfo
}

func (p repoProducer) Apply(m tree.Mutator) error {
	if p.info.RemoteURL == "" && p.info.Head == "" {
		return nil
	}
	return m.Apply("", tree.RepoData{RemoteURL: p.info.RemoteURL, Head: p.info.Head})
}

func (repoProducer) CollectMetadata(*tree.Metadata) {}

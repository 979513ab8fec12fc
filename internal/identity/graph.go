// Package identity maps historical file paths to the paths they correspond
// to in the tip tree.
//
// Resolution runs in two passes. BuildGraph indexes the whole bounded history
// into an arena of commits with parent and child links. Resolver then walks
// that arena backward from the tip, carrying a map from historical path to
// current path through every rename on the way.
package identity

import (
	"github.com/kornysietsma/polyglot-code-scanner/internal/backends/git"
)

// parentLink is an in-horizon parent together with the diff from it.
type parentLink struct {
	node int
	diff *git.ParentDiff
}

type node struct {
	commit   *git.Commit
	parents  []parentLink
	children []int
}

// Graph is the commit arena built by the first pass.
type Graph struct {
	nodes []node
	index map[string]int
	// order lists node indices with every node after its parents.
	order []int
	tip   int
}

// BuildGraph indexes hist. Parents outside the horizon are left out, which
// makes their children boundary commits.
func BuildGraph(hist *git.History) *Graph {
	g := &Graph{
		nodes: make([]node, len(hist.Commits)),
		index: make(map[string]int, len(hist.Commits)),
		tip:   -1,
	}

	for i := range hist.Commits {
		c := &hist.Commits[i]
		g.nodes[i].commit = c
		g.index[c.ID] = i
	}

	for i := range g.nodes {
		c := g.nodes[i].commit
		for _, pid := range c.Parents {
			p, ok := g.index[pid]
			if !ok || p == i || g.nodes[i].hasParent(p) {
				continue
			}
			g.nodes[i].parents = append(g.nodes[i].parents, parentLink{node: p, diff: diffFrom(c, pid)})
			g.nodes[p].children = append(g.nodes[p].children, i)
		}
	}

	if tip, ok := g.index[hist.Head]; ok {
		g.tip = tip
	}
	g.order = g.topoOrder()
	return g
}

// topoOrder keeps the walker's order where it is already topological and
// repairs it where it is not.
func (g *Graph) topoOrder() []int {
	order := make([]int, 0, len(g.nodes))
	placed := make([]bool, len(g.nodes))

	type frame struct {
		node int
		next int
	}
	for i := range g.nodes {
		if placed[i] {
			continue
		}
		stack := []frame{{node: i}}
		placed[i] = true
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			parents := g.nodes[top.node].parents
			if top.next < len(parents) {
				p := parents[top.next].node
				top.next++
				if !placed[p] {
					placed[p] = true
					stack = append(stack, frame{node: p})
				}
				continue
			}
			order = append(order, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return order
}

func (n *node) hasParent(p int) bool {
	for _, l := range n.parents {
		if l.node == p {
			return true
		}
	}
	return false
}

func (n *node) diffTo(p int) *git.ParentDiff {
	for _, l := range n.parents {
		if l.node == p {
			return l.diff
		}
	}
	return nil
}

// Len returns the number of commits in the arena.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func diffFrom(c *git.Commit, parent string) *git.ParentDiff {
	for i := range c.Diffs {
		if c.Diffs[i].Parent == parent {
			return &c.Diffs[i]
		}
	}
	return &git.ParentDiff{Parent: parent}
}

// newer reports whether node a sorts before node b when choosing between
// conflicting children: later committer time first, then smaller id.
func (g *Graph) newer(a, b int) bool {
	ta := g.nodes[a].commit.Committer.When
	tb := g.nodes[b].commit.Committer.When
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return g.nodes[a].commit.ID < g.nodes[b].commit.ID
}

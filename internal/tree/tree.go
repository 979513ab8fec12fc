// Package tree holds the file tree that scan results are written into.
//
// Results reach the tree only through Mutator.Apply with one of the concrete
// Indicator types in this package. Producers never walk or build the tree.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownPath is returned when a result targets a path not in the tree.
var ErrUnknownPath = errors.New("path not in tree")

// Node is a file or directory. Files have no children.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Children []*Node `json:"children,omitempty"`
	Data     *Data   `json:"data,omitempty"`

	dir bool
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.dir
}

// Data holds the indicators attached to a node.
type Data struct {
	Git      *GitData      `json:"git,omitempty"`
	GitRepo  *RepoData     `json:"git_repo,omitempty"`
	Coupling *CouplingData `json:"coupling,omitempty"`
}

// Indicator is a result that can be attached to a node. The set of
// implementations is closed to this package.
type Indicator interface {
	attach(d *Data)
}

// Mutator attaches indicators to nodes by slash-separated relative path.
// The empty path is the root.
type Mutator interface {
	Apply(path string, ind Indicator) error
}

// Producer writes its results through a Mutator and contributes scan-level
// metadata.
type Producer interface {
	Apply(m Mutator) error
	CollectMetadata(md *Metadata)
}

// Tree is a file tree with a path index.
type Tree struct {
	Root  *Node
	index map[string]*Node
}

// FromPaths builds a tree from slash-separated file paths.
func FromPaths(rootName string, paths []string) *Tree {
	t := &Tree{
		Root:  &Node{Name: rootName, dir: true},
		index: make(map[string]*Node),
	}
	t.index[""] = t.Root
	for _, p := range paths {
		t.addFile(p)
	}
	t.sort(t.Root)
	return t
}

// FromFilesystem builds a tree by walking root, skipping .git directories.
func FromFilesystem(root string, followSymlinks bool) (*Tree, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !followSymlinks {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return FromPaths(filepath.Base(root), paths), nil
}

func (t *Tree) addFile(p string) {
	p = strings.Trim(path.Clean(p), "/")
	if p == "" || p == "." {
		return
	}
	if _, ok := t.index[p]; ok {
		return
	}

	parent := t.Root
	parts := strings.Split(p, "/")
	for i, part := range parts {
		sub := strings.Join(parts[:i+1], "/")
		n, ok := t.index[sub]
		if !ok {
			n = &Node{Name: part, Path: sub, dir: i < len(parts)-1}
			t.index[sub] = n
			parent.Children = append(parent.Children, n)
		}
		parent = n
	}
}

func (t *Tree) sort(n *Node) {
	sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
	for _, c := range n.Children {
		t.sort(c)
	}
}

// Apply implements Mutator.
func (t *Tree) Apply(p string, ind Indicator) error {
	n, ok := t.index[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, p)
	}
	if n.Data == nil {
		n.Data = &Data{}
	}
	ind.attach(n.Data)
	return nil
}

// Lookup returns the node at p.
func (t *Tree) Lookup(p string) (*Node, bool) {
	n, ok := t.index[p]
	return n, ok
}

// Files returns every file path in lexical order.
func (t *Tree) Files() []string {
	var files []string
	for p, n := range t.index {
		if p != "" && !n.dir {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files
}

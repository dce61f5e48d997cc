// Package tree holds the in-memory directory tree produced by a survey.
//
// A tree is owned top-down: every folder owns its children through Contents
// and no node points back at its parent. Paths are reconstructed during
// traversal instead of being stored.
package tree

import (
	"errors"
	"path"
	"reflect"
	"sort"
	"strings"
)

// FolderType is the Type of every directory node. Files carry their
// extension tag instead (".dcm", ".nii.gz", or "" for none).
const FolderType = "folder"

// ErrNotFound is returned when a path does not resolve inside a tree.
var ErrNotFound = errors.New("path not found")

// Node is one entry of a surveyed directory tree.
type Node struct {
	Name     string
	Type     string
	Size     int64
	Created  string
	Modified string
	// Leaf marks a folder classified as an imaging session. Its Metadata is
	// the merged per-file metadata and its subdirectories are not listed.
	Leaf bool
	// Fingerprint is set on top-level folders only.
	Fingerprint uint64
	// Contents is nil for files and non-nil (possibly empty) for folders.
	Contents map[string]*Node
	Metadata map[string]any
}

// NewFolder returns an empty folder node.
func NewFolder(name string) *Node {
	return &Node{Name: name, Type: FolderType, Contents: make(map[string]*Node)}
}

// IsDir reports whether n is a folder.
func (n *Node) IsDir() bool {
	return n.Contents != nil
}

// Add inserts child into a folder, replacing any entry of the same name.
func (n *Node) Add(child *Node) {
	n.Contents[child.Name] = child
}

// Names returns the sorted names of a folder's entries.
func (n *Node) Names() []string {
	names := make([]string, 0, len(n.Contents))
	for name := range n.Contents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WalkFunc is called for every node with its slash-separated path relative
// to the walk root ("" for the root itself). Returning false from a folder
// prunes its children.
type WalkFunc func(rel string, n *Node) bool

// Walk visits n and its descendants in pre-order, children sorted by name.
func (n *Node) Walk(fn WalkFunc) {
	n.walk("", fn)
}

func (n *Node) walk(rel string, fn WalkFunc) {
	if !fn(rel, n) || !n.IsDir() {
		return
	}
	for _, name := range n.Names() {
		n.Contents[name].walk(path.Join(rel, name), fn)
	}
}

// Lookup resolves a slash-separated path relative to n.
func (n *Node) Lookup(rel string) (*Node, error) {
	cur := n
	for _, part := range strings.Split(strings.Trim(path.Clean("/"+rel), "/"), "/") {
		if part == "" {
			continue
		}
		if !cur.IsDir() {
			return nil, ErrNotFound
		}
		next, ok := cur.Contents[part]
		if !ok {
			return nil, ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

// Equal reports whether two trees carry the same names, attributes,
// metadata and shape.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Name != o.Name || n.Type != o.Type || n.Size != o.Size ||
		n.Created != o.Created || n.Modified != o.Modified ||
		n.Leaf != o.Leaf || n.Fingerprint != o.Fingerprint {
		return false
	}
	if !reflect.DeepEqual(n.Metadata, o.Metadata) {
		return false
	}
	if (n.Contents == nil) != (o.Contents == nil) || len(n.Contents) != len(o.Contents) {
		return false
	}
	for name, child := range n.Contents {
		if !child.Equal(o.Contents[name]) {
			return false
		}
	}
	return true
}

// SumFileSizes recomputes the total size of regular files listed below n.
// For leaves this misses files under unlisted subdirectories, so it is a
// lower bound of Size there.
func (n *Node) SumFileSizes() int64 {
	if !n.IsDir() {
		return n.Size
	}
	var total int64
	for _, c := range n.Contents {
		total += c.SumFileSizes()
	}
	return total
}

// ToMap converts n into plain maps and slices, the shape used for
// JSONPath queries and JSON dumps.
func (n *Node) ToMap() map[string]any {
	m := map[string]any{
		"name":     n.Name,
		"type":     n.Type,
		"size":     n.Size,
		"created":  n.Created,
		"modified": n.Modified,
	}
	if n.Metadata != nil {
		m["metadata"] = n.Metadata
	}
	if n.IsDir() {
		m["leaf"] = n.Leaf
		contents := make(map[string]any, len(n.Contents))
		for name, c := range n.Contents {
			contents[name] = c.ToMap()
		}
		m["contents"] = contents
	}
	return m
}

package tree

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one row of a folder listing.
type Entry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// PathIndex lists every path below n, sorted. Folders end with "/".
func (n *Node) PathIndex() []string {
	var paths []string
	n.Walk(func(rel string, c *Node) bool {
		if rel == "" {
			return true
		}
		if c.IsDir() {
			paths = append(paths, rel+"/")
		} else {
			paths = append(paths, rel)
		}
		return true
	})
	sort.Strings(paths)
	return paths
}

// Complete returns the indexed paths starting with prefix.
func Complete(index []string, prefix string) []string {
	i := sort.SearchStrings(index, prefix)
	var out []string
	for ; i < len(index) && strings.HasPrefix(index[i], prefix); i++ {
		out = append(out, index[i])
	}
	return out
}

func (n *Node) folder(rel string) (*Node, error) {
	dir, err := n.Lookup(rel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	if !dir.IsDir() {
		return nil, fmt.Errorf("%s: not a folder", rel)
	}
	return dir, nil
}

// ListFiles returns the files directly inside the folder at rel.
func (n *Node) ListFiles(rel string) ([]Entry, error) {
	dir, err := n.folder(rel)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, name := range dir.Names() {
		if c := dir.Contents[name]; !c.IsDir() {
			out = append(out, Entry{Name: name, Type: c.Type, Size: c.Size})
		}
	}
	return out, nil
}

// ListFolders returns the folders directly inside the folder at rel, with
// sizes recomputed from their listed contents.
func (n *Node) ListFolders(rel string) ([]Entry, error) {
	dir, err := n.folder(rel)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, name := range dir.Names() {
		if c := dir.Contents[name]; c.IsDir() {
			out = append(out, Entry{Name: name, Type: FolderType, Size: c.SumFileSizes()})
		}
	}
	return out, nil
}

// Structure is the compact folder view written to directory_structure.json.
type Structure struct {
	Files        []string              `json:"_files"`
	Dirs         map[string]*Structure `json:"_dirs"`
	Leaf         bool                  `json:"leaf,omitempty"`
	LeafMetadata map[string]any        `json:"leaf_metadata,omitempty"`
}

// Structure builds the compact view of a folder.
func (n *Node) Structure() *Structure {
	s := &Structure{Files: []string{}, Dirs: map[string]*Structure{}, Leaf: n.Leaf}
	if n.Leaf {
		s.LeafMetadata = n.Metadata
	}
	for _, name := range n.Names() {
		c := n.Contents[name]
		if c.IsDir() {
			s.Dirs[name] = c.Structure()
		} else {
			s.Files = append(s.Files, name)
		}
	}
	return s
}

// FileMetadata maps the absolute path of every node carrying metadata
// (files with a recognized extension and leaf folders) to that metadata.
func (n *Node) FileMetadata(base string) map[string]any {
	out := make(map[string]any)
	n.Walk(func(rel string, c *Node) bool {
		if c.Metadata != nil {
			out[filepath.Join(base, filepath.FromSlash(rel))] = c.Metadata
		}
		return true
	})
	return out
}

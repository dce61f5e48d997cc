package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Node {
	root := NewFolder("base")
	a := NewFolder("A")
	a.Leaf = true
	a.Metadata = map[string]any{"scan1.dcm": map[string]any{}}
	a.Add(&Node{Name: "scan1.dcm", Type: ".dcm", Size: 10})
	a.Add(&Node{Name: "scan2.dcm", Type: ".dcm", Size: 20})
	a.Size = 30
	b := NewFolder("B")
	b.Add(&Node{Name: "notes.txt", Type: ".txt", Size: 5})
	b.Size = 5
	root.Add(a)
	root.Add(b)
	root.Add(&Node{Name: "readme.md", Type: ".md", Size: 1})
	root.Size = 36
	return root
}

func TestNode_WalkPreOrder(t *testing.T) {
	var seen []string
	sample().Walk(func(rel string, n *Node) bool {
		seen = append(seen, rel)
		return true
	})
	assert.Equal(t, []string{"", "A", "A/scan1.dcm", "A/scan2.dcm", "B", "B/notes.txt", "readme.md"}, seen)
}

func TestNode_WalkPrune(t *testing.T) {
	var seen []string
	sample().Walk(func(rel string, n *Node) bool {
		seen = append(seen, rel)
		return !n.Leaf
	})
	assert.NotContains(t, seen, "A/scan1.dcm")
	assert.Contains(t, seen, "B/notes.txt")
}

func TestNode_Lookup(t *testing.T) {
	root := sample()
	n, err := root.Lookup("A/scan2.dcm")
	require.NoError(t, err)
	assert.Equal(t, int64(20), n.Size)

	n, err = root.Lookup("/")
	require.NoError(t, err)
	assert.Same(t, root, n)

	_, err = root.Lookup("A/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = root.Lookup("readme.md/x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNode_Equal(t *testing.T) {
	a, b := sample(), sample()
	assert.True(t, a.Equal(b))
	b.Contents["A"].Metadata["scan2.dcm"] = map[string]any{}
	assert.False(t, a.Equal(b))
}

func TestNode_SumFileSizes(t *testing.T) {
	root := sample()
	assert.Equal(t, root.Size, root.SumFileSizes())
}

func TestNode_PathIndexAndComplete(t *testing.T) {
	idx := sample().PathIndex()
	assert.Equal(t, []string{"A/", "A/scan1.dcm", "A/scan2.dcm", "B/", "B/notes.txt", "readme.md"}, idx)
	assert.Equal(t, []string{"A/", "A/scan1.dcm", "A/scan2.dcm"}, Complete(idx, "A"))
	assert.Empty(t, Complete(idx, "C"))
}

func TestNode_Listings(t *testing.T) {
	root := sample()
	files, err := root.ListFiles("A")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "scan1.dcm", Type: ".dcm", Size: 10}, {Name: "scan2.dcm", Type: ".dcm", Size: 20}}, files)

	folders, err := root.ListFolders("")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "A", Type: FolderType, Size: 30}, {Name: "B", Type: FolderType, Size: 5}}, folders)

	_, err = root.ListFiles("readme.md")
	assert.Error(t, err)
}

func TestNode_Structure(t *testing.T) {
	s := sample().Structure()
	assert.Equal(t, []string{"readme.md"}, s.Files)
	require.Contains(t, s.Dirs, "A")
	assert.True(t, s.Dirs["A"].Leaf)
	assert.Equal(t, []string{"scan1.dcm", "scan2.dcm"}, s.Dirs["A"].Files)
	assert.NotNil(t, s.Dirs["A"].LeafMetadata)
	assert.Nil(t, s.Dirs["B"].LeafMetadata)
}

func TestNode_FileMetadata(t *testing.T) {
	md := sample().FileMetadata("/data")
	assert.Len(t, md, 1)
	assert.Contains(t, md, "/data/A")
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/schema"
	"github.com/agentic-research/ranger/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *graph.PropertyGraph {
	root := tree.NewFolder("base")
	a := tree.NewFolder("A")
	a.Leaf = true
	a.Metadata = map[string]any{
		"scan1.dcm": map[string]any{"Acquisition": map[string]any{"Exposure (ms)": int64(1050), "Mode": "step"}},
	}
	a.Add(&tree.Node{Name: "scan1.dcm", Type: ".dcm", Size: 10})
	root.Add(a)
	root.Add(&tree.Node{Name: "readme.txt", Type: ".txt", Size: 3})
	return graph.NewBuilder(nil).Build("/d", root)
}

func write(t *testing.T, path string, g *graph.PropertyGraph, reg *schema.Registry) Stats {
	t.Helper()
	w, err := NewWriter(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Close()) }()
	st, err := w.Write(context.Background(), g, reg)
	require.NoError(t, err)
	return st
}

func TestWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")
	g := sampleGraph()

	st := write(t, path, g, schema.Synthesize(g))
	assert.Equal(t, g.Len(), st.Nodes)
	assert.Equal(t, len(g.Edges()), st.Edges)
	assert.Zero(t, st.SkippedNodes)
	assert.Zero(t, st.SkippedEdges)

	r, err := OpenReader(path, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	n, err := r.Node(ctx, "Acquisition_/d/A")
	require.NoError(t, err)
	assert.Equal(t, "Acquisition", n.Label)
	assert.Equal(t, map[string]any{"exposureMs": int64(1050), "mode": "step"}, n.Attributes)

	out, err := r.Out(ctx, graph.ScanID("/d/A"))
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{
		{Source: graph.ScanID("/d/A"), Target: "Acquisition_/d/A", Relationship: graph.Involved},
		{Source: graph.ScanID("/d/A"), Target: graph.FolderID("/d/A"), Relationship: graph.StoredIn},
	}, out)

	in, err := r.In(ctx, graph.FolderID("/d/A"))
	require.NoError(t, err)
	assert.Len(t, in, 2)

	labels, err := r.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LabelCount{
		{Label: "Acquisition", Count: 1},
		{Label: "File", Count: 2},
		{Label: "Folder", Count: 2},
		{Label: "Scan", Count: 1},
	}, labels)

	files, err := r.NodesByLabel(ctx, graph.LabelFile, 1)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, graph.FileID("/d/A/scan1.dcm"), files[0].ID)

	hits, err := r.Search(ctx, "step", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Acquisition_/d/A", hits[0].ID)

	hits, err = r.Search(ctx, "100%", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = r.Node(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	classes, err := r.Classes(ctx)
	require.NoError(t, err)
	var names []string
	for _, c := range classes {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Acquisition", "File", "Folder", "Scan", "Section"}, names)
	assert.Equal(t, []string{"exposureMs", "mode"}, classes[0].Properties)
	assert.Equal(t, graph.LabelFolder, classes[3].Relationships[graph.StoredIn])
}

func TestWriter_SkipsInvalid(t *testing.T) {
	g := graph.New()
	g.AddNode(&graph.Node{ID: "folder_/d", Label: graph.LabelFolder, Attributes: map[string]any{"name": "d", "filepath": "/d"}})
	g.AddNode(&graph.Node{ID: "folder_/d/x", Label: graph.LabelFolder, Attributes: map[string]any{"name": "x", "bogus": true}})
	g.AddNode(&graph.Node{ID: "orphan", Label: "Unknown"})
	g.AddEdge(graph.Edge{Source: "folder_/d", Target: "missing", Relationship: graph.ContainsFolder})
	g.AddEdge(graph.Edge{Source: "folder_/d", Target: "folder_/d", Relationship: graph.Involved})
	g.AddEdge(graph.Edge{Source: "folder_/d", Target: "folder_/d", Relationship: graph.ContainsFolder})

	st := write(t, filepath.Join(t.TempDir(), "g.db"), g, schema.NewRegistry())
	assert.Equal(t, 1, st.Nodes)
	assert.Equal(t, 2, st.SkippedNodes)
	assert.Equal(t, 1, st.Edges)
	assert.Equal(t, 2, st.SkippedEdges)
}

func TestWriter_UpsertMergesAcrossWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "g.db")

	first := graph.New()
	first.AddNode(&graph.Node{ID: "S_/d", Label: "S", Attributes: map[string]any{"a": int64(1)}})
	write(t, path, first, schema.Synthesize(first))

	second := graph.New()
	second.AddNode(&graph.Node{ID: "S_/d", Label: "S", Attributes: map[string]any{"b": "two"}})
	second.AddNode(&graph.Node{ID: "folder_/e", Label: graph.LabelFolder, Attributes: map[string]any{"name": "e"}})
	second.AddEdge(graph.Edge{Source: "folder_/e", Target: "folder_/e", Relationship: graph.ContainsFolder})
	write(t, path, second, schema.Synthesize(second))

	r, err := OpenReader(path, 8)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	n, err := r.Node(ctx, "S_/d")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1), "b": "two"}, n.Attributes)

	classes, err := r.Classes(ctx)
	require.NoError(t, err)
	for _, c := range classes {
		if c.Name == "S" {
			assert.Equal(t, []string{"a", "b"}, c.Properties)
		}
	}
}

func TestWriter_EdgeToPreviouslyStoredNode(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "g.db")

	first := graph.New()
	first.AddNode(&graph.Node{ID: "folder_/d", Label: graph.LabelFolder, Attributes: map[string]any{"name": "d"}})
	write(t, path, first, schema.Synthesize(first))

	second := graph.New()
	second.AddNode(&graph.Node{ID: "folder_/d/x", Label: graph.LabelFolder, Attributes: map[string]any{"name": "x"}})
	second.AddEdge(graph.Edge{Source: "folder_/d", Target: "folder_/d/x", Relationship: graph.ContainsFolder})
	st := write(t, path, second, schema.Synthesize(second))
	assert.Equal(t, 1, st.Edges)

	r, err := OpenReader(path, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	out, err := r.Out(ctx, "folder_/d")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestWriter_CancelledContext(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "g.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := sampleGraph()
	_, err = w.Write(ctx, g, schema.Synthesize(g))
	assert.Error(t, err)
}

func TestStats_Add(t *testing.T) {
	s := Stats{Nodes: 1, SkippedEdges: 2}
	s.Add(Stats{Nodes: 2, Edges: 3, Classes: 1})
	assert.Equal(t, Stats{Classes: 1, Nodes: 3, Edges: 3, SkippedEdges: 2}, s)
}

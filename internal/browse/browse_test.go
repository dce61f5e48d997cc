package browse

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/schema"
	"github.com/agentic-research/ranger/internal/store"
	"github.com/agentic-research/ranger/internal/tree"
)

func openGraph(t *testing.T) *store.Reader {
	t.Helper()
	root := tree.NewFolder("base")
	a := tree.NewFolder("A")
	a.Leaf = true
	a.Metadata = map[string]any{"s.dcm": map[string]any{"Acquisition": map[string]any{"Mode": "helical"}}}
	root.Add(a)
	g := graph.NewBuilder(nil).Build("/d", root)

	path := filepath.Join(t.TempDir(), "g.db")
	w, err := store.NewWriter(path)
	require.NoError(t, err)
	_, err = w.Write(context.Background(), g, schema.Synthesize(g))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := store.OpenReader(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestLabels(t *testing.T) {
	out, isErr := call(t, labelsHandler(openGraph(t)), nil)
	require.False(t, isErr)
	var labels []store.LabelCount
	require.NoError(t, json.Unmarshal([]byte(out), &labels))
	assert.Contains(t, labels, store.LabelCount{Label: "Scan", Count: 1})
	assert.Contains(t, labels, store.LabelCount{Label: "Acquisition", Count: 1})
}

func TestGetNode(t *testing.T) {
	g := openGraph(t)

	out, isErr := call(t, getNodeHandler(g), map[string]any{"id": "Acquisition_/d/A"})
	require.False(t, isErr)
	var n nodeView
	require.NoError(t, json.Unmarshal([]byte(out), &n))
	assert.Equal(t, "Acquisition", n.Label)
	assert.Equal(t, "helical", n.Attributes["mode"])

	out, isErr = call(t, getNodeHandler(g), map[string]any{"id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, out, "nope")

	_, isErr = call(t, getNodeHandler(g), nil)
	assert.True(t, isErr)
}

func TestNeighbors(t *testing.T) {
	g := openGraph(t)
	id := graph.ScanID("/d/A")

	out, isErr := call(t, neighborsHandler(g), map[string]any{"id": id, "direction": "out"})
	require.False(t, isErr)
	var edges []edgeView
	require.NoError(t, json.Unmarshal([]byte(out), &edges))
	assert.Len(t, edges, 2)

	out, isErr = call(t, neighborsHandler(g), map[string]any{"id": graph.FolderID("/d/A")})
	require.False(t, isErr)
	require.NoError(t, json.Unmarshal([]byte(out), &edges))
	assert.Len(t, edges, 2)

	_, isErr = call(t, neighborsHandler(g), map[string]any{"id": id, "direction": "sideways"})
	assert.True(t, isErr)
}

func TestNodesByLabelAndSearch(t *testing.T) {
	g := openGraph(t)

	out, isErr := call(t, nodesByLabelHandler(g), map[string]any{"label": "Folder", "limit": 1})
	require.False(t, isErr)
	var nodes []nodeView
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, graph.FolderID("/d"), nodes[0].ID)

	out, isErr = call(t, searchHandler(g), map[string]any{"text": "helical"})
	require.False(t, isErr)
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	require.Len(t, nodes, 1)

	out, isErr = call(t, searchHandler(g), map[string]any{"text": "absent"})
	require.False(t, isErr)
	assert.Equal(t, "No results found.", out)
}

func TestClasses(t *testing.T) {
	out, isErr := call(t, classesHandler(openGraph(t)), nil)
	require.False(t, isErr)
	var classes []classView
	require.NoError(t, json.Unmarshal([]byte(out), &classes))
	require.NotEmpty(t, classes)
	assert.Equal(t, "Acquisition", classes[0].Name)
	assert.Equal(t, []string{"mode"}, classes[0].Properties)
}

func TestNewServer(t *testing.T) {
	s := NewServer(openGraph(t), "test")
	assert.NotNil(t, s)
}

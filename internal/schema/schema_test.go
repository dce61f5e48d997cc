package schema

import (
	"testing"

	"github.com/agentic-research/ranger/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *graph.PropertyGraph {
	g := graph.New()
	g.AddNode(&graph.Node{ID: "folder_/d", Label: graph.LabelFolder, Attributes: map[string]any{"name": "d", "filepath": "/d"}})
	g.AddNode(&graph.Node{ID: "file_/d/x.json", Label: graph.LabelFile, Attributes: map[string]any{"name": "x.json", "version": int64(2)}})
	g.AddNode(&graph.Node{ID: "scan_/d", Label: graph.LabelScan, Attributes: map[string]any{"filepath": "/d"}})
	g.AddNode(&graph.Node{ID: "Acquisition_/d", Label: "Acquisition", Attributes: map[string]any{"exposureMs": int64(5)}})
	g.AddNode(&graph.Node{ID: "Acquisition_/e", Label: "Acquisition", Attributes: map[string]any{"binning": "2x2"}})
	return g
}

func TestSynthesize_ClassPerLabel(t *testing.T) {
	r := Synthesize(sample())

	acq, ok := r.Lookup("Acquisition")
	require.True(t, ok)
	assert.Equal(t, graph.LabelSection, acq.Base)
	assert.Equal(t, []string{"binning", "exposureMs"}, acq.Properties)

	file, ok := r.Lookup(graph.LabelFile)
	require.True(t, ok)
	assert.True(t, file.Declares("version"))
	assert.True(t, file.Declares("modified"))

	var names []string
	for _, c := range r.Classes() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Acquisition", "File", "Folder", "Scan", "Section"}, names)
}

func TestRegistry_LookupCanonicalFallback(t *testing.T) {
	r := NewRegistry()
	r.Add(&Class{Name: "Image_Presentation", Base: graph.LabelSection})

	c, ok := r.Lookup("image presentation")
	require.True(t, ok)
	assert.Equal(t, "Image_Presentation", c.Name)

	_, ok = r.Lookup("Unrelated")
	assert.False(t, ok)
	_, err := r.Resolve("Unrelated")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestClass_Validate(t *testing.T) {
	r := Synthesize(sample())
	acq, _ := r.Lookup("Acquisition")

	assert.NoError(t, acq.Validate(&graph.Node{ID: "a", Attributes: map[string]any{"binning": "1x1"}}))
	err := acq.Validate(&graph.Node{ID: "a", Attributes: map[string]any{"other": 1}})
	assert.ErrorIs(t, err, ErrUndeclared)
}

func TestClass_Allows(t *testing.T) {
	r := Synthesize(sample())
	scan, _ := r.Lookup(graph.LabelScan)
	folder, _ := r.Lookup(graph.LabelFolder)
	acq, _ := r.Lookup("Acquisition")

	assert.True(t, scan.Allows(graph.Involved, acq))
	assert.True(t, scan.Allows(graph.StoredIn, folder))
	assert.False(t, scan.Allows(graph.StoredIn, acq))
	assert.False(t, folder.Allows(graph.Involved, acq))
	assert.False(t, scan.Allows(graph.Involved, nil))
}

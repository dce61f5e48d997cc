package graph

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/agentic-research/ranger/internal/extract"
	"github.com/agentic-research/ranger/internal/survey"
	"github.com/agentic-research/ranger/internal/tree"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileNode(name, typ string, size int64, md map[string]any) *tree.Node {
	return &tree.Node{Name: name, Type: typ, Size: size, Metadata: md}
}

func leafFolder(name string, md map[string]any, files ...*tree.Node) *tree.Node {
	n := tree.NewFolder(name)
	n.Leaf = true
	n.Metadata = md
	for _, f := range files {
		n.Add(f)
	}
	return n
}

func stubRegistry() *extract.Registry {
	r := extract.NewRegistry(0)
	fn := func(io.Reader, int64) (map[string]any, error) {
		return map[string]any{"Acquisition": map[string]any{"Exposure (ms)": 1050}}, nil
	}
	r.Register(".dcm", fn)
	r.Register(".tif", fn)
	return r
}

func TestBuild_SurveyScenario(t *testing.T) {
	fsys := memfs.New()
	for _, p := range []string{"base/A/scan1.dcm", "base/A/scan2.dcm", "base/B/sub/scan3.tif", "base/A/inner/extra.txt"} {
		require.NoError(t, util.WriteFile(fsys, p, []byte("x"), 0o644))
	}
	root, err := survey.NewFS(fsys, "base", stubRegistry(), survey.DefaultOptions()).Scan(context.Background())
	require.NoError(t, err)

	g := NewBuilder(nil).Build("/data", root)

	assert.Equal(t, 2, g.CountLabel(LabelScan))
	var folderPaths []string
	for _, n := range g.NodesWithLabel(LabelFolder) {
		folderPaths = append(folderPaths, n.Attributes["filepath"].(string))
	}
	assert.Equal(t, []string{"/data", "/data/A", "/data/B", "/data/B/sub"}, folderPaths)

	for _, scan := range g.NodesWithLabel(LabelScan) {
		var storedIn int
		for _, e := range g.Out(scan.ID) {
			if e.Relationship == StoredIn {
				storedIn++
			}
		}
		assert.Equal(t, 1, storedIn, scan.ID)
	}

	sec, err := g.Node(SectionID("Acquisition", "/data/A"))
	require.NoError(t, err)
	assert.Equal(t, "Acquisition", sec.Label)
	assert.Equal(t, map[string]any{"exposureMs": int64(1050)}, sec.Attributes)
	assert.Contains(t, g.Out(ScanID("/data/A")), Edge{Source: ScanID("/data/A"), Target: sec.ID, Relationship: Involved})
}

func TestBuild_NoFoldersBelowLeaves(t *testing.T) {
	root := tree.NewFolder("base")
	a := leafFolder("A", map[string]any{"s.dcm": map[string]any{}}, fileNode("s.dcm", ".dcm", 1, nil))
	root.Add(a)

	g := NewBuilder(nil).Build("/data", root)
	for _, n := range g.NodesWithLabel(LabelFolder) {
		p := n.Attributes["filepath"].(string)
		assert.False(t, strings.HasPrefix(p, "/data/A/"), p)
	}
	assert.Equal(t, 1, g.CountLabel(LabelScan))
	assert.Empty(t, g.NodesWithLabel(LabelSection))
}

func TestBuild_SectionsMergedPerLeaf(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(leafFolder("A", map[string]any{
		"a.dcm": map[string]any{
			"Patient": map[string]any{"PatientName": "anon", "Age": int64(40)},
			"Flat":    "top-level",
		},
		"b.dcm": map[string]any{
			"Patient":     map[string]any{"PatientName": "other", "Sex": "F"},
			"Acquisition": map[string]any{"Image Pixel/Spacing": []any{0.5, 0.5}},
		},
	}, fileNode("a.dcm", ".dcm", 1, nil), fileNode("b.dcm", ".dcm", 1, nil)))

	g := NewBuilder(nil).Build("/d", root)

	patient, err := g.Node("Patient_/d/A")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"patientName": "anon", "age": int64(40), "sex": "F"}, patient.Attributes)

	acq, err := g.Node("Acquisition_/d/A")
	require.NoError(t, err)
	assert.Equal(t, "[0.5,0.5]", acq.Attributes["imagePixelSpacing"])

	flat, err := g.Node(SectionID(FlatSection, "/d/A"))
	require.NoError(t, err)
	assert.Equal(t, "top-level", flat.Attributes["flat"])

	assert.Len(t, g.Out(ScanID("/d/A")), 4)
}

func TestBuild_SectionIDsUniquePerLeaf(t *testing.T) {
	root := tree.NewFolder("base")
	md := func() map[string]any {
		return map[string]any{"x.dcm": map[string]any{"Acquisition": map[string]any{"k": "v"}}}
	}
	root.Add(leafFolder("A", md()))
	root.Add(leafFolder("B", md()))

	g := NewBuilder(nil).Build("/d", root)
	assert.Equal(t, 2, g.CountLabel("Acquisition"))
	_, err := g.Node("Acquisition_/d/A")
	assert.NoError(t, err)
	_, err = g.Node("Acquisition_/d/B")
	assert.NoError(t, err)
}

func TestBuild_FolderMetadataFileAttachesToParent(t *testing.T) {
	root := tree.NewFolder("base")
	b := tree.NewFolder("B")
	b.Add(fileNode("acq.log", ".log", 10, map[string]any{
		"System":  map[string]any{"Camera Pixel Size (um)": 7.4},
		"Scanner": "SkyScan1272",
	}))
	b.Add(fileNode("notes.json", ".json", 3, map[string]any{"study": map[string]any{"id": int64(1)}, "version": int64(2)}))
	root.Add(b)

	g := NewBuilder(nil).Build("/d", root)

	assert.Equal(t, 1, g.CountLabel(LabelScan))
	sys, err := g.Node("System_/d/B")
	require.NoError(t, err)
	assert.Equal(t, 7.4, sys.Attributes["cameraPixelSizeUm"])
	flat, err := g.Node("Metadata_/d/B")
	require.NoError(t, err)
	assert.Equal(t, "SkyScan1272", flat.Attributes["scanner"])

	logFile, err := g.Node(FileID("/d/B/acq.log"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), logFile.Attributes["size"])
	assert.Equal(t, "SkyScan1272", logFile.Attributes["scanner"])
	assert.Equal(t, `{"Camera Pixel Size (um)":7.4}`, logFile.Attributes["system"])

	jsonFile, err := g.Node(FileID("/d/B/notes.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), jsonFile.Attributes["version"])
	assert.Equal(t, `{"id":1}`, jsonFile.Attributes["study"])
	assert.Contains(t, g.Out(FolderID("/d/B")), Edge{Source: FolderID("/d/B"), Target: jsonFile.ID, Relationship: ContainsFile})
}

func TestBuild_FailedFolderMetadataAddsNoScan(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(fileNode("broken.log", ".log", 1, map[string]any{}))

	g := NewBuilder(nil).Build("/d", root)
	assert.Zero(t, g.CountLabel(LabelScan))
	assert.Equal(t, 1, g.CountLabel(LabelFile))
}

func TestBuild_StackMembersAreNotFiles(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(leafFolder("CT", map[string]any{
		"proj_*.tif": map[string]any{
			"stack_key": "proj_",
			"extension": "tif",
			"count":     int64(2),
			"files":     []any{"proj_1.tif", "proj_2.tif"},
			"slices": []any{
				map[string]any{"tiff_tags": map[string]any{"ImageWidth": int64(2000)}},
				map[string]any{"tiff_tags": map[string]any{"ImageWidth": int64(1)}},
			},
		},
		"scan.log": map[string]any{"Acquisition": map[string]any{"Number Of Files": int64(2)}},
	},
		fileNode("proj_1.tif", ".tif", 5, nil),
		fileNode("proj_2.tif", ".tif", 5, nil),
		fileNode("scan.log", ".log", 1, nil),
	))

	g := NewBuilder(nil).Build("/d", root)

	files := g.NodesWithLabel(LabelFile)
	require.Len(t, files, 1)
	assert.Equal(t, FileID("/d/CT/scan.log"), files[0].ID)

	stackSec, err := g.Node(SectionID(StackSection, "/d/CT"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stackKey": "proj_", "extension": "tif", "count": int64(2)}, stackSec.Attributes)

	tags, err := g.Node("tiff_tags_/d/CT")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), tags.Attributes["imageWidth"])

	_, err = g.Node("Acquisition_/d/CT")
	assert.NoError(t, err)
}

func TestBuild_BuiltinLabelCollision(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(leafFolder("A", map[string]any{"x.dcm": map[string]any{"Scan": map[string]any{"k": "v"}}}))

	g := NewBuilder(nil).Build("/d", root)
	assert.Equal(t, 1, g.CountLabel(LabelScan))
	assert.Equal(t, 1, g.CountLabel("Section_Scan"))
}

func TestBuild_LowercaseRoleSectionsKeepOwnIDs(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(leafFolder("A", map[string]any{"session.json": map[string]any{
		"scan":   map[string]any{"protocol": "T1"},
		"folder": map[string]any{"owner": "lab"},
	}}))

	g := NewBuilder(nil).Build("/data", root)

	folder, err := g.Node(FolderID("/data/A"))
	require.NoError(t, err)
	assert.Equal(t, LabelFolder, folder.Label)
	assert.NotContains(t, folder.Attributes, "owner")

	scan, err := g.Node(ScanID("/data/A"))
	require.NoError(t, err)
	assert.Equal(t, LabelScan, scan.Label)
	assert.NotContains(t, scan.Attributes, "protocol")

	sec, err := g.Node(SectionID("Section_scan", "/data/A"))
	require.NoError(t, err)
	assert.Equal(t, "T1", sec.Attributes["protocol"])
	assert.Equal(t, 1, g.CountLabel("Section_folder"))

	for _, e := range g.Out(ScanID("/data/A")) {
		if e.Relationship != Involved {
			continue
		}
		target, err := g.Node(e.Target)
		require.NoError(t, err)
		assert.NotEqual(t, LabelScan, target.Label)
		assert.NotEqual(t, LabelFolder, target.Label)
	}
}

func TestBuild_FileMetadataShadowedByBuiltinIsLogged(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(fileNode("notes.json", ".json", 3, map[string]any{"Size": int64(99), "study": "x"}))

	var logs bytes.Buffer
	b := NewBuilder(nil)
	b.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := b.Build("/d", root)

	f, err := g.Node(FileID("/d/notes.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.Attributes["size"])
	assert.Equal(t, "x", f.Attributes["study"])
	assert.Contains(t, logs.String(), "graph.attr_conflict")
	assert.Contains(t, logs.String(), "attr=size")
}

func TestForest_LinksParentToRoots(t *testing.T) {
	g := Forest("/data", []string{"/data/A", "/data/B"})

	parent, err := g.Node(FolderID("/data"))
	require.NoError(t, err)
	assert.Equal(t, LabelFolder, parent.Label)
	assert.Equal(t, "data", parent.Attributes["name"])
	assert.Equal(t, []Edge{
		{Source: "folder_/data", Target: "folder_/data/A", Relationship: ContainsFolder},
		{Source: "folder_/data", Target: "folder_/data/B", Relationship: ContainsFolder},
	}, g.Edges())
	assert.Equal(t, 1, g.Len())
}

func TestBuild_NilValuesDropped(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(leafFolder("A", map[string]any{"x.dcm": map[string]any{"S": map[string]any{"gone": nil, "kept": true}}}))

	g := NewBuilder(nil).Build("/d", root)
	sec, err := g.Node("S_/d/A")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"kept": true}, sec.Attributes)
}

func TestBuild_Idempotent(t *testing.T) {
	root := tree.NewFolder("base")
	root.Add(leafFolder("A", map[string]any{"x.dcm": map[string]any{"S": map[string]any{"k": "v"}}}, fileNode("x.dcm", ".dcm", 1, nil)))

	first := NewBuilder(nil).Build("/d", root)
	second := NewBuilder(nil).Build("/d", root)
	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.Edges(), second.Edges())
}

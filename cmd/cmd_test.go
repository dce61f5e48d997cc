package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/ranger/internal/export"
	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/store"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func fixture(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	files := map[string]string{
		"A/scan1.dcm":      "not really dicom",
		"A/scan2.dcm":      "not really dicom",
		"B/sub/scan3.tif":  "not really tiff",
		"B/notes.json":     `{"operator": "kim"}`,
		"C/stack/s_1.tif":  "x",
		"C/stack/s_2.tif":  "x",
		"C/stack/s_10.tif": "x",
	}
	for p, body := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return dir
}

func TestScanBuildInspect(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := fixture(t)
	out := filepath.Join(t.TempDir(), "out")

	run(t, "scan", dir, out)
	for _, name := range []string{export.FileMetadataName, export.StructureName} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dir, ".ranger.ckpt"))
	require.NoError(t, err)

	db := filepath.Join(t.TempDir(), "graph.db")
	run(t, "build", dir, db)

	r, err := store.OpenReader(db, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	labels, err := r.Labels(context.Background())
	require.NoError(t, err)
	assert.Contains(t, labels, store.LabelCount{Label: "Scan", Count: 3})

	listing := run(t, "inspect", dir, "--complete", "B/")
	assert.Contains(t, listing, `"B/sub/"`)
	assert.Contains(t, listing, `"B/notes.json"`)
}

func TestStacks(t *testing.T) {
	dir := fixture(t)
	listing := run(t, "stacks", filepath.Join(dir, "C", "stack"), "--ext", "tif")
	assert.Contains(t, listing, "s_*.tif\t3\ts_1.tif .. s_10.tif")
}

func TestForest(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := fixture(t)
	db := filepath.Join(t.TempDir(), "forest.db")
	run(t, "forest", dir, db)

	for _, tree := range []string{"A", "B", "C"} {
		_, err := os.Stat(filepath.Join(dir, tree, ".ranger.ckpt"))
		assert.NoError(t, err, tree)
	}

	r, err := store.OpenReader(db, 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	ctx := context.Background()
	folders, err := r.NodesByLabel(ctx, "Folder", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, folders)

	parent, err := r.Node(ctx, graph.FolderID(dir))
	require.NoError(t, err)
	assert.Equal(t, "data", parent.Attributes["name"])
	out, err := r.Out(ctx, graph.FolderID(dir))
	require.NoError(t, err)
	var targets []string
	for _, e := range out {
		assert.Equal(t, graph.ContainsFolder, e.Relationship)
		targets = append(targets, e.Target)
	}
	assert.ElementsMatch(t, []string{
		graph.FolderID(filepath.Join(dir, "A")),
		graph.FolderID(filepath.Join(dir, "B")),
		graph.FolderID(filepath.Join(dir, "C")),
	}, targets)
}

func TestSession(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := fixture(t)
	cache := filepath.Join(t.TempDir(), "session.yaml")

	saved := run(t, "session", filepath.Join(dir, "B"), cache)
	assert.Contains(t, saved, "Saved metadata of 1 files")

	summary := run(t, "session", cache, "--summarize-with-counts")
	assert.Contains(t, summary, `"operator": {`)
	assert.Contains(t, summary, `"kim": 1`)
}

package graph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/agentic-research/ranger/internal/canon"
	"github.com/agentic-research/ranger/internal/extract"
	"github.com/agentic-research/ranger/internal/tree"
)

// FlatSection collects top-level metadata keys whose value is not a
// mapping.
const FlatSection = "Metadata"

// StackSection collects the summary of stacks in a leaf.
const StackSection = "Stack"

// DefaultFolderMetadataExts are file types whose metadata describes the
// folder they sit in rather than the file itself.
var DefaultFolderMetadataExts = []string{".log"}

// Id constructors. Every id embeds the absolute path, so a path yields the
// same id no matter how often it is visited.
func FolderID(abs string) string         { return "folder_" + abs }
func FileID(abs string) string           { return "file_" + abs }
func ScanID(abs string) string           { return "scan_" + abs }
func SectionID(label, abs string) string { return label + "_" + abs }

// Builder turns a surveyed tree into a PropertyGraph.
type Builder struct {
	Logger *slog.Logger

	folderMeta map[string]bool
}

// NewBuilder returns a builder that treats files with folderMetaExts as
// folder-level metadata. A nil slice selects DefaultFolderMetadataExts.
func NewBuilder(folderMetaExts []string) *Builder {
	if folderMetaExts == nil {
		folderMetaExts = DefaultFolderMetadataExts
	}
	fm := make(map[string]bool, len(folderMetaExts))
	for _, e := range folderMetaExts {
		fm[e] = true
	}
	return &Builder{Logger: slog.New(slog.DiscardHandler), folderMeta: fm}
}

// Build walks root, whose absolute path is base, in pre-order.
//
// Every folder becomes a Folder node linked from its parent. Files become
// File nodes, except slices of a stack inside a leaf. A folder with
// metadata (a leaf, or a folder holding a folder-metadata file) gets one
// Scan node stored in it and one Section node per metadata section.
func (b *Builder) Build(base string, root *tree.Node) *PropertyGraph {
	g := New()
	b.folder(g, base, root, "")
	b.Logger.Info("graph.built",
		"nodes", g.Len(),
		"edges", len(g.Edges()),
		"scans", g.CountLabel(LabelScan),
	)
	return g
}

// Forest returns the graph joining trees built on their own: a Folder node
// for parent and a contains_folder edge to the root Folder of each tree.
// Paths are absolute and roots are expected to be stored already.
func Forest(parent string, roots []string) *PropertyGraph {
	g := New()
	id := FolderID(parent)
	g.AddNode(&Node{ID: id, Label: LabelFolder, Attributes: map[string]any{
		"name":     filepath.Base(parent),
		"filepath": parent,
	}})
	for _, root := range roots {
		g.AddEdge(Edge{Source: id, Target: FolderID(root), Relationship: ContainsFolder})
	}
	return g
}

type source struct {
	key string
	md  map[string]any
}

func (b *Builder) folder(g *PropertyGraph, abs string, n *tree.Node, parentID string) {
	id := FolderID(abs)
	g.AddNode(&Node{ID: id, Label: LabelFolder, Attributes: map[string]any{
		"name":     n.Name,
		"filepath": abs,
	}})
	if parentID != "" {
		g.AddEdge(Edge{Source: parentID, Target: id, Relationship: ContainsFolder})
	}

	var sources []source
	members := make(map[string]bool)
	for _, key := range sortedKeys(n.Metadata) {
		v := n.Metadata[key]
		if tree.IsStackEntry(key, v) {
			for _, f := range toSlice(v.(map[string]any)["files"]) {
				if name, ok := f.(string); ok {
					members[name] = true
				}
			}
		}
		if m, ok := v.(map[string]any); ok {
			sources = append(sources, source{key: key, md: m})
		} else {
			sources = append(sources, source{key: FlatSection, md: map[string]any{key: v}})
		}
	}
	hasMetadata := len(n.Metadata) > 0

	for _, name := range n.Names() {
		child := n.Contents[name]
		childAbs := filepath.Join(abs, name)
		if child.IsDir() {
			if !n.Leaf {
				b.folder(g, childAbs, child, id)
			}
			continue
		}
		if n.Leaf && members[name] {
			continue
		}
		b.file(g, childAbs, child, id)
		if !n.Leaf && b.folderMeta[child.Type] && len(child.Metadata) > 0 {
			sources = append(sources, source{key: name, md: child.Metadata})
			hasMetadata = true
		}
	}

	if hasMetadata {
		b.scan(g, abs, id, sources)
	}
}

func (b *Builder) file(g *PropertyGraph, abs string, n *tree.Node, folderID string) {
	attrs := map[string]any{
		"name":     n.Name,
		"filepath": abs,
		"type":     n.Type,
		"size":     n.Size,
		"created":  n.Created,
		"modified": n.Modified,
	}
	for _, k := range sortedKeys(n.Metadata) {
		key := canon.Canonicalize(k)
		if key == "" {
			continue
		}
		if _, taken := attrs[key]; taken {
			b.Logger.Debug("graph.attr_conflict", "path", abs, "attr", key)
			continue
		}
		if v, ok := b.scalar(abs, k, n.Metadata[k]); ok {
			attrs[key] = v
		}
	}
	id := FileID(abs)
	g.AddNode(&Node{ID: id, Label: LabelFile, Attributes: attrs})
	g.AddEdge(Edge{Source: folderID, Target: id, Relationship: ContainsFile})
}

type section struct {
	label string
	attrs map[string]any
	raw   map[string]bool
}

func (b *Builder) scan(g *PropertyGraph, abs, folderID string, sources []source) {
	scanID := ScanID(abs)
	g.AddNode(&Node{ID: scanID, Label: LabelScan, Attributes: map[string]any{"filepath": abs}})
	g.AddEdge(Edge{Source: scanID, Target: folderID, Relationship: StoredIn})

	var order []*section
	byLabel := make(map[string]*section)
	add := func(name string, m map[string]any) {
		label := sectionLabel(name)
		if label == "" {
			return
		}
		sec, ok := byLabel[label]
		if !ok {
			sec = &section{label: label, attrs: make(map[string]any), raw: make(map[string]bool)}
			byLabel[label] = sec
			order = append(order, sec)
		}
		for _, k := range sortedKeys(m) {
			key := canon.Canonicalize(k)
			if key == "" {
				continue
			}
			v, ok := b.scalar(abs, k, m[k])
			if !ok {
				continue
			}
			if prev, taken := sec.attrs[key]; taken {
				if !reflect.DeepEqual(prev, v) {
					b.Logger.Debug("graph.attr_conflict", "path", abs, "section", label, "attr", key)
				}
				continue
			}
			sec.attrs[key] = v
		}
	}
	merge := func(m map[string]any) {
		flat := make(map[string]any)
		for _, k := range sortedKeys(m) {
			if sub, ok := m[k].(map[string]any); ok {
				add(k, sub)
			} else {
				flat[k] = m[k]
			}
		}
		if len(flat) > 0 {
			add(FlatSection, flat)
		}
	}

	for _, src := range sources {
		if !tree.IsStackEntry(src.key, src.md) {
			merge(src.md)
			continue
		}
		summary := make(map[string]any)
		for _, k := range []string{"stack_key", "extension", "count"} {
			if v, ok := src.md[k]; ok {
				summary[k] = v
			}
		}
		add(StackSection, summary)
		if slices := toSlice(src.md["slices"]); len(slices) > 0 {
			if first, ok := slices[0].(map[string]any); ok {
				merge(first)
			}
		}
	}

	for _, sec := range order {
		id := SectionID(sec.label, abs)
		g.AddNode(&Node{ID: id, Label: sec.label, Attributes: sec.attrs})
		g.AddEdge(Edge{Source: scanID, Target: id, Relationship: Involved})
	}
}

// sectionLabel sanitizes a section name and keeps it clear of the
// built-in labels. The comparison ignores case so that a section id never
// takes the "folder_", "file_" or "scan_" prefix of another role.
func sectionLabel(name string) string {
	label := canon.SectionLabel(name)
	for _, builtin := range []string{LabelFolder, LabelFile, LabelScan, LabelSection} {
		if strings.EqualFold(label, builtin) {
			return LabelSection + "_" + label
		}
	}
	return label
}

// scalar reduces an attribute value to a storable scalar. Mappings and
// lists are rendered as JSON; nil values are dropped.
func (b *Builder) scalar(abs, key string, v any) (any, bool) {
	switch x := extract.Normalize(v).(type) {
	case nil:
		return nil, false
	case string, int64, float64, bool:
		return x, true
	default:
		data, err := json.Marshal(x)
		if err != nil {
			b.Logger.Debug("graph.stringify", "path", abs, "attr", key, "err", err)
			return fmt.Sprint(x), true
		}
		b.Logger.Debug("graph.stringify", "path", abs, "attr", key)
		return string(data), true
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

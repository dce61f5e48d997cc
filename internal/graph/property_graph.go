// Package graph holds the labeled property graph built from a surveyed
// tree, and the builder that produces it.
package graph

import (
	"errors"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

var ErrNotFound = errors.New("node not found")

// Built-in labels.
const (
	LabelFolder  = "Folder"
	LabelFile    = "File"
	LabelScan    = "Scan"
	LabelSection = "Section"
)

// Relationship is the type of a directed edge.
type Relationship string

const (
	ContainsFolder Relationship = "contains_folder"
	ContainsFile   Relationship = "contains_file"
	Involved       Relationship = "involved"
	StoredIn       Relationship = "stored_in"
)

// Node is a labeled vertex. Attribute values are scalars: string, int64,
// float64 or bool.
type Node struct {
	ID         string
	Label      string
	Attributes map[string]any
}

// Edge is a directed, typed connection between two node ids.
type Edge struct {
	Source       string
	Target       string
	Relationship Relationship
}

// PropertyGraph is an in-memory labeled property graph. Nodes keep their
// insertion order and edges are deduplicated.
type PropertyGraph struct {
	mu     sync.RWMutex
	nodes  []*Node
	index  map[string]uint32
	edges  []Edge
	seen   map[Edge]struct{}
	out    map[string][]int
	in     map[string][]int
	labels map[string]*roaring.Bitmap // label -> node positions
}

// New returns an empty graph.
func New() *PropertyGraph {
	return &PropertyGraph{
		index:  make(map[string]uint32),
		seen:   make(map[Edge]struct{}),
		out:    make(map[string][]int),
		in:     make(map[string][]int),
		labels: make(map[string]*roaring.Bitmap),
	}
}

// AddNode inserts n, or merges its attributes into the existing node with
// the same id. It reports whether the node was new. The label of an
// existing node is not changed.
func (g *PropertyGraph) AddNode(n *Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pos, ok := g.index[n.ID]; ok {
		existing := g.nodes[pos]
		for k, v := range n.Attributes {
			existing.Attributes[k] = v
		}
		return false
	}

	attrs := make(map[string]any, len(n.Attributes))
	for k, v := range n.Attributes {
		attrs[k] = v
	}
	pos := uint32(len(g.nodes))
	g.nodes = append(g.nodes, &Node{ID: n.ID, Label: n.Label, Attributes: attrs})
	g.index[n.ID] = pos

	bm, ok := g.labels[n.Label]
	if !ok {
		bm = roaring.New()
		g.labels[n.Label] = bm
	}
	bm.Add(pos)
	return true
}

// AddEdge inserts e unless an identical edge exists. It reports whether
// the edge was new.
func (g *PropertyGraph) AddEdge(e Edge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, dup := g.seen[e]; dup {
		return false
	}
	g.seen[e] = struct{}{}
	i := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.Source] = append(g.out[e.Source], i)
	g.in[e.Target] = append(g.in[e.Target], i)
	return true
}

// Node returns the node with the given id.
func (g *PropertyGraph) Node(id string) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pos, ok := g.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.nodes[pos], nil
}

// Nodes returns every node in insertion order.
func (g *PropertyGraph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Node(nil), g.nodes...)
}

// Edges returns every edge in insertion order.
func (g *PropertyGraph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}

// Out returns the edges leaving id.
func (g *PropertyGraph) Out(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pick(g.out[id])
}

// In returns the edges arriving at id.
func (g *PropertyGraph) In(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pick(g.in[id])
}

func (g *PropertyGraph) pick(idx []int) []Edge {
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// Labels returns the distinct node labels, sorted.
func (g *PropertyGraph) Labels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.labels))
	for l := range g.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// NodesWithLabel returns the nodes carrying label, in insertion order.
func (g *PropertyGraph) NodesWithLabel(label string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	bm, ok := g.labels[label]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, g.nodes[it.Next()])
	}
	return out
}

// CountLabel returns how many nodes carry label.
func (g *PropertyGraph) CountLabel(label string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if bm, ok := g.labels[label]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

// Len returns the number of nodes.
func (g *PropertyGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/schema"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ohler55/ojg/oj"
)

// DefaultCacheSize is the number of nodes a Reader keeps in memory.
const DefaultCacheSize = 4096

// LabelCount is a label and the number of nodes carrying it.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Reader queries a stored graph. Nodes are served from an LRU cache.
type Reader struct {
	db    *sql.DB
	cache *lru.Cache[string, *graph.Node]
}

// OpenReader opens the database at path read-only.
func OpenReader(path string, cacheSize int) (*Reader, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	cache, err := lru.New[string, *graph.Node](cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db, cache: cache}, nil
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Node returns the node with id, or ErrNotFound.
func (r *Reader) Node(ctx context.Context, id string) (*graph.Node, error) {
	if n, ok := r.cache.Get(id); ok {
		return n, nil
	}
	var label, attrs string
	err := r.db.QueryRowContext(ctx, `SELECT label, attributes FROM nodes WHERE id = ?`, id).Scan(&label, &attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	n, err := decodeNode(id, label, attrs)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, n)
	return n, nil
}

// Out returns the edges leaving id.
func (r *Reader) Out(ctx context.Context, id string) ([]graph.Edge, error) {
	return r.edges(ctx, `SELECT source, target, relationship FROM edges WHERE source = ? ORDER BY relationship, target`, id)
}

// In returns the edges arriving at id.
func (r *Reader) In(ctx context.Context, id string) ([]graph.Edge, error) {
	return r.edges(ctx, `SELECT source, target, relationship FROM edges WHERE target = ? ORDER BY relationship, source`, id)
}

func (r *Reader) edges(ctx context.Context, query, id string) ([]graph.Edge, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("edges %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var rel string
		if err := rows.Scan(&e.Source, &e.Target, &rel); err != nil {
			return nil, err
		}
		e.Relationship = graph.Relationship(rel)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Labels returns every label with its node count, sorted by label.
func (r *Reader) Labels(ctx context.Context) ([]LabelCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM nodes GROUP BY label ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// NodesByLabel returns up to limit nodes carrying label, ordered by id.
func (r *Reader) NodesByLabel(ctx context.Context, label string, limit int) ([]*graph.Node, error) {
	return r.nodes(ctx, `SELECT id, label, attributes FROM nodes WHERE label = ? ORDER BY id LIMIT ?`, label, limitOf(limit))
}

// Search returns up to limit nodes whose id or attributes contain text.
func (r *Reader) Search(ctx context.Context, text string, limit int) ([]*graph.Node, error) {
	pattern := "%" + escapeLike(text) + "%"
	return r.nodes(ctx, `
		SELECT id, label, attributes FROM nodes
		WHERE id LIKE ? ESCAPE '\' OR attributes LIKE ? ESCAPE '\'
		ORDER BY id LIMIT ?`, pattern, pattern, limitOf(limit))
}

func (r *Reader) nodes(ctx context.Context, query string, args ...any) ([]*graph.Node, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*graph.Node
	for rows.Next() {
		var id, label, attrs string
		if err := rows.Scan(&id, &label, &attrs); err != nil {
			return nil, err
		}
		n, err := decodeNode(id, label, attrs)
		if err != nil {
			return nil, err
		}
		r.cache.Add(id, n)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Classes returns the stored classes sorted by name.
func (r *Reader) Classes(ctx context.Context) ([]*schema.Class, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, base, properties, relationships FROM classes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*schema.Class
	for rows.Next() {
		var name, base, props, rels string
		if err := rows.Scan(&name, &base, &props, &rels); err != nil {
			return nil, err
		}
		c, err := decodeClass(name, base, props, rels)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// decodeNode parses stored attributes. oj keeps integers as int64, which
// the graph's attribute contract requires.
func decodeNode(id, label, attrs string) (*graph.Node, error) {
	v, err := oj.Parse([]byte(attrs))
	if err != nil {
		return nil, fmt.Errorf("node %s: decode attributes: %w", id, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("node %s: attributes are %T, want object", id, v)
	}
	return &graph.Node{ID: id, Label: label, Attributes: m}, nil
}

func decodeClass(name, base, props, rels string) (*schema.Class, error) {
	c := &schema.Class{Name: name, Base: base, Relationships: map[graph.Relationship]string{}}

	pv, err := oj.Parse([]byte(props))
	if err != nil {
		return nil, fmt.Errorf("class %s: decode properties: %w", name, err)
	}
	list, _ := pv.([]any)
	for _, p := range list {
		if s, ok := p.(string); ok {
			c.Declare(s)
		}
	}

	rv, err := oj.Parse([]byte(rels))
	if err != nil {
		return nil, fmt.Errorf("class %s: decode relationships: %w", name, err)
	}
	m, _ := rv.(map[string]any)
	for rel, target := range m {
		if s, ok := target.(string); ok {
			c.Relationships[graph.Relationship(rel)] = s
		}
	}
	return c, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func limitOf(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

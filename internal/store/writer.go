// Package store persists property graphs into SQLite and reads them back.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/schema"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

const ddl = `
CREATE TABLE IF NOT EXISTS classes (
	name TEXT PRIMARY KEY,
	base TEXT NOT NULL DEFAULT '',
	properties JSON NOT NULL,
	relationships JSON NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	attributes JSON NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);

CREATE TABLE IF NOT EXISTS edges (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	relationship TEXT NOT NULL,
	PRIMARY KEY (source, target, relationship)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
`

// Stats counts what a Write stored and skipped.
type Stats struct {
	Classes      int
	Nodes        int
	Edges        int
	SkippedNodes int
	SkippedEdges int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Classes += o.Classes
	s.Nodes += o.Nodes
	s.Edges += o.Edges
	s.SkippedNodes += o.SkippedNodes
	s.SkippedEdges += o.SkippedEdges
}

// Writer stores graphs into one database. It is safe for concurrent use;
// writes are serialized.
type Writer struct {
	Logger *slog.Logger

	db *sql.DB
	mu sync.Mutex
}

// NewWriter opens (creating if needed) the database at path.
func NewWriter(path string) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Writer{Logger: slog.New(slog.DiscardHandler), db: db}, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

// Write stores the classes of reg, then the nodes and edges of g, in one
// transaction. Nodes are upserted: attributes of an existing node are
// merged. A node whose label has no class or whose attributes the class
// does not declare is skipped. An edge is skipped when an endpoint is
// missing or the source class does not declare the relationship toward
// the target class. Skips are logged and counted, never returned.
func (w *Writer) Write(ctx context.Context, g *graph.PropertyGraph, reg *schema.Registry) (Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var st Stats
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := w.writeClasses(ctx, tx, reg, &st); err != nil {
		return st, err
	}
	classes, err := w.writeNodes(ctx, tx, g, reg, &st)
	if err != nil {
		return st, err
	}
	if err := w.writeEdges(ctx, tx, g, reg, classes, &st); err != nil {
		return st, err
	}

	if err := tx.Commit(); err != nil {
		return st, fmt.Errorf("commit: %w", err)
	}
	w.Logger.Info("store.written",
		"classes", st.Classes,
		"nodes", st.Nodes,
		"edges", st.Edges,
		"skipped_nodes", st.SkippedNodes,
		"skipped_edges", st.SkippedEdges,
	)
	return st, nil
}

func (w *Writer) writeClasses(ctx context.Context, tx *sql.Tx, reg *schema.Registry, st *Stats) error {
	existing, err := tx.PrepareContext(ctx, `SELECT properties, relationships FROM classes WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("prepare classes: %w", err)
	}
	defer func() { _ = existing.Close() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO classes (name, base, properties, relationships) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare classes: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range reg.Classes() {
		merged := &schema.Class{Name: c.Name, Base: c.Base, Relationships: map[graph.Relationship]string{}}
		var pj, rj string
		switch err := existing.QueryRowContext(ctx, c.Name).Scan(&pj, &rj); {
		case err == nil:
			prev, err := decodeClass(c.Name, c.Base, pj, rj)
			if err != nil {
				w.Logger.Warn("store.class_reset", "class", c.Name, "err", err)
				break
			}
			merged.Declare(prev.Properties...)
			for rel, target := range prev.Relationships {
				merged.Relationships[rel] = target
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("read class %s: %w", c.Name, err)
		}
		merged.Declare(c.Properties...)
		for rel, target := range c.Relationships {
			merged.Relationships[rel] = target
		}

		props := merged.Properties
		if props == nil {
			props = []string{}
		}
		pb, _ := json.Marshal(props)
		rb, _ := json.Marshal(merged.Relationships)
		if _, err := stmt.ExecContext(ctx, c.Name, c.Base, string(pb), string(rb)); err != nil {
			return fmt.Errorf("insert class %s: %w", c.Name, err)
		}
		st.Classes++
	}
	return nil
}

func (w *Writer) writeNodes(ctx context.Context, tx *sql.Tx, g *graph.PropertyGraph, reg *schema.Registry, st *Stats) (map[string]*schema.Class, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, label, attributes) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET attributes = json_patch(nodes.attributes, excluded.attributes)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare nodes: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	written := make(map[string]*schema.Class, g.Len())
	for _, n := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		class, ok := reg.Lookup(n.Label)
		if !ok {
			w.Logger.Warn("store.node_skipped", "id", n.ID, "label", n.Label, "err", schema.ErrUnknownClass)
			st.SkippedNodes++
			continue
		}
		if err := class.Validate(n); err != nil {
			w.Logger.Warn("store.node_skipped", "id", n.ID, "label", n.Label, "err", err)
			st.SkippedNodes++
			continue
		}
		attrs, err := encodeAttributes(n.Attributes)
		if err != nil {
			w.Logger.Warn("store.node_skipped", "id", n.ID, "label", n.Label, "err", err)
			st.SkippedNodes++
			continue
		}
		if _, err := stmt.ExecContext(ctx, n.ID, n.Label, attrs); err != nil {
			w.Logger.Warn("store.node_failed", "id", n.ID, "err", err)
			st.SkippedNodes++
			continue
		}
		written[n.ID] = class
		st.Nodes++
	}
	return written, nil
}

func (w *Writer) writeEdges(ctx context.Context, tx *sql.Tx, g *graph.PropertyGraph, reg *schema.Registry, classes map[string]*schema.Class, st *Stats) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO edges (source, target, relationship) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edges: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	lookup, err := tx.PrepareContext(ctx, `SELECT label FROM nodes WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare lookup: %w", err)
	}
	defer func() { _ = lookup.Close() }()

	classOf := func(id string) *schema.Class {
		if c, ok := classes[id]; ok {
			return c
		}
		var label string
		if err := lookup.QueryRowContext(ctx, id).Scan(&label); err != nil {
			return nil
		}
		c, _ := reg.Lookup(label)
		return c
	}

	for _, e := range g.Edges() {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, dst := classOf(e.Source), classOf(e.Target)
		if src == nil || dst == nil {
			w.Logger.Warn("store.edge_skipped", "source", e.Source, "target", e.Target, "rel", e.Relationship, "reason", "missing endpoint")
			st.SkippedEdges++
			continue
		}
		if !src.Allows(e.Relationship, dst) {
			w.Logger.Warn("store.edge_skipped", "source", e.Source, "target", e.Target, "rel", e.Relationship, "reason", "undeclared relationship")
			st.SkippedEdges++
			continue
		}
		if _, err := stmt.ExecContext(ctx, e.Source, e.Target, string(e.Relationship)); err != nil {
			w.Logger.Warn("store.edge_failed", "source", e.Source, "target", e.Target, "err", err)
			st.SkippedEdges++
			continue
		}
		st.Edges++
	}
	return nil
}

func encodeAttributes(attrs map[string]any) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(data), nil
}

// Package export writes survey results as JSON artifacts to a local
// directory or an S3-compatible bucket.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentic-research/ranger/internal/tree"
)

const (
	FileMetadataName = "file_metadata.json"
	StructureName    = "directory_structure.json"
)

var ErrMissingConfig = errors.New("missing artifact configuration")

// Sink stores named artifacts.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

// DirSink writes artifacts into a local directory, creating it on demand.
// Each artifact is written to a temp file and renamed into place.
type DirSink struct {
	Dir string
}

func (d DirSink) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.Dir, err)
	}
	f, err := os.CreateTemp(d.Dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(d.Dir, name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Tee puts every artifact into each sink in order, stopping at the first
// error.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Put(ctx context.Context, name string, data []byte) error {
	for _, s := range t {
		if err := s.Put(ctx, name, data); err != nil {
			return err
		}
	}
	return nil
}

// WriteResults renders root, surveyed at base, into the two result
// artifacts: the metadata of every file and leaf folder keyed by absolute
// path, and the compact folder structure.
func WriteResults(ctx context.Context, sink Sink, base string, root *tree.Node) error {
	artifacts := []struct {
		name string
		v    any
	}{
		{FileMetadataName, root.FileMetadata(base)},
		{StructureName, root.Structure()},
	}
	for _, a := range artifacts {
		data, err := json.MarshalIndent(a.v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", a.name, err)
		}
		if err := sink.Put(ctx, a.name, append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

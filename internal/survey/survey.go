package survey

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/ranger/internal/checkpoint"
	"github.com/agentic-research/ranger/internal/tree"
)

// SurveyOptions selects how an existing checkpoint is used.
type SurveyOptions struct {
	// CheckpointName is the file inside the base directory. Defaults to
	// checkpoint.DefaultName.
	CheckpointName string
	// Refresh ignores any checkpoint and scans from scratch.
	Refresh bool
	// Incremental loads the checkpoint and rescans, reusing unchanged
	// top-level subtrees.
	Incremental bool
}

// CheckpointPath is where Survey reads and writes the checkpoint.
func (s *Surveyor) CheckpointPath(name string) string {
	if name == "" {
		name = checkpoint.DefaultName
	}
	return filepath.Join(s.base, name)
}

// Survey returns the tree for the base directory. A missing checkpoint is
// normal and triggers a scan whose result is saved; a checkpoint that
// exists but cannot be loaded is an error.
func (s *Surveyor) Survey(ctx context.Context, opts SurveyOptions) (*tree.Node, error) {
	ckpt := s.CheckpointPath(opts.CheckpointName)

	var previous *tree.Node
	if !opts.Refresh && checkpoint.Exists(ckpt) {
		base, root, err := checkpoint.Load(ckpt)
		if err != nil {
			return nil, err
		}
		if base != s.base {
			s.Logger.Warn("checkpoint.moved", "recorded", base, "path", s.base)
		}
		if !opts.Incremental {
			s.Logger.Info("checkpoint.loaded", "path", ckpt)
			return root, nil
		}
		previous = root
	}

	root, err := s.scan(ctx, previous)
	if err != nil {
		return nil, err
	}
	if err := checkpoint.Save(ckpt, s.base, root); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	s.Logger.Info("checkpoint.saved", "path", ckpt)
	return root, nil
}

// Package checkpoint persists a surveyed tree so later runs can skip the
// walk. The file is a MessagePack document written atomically next to the
// data it describes.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/agentic-research/ranger/internal/tree"
	"github.com/tinylib/msgp/msgp"
)

// DefaultName is the checkpoint file written into a surveyed directory.
const DefaultName = ".ranger.ckpt"

const version = 1

var (
	// ErrNotFound means no checkpoint exists at the path. Callers that
	// probe for a checkpoint should use Exists instead.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt means the file exists but does not decode.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// Exists reports whether a checkpoint file is present at path.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Save writes root to path. The data goes to a temporary file in the same
// directory, which is synced and renamed over path, so a crash never
// leaves a partial checkpoint behind.
func Save(path, base string, root *tree.Node) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after rename

	w := msgp.NewWriter(tmp)
	if err := encode(w, base, root); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save and returns the base directory
// it was taken from together with the tree.
func Load(path string) (string, *tree.Node, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only, safe to ignore

	base, root, err := decode(msgp.NewReader(f))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	return base, root, nil
}

package survey

import (
	"os"
	"strings"

	"github.com/agentic-research/ranger/internal/extract"
	"github.com/go-git/go-billy/v5"
)

// DefaultImagingExtensions mark a directory as an imaging session.
var DefaultImagingExtensions = []string{".dcm", ".nii", ".nii.gz", ".tif", ".tiff"}

// Classifier decides whether a directory is an imaging session (a leaf).
type Classifier struct {
	exts map[string]bool
}

// NewClassifier accepts extensions with or without the leading dot.
func NewClassifier(exts []string) *Classifier {
	c := &Classifier{exts: make(map[string]bool, len(exts))}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		c.exts[e] = true
	}
	return c
}

// IsImagingFile reports whether name carries an imaging extension.
func (c *Classifier) IsImagingFile(name string) bool {
	return c.exts[extract.Ext(name)]
}

// IsImagingSession reports whether dir directly contains at least one
// imaging file. Subdirectories are not consulted. Unreadable directories
// are not sessions.
func (c *Classifier) IsImagingSession(fsys billy.Filesystem, dir string) bool {
	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return false
	}
	return c.hasImaging(infos)
}

func (c *Classifier) hasImaging(infos []os.FileInfo) bool {
	for _, fi := range infos {
		if fi.Mode().IsRegular() && c.IsImagingFile(fi.Name()) {
			return true
		}
	}
	return false
}

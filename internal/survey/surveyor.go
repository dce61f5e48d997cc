// Package survey walks a directory tree, classifies imaging sessions and
// collects their metadata into a tree.Node.
package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentic-research/ranger/internal/checkpoint"
	"github.com/agentic-research/ranger/internal/extract"
	"github.com/agentic-research/ranger/internal/tree"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/errgroup"
)

// ErrBaseNotFound is returned when the surveyed base directory is missing
// or not a directory.
var ErrBaseNotFound = errors.New("base directory not found")

// DefaultSkipNames are system directories never worth descending into.
var DefaultSkipNames = []string{"System Volume Information", "$RECYCLE.BIN"}

// DefaultLogName is the log file written into a surveyed directory.
const DefaultLogName = ".ranger.log"

// StackOptions controls how numbered slices in a leaf are grouped.
type StackOptions struct {
	// Pattern overrides the default "<stem><digits>.<ext>" matcher.
	Pattern string
	// MinSize is the smallest run of slices treated as a stack. Zero
	// disables stacking and every file gets its own entry.
	MinSize int
	// FirstOnly extracts only the first slice of each stack.
	FirstOnly bool
}

// Options configures a Surveyor.
type Options struct {
	Workers int
	// SkipNames excludes directories by exact name, with their subtrees.
	SkipNames []string
	// IgnoreFiles are ranger's own sentinel files, never recorded.
	IgnoreFiles       []string
	ImagingExtensions []string
	Stack             StackOptions
	// ReconstructionSuffix names the reconstruction subfolder of a leaf,
	// "<leaf><suffix>", whose files are extracted into the leaf. Empty
	// disables it.
	ReconstructionSuffix string
}

// DefaultOptions returns the options used by the CLI when no config
// overrides them.
func DefaultOptions() Options {
	return Options{
		Workers:              4,
		SkipNames:            DefaultSkipNames,
		IgnoreFiles:          []string{checkpoint.DefaultName, DefaultLogName},
		ImagingExtensions:    DefaultImagingExtensions,
		ReconstructionSuffix: "_Rec",
	}
}

// Surveyor builds a tree.Node for one base directory.
type Surveyor struct {
	fs       billy.Filesystem
	root     string // base inside fs; "" is the filesystem root
	base     string // absolute path used in logs and checkpoints
	onDisk   bool
	registry *extract.Registry
	classify *Classifier
	skip     map[string]bool
	opts     Options

	Logger *slog.Logger
}

// New returns a Surveyor over the on-disk directory base.
func New(base string, registry *extract.Registry, opts Options) (*Surveyor, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", base, err)
	}
	fi, err := os.Stat(abs)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, ErrBaseNotFound)
	}
	s := NewFS(osfs.New(abs), "", registry, opts)
	s.base = abs
	s.onDisk = true
	return s, nil
}

// NewFS returns a Surveyor over the directory root inside fsys.
func NewFS(fsys billy.Filesystem, root string, registry *extract.Registry, opts Options) *Surveyor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ImagingExtensions == nil {
		opts.ImagingExtensions = DefaultImagingExtensions
	}
	skip := make(map[string]bool, len(opts.SkipNames))
	for _, name := range opts.SkipNames {
		skip[name] = true
	}
	return &Surveyor{
		fs:       fsys,
		root:     root,
		base:     path.Join("/", root),
		registry: registry,
		classify: NewClassifier(opts.ImagingExtensions),
		skip:     skip,
		opts:     opts,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

// Base is the absolute path of the surveyed directory.
func (s *Surveyor) Base() string { return s.base }

// Scan walks the base directory from scratch.
func (s *Surveyor) Scan(ctx context.Context) (*tree.Node, error) {
	return s.scan(ctx, nil)
}

// Rescan walks the base directory, reusing top-level subtrees of previous
// whose fingerprint is unchanged.
func (s *Surveyor) Rescan(ctx context.Context, previous *tree.Node) (*tree.Node, error) {
	return s.scan(ctx, previous)
}

func (s *Surveyor) scan(ctx context.Context, previous *tree.Node) (*tree.Node, error) {
	start := time.Now()
	rootInfo, err := s.statRoot()
	if err != nil {
		return nil, err
	}
	infos, err := s.fs.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read base %s: %w", s.base, err)
	}
	sortInfos(infos)

	root := s.folder("", rootInfo)
	root.Name = filepath.Base(s.base)
	if s.classify.hasImaging(infos) {
		s.Logger.Info("survey.leaf", "path", s.base)
		s.leaf(ctx, "", root, infos)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return root, nil
	}

	var dirs []os.FileInfo
	for _, fi := range infos {
		switch {
		case fi.IsDir():
			if s.skip[fi.Name()] {
				s.Logger.Info("survey.skip", "path", s.abs(fi.Name()))
				continue
			}
			dirs = append(dirs, fi)
		case fi.Mode().IsRegular() && !s.ignored(fi.Name()):
			f := s.file(ctx, fi.Name(), fi)
			root.Add(f)
			root.Size += f.Size
		}
	}

	results := make([]*tree.Node, len(dirs))
	reused := make([]bool, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, fi := range dirs {
		g.Go(func() error {
			rel := fi.Name()
			fp := s.Fingerprint(rel)
			if prev := previousChild(previous, rel); prev != nil && fp != 0 && prev.Fingerprint == fp {
				results[i] = prev
				reused[i] = true
				return nil
			}
			n, err := s.walk(gctx, rel, fi)
			if err != nil {
				return err
			}
			n.Fingerprint = fp
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A leaf absorbs extraction failures, so cancellation during the last
	// leaf only shows up here.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reusedCount int
	for i, n := range results {
		root.Add(n)
		root.Size += n.Size
		if reused[i] {
			reusedCount++
		}
	}
	s.Logger.Info("survey.done",
		"path", s.base,
		"dirs", len(dirs),
		"reused", reusedCount,
		"size", root.Size,
		"elapsed", time.Since(start).String(),
	)
	return root, nil
}

func previousChild(previous *tree.Node, name string) *tree.Node {
	if previous == nil || !previous.IsDir() {
		return nil
	}
	prev := previous.Contents[name]
	if prev == nil || !prev.IsDir() {
		return nil
	}
	return prev
}

func (s *Surveyor) statRoot() (os.FileInfo, error) {
	if s.onDisk {
		fi, err := os.Stat(s.base)
		if err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("%s: %w", s.base, ErrBaseNotFound)
		}
		return fi, nil
	}
	if s.root == "" {
		return nil, nil
	}
	fi, err := s.fs.Stat(s.root)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%s: %w", s.base, ErrBaseNotFound)
	}
	return fi, nil
}

// walk surveys one directory sequentially. Only context cancellation is
// returned as an error; everything else is logged and absorbed.
func (s *Surveyor) walk(ctx context.Context, rel string, info os.FileInfo) (*tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node := s.folder(rel, info)
	infos, err := s.fs.ReadDir(s.fsPath(rel))
	if err != nil {
		s.Logger.Warn("survey.unreadable", "path", s.abs(rel), "err", err)
		return node, nil
	}
	sortInfos(infos)

	if s.classify.hasImaging(infos) {
		s.Logger.Info("survey.leaf", "path", s.abs(rel))
		s.leaf(ctx, rel, node, infos)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return node, nil
	}

	for _, fi := range infos {
		childRel := path.Join(rel, fi.Name())
		switch {
		case fi.IsDir():
			if s.skip[fi.Name()] {
				s.Logger.Info("survey.skip", "path", s.abs(childRel))
				continue
			}
			child, err := s.walk(ctx, childRel, fi)
			if err != nil {
				return nil, err
			}
			node.Add(child)
			node.Size += child.Size
		case fi.Mode().IsRegular():
			if s.ignored(fi.Name()) {
				continue
			}
			child := s.file(ctx, childRel, fi)
			node.Add(child)
			node.Size += child.Size
		}
	}
	return node, nil
}

// file records a regular file and extracts its metadata when the
// extension is registered. A failed extraction leaves empty metadata.
func (s *Surveyor) file(ctx context.Context, rel string, fi os.FileInfo) *tree.Node {
	n := s.fileEntry(rel, fi)
	if !s.registry.Supports(fi.Name()) {
		s.Logger.Debug("survey.unsupported", "path", s.abs(rel))
		return n
	}
	md, err := s.registry.Extract(ctx, s.fs, s.fsPath(rel))
	if err != nil {
		s.Logger.Warn("extract.failed", "path", s.abs(rel), "err", err)
		md = map[string]any{}
	}
	n.Metadata = md
	return n
}

func (s *Surveyor) fileEntry(rel string, fi os.FileInfo) *tree.Node {
	return &tree.Node{
		Name:     fi.Name(),
		Type:     extract.Ext(fi.Name()),
		Size:     fi.Size(),
		Created:  s.created(rel, fi),
		Modified: stamp(fi.ModTime()),
	}
}

func (s *Surveyor) folder(rel string, fi os.FileInfo) *tree.Node {
	n := tree.NewFolder(path.Base(rel))
	if fi != nil {
		n.Name = fi.Name()
		n.Created = s.created(rel, fi)
		n.Modified = stamp(fi.ModTime())
	}
	return n
}

func (s *Surveyor) created(rel string, fi os.FileInfo) string {
	if s.onDisk {
		if t, err := statCreated(s.abs(rel)); err == nil {
			return stamp(t)
		}
	}
	return stamp(fi.ModTime())
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *Surveyor) ignored(name string) bool {
	for _, ig := range s.opts.IgnoreFiles {
		if name == ig || strings.HasPrefix(name, ig+".tmp-") {
			return true
		}
	}
	return false
}

// fsPath maps a path relative to the base onto fs.
func (s *Surveyor) fsPath(rel string) string {
	return path.Join(s.root, rel)
}

func (s *Surveyor) abs(rel string) string {
	return filepath.Join(s.base, filepath.FromSlash(rel))
}

func sortInfos(infos []os.FileInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
}

// Package extract maps file extensions to metadata extractors.
//
// Every extractor returns a section-keyed mapping: top-level keys name a
// metadata section and their values are mappings of attributes. Scalars at
// the top level are allowed and treated as flat keys by the graph builder.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
)

var (
	// ErrUnsupported is returned for files whose extension has no extractor.
	// It is not a failure: callers skip such files.
	ErrUnsupported = errors.New("unsupported extension")
	// ErrTimeout is wrapped by Error when extraction overran its budget.
	ErrTimeout = errors.New("extraction timed out")
)

// Error records a failed extraction of one file.
type Error struct {
	Path string
	Ext  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Ext, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor parses one file. size is the file length in bytes.
type Extractor func(r io.Reader, size int64) (map[string]any, error)

// compound suffixes that keep the extension in front of them.
var compound = map[string]bool{".gz": true, ".bak": true}

// Ext returns the lower-cased extension tag of name, keeping compound
// suffixes together (".nii.gz", ".xml.bak").
func Ext(name string) string {
	lower := strings.ToLower(path.Base(name))
	ext := path.Ext(lower)
	if compound[ext] {
		inner := path.Ext(strings.TrimSuffix(lower, ext))
		if inner != "" && inner != lower {
			return inner + ext
		}
	}
	return ext
}

// Registry dispatches files to extractors by extension.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	timeout    time.Duration
}

// NewRegistry returns an empty registry. A zero timeout disables the
// per-file deadline.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{extractors: make(map[string]Extractor), timeout: timeout}
}

// DefaultRegistry returns a registry with every built-in format.
func DefaultRegistry(timeout time.Duration) *Registry {
	r := NewRegistry(timeout)
	r.Register(".dcm", DICOM)
	r.Register(".dicom", DICOM)
	r.Register(".nii", NIfTI)
	r.Register(".nii.gz", NIfTIGzip)
	r.Register(".tif", TIFF)
	r.Register(".tiff", TIFF)
	r.Register(".log", BrukerLog)
	for _, ext := range []string{".xml", ".vxml", ".mxml"} {
		r.Register(ext, XML)
		r.Register(ext+".bak", XML)
	}
	r.Register(".txt", Ivis)
	r.Register(".json", JSON)
	return r
}

// Register binds ext (case-insensitive, leading dot) to fn.
func (r *Registry) Register(ext string, fn Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[strings.ToLower(ext)] = fn
}

func (r *Registry) lookup(name string) (string, Extractor, bool) {
	ext := Ext(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.extractors[ext]
	return ext, fn, ok
}

// Supports reports whether name has a registered extension.
func (r *Registry) Supports(name string) bool {
	_, _, ok := r.lookup(name)
	return ok
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

type result struct {
	md  map[string]any
	err error
}

// Extract runs the extractor registered for name against the file in fsys.
// The returned metadata is normalized (see Normalize).
func (r *Registry) Extract(ctx context.Context, fsys billy.Filesystem, name string) (map[string]any, error) {
	ext, fn, ok := r.lookup(name)
	if !ok {
		return nil, ErrUnsupported
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// Buffered so an abandoned parser can still finish and exit.
	done := make(chan result, 1)
	go func() {
		md, err := run(fsys, name, fn)
		done <- result{md, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, &Error{Path: name, Ext: ext, Err: res.err}
		}
		md := NormalizeMap(res.md)
		if md == nil {
			md = map[string]any{}
		}
		return md, nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		return nil, &Error{Path: name, Ext: ext, Err: err}
	}
}

func run(fsys billy.Filesystem, name string, fn Extractor) (md map[string]any, err error) {
	info, err := fsys.Stat(name)
	if err != nil {
		return nil, err
	}
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // read-only, safe to ignore

	// Parsers may panic on malformed input.
	defer func() {
		if p := recover(); p != nil {
			md, err = nil, fmt.Errorf("parser panic: %v", p)
		}
	}()
	return fn(f, info.Size())
}

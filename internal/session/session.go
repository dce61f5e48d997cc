// Package session extracts the metadata of a single imaging session, one
// file or one directory of files, and answers quick questions about it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/ranger/internal/extract"
)

// Session holds extracted metadata keyed by file name.
type Session struct {
	Files map[string]map[string]any
}

// IsCache reports whether p names a saved YAML session.
func IsCache(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Open loads a YAML cache, or extracts the file or directory at p.
func Open(ctx context.Context, reg *extract.Registry, p string, logger *slog.Logger) (*Session, error) {
	if IsCache(p) {
		return Load(p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return Extract(ctx, reg, osfs.New(abs), "", logger)
	}
	return Extract(ctx, reg, osfs.New(filepath.Dir(abs)), filepath.Base(abs), logger)
}

// Extract reads name inside fsys. A directory yields one entry per
// registered, non-empty file directly inside it; files that fail to
// extract are logged and left out. A single file must be registered.
func Extract(ctx context.Context, reg *extract.Registry, fsys billy.Filesystem, name string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{Files: make(map[string]map[string]any)}

	fi, err := fsys.Stat(pathOrRoot(name))
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		if !reg.Supports(name) {
			return nil, fmt.Errorf("%s: %w", name, extract.ErrUnsupported)
		}
		md, err := reg.Extract(ctx, fsys, name)
		if err != nil {
			return nil, err
		}
		s.Files[filepath.Base(name)] = md
		return s, nil
	}

	infos, err := fsys.ReadDir(pathOrRoot(name))
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		child := fsys.Join(name, info.Name())
		switch {
		case !info.Mode().IsRegular(), !reg.Supports(info.Name()):
			continue
		case info.Size() == 0:
			logger.Debug("session.empty", "path", child)
			continue
		}
		md, err := reg.Extract(ctx, fsys, child)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("extract.failed", "path", child, "err", err)
			continue
		}
		s.Files[info.Name()] = md
	}
	logger.Info("session.extracted", "path", name, "files", len(s.Files))
	return s, nil
}

func pathOrRoot(name string) string {
	if name == "" {
		return "."
	}
	return name
}

// Load reads a session saved by Save.
func Load(p string) (*Session, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var files map[string]map[string]any
	if err := yaml.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	s := &Session{Files: make(map[string]map[string]any, len(files))}
	for name, md := range files {
		s.Files[name] = extract.NormalizeMap(md)
	}
	return s, nil
}

// Save writes the session as YAML.
func (s *Session) Save(p string) error {
	data, err := yaml.Marshal(s.Files)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return os.WriteFile(p, data, 0o644)
}

// Filenames returns the file names, sorted.
func (s *Session) Filenames() []string {
	out := make([]string, 0, len(s.Files))
	for name := range s.Files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Attributes returns every attribute seen in any file, sorted. Nested
// sections are flattened to "Section.attribute".
func (s *Session) Attributes() []string {
	seen := make(map[string]bool)
	for _, md := range s.Files {
		for k := range flatten(md) {
			seen[k] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Attribute returns the value of attr per file. Files without it are
// absent from the result.
func (s *Session) Attribute(attr string) map[string]any {
	out := make(map[string]any)
	for name, md := range s.Files {
		if v, ok := flatten(md)[attr]; ok {
			out[name] = v
		}
	}
	return out
}

// Summarize returns, per attribute, its distinct values across files. With
// counts each value maps to the number of files holding it; otherwise the
// values are listed in sorted order.
func (s *Session) Summarize(withCounts bool) map[string]any {
	counts := make(map[string]map[string]int)
	values := make(map[string]map[string]any)
	for _, md := range s.Files {
		for attr, v := range flatten(md) {
			if v == nil {
				continue
			}
			key := valueKey(v)
			if counts[attr] == nil {
				counts[attr] = make(map[string]int)
				values[attr] = make(map[string]any)
			}
			counts[attr][key]++
			values[attr][key] = v
		}
	}

	out := make(map[string]any, len(counts))
	for attr, c := range counts {
		if withCounts {
			out[attr] = c
			continue
		}
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		list := make([]any, len(keys))
		for i, k := range keys {
			list[i] = values[attr][k]
		}
		out[attr] = list
	}
	return out
}

func flatten(md map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if sub, ok := v.(map[string]any); ok {
				walk(prefix+k+".", sub)
				continue
			}
			out[prefix+k] = v
		}
	}
	walk("", md)
	return out
}

// valueKey renders a value for grouping. Scalars print as themselves and
// lists as JSON.
func valueKey(v any) string {
	switch v.(type) {
	case []any:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}

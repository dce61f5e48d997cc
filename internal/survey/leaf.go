package survey

import (
	"context"
	"os"
	"path"
	"sort"

	"github.com/agentic-research/ranger/internal/extract"
	"github.com/agentic-research/ranger/internal/stack"
	"github.com/agentic-research/ranger/internal/tree"
)

// leaf fills an imaging-session folder. Direct files are listed without
// metadata; their extracted metadata is merged into the folder's Metadata,
// keyed by file name or stack key. Subdirectories are not listed but their
// files still count towards the folder size.
func (s *Surveyor) leaf(ctx context.Context, rel string, node *tree.Node, infos []os.FileInfo) *tree.Node {
	node.Leaf = true
	md := make(map[string]any)
	s.collect(ctx, rel, infos, "", md)

	for _, fi := range infos {
		childRel := path.Join(rel, fi.Name())
		switch {
		case fi.IsDir():
			if s.skip[fi.Name()] {
				continue
			}
			if s.isReconstruction(node.Name, fi.Name()) {
				if sub, err := s.fs.ReadDir(s.fsPath(childRel)); err == nil {
					sortInfos(sub)
					s.collect(ctx, childRel, sub, fi.Name()+"/", md)
				} else {
					s.Logger.Warn("survey.unreadable", "path", s.abs(childRel), "err", err)
				}
			}
			node.Size += s.sizeOf(childRel)
		case fi.Mode().IsRegular():
			if s.ignored(fi.Name()) {
				continue
			}
			f := s.fileEntry(childRel, fi)
			node.Add(f)
			node.Size += f.Size
		}
	}
	node.Metadata = md
	return node
}

func (s *Surveyor) isReconstruction(leafName, dirName string) bool {
	return s.opts.ReconstructionSuffix != "" && dirName == leafName+s.opts.ReconstructionSuffix
}

// collect extracts every registered file of one directory into md under
// prefix+key. Stacks are consumed first when enabled.
func (s *Surveyor) collect(ctx context.Context, rel string, infos []os.FileInfo, prefix string, md map[string]any) {
	consumed := s.collectStacks(ctx, rel, infos, prefix, md)
	for _, fi := range infos {
		name := fi.Name()
		if !fi.Mode().IsRegular() || consumed[name] || s.ignored(name) {
			continue
		}
		if !s.registry.Supports(name) {
			s.Logger.Debug("survey.unsupported", "path", s.abs(path.Join(rel, name)))
			continue
		}
		m, err := s.registry.Extract(ctx, s.fs, s.fsPath(path.Join(rel, name)))
		if err != nil {
			s.Logger.Warn("extract.failed", "path", s.abs(path.Join(rel, name)), "err", err)
			m = map[string]any{}
		}
		md[prefix+name] = m
	}
}

func (s *Surveyor) collectStacks(ctx context.Context, rel string, infos []os.FileInfo, prefix string, md map[string]any) map[string]bool {
	consumed := make(map[string]bool)
	if s.opts.Stack.MinSize < 2 {
		return consumed
	}

	exts := make(map[string]bool)
	for _, fi := range infos {
		if fi.Mode().IsRegular() && s.classify.IsImagingFile(fi.Name()) && s.registry.Supports(fi.Name()) {
			exts[extract.Ext(fi.Name())] = true
		}
	}
	sorted := make([]string, 0, len(exts))
	for ext := range exts {
		sorted = append(sorted, ext)
	}
	sort.Strings(sorted)

	extractFn := func(ctx context.Context, p string) (map[string]any, error) {
		return s.registry.Extract(ctx, s.fs, p)
	}
	for _, ext := range sorted {
		stacks, err := stack.Detect(s.fs, s.fsPath(rel), ext, s.opts.Stack.Pattern)
		if err != nil {
			s.Logger.Warn("survey.stack_failed", "path", s.abs(rel), "ext", ext, "err", err)
			continue
		}
		for _, st := range stacks {
			if len(st.Paths) < s.opts.Stack.MinSize {
				continue
			}
			work := st
			if s.opts.Stack.FirstOnly {
				work.Paths = st.Paths[:1]
			}
			proc, err := stack.ProcessStack(ctx, work, extractFn, s.Logger)
			if err != nil {
				return consumed
			}

			files := make([]any, len(st.Paths))
			for i, p := range st.Paths {
				files[i] = path.Base(p)
				consumed[path.Base(p)] = true
			}
			slices := make([]any, len(proc.Metadata))
			for i, m := range proc.Metadata {
				slices[i] = m
			}
			md[prefix+st.Key()] = map[string]any{
				"stack_key": proc.StackKey,
				"extension": st.Extension,
				"count":     int64(len(st.Paths)),
				"files":     files,
				"slices":    slices,
			}
			s.Logger.Debug("survey.stack", "path", s.abs(rel), "stack", st.Key(), "count", len(st.Paths))
		}
	}
	return consumed
}

// Package stack groups numbered image slices ("proj_0001.tif",
// "proj_0002.tif", ...) into ordered stacks.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// ErrPattern is returned for stack patterns without the stem and number
// capture groups.
var ErrPattern = errors.New("stack pattern must define (?P<stem>...) and (?P<number>...) groups")

// Stack is an ordered run of files sharing a stem.
type Stack struct {
	Stem      string
	Extension string
	Paths     []string
}

// Key identifies a stack inside its directory, e.g. "proj_*.tif".
func (s Stack) Key() string {
	return s.Stem + "*." + s.Extension
}

// Compile builds the matcher for ext. An empty pattern selects the default
// "<stem><digits>.<ext>" form with a case-insensitive extension.
func Compile(pattern, ext string) (*regexp.Regexp, error) {
	ext = strings.TrimPrefix(ext, ".")
	if pattern == "" {
		pattern = `^(?P<stem>.+?)(?P<number>\d+)\.(?i:` + regexp.QuoteMeta(ext) + `)$`
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile stack pattern: %w", err)
	}
	if re.SubexpIndex("stem") < 0 || re.SubexpIndex("number") < 0 {
		return nil, ErrPattern
	}
	return re, nil
}

type member struct {
	name   string
	number string
}

// FindFileStacks groups the regular files of dir matching pattern by their
// stem. Each stack is ordered by the numeric value of its number group and
// holds paths joined onto dir. Files that do not match are left out.
func FindFileStacks(fsys billy.Filesystem, dir, ext, pattern string) (map[string][]string, error) {
	re, err := Compile(pattern, ext)
	if err != nil {
		return nil, err
	}
	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	stemIdx, numIdx := re.SubexpIndex("stem"), re.SubexpIndex("number")
	groups := make(map[string][]member)
	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		m := re.FindStringSubmatch(fi.Name())
		if m == nil {
			continue
		}
		groups[m[stemIdx]] = append(groups[m[stemIdx]], member{name: fi.Name(), number: m[numIdx]})
	}

	stacks := make(map[string][]string, len(groups))
	for stem, members := range groups {
		sort.Slice(members, func(i, j int) bool {
			if c := compareDigits(members[i].number, members[j].number); c != 0 {
				return c < 0
			}
			return members[i].name < members[j].name
		})
		paths := make([]string, len(members))
		for i, m := range members {
			paths[i] = path.Join(dir, m.name)
		}
		stacks[stem] = paths
	}
	return stacks, nil
}

// compareDigits orders decimal digit strings by value without parsing, so
// arbitrarily long slice numbers never overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Detect is FindFileStacks returning Stack values sorted by stem.
func Detect(fsys billy.Filesystem, dir, ext, pattern string) ([]Stack, error) {
	found, err := FindFileStacks(fsys, dir, ext, pattern)
	if err != nil {
		return nil, err
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	out := make([]Stack, 0, len(found))
	for stem, paths := range found {
		out = append(out, Stack{Stem: stem, Extension: ext, Paths: paths})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stem < out[j].Stem })
	return out, nil
}

// ExtractFunc extracts the metadata of one file.
type ExtractFunc func(ctx context.Context, path string) (map[string]any, error)

// Processed is the per-slice metadata of one stack, in stack order.
type Processed struct {
	StackKey string
	Metadata []map[string]any
}

// ProcessStack extracts every slice of s. Failed slices are logged and
// left out, so len(Metadata) may be shorter than the stack.
func ProcessStack(ctx context.Context, s Stack, fn ExtractFunc, logger *slog.Logger) (Processed, error) {
	out := Processed{StackKey: s.Stem, Metadata: make([]map[string]any, 0, len(s.Paths))}
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		md, err := fn(ctx, p)
		if err != nil {
			if logger != nil {
				logger.Warn("stack.slice_failed", "stack", s.Stem, "path", p, "err", err)
			}
			continue
		}
		out.Metadata = append(out.Metadata, md)
	}
	return out, nil
}

package survey

import (
	"os"
	"path"
	"strconv"

	"github.com/zeebo/xxh3"
)

// statWalk visits every entry below rel with the same skip and ignore
// rules as the survey, in name order. Unreadable directories are treated
// as empty.
func (s *Surveyor) statWalk(rel string, fn func(rel string, fi os.FileInfo)) {
	infos, err := s.fs.ReadDir(s.fsPath(rel))
	if err != nil {
		return
	}
	sortInfos(infos)
	for _, fi := range infos {
		childRel := path.Join(rel, fi.Name())
		switch {
		case fi.IsDir():
			if s.skip[fi.Name()] {
				continue
			}
			fn(childRel, fi)
			s.statWalk(childRel, fn)
		case fi.Mode().IsRegular():
			if s.ignored(fi.Name()) {
				continue
			}
			fn(childRel, fi)
		}
	}
}

// sizeOf totals the regular files below rel without building nodes.
func (s *Surveyor) sizeOf(rel string) int64 {
	var total int64
	s.statWalk(rel, func(_ string, fi os.FileInfo) {
		if fi.Mode().IsRegular() {
			total += fi.Size()
		}
	})
	return total
}

// Fingerprint hashes the names, sizes and timestamps of everything below
// rel, including rel itself. Two surveys of an unchanged subtree produce
// the same node, so an equal fingerprint lets Rescan reuse it. Returns 0
// when rel cannot be read.
func (s *Surveyor) Fingerprint(rel string) uint64 {
	fi, err := s.fs.Stat(s.fsPath(rel))
	if err != nil {
		return 0
	}
	h := xxh3.New()
	write := func(rel string, fi os.FileInfo) {
		_, _ = h.WriteString(rel)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(strconv.FormatInt(fi.Size(), 10))
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(strconv.FormatInt(fi.ModTime().UnixNano(), 10))
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(s.created(rel, fi))
		_, _ = h.WriteString("\n")
	}
	write(rel, fi)
	s.statWalk(rel, write)
	sum := h.Sum64()
	if sum == 0 {
		sum = 1
	}
	return sum
}

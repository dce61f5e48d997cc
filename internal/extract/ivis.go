package extract

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	ivisDateLayout = "Monday, January 2, 2006"
	ivisTimeLayout = "15:04:05"
)

// Ivis parses the sectioned text export of an IVIS optical imaging
// session. "*** Name" or "*** Name: value" opens a section, "key: value"
// lines fill it. Lines before the first section are ignored.
func Ivis(r io.Reader, _ int64) (map[string]any, error) {
	out := make(map[string]any)
	var current map[string]any

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.ReplaceAll(strings.TrimSpace(sc.Text()), "\t", "")
		if strings.HasPrefix(line, "***") {
			info := strings.TrimSpace(strings.Trim(line, "* "))
			name, header, hasHeader := strings.Cut(info, ":")
			name = strings.TrimSpace(name)
			current = make(map[string]any)
			if hasHeader {
				current[name] = ivisValue(strings.TrimSpace(header))
			}
			out[name] = current
			continue
		}
		if current == nil {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			current[key] = ivisValue(strings.TrimSpace(value))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ivis: %w", err)
	}
	return out, nil
}

// ivisValue splits ";" or "," separated lists, then interprets each item.
func ivisValue(s string) any {
	for _, sep := range []string{";", ","} {
		if !strings.Contains(s, sep) {
			continue
		}
		// A comma inside a long-form date is not a list separator.
		if sep == "," && isIvisDate(s) {
			break
		}
		var items []any
		for _, item := range strings.Split(s, sep) {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, ivisScalar(item))
			}
		}
		return items
	}
	return ivisScalar(s)
}

func isIvisDate(s string) bool {
	_, err := time.Parse(ivisDateLayout, s)
	return err == nil
}

func ivisScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, ok := parseFinite(s); ok {
		return f
	}
	if t, err := time.Parse(ivisDateLayout, s); err == nil {
		return t.Format(time.DateOnly)
	}
	if t, err := time.Parse(ivisTimeLayout, s); err == nil {
		return t.Format(time.TimeOnly)
	}
	return s
}

package extract

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

var brukerLoadOptions = ini.LoadOptions{
	KeyValueDelimiters:      "=",
	SkipUnrecognizableLines: true,
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
}

// BrukerLog parses a SkyScan acquisition or reconstruction log: bracketed
// section headers followed by "key=value" lines. Keys that appear before
// the first section are returned flat.
func BrukerLog(r io.Reader, _ int64) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	f, err := ini.LoadSources(brukerLoadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("parse log: %w", err)
	}

	out := make(map[string]any)
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if sec.Name() == ini.DefaultSection {
			for _, k := range keys {
				out[k.Name()] = coerce(k.Value())
			}
			continue
		}
		attrs := make(map[string]any, len(keys))
		for _, k := range keys {
			attrs[k.Name()] = coerce(k.Value())
		}
		out[sec.Name()] = attrs
	}
	return out, nil
}

// coerce interprets a textual value as an integer, then a float, and
// otherwise keeps the trimmed string.
func coerce(s string) any {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, ok := parseFinite(s); ok {
		return f
	}
	return s
}

// Package canon turns raw metadata key names into identifiers that are safe
// to use as property keys and labels in the graph store.
package canon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var graphChars = strings.NewReplacer(
	"/", "",
	"(", "_",
	")", "_",
	"+", "plus",
)

// Canonicalize maps an arbitrary attribute name to lowerCamelCase.
//
// "/" is dropped, parentheses become word breaks and "+" is spelled out.
// Any other rune that is not a letter or digit separates words. The first
// rune of each word is upper-cased, the rest are left alone, and the first
// rune of the result is lower-cased. The output never contains a separator,
// so Canonicalize(Canonicalize(s)) == Canonicalize(s).
func Canonicalize(name string) string {
	s := graphChars.Replace(name)
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(w[size:])
	}
	out := b.String()
	r, size := utf8.DecodeRuneInString(out)
	return string(unicode.ToLower(r)) + out[size:]
}

// SectionLabel sanitizes a metadata section name for use as a node label
// and id prefix. Section names keep their casing; only blanks are replaced.
func SectionLabel(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

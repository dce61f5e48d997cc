package tree

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Select evaluates a JSONPath expression against the map form of n (see
// ToMap) and returns the matched values.
//
//	$.contents.A.metadata
//	$..metadata[?(@.Patient)]
func (n *Node) Select(selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return x.Get(n.ToMap()), nil
}

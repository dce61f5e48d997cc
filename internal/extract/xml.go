package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// XML summarizes an XML document: the root element's tag and attributes,
// plus the tag and attributes of each direct child.
func XML(r io.Reader, _ int64) (map[string]any, error) {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var root map[string]any
	var children []any
	depth := 0
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				root = map[string]any{"tag": xmlTag(el.Name)}
				for k, v := range xmlAttrs(el.Attr) {
					root[k] = v
				}
			case 2:
				children = append(children, map[string]any{
					"tag":        xmlTag(el.Name),
					"attributes": xmlAttrs(el.Attr),
				})
			}
		case xml.EndElement:
			depth--
		}
	}
	if root == nil {
		return nil, errors.New("parse xml: no root element")
	}
	if children == nil {
		children = []any{}
	}
	root["children"] = children
	return map[string]any{"xml": root}, nil
}

func xmlTag(n xml.Name) string {
	if n.Space != "" {
		return "{" + n.Space + "}" + n.Local
	}
	return n.Local
}

func xmlAttrs(attrs []xml.Attr) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		out[a.Name.Local] = a.Value
	}
	return out
}

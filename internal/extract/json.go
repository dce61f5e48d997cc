package extract

import (
	"fmt"
	"io"

	"github.com/ohler55/ojg/oj"
)

// JSON parses a JSON document. Objects are returned as-is, with their
// nested objects acting as sections. Other documents are wrapped under
// "value".
func JSON(r io.Reader, _ int64) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"value": v}, nil
}

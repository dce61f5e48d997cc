package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Select(t *testing.T) {
	root := NewFolder("base")
	a := NewFolder("A")
	a.Leaf = true
	a.Metadata = map[string]any{"s.dcm": map[string]any{"Patient": map[string]any{"Age": int64(3)}}}
	root.Add(a)
	root.Add(&Node{Name: "x.txt", Type: ".txt", Size: 4})

	got, err := root.Select("$.contents.A.metadata['s.dcm'].Patient.Age")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, got)

	got, err = root.Select("$.contents['x.txt'].size")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4)}, got)

	got, err = root.Select("$.contents.missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = root.Select("$[")
	assert.Error(t, err)
}

package checkpoint

import (
	"fmt"

	"github.com/agentic-research/ranger/internal/tree"
	"github.com/tinylib/msgp/msgp"
)

func encode(w *msgp.Writer, base string, root *tree.Node) error {
	if err := w.WriteMapHeader(3); err != nil {
		return err
	}
	if err := w.WriteString("version"); err != nil {
		return err
	}
	if err := w.WriteInt64(version); err != nil {
		return err
	}
	if err := w.WriteString("base_directory"); err != nil {
		return err
	}
	if err := w.WriteString(base); err != nil {
		return err
	}
	if err := w.WriteString("file_tree"); err != nil {
		return err
	}
	return encodeNode(w, root)
}

func encodeNode(w *msgp.Writer, n *tree.Node) error {
	if err := w.WriteMapHeader(9); err != nil {
		return err
	}
	strs := [][2]string{
		{"name", n.Name},
		{"type", n.Type},
		{"created", n.Created},
		{"modified", n.Modified},
	}
	for _, kv := range strs {
		if err := w.WriteString(kv[0]); err != nil {
			return err
		}
		if err := w.WriteString(kv[1]); err != nil {
			return err
		}
	}
	if err := w.WriteString("size"); err != nil {
		return err
	}
	if err := w.WriteInt64(n.Size); err != nil {
		return err
	}
	if err := w.WriteString("leaf"); err != nil {
		return err
	}
	if err := w.WriteBool(n.Leaf); err != nil {
		return err
	}
	if err := w.WriteString("fingerprint"); err != nil {
		return err
	}
	if err := w.WriteUint64(n.Fingerprint); err != nil {
		return err
	}

	if err := w.WriteString("metadata"); err != nil {
		return err
	}
	if n.Metadata == nil {
		if err := w.WriteNil(); err != nil {
			return err
		}
	} else if err := w.WriteIntf(n.Metadata); err != nil {
		return fmt.Errorf("metadata of %s: %w", n.Name, err)
	}

	if err := w.WriteString("contents"); err != nil {
		return err
	}
	if n.Contents == nil {
		return w.WriteNil()
	}
	if err := w.WriteMapHeader(uint32(len(n.Contents))); err != nil {
		return err
	}
	for _, name := range n.Names() {
		if err := w.WriteString(name); err != nil {
			return err
		}
		if err := encodeNode(w, n.Contents[name]); err != nil {
			return err
		}
	}
	return nil
}

func decode(r *msgp.Reader) (string, *tree.Node, error) {
	sz, err := r.ReadMapHeader()
	if err != nil {
		return "", nil, err
	}
	var (
		base string
		root *tree.Node
		ver  int64 = -1
	)
	for i := uint32(0); i < sz; i++ {
		key, err := r.ReadString()
		if err != nil {
			return "", nil, err
		}
		switch key {
		case "version":
			if ver, err = r.ReadInt64(); err != nil {
				return "", nil, err
			}
		case "base_directory":
			if base, err = r.ReadString(); err != nil {
				return "", nil, err
			}
		case "file_tree":
			if root, err = decodeNode(r); err != nil {
				return "", nil, err
			}
		default:
			if err := r.Skip(); err != nil {
				return "", nil, err
			}
		}
	}
	if ver != version {
		return "", nil, fmt.Errorf("unsupported version %d", ver)
	}
	if root == nil {
		return "", nil, fmt.Errorf("missing file_tree")
	}
	return base, root, nil
}

func decodeNode(r *msgp.Reader) (*tree.Node, error) {
	sz, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	n := &tree.Node{}
	for i := uint32(0); i < sz; i++ {
		key, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "name":
			n.Name, err = r.ReadString()
		case "type":
			n.Type, err = r.ReadString()
		case "created":
			n.Created, err = r.ReadString()
		case "modified":
			n.Modified, err = r.ReadString()
		case "size":
			n.Size, err = r.ReadInt64()
		case "leaf":
			n.Leaf, err = r.ReadBool()
		case "fingerprint":
			n.Fingerprint, err = r.ReadUint64()
		case "metadata":
			n.Metadata, err = decodeMetadata(r)
		case "contents":
			n.Contents, err = decodeContents(r)
		default:
			err = r.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return n, nil
}

func decodeMetadata(r *msgp.Reader) (map[string]any, error) {
	if r.IsNil() {
		return nil, r.ReadNil()
	}
	v, err := r.ReadIntf()
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata is %T, want map", v)
	}
	return m, nil
}

func decodeContents(r *msgp.Reader) (map[string]*tree.Node, error) {
	if r.IsNil() {
		return nil, r.ReadNil()
	}
	sz, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*tree.Node, sz)
	for i := uint32(0); i < sz; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		child, err := decodeNode(r)
		if err != nil {
			return nil, fmt.Errorf("%s/%w", name, err)
		}
		out[name] = child
	}
	return out, nil
}

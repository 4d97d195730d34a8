package document

import (
	"strconv"
	"strings"
)

// Segment addresses one step into a tree: a map key or a sequence index.
type Segment struct {
	Key   string
	Index int
	IsIdx bool
}

// Path is an ordered list of segments locating one node. Paths are declared
// statically per semantic field; a path that does not resolve in a given
// document is expected and never an error.
type Path []Segment

// ParsePath builds a Path from dotted notation. Purely numeric segments are
// treated as sequence indices ("contacts.0.nom").
func ParsePath(spec string) Path {
	if spec == "" {
		return nil
	}
	parts := strings.Split(spec, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if idx, err := strconv.Atoi(part); err == nil {
			p = append(p, Segment{Index: idx, IsIdx: true})
		} else {
			p = append(p, Segment{Key: part})
		}
	}
	return p
}

// String renders the path in dotted notation.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		if seg.IsIdx {
			parts[i] = strconv.Itoa(seg.Index)
		} else {
			parts[i] = seg.Key
		}
	}
	return strings.Join(parts, ".")
}

// Child extends the path by one map key.
func (p Path) Child(key string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Key: key})
}

// HasPrefix reports whether p starts with prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, seg := range prefix {
		if p[i] != seg {
			return false
		}
	}
	return true
}

// Resolve walks the path from n. A missing key, an out-of-range index, or a
// segment whose shape does not match the node (key into a sequence, index
// into a mapping) all return ok=false.
func (n *Node) Resolve(p Path) (*Node, bool) {
	cur := n
	for _, seg := range p {
		if cur == nil {
			return nil, false
		}
		if seg.IsIdx {
			if cur.kind != KindSeq || seg.Index < 0 || seg.Index >= len(cur.seq) {
				return nil, false
			}
			cur = cur.seq[seg.Index]
			continue
		}
		if cur.kind != KindMap {
			return nil, false
		}
		child, ok := cur.m[seg.Key]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// StringAt resolves the path and returns its scalar string value.
func (n *Node) StringAt(p Path) (string, bool) {
	node, ok := n.Resolve(p)
	if !ok {
		return "", false
	}
	return node.String()
}

// SetString overwrites the scalar at the path. The write is skipped when the
// path does not resolve to an existing location.
func (n *Node) SetString(p Path, value string) bool {
	return n.setScalar(p, value)
}

// SetNull overwrites the node at the path with an explicit null.
func (n *Node) SetNull(p Path) bool {
	return n.setScalar(p, nil)
}

func (n *Node) setScalar(p Path, value any) bool {
	if len(p) == 0 {
		return false
	}
	parent, ok := n.Resolve(p[:len(p)-1])
	if !ok {
		return false
	}
	last := p[len(p)-1]
	if last.IsIdx {
		if parent.kind != KindSeq || last.Index < 0 || last.Index >= len(parent.seq) {
			return false
		}
		parent.seq[last.Index] = NewScalar(value)
		return true
	}
	if parent.kind != KindMap {
		return false
	}
	if _, exists := parent.m[last.Key]; !exists {
		return false
	}
	parent.m[last.Key] = NewScalar(value)
	return true
}

// Remove deletes the node at the path from its parent. Sequence elements are
// spliced out; absent paths are a no-op.
func (n *Node) Remove(p Path) bool {
	if len(p) == 0 {
		return false
	}
	parent, ok := n.Resolve(p[:len(p)-1])
	if !ok {
		return false
	}
	last := p[len(p)-1]
	if last.IsIdx {
		if parent.kind != KindSeq || last.Index < 0 || last.Index >= len(parent.seq) {
			return false
		}
		parent.RemoveElem(last.Index)
		return true
	}
	if parent.kind != KindMap {
		return false
	}
	if _, exists := parent.m[last.Key]; !exists {
		return false
	}
	delete(parent.m, last.Key)
	return true
}

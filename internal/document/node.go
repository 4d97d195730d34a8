// Package document models a decoded patient record as a tagged-variant tree
// and provides path-based access that treats absent or mis-shaped locations
// as "not found" rather than as errors.
package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates the three node variants.
type Kind int

const (
	KindScalar Kind = iota
	KindMap
	KindSeq
)

// Node is one vertex of a record tree: a string-keyed mapping, an ordered
// sequence, or a scalar (string, float64, bool or nil). A Node is owned by a
// single request during processing and is not safe for concurrent mutation.
type Node struct {
	kind Kind
	m    map[string]*Node
	seq  []*Node
	val  any
}

// NewMap returns an empty mapping node.
func NewMap() *Node {
	return &Node{kind: KindMap, m: make(map[string]*Node)}
}

// NewSeq returns an empty sequence node.
func NewSeq() *Node {
	return &Node{kind: KindSeq}
}

// NewScalar wraps a scalar value. Only string, float64, bool and nil are
// expected; other types are stored as-is and round-trip through Interface.
func NewScalar(v any) *Node {
	return &Node{kind: KindScalar, val: v}
}

// FromAny builds a tree from a JSON-decoded value (map[string]any, []any,
// or scalar). Integer scalars are normalized to float64 the way
// encoding/json decodes them.
func FromAny(v any) (*Node, error) {
	switch val := v.(type) {
	case map[string]any:
		n := NewMap()
		for k, child := range val {
			c, err := FromAny(child)
			if err != nil {
				return nil, err
			}
			n.m[k] = c
		}
		return n, nil
	case []any:
		n := NewSeq()
		for _, child := range val {
			c, err := FromAny(child)
			if err != nil {
				return nil, err
			}
			n.seq = append(n.seq, c)
		}
		return n, nil
	case string, float64, bool, nil:
		return NewScalar(val), nil
	case int:
		return NewScalar(float64(val)), nil
	case int64:
		return NewScalar(float64(val)), nil
	case float32:
		return NewScalar(float64(val)), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// FromJSON decodes raw JSON into a tree.
func FromJSON(data []byte) (*Node, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return FromAny(v)
}

// Kind reports the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Interface converts the tree back to plain Go values suitable for
// encoding/json.
func (n *Node) Interface() any {
	switch n.kind {
	case KindMap:
		out := make(map[string]any, len(n.m))
		for k, c := range n.m {
			out[k] = c.Interface()
		}
		return out
	case KindSeq:
		out := make([]any, len(n.seq))
		for i, c := range n.seq {
			out[i] = c.Interface()
		}
		return out
	default:
		return n.val
	}
}

// String returns the scalar string value; ok is false for non-string nodes.
func (n *Node) String() (string, bool) {
	if n.kind != KindScalar {
		return "", false
	}
	s, ok := n.val.(string)
	return s, ok
}

// Value returns the raw scalar value; ok is false for containers.
func (n *Node) Value() (any, bool) {
	if n.kind != KindScalar {
		return nil, false
	}
	return n.val, true
}

// Child returns the named child of a mapping node.
func (n *Node) Child(key string) (*Node, bool) {
	if n.kind != KindMap {
		return nil, false
	}
	c, ok := n.m[key]
	return c, ok
}

// SetChild sets a named child on a mapping node. No-op on other kinds.
func (n *Node) SetChild(key string, child *Node) {
	if n.kind == KindMap {
		n.m[key] = child
	}
}

// RemoveChild removes a named child from a mapping node.
func (n *Node) RemoveChild(key string) {
	if n.kind == KindMap {
		delete(n.m, key)
	}
}

// Keys returns the sorted keys of a mapping node.
func (n *Node) Keys() []string {
	if n.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(n.m))
	for k := range n.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Elems returns the elements of a sequence node.
func (n *Node) Elems() []*Node {
	if n.kind != KindSeq {
		return nil
	}
	return n.seq
}

// Append adds an element to a sequence node.
func (n *Node) Append(child *Node) {
	if n.kind == KindSeq {
		n.seq = append(n.seq, child)
	}
}

// RemoveElem removes the i-th element of a sequence node.
func (n *Node) RemoveElem(i int) {
	if n.kind != KindSeq || i < 0 || i >= len(n.seq) {
		return
	}
	n.seq = append(n.seq[:i], n.seq[i+1:]...)
}

// Len returns the number of children for containers, 0 for scalars.
func (n *Node) Len() int {
	switch n.kind {
	case KindMap:
		return len(n.m)
	case KindSeq:
		return len(n.seq)
	default:
		return 0
	}
}

// Flatten serializes the tree to an indented "key: value" text block, the
// form handed to the model boundary. Map keys are emitted in sorted order so
// output is stable.
func (n *Node) Flatten() string {
	var b strings.Builder
	n.flatten(&b, 0, "")
	return strings.TrimRight(b.String(), "\n")
}

func (n *Node) flatten(b *strings.Builder, depth int, label string) {
	indent := strings.Repeat("  ", depth)
	switch n.kind {
	case KindMap:
		if label != "" {
			fmt.Fprintf(b, "%s%s:\n", indent, label)
			depth++
		}
		for _, k := range n.Keys() {
			n.m[k].flatten(b, depth, k)
		}
	case KindSeq:
		if label != "" {
			fmt.Fprintf(b, "%s%s:\n", indent, label)
			depth++
		}
		for i, c := range n.seq {
			c.flatten(b, depth, fmt.Sprintf("- %d", i+1))
		}
	default:
		fmt.Fprintf(b, "%s%s: %s", indent, label, scalarText(n.val))
		b.WriteByte('\n')
	}
}

func scalarText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "oui"
		}
		return "non"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

package anonymizer

import (
	"fmt"

	"github.com/carenotes/veil/internal/document"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/schema"
	"go.uber.org/zap"
)

// nonInformative lists the sentinel values treated as absence rather than
// confidential content, keyed by their folded form. Fields holding one are
// never entered into the mapping.
var nonInformative = map[string]bool{
	"":               true,
	"non renseigne":  true,
	"non renseignee": true,
	"non communique": true,
	"null":           true,
	"neant":          true,
}

// NeutralPlaceholder is written where a declared field held a sentinel
// value: the slot stays visibly present without carrying information.
const NeutralPlaceholder = "Non renseigné"

// isSentinel reports whether a scalar counts as non-informative. Explicit
// nulls are sentinels too.
func isSentinel(n *document.Node) bool {
	v, ok := n.Value()
	if !ok {
		return false
	}
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return nonInformative[foldValue(s)]
}

// Cleaner strips non-informative and explicitly denied fields from a record
// before anonymization, pruning containers the removals leave empty.
// Cleaning is idempotent.
type Cleaner struct {
	tab   *schema.Table
	trace bool
	log   *logger.Logger
}

// NewCleaner creates a cleaner over the declared schema. With trace enabled,
// Clean returns one human-readable line per decision for audit; tracing
// never changes the resulting document.
func NewCleaner(tab *schema.Table, trace bool, log *logger.Logger) *Cleaner {
	return &Cleaner{tab: tab, trace: trace, log: log}
}

// Clean mutates doc in place and returns the change trace (nil when tracing
// is off).
func (c *Cleaner) Clean(doc *document.Node) []string {
	var trace []string
	record := func(format string, args ...any) {
		if c.trace {
			trace = append(trace, fmt.Sprintf(format, args...))
		}
	}

	// Deny-list first: exact paths, removed regardless of content.
	for _, p := range c.tab.Deny {
		if doc.Remove(p) {
			record("removed denied field %s", p.String())
		}
	}
	if contacts, ok := doc.Resolve(c.tab.ContactsRoot); ok && contacts.Kind() == document.KindSeq {
		for i, elem := range contacts.Elems() {
			for _, p := range c.tab.ContactDeny {
				if elem.Remove(p) {
					record("removed denied field %s.%d.%s", c.tab.ContactsRoot.String(), i, p.String())
				}
			}
		}
	}

	c.cleanNode(doc, "", record)

	c.log.Debug("document cleaned", zap.Int("changes", len(trace)))
	return trace
}

// cleanNode walks post-order: children are cleaned first so that emptied
// containers can be dropped from their parent.
func (c *Cleaner) cleanNode(n *document.Node, path string, record func(string, ...any)) {
	switch n.Kind() {
	case document.KindMap:
		for _, key := range n.Keys() {
			child, _ := n.Child(key)
			childPath := joinPath(path, key)
			c.cleanNode(child, childPath, record)
			if c.shouldDrop(child) {
				if c.tab.PreserveNull[key] {
					n.SetChild(key, document.NewScalar(nil))
					record("preserved %s as explicit null", childPath)
				} else {
					n.RemoveChild(key)
					record("removed %s (non-informative)", childPath)
				}
			}
		}
	case document.KindSeq:
		elems := n.Elems()
		for i := len(elems) - 1; i >= 0; i-- {
			childPath := fmt.Sprintf("%s.%d", path, i)
			c.cleanNode(elems[i], childPath, record)
			if c.shouldDrop(elems[i]) {
				n.RemoveElem(i)
				record("removed %s (non-informative)", childPath)
			}
		}
	}
}

// shouldDrop reports whether a cleaned node carries no information: a
// sentinel scalar, or a container left empty by the walk.
func (c *Cleaner) shouldDrop(n *document.Node) bool {
	switch n.Kind() {
	case document.KindScalar:
		return isSentinel(n)
	default:
		return n.Len() == 0
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

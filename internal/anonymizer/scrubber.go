package anonymizer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/carenotes/veil/internal/document"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/mapping"
	"github.com/carenotes/veil/internal/schema"
	"go.uber.org/zap"
)

// civilityPrefixes are the titles that may precede a name in narrative
// text. Matching is diacritic- and case-insensitive, so one spelling per
// folded form is enough.
var civilityPrefixes = []string{
	"M.", "Mr", "Monsieur", "Mme", "Madame", "Mlle", "Mademoiselle", "Dr", "Docteur",
}

// variant is one surface form of the subject's name together with the alias
// form that mirrors its shape: a bare surname maps to the alias surname, a
// civility-prefixed full name keeps its civility.
type variant struct {
	form        string // original surface form, for pattern building
	replacement string
}

// Scrubber rewrites mentions of the subject's real name inside narrative
// fields that the structured pass does not cover.
type Scrubber struct {
	tab *schema.Table
	log *logger.Logger
}

// NewScrubber creates a scrubber over the declared schema.
func NewScrubber(tab *schema.Table, log *logger.Logger) *Scrubber {
	return &Scrubber{tab: tab, log: log}
}

// Scrub replaces every free-text mention of the subject's name, extending
// the mapping with one entry per substituted surface form. The pass is
// skipped (not an error) when the subject's name cannot be recovered from
// the mapping. Returns the number of substitutions.
func (s *Scrubber) Scrub(doc *document.Node, m *mapping.Mapping) int {
	origFirst, origLast, aliasFirst, aliasLast, ok := s.recoverNames(doc, m)
	if !ok {
		s.log.Debug("free-text pass skipped: subject name not recoverable")
		return 0
	}

	variants := buildVariants(origFirst, origLast, aliasFirst, aliasLast)
	matcher := compileVariants(variants)

	count := 0
	s.walk(doc, nil, func(text string) string {
		out, n := matcher.scrub(text, m)
		count += n
		return out
	})

	s.log.Debug("free-text mentions scrubbed", zap.Int("substitutions", count))
	return count
}

// recoverNames reads the aliases written into the structured subject fields
// and inverts the mapping to get the original first and last name.
func (s *Scrubber) recoverNames(doc *document.Node, m *mapping.Mapping) (origFirst, origLast, aliasFirst, aliasLast string, ok bool) {
	firstPath, lastPath := s.namePaths()
	if firstPath == nil || lastPath == nil {
		return "", "", "", "", false
	}
	aliasFirst, okF := doc.StringAt(firstPath)
	aliasLast, okL := doc.StringAt(lastPath)
	if !okF || !okL {
		return "", "", "", "", false
	}
	origFirst, okF = m.Original(aliasFirst)
	origLast, okL = m.Original(aliasLast)
	if !okF || !okL || origFirst == "" || origLast == "" {
		return "", "", "", "", false
	}
	return origFirst, origLast, aliasFirst, aliasLast, true
}

func (s *Scrubber) namePaths() (first, last document.Path) {
	for _, f := range s.tab.Subject {
		switch f.Rule {
		case schema.RuleFirstName:
			first = f.Path
		case schema.RuleLastName:
			last = f.Path
		}
	}
	return first, last
}

// walk visits every string leaf outside the subject and contacts sections.
// The exclusion is by path prefix: those sections were already handled
// structurally and must not be re-processed.
func (s *Scrubber) walk(n *document.Node, path document.Path, fn func(string) string) {
	if path.HasPrefix(s.tab.SubjectRoot) || path.HasPrefix(s.tab.ContactsRoot) {
		return
	}
	switch n.Kind() {
	case document.KindMap:
		for _, key := range n.Keys() {
			child, _ := n.Child(key)
			childPath := path.Child(key)
			if child.Kind() == document.KindScalar {
				if text, isStr := child.String(); isStr {
					if out := fn(text); out != text {
						n.SetChild(key, document.NewScalar(out))
					}
				}
				continue
			}
			s.walk(child, childPath, fn)
		}
	case document.KindSeq:
		for i, elem := range n.Elems() {
			if elem.Kind() == document.KindScalar {
				if text, isStr := elem.String(); isStr {
					if out := fn(text); out != text {
						n.Elems()[i] = document.NewScalar(out)
					}
				}
				continue
			}
			s.walk(elem, path, fn)
		}
	}
}

// buildVariants enumerates the deduplicated surface forms of the subject's
// name, each paired with the alias form of the same shape.
func buildVariants(origFirst, origLast, aliasFirst, aliasLast string) []variant {
	variants := []variant{
		{form: origLast, replacement: aliasLast},
		{form: origFirst, replacement: aliasFirst},
		{form: origFirst + " " + origLast, replacement: aliasFirst + " " + aliasLast},
		{form: origLast + " " + origFirst, replacement: aliasLast + " " + aliasFirst},
	}
	for _, civ := range civilityPrefixes {
		variants = append(variants,
			variant{form: civ + " " + origLast, replacement: civ + " " + aliasLast},
			variant{form: civ + " " + origFirst + " " + origLast, replacement: civ + " " + aliasFirst + " " + aliasLast},
		)
	}

	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, v := range variants {
		key := foldValue(v.form)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// variantMatcher matches the folded forms of all variants in one
// alternation, longest form first so "Mme Moreau" wins over "Moreau".
type variantMatcher struct {
	re     *regexp.Regexp
	byFold map[string]variant
}

func compileVariants(variants []variant) *variantMatcher {
	byFold := make(map[string]variant, len(variants))
	folds := make([]string, 0, len(variants))
	for _, v := range variants {
		f := foldValue(v.form)
		byFold[f] = v
		folds = append(folds, f)
	}
	sort.Slice(folds, func(i, j int) bool { return len(folds[i]) > len(folds[j]) })

	quoted := make([]string, len(folds))
	for i, f := range folds {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return &variantMatcher{
		re:     regexp.MustCompile(strings.Join(quoted, "|")),
		byFold: byFold,
	}
}

// scrub substitutes every word-bounded variant occurrence in text. The
// match runs over the folded text; replacements splice into the original so
// surrounding punctuation and casing survive. Each substitution records
// {alias form -> matched surface form} in the mapping and writes back the
// key Insert returns.
func (vm *variantMatcher) scrub(text string, m *mapping.Mapping) (string, int) {
	f := fold(text)
	matches := vm.re.FindAllStringIndex(f.text, -1)
	if len(matches) == 0 {
		return text, 0
	}

	out := text
	count := 0
	// Right to left so earlier source offsets stay valid while splicing.
	for i := len(matches) - 1; i >= 0; i-- {
		from, to := matches[i][0], matches[i][1]
		if !f.wordBounded(from, to) {
			continue
		}
		v, ok := vm.byFold[f.text[from:to]]
		if !ok {
			continue
		}
		srcFrom, srcTo := f.srcSpan(from, to)
		surface := text[srcFrom:srcTo]
		key := m.Insert(v.replacement, surface)
		out = out[:srcFrom] + key + out[srcTo:]
		count++
	}
	return out, count
}

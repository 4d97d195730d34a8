package anonymizer

import (
	"github.com/carenotes/veil/internal/document"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/mapping"
	"github.com/carenotes/veil/internal/persona"
	"github.com/carenotes/veil/internal/schema"
	"go.uber.org/zap"
)

// birthDateLayout is the date format used by the record layout.
const birthDateLayout = "02/01/2006"

// familySituationText replaces a non-empty family situation. Free-form
// family descriptions can identify a household, so they are neutralized
// with fixed text rather than a persona value.
const familySituationText = "Vit seul(e)"

var maleTokens = map[string]bool{
	"m": true, "m.": true, "h": true, "masculin": true, "homme": true,
	"mr": true, "monsieur": true,
}

var femaleTokens = map[string]bool{
	"f": true, "feminin": true, "femme": true,
	"mme": true, "madame": true, "mlle": true, "mademoiselle": true,
}

// genderFromToken normalizes a sex or civility value against the known
// token sets.
func genderFromToken(s string) persona.Gender {
	v := foldValue(s)
	switch {
	case maleTokens[v]:
		return persona.Male
	case femaleTokens[v]:
		return persona.Female
	default:
		return persona.Unknown
	}
}

// Replacer overwrites the declared identity fields with persona values,
// recording every substitution in the mapping.
type Replacer struct {
	tab *schema.Table
	gen *persona.Generator
	log *logger.Logger
}

// NewReplacer creates a replacer over the declared schema.
func NewReplacer(tab *schema.Table, gen *persona.Generator, log *logger.Logger) *Replacer {
	return &Replacer{tab: tab, gen: gen, log: log}
}

// AnonymizeSubject replaces the subject's identity fields. Returns the
// number of fields that entered the mapping.
func (r *Replacer) AnonymizeSubject(doc *document.Node, m *mapping.Mapping) int {
	gender := r.subjectGender(doc)
	p := r.gen.New(gender)

	masked := 0
	for _, f := range r.tab.Subject {
		if r.applyField(doc, f, p, m) {
			masked++
		}
	}
	r.log.Debug("subject anonymized",
		zap.String("gender", gender.String()),
		zap.Int("fields_masked", masked))
	return masked
}

// AnonymizeContacts replaces identity fields of every contact entry, one
// persona per entry. Zero contacts is not an error.
func (r *Replacer) AnonymizeContacts(doc *document.Node, m *mapping.Mapping) int {
	contacts, ok := doc.Resolve(r.tab.ContactsRoot)
	if !ok || contacts.Kind() != document.KindSeq {
		return 0
	}

	masked := 0
	for _, elem := range contacts.Elems() {
		if elem.Kind() != document.KindMap {
			continue
		}
		p := r.gen.New(r.contactGender(elem))
		for _, f := range r.tab.Contact {
			if r.tab.Passthrough[lastKey(f.Path)] {
				continue
			}
			if r.applyField(elem, f, p, m) {
				masked++
			}
		}
	}
	r.log.Debug("contacts anonymized",
		zap.Int("contacts", len(contacts.Elems())),
		zap.Int("fields_masked", masked))
	return masked
}

// subjectGender reads the sex field first, then falls back to civility.
func (r *Replacer) subjectGender(doc *document.Node) persona.Gender {
	if s, ok := doc.StringAt(r.tab.SexPath); ok {
		if g := genderFromToken(s); g != persona.Unknown {
			return g
		}
	}
	if s, ok := doc.StringAt(r.tab.CivilityPath); ok {
		return genderFromToken(s)
	}
	return persona.Unknown
}

func (r *Replacer) contactGender(elem *document.Node) persona.Gender {
	if sex, ok := elem.Child(r.tab.ContactSexKey); ok {
		if s, isStr := sex.String(); isStr {
			if g := genderFromToken(s); g != persona.Unknown {
				return g
			}
		}
	}
	if civ, ok := elem.Child(r.tab.ContactCivilityKey); ok {
		if s, isStr := civ.String(); isStr {
			return genderFromToken(s)
		}
	}
	return persona.Unknown
}

// applyField performs the per-path replacement contract: absent paths and
// mis-shaped locations are skipped, sentinel values get the neutral
// placeholder without touching the mapping, and real values are replaced by
// the key returned from Mapping.Insert so document and mapping agree even
// after collision suffixing. Reports whether the mapping was extended.
func (r *Replacer) applyField(root *document.Node, f schema.Field, p *persona.Persona, m *mapping.Mapping) bool {
	node, ok := root.Resolve(f.Path)
	if !ok || node.Kind() != document.KindScalar {
		return false
	}
	if isSentinel(node) {
		root.SetString(f.Path, NeutralPlaceholder)
		return false
	}
	original, ok := node.String()
	if !ok {
		return false
	}

	alias := aliasFor(f.Rule, p)
	key := m.Insert(alias, original)
	root.SetString(f.Path, key)
	return true
}

// aliasFor picks the synthetic value for a rule. Birth dates come from the
// persona's synthetic date so the substituted text stays a valid date.
func aliasFor(rule schema.Rule, p *persona.Persona) string {
	switch rule {
	case schema.RuleFirstName:
		return p.FirstName
	case schema.RuleLastName, schema.RuleBirthName:
		return p.LastName
	case schema.RuleCivility:
		return p.Civility
	case schema.RuleBirthDate:
		return p.BirthDate.Format(birthDateLayout)
	case schema.RuleStreet:
		return p.Street
	case schema.RulePostalCode:
		return p.PostalCode
	case schema.RuleCity:
		return p.City
	case schema.RuleClientID:
		return p.ClientID
	case schema.RuleAccessNote:
		return p.AccessNote
	case schema.RuleFamilySituation:
		return familySituationText
	default:
		return NeutralPlaceholder
	}
}

func lastKey(p document.Path) string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1].Key
}

// Package schema declares, as static tables, every document location the
// engine acts upon: the semantic identity fields the replacer overwrites,
// the deny-list the cleaner strips, and the whitelist of keys that must
// survive cleaning. Changing the upstream record layout means editing these
// tables, never the algorithms.
package schema

import (
	"fmt"

	"github.com/carenotes/veil/internal/document"
)

// Rule identifies which synthetic value replaces a field.
type Rule int

const (
	RuleFirstName Rule = iota
	RuleLastName
	RuleBirthName
	RuleCivility
	RuleBirthDate
	RuleStreet
	RulePostalCode
	RuleCity
	RuleClientID
	RuleAccessNote
	RuleFamilySituation
)

var ruleNames = map[Rule]string{
	RuleFirstName:       "first_name",
	RuleLastName:        "last_name",
	RuleBirthName:       "birth_name",
	RuleCivility:        "civility",
	RuleBirthDate:       "birth_date",
	RuleStreet:          "street",
	RulePostalCode:      "postal_code",
	RuleCity:            "city",
	RuleClientID:        "client_id",
	RuleAccessNote:      "access_note",
	RuleFamilySituation: "family_situation",
}

func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// Field binds a semantic name to a document path and a replacement rule.
type Field struct {
	Name string
	Path document.Path
	Rule Rule
}

// Table is the complete declared-path configuration. Subject paths are
// absolute; Contact paths are relative to one element of the contacts
// sequence.
type Table struct {
	SubjectRoot  document.Path
	ContactsRoot document.Path

	Subject []Field
	Contact []Field

	// Deny lists fields removed outright by the cleaner: internal
	// identifiers and raw contact channels superseded by structured fields.
	Deny        []document.Path
	ContactDeny []document.Path

	// PreserveNull keys must stay present (as explicit null) even when
	// their value is non-informative; downstream consumers key on presence.
	PreserveNull map[string]bool

	// Passthrough contact keys carry no identity and are never replaced.
	Passthrough map[string]bool

	// Gender detection sources, in priority order.
	SexPath      document.Path
	CivilityPath document.Path

	ContactSexKey      string
	ContactCivilityKey string
}

// Default returns the table matching the current record layout.
func Default() *Table {
	p := document.ParsePath
	return &Table{
		SubjectRoot:  p("usager"),
		ContactsRoot: p("contacts"),

		Subject: []Field{
			{Name: "subject_civility", Path: p("usager.civilite"), Rule: RuleCivility},
			{Name: "subject_last_name", Path: p("usager.nom"), Rule: RuleLastName},
			{Name: "subject_birth_name", Path: p("usager.nom_naissance"), Rule: RuleBirthName},
			{Name: "subject_first_name", Path: p("usager.prenom"), Rule: RuleFirstName},
			{Name: "subject_birth_date", Path: p("usager.date_naissance"), Rule: RuleBirthDate},
			{Name: "subject_street", Path: p("usager.adresse.rue"), Rule: RuleStreet},
			{Name: "subject_postal_code", Path: p("usager.adresse.code_postal"), Rule: RulePostalCode},
			{Name: "subject_city", Path: p("usager.adresse.ville"), Rule: RuleCity},
			{Name: "subject_client_id", Path: p("usager.numero_client"), Rule: RuleClientID},
			{Name: "subject_family_situation", Path: p("usager.situation_familiale"), Rule: RuleFamilySituation},
			{Name: "subject_access_note", Path: p("usager.commentaire_acces"), Rule: RuleAccessNote},
		},

		Contact: []Field{
			{Name: "contact_civility", Path: p("civilite"), Rule: RuleCivility},
			{Name: "contact_last_name", Path: p("nom"), Rule: RuleLastName},
			{Name: "contact_first_name", Path: p("prenom"), Rule: RuleFirstName},
			{Name: "contact_birth_date", Path: p("date_naissance"), Rule: RuleBirthDate},
		},

		Deny: []document.Path{
			p("usager.id_interne"),
			p("usager.nir"),
			p("usager.telephone"),
			p("usager.email"),
			p("usager.code_commune_naissance"),
			p("id_dossier"),
		},
		ContactDeny: []document.Path{
			p("telephone"),
			p("email"),
		},

		PreserveNull: map[string]bool{
			"nom":            true,
			"prenom":         true,
			"date_naissance": true,
			"adresse":        true,
		},

		Passthrough: map[string]bool{
			"type_contact":       true,
			"role":               true,
			"nature_lien":        true,
			"personne_confiance": true,
			"tuteur_legal":       true,
		},

		SexPath:      p("usager.sexe"),
		CivilityPath: p("usager.civilite"),

		ContactSexKey:      "sexe",
		ContactCivilityKey: "civilite",
	}
}

// Validate checks the table for the mistakes a schema edit can introduce:
// empty or duplicate paths and unnamed fields. Run once at startup.
func (t *Table) Validate() error {
	if len(t.SubjectRoot) == 0 {
		return fmt.Errorf("schema: empty subject root")
	}
	if len(t.ContactsRoot) == 0 {
		return fmt.Errorf("schema: empty contacts root")
	}
	seen := make(map[string]string)
	check := func(fields []Field, scope string) error {
		for _, f := range fields {
			if f.Name == "" {
				return fmt.Errorf("schema: unnamed %s field at %q", scope, f.Path.String())
			}
			if len(f.Path) == 0 {
				return fmt.Errorf("schema: %s field %q has an empty path", scope, f.Name)
			}
			key := scope + ":" + f.Path.String()
			if prev, dup := seen[key]; dup {
				return fmt.Errorf("schema: %s path %q declared by both %q and %q", scope, f.Path.String(), prev, f.Name)
			}
			seen[key] = f.Name
		}
		return nil
	}
	if err := check(t.Subject, "subject"); err != nil {
		return err
	}
	if err := check(t.Contact, "contact"); err != nil {
		return err
	}
	for _, p := range append(append([]document.Path{}, t.Deny...), t.ContactDeny...) {
		if len(p) == 0 {
			return fmt.Errorf("schema: empty deny-list path")
		}
	}
	return nil
}

package anonymizer

import (
	"strings"
	"testing"

	"github.com/carenotes/veil/internal/config"
	"github.com/carenotes/veil/internal/document"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/mapping"
	"github.com/carenotes/veil/internal/schema"
)

const recordJSON = `{
	"id_dossier": "D-8841",
	"usager": {
		"civilite": "Mme",
		"nom": "Quillebeuf",
		"prenom": "Apolline",
		"sexe": "F",
		"date_naissance": "03/09/1938",
		"nir": "2380938012345",
		"telephone": "0478123456",
		"adresse": {"rue": "12 rue des Acacias", "code_postal": "69100", "ville": "Villeurbanne"},
		"numero_client": "00123456",
		"situation_familiale": "veuve",
		"profession": "non renseigné"
	},
	"contacts": [
		{"civilite": "M.", "nom": "Quillebeuf", "prenom": "Barnabé", "type_contact": "famille", "telephone": "0612345678"}
	],
	"transmissions": [
		{"texte": "Mme Quillebeuf a bien dormi. Apolline se plaint du genou."}
	]
}`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.EngineConfig{}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEngineAnonymize(t *testing.T) {
	e := newTestEngine(t)
	doc := parseDoc(t, recordJSON)

	result, err := e.Anonymize(doc)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}

	t.Run("no original identity survives", func(t *testing.T) {
		flat := result.Doc.Flatten()
		for _, leaked := range []string{
			"Quillebeuf", "Apolline", "Barnabé", "03/09/1938", "2380938012345",
			"0478123456", "0612345678", "Acacias", "Villeurbanne", "00123456",
			"veuve", "D-8841",
		} {
			if strings.Contains(flat, leaked) {
				t.Errorf("original value %q survives in output:\n%s", leaked, flat)
			}
		}
	})

	t.Run("counters are populated", func(t *testing.T) {
		if result.FieldsMasked == 0 {
			t.Error("no fields masked")
		}
		if result.MentionsMasked == 0 {
			t.Error("no free-text mentions masked")
		}
		if result.Mapping.Len() == 0 {
			t.Error("empty mapping")
		}
	})

	t.Run("nil document is rejected", func(t *testing.T) {
		if _, err := e.Anonymize(nil); err != ErrNilDocument {
			t.Errorf("expected ErrNilDocument, got %v", err)
		}
	})
}

func TestEngineRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	doc := parseDoc(t, recordJSON)

	result, err := e.Anonymize(doc)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}

	// Simulate model output quoting the masked narrative and structured
	// fields, then restore it.
	aliasLast, _ := result.Doc.StringAt(document.ParsePath("usager.nom"))
	aliasFirst, _ := result.Doc.StringAt(document.ParsePath("usager.prenom"))
	aliasDate, _ := result.Doc.StringAt(document.ParsePath("usager.date_naissance"))

	modelOutput := "Synthèse : Mme " + aliasLast + " (" + aliasFirst + "), née le " + aliasDate +
		", a bien dormi. Surveiller le genou de " + aliasFirst + "."

	restored, reverse := e.Deanonymize(modelOutput, result.Mapping)

	for _, want := range []string{"Quillebeuf", "Apolline", "03/09/1938"} {
		if !strings.Contains(restored, want) {
			t.Errorf("restored text missing %q:\n%s", want, restored)
		}
	}
	if strings.Contains(restored, aliasLast) || strings.Contains(restored, aliasDate) {
		t.Errorf("aliases survive restoration:\n%s", restored)
	}
	if reverse["Quillebeuf"] == "" {
		t.Error("reverse mapping missing subject surname")
	}
}

func TestEngineAccumulatesAcrossTurns(t *testing.T) {
	e := newTestEngine(t)
	m := mapping.New()

	first := parseDoc(t, recordJSON)
	r1, err := e.AnonymizeWith(first, m)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	entriesAfterFirst := r1.Mapping.Len()

	// Second record in the same session mentions a different person with
	// potential for alias collisions against the first turn's entries.
	second := parseDoc(t, `{
		"usager": {"civilite": "M.", "nom": "Lefort", "prenom": "Barnabé", "sexe": "M"},
		"transmissions": [{"texte": "Lefort a refusé le repas."}]
	}`)
	r2, err := e.AnonymizeWith(second, m)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}

	if r2.Mapping != m {
		t.Fatal("engine swapped the session mapping")
	}
	if m.Len() <= entriesAfterFirst {
		t.Error("second turn did not extend the mapping")
	}

	// Aliases from turn one still resolve.
	aliasLast, _ := r1.Doc.StringAt(document.ParsePath("usager.nom"))
	if orig, _ := m.Original(aliasLast); orig != "Quillebeuf" {
		t.Errorf("first-turn alias lost: %q -> %q", aliasLast, orig)
	}
}

func TestNewWithSchemaRejectsBadTable(t *testing.T) {
	tab := schema.Default()
	tab.SubjectRoot = nil
	if _, err := NewWithSchema(config.EngineConfig{}, tab, logger.Nop()); err == nil {
		t.Error("expected error for invalid table")
	}
}

package anonymizer

import (
	"testing"

	"github.com/carenotes/veil/internal/document"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/schema"
)

func newTestCleaner(t *testing.T, trace bool) *Cleaner {
	t.Helper()
	return NewCleaner(schema.Default(), trace, logger.Nop())
}

func parseDoc(t *testing.T, data string) *document.Node {
	t.Helper()
	doc, err := document.FromJSON([]byte(data))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	return doc
}

func TestCleanRemovesSentinels(t *testing.T) {
	doc := parseDoc(t, `{
		"usager": {
			"nom": "Gérard",
			"profession": "Non renseigné",
			"lieu_naissance": "NULL",
			"commentaire": "néant",
			"notes": ""
		}
	}`)

	newTestCleaner(t, false).Clean(doc)

	for _, key := range []string{"profession", "lieu_naissance", "commentaire", "notes"} {
		if _, ok := doc.Resolve(document.ParsePath("usager." + key)); ok {
			t.Errorf("sentinel field %q survived cleaning", key)
		}
	}
	if v, _ := doc.StringAt(document.ParsePath("usager.nom")); v != "Gérard" {
		t.Errorf("informative field altered: %q", v)
	}
}

func TestCleanPreservesWhitelistedKeysAsNull(t *testing.T) {
	doc := parseDoc(t, `{
		"usager": {
			"nom": "non renseigné",
			"prenom": null,
			"profession": null
		}
	}`)

	newTestCleaner(t, false).Clean(doc)

	for _, key := range []string{"nom", "prenom"} {
		node, ok := doc.Resolve(document.ParsePath("usager." + key))
		if !ok {
			t.Errorf("whitelisted key %q removed", key)
			continue
		}
		if v, _ := node.Value(); v != nil {
			t.Errorf("whitelisted key %q holds %v, want null", key, v)
		}
	}
	if _, ok := doc.Resolve(document.ParsePath("usager.profession")); ok {
		t.Error("non-whitelisted null survived")
	}
}

func TestCleanRemovesDeniedFields(t *testing.T) {
	doc := parseDoc(t, `{
		"id_dossier": "D-1234",
		"usager": {
			"nom": "Gérard",
			"nir": "1380478006048",
			"telephone": "0612345678",
			"email": "paulette@example.fr"
		},
		"contacts": [
			{"nom": "Lefort", "telephone": "0798765432", "email": "l@example.fr"}
		]
	}`)

	newTestCleaner(t, false).Clean(doc)

	for _, p := range []string{"id_dossier", "usager.nir", "usager.telephone", "usager.email"} {
		if _, ok := doc.Resolve(document.ParsePath(p)); ok {
			t.Errorf("denied field %q survived", p)
		}
	}
	contact, ok := doc.Resolve(document.ParsePath("contacts.0"))
	if !ok {
		t.Fatal("contact entry vanished")
	}
	if _, ok := contact.Child("telephone"); ok {
		t.Error("contact telephone survived")
	}
	if _, ok := contact.Child("nom"); !ok {
		t.Error("contact name removed")
	}
}

func TestCleanPrunesEmptiedContainers(t *testing.T) {
	doc := parseDoc(t, `{
		"usager": {"nom": "Gérard"},
		"historique": [{"note": "non renseigné"}, {"note": ""}],
		"divers": {"a": null}
	}`)

	newTestCleaner(t, false).Clean(doc)

	if _, ok := doc.Resolve(document.ParsePath("historique")); ok {
		t.Error("emptied sequence survived")
	}
	if _, ok := doc.Resolve(document.ParsePath("divers")); ok {
		t.Error("emptied mapping survived")
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	doc := parseDoc(t, `{
		"usager": {"nom": "Gérard", "prenom": null, "profession": "néant"},
		"historique": [{"note": ""}]
	}`)

	c := newTestCleaner(t, false)
	c.Clean(doc)
	first := doc.Flatten()
	c.Clean(doc)
	if doc.Flatten() != first {
		t.Errorf("second clean changed the document:\nfirst:\n%s\nsecond:\n%s", first, doc.Flatten())
	}
}

func TestCleanTrace(t *testing.T) {
	raw := `{"usager": {"nom": "Gérard", "profession": "néant", "nir": "138047"}}`

	traced := parseDoc(t, raw)
	trace := newTestCleaner(t, true).Clean(traced)
	if len(trace) == 0 {
		t.Fatal("expected trace lines")
	}

	// Tracing must not change the outcome.
	silent := parseDoc(t, raw)
	if got := newTestCleaner(t, false).Clean(silent); got != nil {
		t.Errorf("trace disabled but got %d lines", len(got))
	}
	if traced.Flatten() != silent.Flatten() {
		t.Error("tracing changed the cleaned document")
	}
}

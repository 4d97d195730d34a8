package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carenotes/veil/internal/anonymizer"
	"github.com/carenotes/veil/internal/audit"
	"github.com/carenotes/veil/internal/config"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/mapping"
	"github.com/carenotes/veil/internal/session"
)

const recordJSON = `{
	"usager": {
		"civilite": "Mme",
		"nom": "Quillebeuf",
		"prenom": "Apolline",
		"sexe": "F",
		"nir": "2380938012345"
	},
	"transmissions": [{"texte": "Mme Quillebeuf a bien dormi."}]
}`

func newTestServer(t *testing.T) (*Server, session.Store) {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = false

	engine, err := anonymizer.New(cfg.Engine, logger.Nop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	store := session.NewMemoryStore()
	srv, err := New(cfg, logger.Nop(), engine, store, audit.Nop{})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return srv, store
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleAnonymize(t *testing.T) {
	srv, store := newTestServer(t)

	rec := do(srv, http.MethodPost, "/v1/sessions/s1/anonymize", recordJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Document       map[string]any `json:"document"`
		Text           string         `json:"text"`
		FieldsMasked   int            `json:"fieldsMasked"`
		MentionsMasked int            `json:"mentionsMasked"`
		MappingEntries int            `json:"mappingEntries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if strings.Contains(resp.Text, "Quillebeuf") || strings.Contains(resp.Text, "Apolline") {
		t.Errorf("original identity in flat text:\n%s", resp.Text)
	}
	if strings.Contains(resp.Text, "2380938012345") {
		t.Error("denied field in flat text")
	}
	if resp.FieldsMasked == 0 || resp.MappingEntries == 0 {
		t.Errorf("counters empty: %+v", resp)
	}

	// The mapping must be persisted for the session.
	m, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if m.Len() != resp.MappingEntries {
		t.Errorf("stored %d entries, response says %d", m.Len(), resp.MappingEntries)
	}
}

func TestHandleAnonymizeRejectsBadDocument(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(srv, http.MethodPost, "/v1/sessions/s1/anonymize", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleDeanonymize(t *testing.T) {
	srv, store := newTestServer(t)

	t.Run("restores from the session mapping", func(t *testing.T) {
		m := mapping.New()
		m.Insert("Hugo", "Quillebeuf")
		store.Set(context.Background(), "s2", m)

		rec := do(srv, http.MethodPost, "/v1/sessions/s2/deanonymize",
			`{"text": "Mme Hugo est stable."}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp struct {
			Text string `json:"text"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Text != "Mme Quillebeuf est stable." {
			t.Errorf("got %q", resp.Text)
		}
	})

	t.Run("unknown session passes text through", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/v1/sessions/fresh/deanonymize",
			`{"text": "Mme Hugo est stable."}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp struct {
			Text string `json:"text"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Text != "Mme Hugo est stable." {
			t.Errorf("got %q", resp.Text)
		}
	})
}

func TestAnonymizeThenDeanonymizeAcrossTurns(t *testing.T) {
	srv, store := newTestServer(t)

	// Two records in the same session, then restore text quoting the first.
	if rec := do(srv, http.MethodPost, "/v1/sessions/s3/anonymize", recordJSON); rec.Code != http.StatusOK {
		t.Fatalf("first turn: %d", rec.Code)
	}
	second := `{"usager": {"civilite": "M.", "nom": "Lefort", "prenom": "Barnabé", "sexe": "M"}}`
	if rec := do(srv, http.MethodPost, "/v1/sessions/s3/anonymize", second); rec.Code != http.StatusOK {
		t.Fatalf("second turn: %d", rec.Code)
	}

	// Find the alias the first turn gave the subject's surname.
	m, err := store.Get(context.Background(), "s3")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	var surnameAlias string
	m.Walk(func(alias, original string) {
		if original == "Quillebeuf" && surnameAlias == "" {
			surnameAlias = alias
		}
	})
	if surnameAlias == "" {
		t.Fatal("first-turn surname alias lost after second turn")
	}

	rec := do(srv, http.MethodPost, "/v1/sessions/s3/deanonymize", mustMarshal(t, map[string]string{
		"text": "Mme " + surnameAlias + " est suivie depuis hier.",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("deanonymize: %d", rec.Code)
	}
	var resp struct {
		Text string `json:"text"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Text != "Mme Quillebeuf est suivie depuis hier." {
		t.Errorf("got %q", resp.Text)
	}
}

func TestHandleClearSession(t *testing.T) {
	srv, store := newTestServer(t)

	m := mapping.New()
	m.Insert("Hugo", "Quillebeuf")
	store.Set(context.Background(), "s4", m)

	rec := do(srv, http.MethodDelete, "/v1/sessions/s4", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := store.Get(context.Background(), "s4"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("session survives clear: %v", err)
	}
}

func TestHandleAnonymizeRefusesWhenStoreFails(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = false
	engine, _ := anonymizer.New(cfg.Engine, logger.Nop())
	srv, err := New(cfg, logger.Nop(), engine, failingStore{}, audit.Nop{})
	if err != nil {
		t.Fatalf("server: %v", err)
	}

	rec := do(srv, http.MethodPost, "/v1/sessions/s5/anonymize", recordJSON)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503: masked output must not leave without a stored mapping", rec.Code)
	}
}

func TestHealthAndInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := do(srv, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	rec := do(srv, http.MethodGet, "/info", "")
	if rec.Code != http.StatusOK {
		t.Errorf("info status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "veil") {
		t.Errorf("info body: %s", rec.Body.String())
	}
}

func mustMarshal(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// failingStore simulates a session backend outage.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, id string) (*mapping.Mapping, error) {
	return nil, session.ErrNotFound
}

func (failingStore) Set(ctx context.Context, id string, m *mapping.Mapping) error {
	return errors.New("backend down")
}

func (failingStore) Clear(ctx context.Context, id string) error { return errors.New("backend down") }
func (failingStore) Close() error                               { return nil }

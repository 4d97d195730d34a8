package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carenotes/veil/internal/anonymizer"
	"github.com/carenotes/veil/internal/audit"
	"github.com/carenotes/veil/internal/document"
	"github.com/carenotes/veil/internal/mapping"
	"github.com/carenotes/veil/internal/session"
	"github.com/carenotes/veil/internal/websocket"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBodySize bounds request bodies; patient records are small.
const maxBodySize = 4 << 20 // 4 MB

type anonymizeResponse struct {
	Document       any      `json:"document"`
	Text           string   `json:"text"`
	FieldsMasked   int      `json:"fieldsMasked"`
	MentionsMasked int      `json:"mentionsMasked"`
	MappingEntries int      `json:"mappingEntries"`
	Trace          []string `json:"trace,omitempty"`
}

type deanonymizeRequest struct {
	Text string `json:"text"`
}

type deanonymizeResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleAnonymize masks one record for the session, extends and persists
// the session's mapping, and returns the masked document plus its flat text
// form for the model boundary.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := mux.Vars(r)["id"]
	log := s.logger.WithSession(sessionID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	doc, err := document.FromJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid document: %v", err))
		return
	}

	m, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Error("Session lookup failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		m = mapping.New()
	}

	result, err := s.engine.AnonymizeWith(doc, m)
	if err != nil {
		if errors.Is(err, anonymizer.ErrNilDocument) {
			writeError(w, http.StatusBadRequest, "empty document")
			return
		}
		log.Error("Anonymization failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "anonymization failed")
		return
	}

	if err := s.sessions.Set(r.Context(), sessionID, result.Mapping); err != nil {
		// Refusing the response matters more than the lost work: returning
		// masked text without a stored mapping would make it irreversible.
		log.Error("Failed to persist session mapping", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	s.observe(r.Context(), sessionID, "anonymize", result.FieldsMasked, result.MentionsMasked, time.Since(start))

	writeJSON(w, http.StatusOK, anonymizeResponse{
		Document:       result.Doc.Interface(),
		Text:           result.Doc.Flatten(),
		FieldsMasked:   result.FieldsMasked,
		MentionsMasked: result.MentionsMasked,
		MappingEntries: result.Mapping.Len(),
		Trace:          result.Trace,
	})
}

// handleDeanonymize restores original values in model output. A session
// with no stored mapping restores nothing, which mirrors the engine's
// empty-mapping contract.
func (s *Server) handleDeanonymize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := mux.Vars(r)["id"]
	log := s.logger.WithSession(sessionID)

	var req deanonymizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	m, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Error("Session lookup failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		m = mapping.New()
	}

	restored, _ := s.engine.Deanonymize(req.Text, m)

	s.observe(r.Context(), sessionID, "deanonymize", 0, 0, time.Since(start))

	writeJSON(w, http.StatusOK, deanonymizeResponse{Text: restored})
}

// handleClearSession drops the session's mapping (logout).
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.sessions.Clear(r.Context(), sessionID); err != nil {
		s.logger.WithSession(sessionID).Error("Failed to clear session", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	s.observe(r.Context(), sessionID, "clear", 0, 0, 0)
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":            "veil",
		"version":         "0.1.0",
		"session_backend": s.config.Session.Backend,
		"audit_enabled":   s.config.Audit.Enabled,
		"trace_enabled":   s.config.Engine.Trace,
	})
}

// handleWebSocket hands the connection to the event hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// observe fans one engine invocation out to the audit sink and the
// dashboard feed. Both are best-effort.
func (s *Server) observe(ctx context.Context, sessionID, operation string, fields, mentions int, d time.Duration) {
	if s.auditor != nil {
		_ = s.auditor.Record(ctx, audit.Event{
			SessionID:      sessionID,
			Operation:      operation,
			FieldsMasked:   fields,
			MentionsMasked: mentions,
			Duration:       d,
		})
	}
	s.wsHub.BroadcastMasking(websocket.MaskingEvent{
		SessionID:      sessionID,
		Operation:      operation,
		FieldsMasked:   fields,
		MentionsMasked: mentions,
		DurationMS:     d.Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

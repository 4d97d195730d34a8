// Package audit records one row per engine invocation for compliance
// review: which session was processed, what operation ran, and how many
// fields and mentions were masked. Rows carry counters only; no original or
// synthetic value is ever written to the database.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carenotes/veil/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Event is one audit row.
type Event struct {
	ID             int64         `db:"id"`
	SessionID      string        `db:"session_id"`
	Operation      string        `db:"operation"` // anonymize, deanonymize, clear
	FieldsMasked   int           `db:"fields_masked"`
	MentionsMasked int           `db:"mentions_masked"`
	Duration       time.Duration `db:"duration_us"`
	CreatedAt      time.Time     `db:"created_at"`
}

// Recorder is the audit surface the gateway writes to.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events; used when auditing is disabled.
type Nop struct{}

func (Nop) Record(ctx context.Context, ev Event) error { return nil }
func (Nop) Close() error                               { return nil }

const createTable = `
CREATE TABLE IF NOT EXISTS masking_events (
	id              BIGSERIAL PRIMARY KEY,
	session_id      TEXT NOT NULL,
	operation       TEXT NOT NULL,
	fields_masked   INTEGER NOT NULL DEFAULT 0,
	mentions_masked INTEGER NOT NULL DEFAULT 0,
	duration_us     BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store writes events to PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to the database and ensures the events table exists.
func NewStore(cfg config.AuditConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return store, nil
}

// Record inserts one event. Failures are returned but callers treat audit
// as best-effort: a failed insert never fails the request.
func (s *Store) Record(ctx context.Context, ev Event) error {
	query := `
		INSERT INTO masking_events (session_id, operation, fields_masked, mentions_masked, duration_us)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		ev.SessionID,
		ev.Operation,
		ev.FieldsMasked,
		ev.MentionsMasked,
		ev.Duration.Microseconds(),
	)
	if err != nil {
		s.logger.Error("Failed to record audit event",
			zap.Error(err),
			zap.String("operation", ev.Operation))
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// RecentBySession returns the latest events for a session, newest first.
func (s *Store) RecentBySession(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	query := `
		SELECT id, session_id, operation, fields_masked, mentions_masked, duration_us, created_at
		FROM masking_events
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var rows []struct {
		ID             int64     `db:"id"`
		SessionID      string    `db:"session_id"`
		Operation      string    `db:"operation"`
		FieldsMasked   int       `db:"fields_masked"`
		MentionsMasked int       `db:"mentions_masked"`
		DurationUS     int64     `db:"duration_us"`
		CreatedAt      time.Time `db:"created_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	events := make([]Event, len(rows))
	for i, r := range rows {
		events[i] = Event{
			ID:             r.ID,
			SessionID:      r.SessionID,
			Operation:      r.Operation,
			FieldsMasked:   r.FieldsMasked,
			MentionsMasked: r.MentionsMasked,
			Duration:       time.Duration(r.DurationUS) * time.Microsecond,
			CreatedAt:      r.CreatedAt,
		}
	}
	return events, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks credentials in the database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if idx := strings.LastIndex(userPart, ":"); idx > strings.Index(userPart, "//")+1 {
				parts[0] = userPart[:idx] + ":***"
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}

// Package anonymizer implements the reversible pseudonymization pipeline:
// clean the record, overwrite the declared identity fields with persona
// values, scrub free-text mentions of the subject's name, and restore
// originals in model output from the accumulated mapping.
package anonymizer

import (
	"errors"
	"fmt"

	"github.com/carenotes/veil/internal/config"
	"github.com/carenotes/veil/internal/document"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/mapping"
	"github.com/carenotes/veil/internal/persona"
	"github.com/carenotes/veil/internal/schema"
	"go.uber.org/zap"
)

// ErrNilDocument is returned when Anonymize is invoked without a document.
// It is the one caller-visible error: everything else degrades to skipping
// a field or a pass.
var ErrNilDocument = errors.New("anonymizer: nil document")

// Result carries the outcome of one anonymization run. The document is the
// same tree the caller passed in, mutated in place.
type Result struct {
	Doc            *document.Node
	Mapping        *mapping.Mapping
	Trace          []string
	FieldsMasked   int
	MentionsMasked int
}

// Engine runs the pipeline for one document per call. It holds no mutable
// state across calls; concurrent sessions may share one Engine as long as
// each call owns its document and mapping.
type Engine struct {
	tab      *schema.Table
	cleaner  *Cleaner
	replacer *Replacer
	scrubber *Scrubber
	log      *logger.Logger
}

// New creates an engine over the default schema table.
func New(cfg config.EngineConfig, log *logger.Logger) (*Engine, error) {
	return NewWithSchema(cfg, schema.Default(), log)
}

// NewWithSchema creates an engine over a caller-supplied table, validated
// up front so a bad schema edit fails at startup rather than mid-request.
func NewWithSchema(cfg config.EngineConfig, tab *schema.Table, log *logger.Logger) (*Engine, error) {
	if err := tab.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field table: %w", err)
	}

	gen := persona.NewGenerator()
	engine := &Engine{
		tab:      tab,
		cleaner:  NewCleaner(tab, cfg.Trace, log.WithComponent("cleaner")),
		replacer: NewReplacer(tab, gen, log.WithComponent("replacer")),
		scrubber: NewScrubber(tab, log.WithComponent("scrubber")),
		log:      log,
	}

	log.Info("Anonymization engine initialized",
		zap.Int("subject_fields", len(tab.Subject)),
		zap.Int("contact_fields", len(tab.Contact)),
		zap.Bool("trace", cfg.Trace),
	)

	return engine, nil
}

// Anonymize runs the pipeline against a fresh mapping.
func (e *Engine) Anonymize(doc *document.Node) (*Result, error) {
	return e.AnonymizeWith(doc, mapping.New())
}

// AnonymizeWith runs clean -> subject -> contacts -> free-text over doc,
// mutating it in place and extending m. Passing the session's accumulated
// mapping keeps aliases collision-safe across conversational turns: Insert
// suffixes against everything already recorded.
func (e *Engine) AnonymizeWith(doc *document.Node, m *mapping.Mapping) (*Result, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if m == nil {
		m = mapping.New()
	}

	trace := e.cleaner.Clean(doc)

	fields := e.replacer.AnonymizeSubject(doc, m)
	fields += e.replacer.AnonymizeContacts(doc, m)
	mentions := e.scrubber.Scrub(doc, m)

	e.log.Info("Document anonymized",
		zap.Int("fields_masked", fields),
		zap.Int("mentions_masked", mentions),
		zap.Int("mapping_entries", m.Len()),
	)

	return &Result{
		Doc:            doc,
		Mapping:        m,
		Trace:          trace,
		FieldsMasked:   fields,
		MentionsMasked: mentions,
	}, nil
}

// Deanonymize restores original values in model output text using the
// mapping accumulated for the session.
func (e *Engine) Deanonymize(text string, m *mapping.Mapping) (string, map[string]string) {
	restored, reverse := Deanonymize(text, m)
	e.log.Debug("Model output deanonymized", zap.Int("mapping_entries", len(reverse)))
	return restored, reverse
}

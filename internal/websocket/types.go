package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType identifies the kind of event broadcast to dashboards.
type EventType string

const (
	EventTypeMasking EventType = "masking"
	EventTypeSystem  EventType = "system"
)

// Event is the envelope sent to connected clients.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// MaskingEvent reports one engine invocation. It carries counters only;
// masked values never leave the engine.
type MaskingEvent struct {
	SessionID      string `json:"sessionId"`
	Operation      string `json:"operation"`
	FieldsMasked   int    `json:"fieldsMasked"`
	MentionsMasked int    `json:"mentionsMasked"`
	DurationMS     int64  `json:"durationMs"`
}

// SystemEvent reports gateway lifecycle changes.
type SystemEvent struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client is one connected dashboard.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
}

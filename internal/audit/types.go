package audit

import "time"

// Outcome is how a webhook delivery was resolved.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAccepted, OutcomeDuplicate, OutcomeRejected, OutcomeFailed:
		return true
	}
	return false
}

// EventLevel represents the severity level of an audit event.
type EventLevel string

const (
	EventLevelDebug EventLevel = "DEBUG"
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

// AuditEvent is one journaled webhook delivery.
type AuditEvent struct {
	EventID    string         `json:"event_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Kind       string         `json:"kind"`
	TrackID    string         `json:"track_id"`
	Outcome    Outcome        `json:"outcome"`
	Level      EventLevel     `json:"level"`
	RequestID  *string        `json:"request_id,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Message    string         `json:"message"`
	Payload    map[string]any `json:"payload"`
}

// WriteEventInput contains the fields for journaling a delivery. Kind and
// TrackID are empty for payloads rejected before decoding finished.
type WriteEventInput struct {
	Kind       string         `json:"kind"`
	TrackID    string         `json:"track_id"`
	Outcome    Outcome        `json:"outcome"`
	Level      *EventLevel    `json:"level,omitempty"`
	RequestID  *string        `json:"request_id,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Message    string         `json:"message"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// EventQueryFilters contains optional filters for querying events.
type EventQueryFilters struct {
	Kind      *string     `json:"kind,omitempty"`
	Outcome   *Outcome    `json:"outcome,omitempty"`
	Level     *EventLevel `json:"level,omitempty"`
	TrackID   *string     `json:"track_id,omitempty"`
	StartDate *string     `json:"start_date,omitempty"` // RFC 3339
	EndDate   *string     `json:"end_date,omitempty"`   // RFC 3339
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}

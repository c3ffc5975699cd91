package audit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// TimestampLayout is the stored timestamp format. Fixed-width UTC keeps
// lexical and chronological order the same.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const eventColumns = `event_id, timestamp, kind, track_id, outcome, level, request_id, duration_ms, message, payload`

// DBPair is the reader/writer pool pair of the journal database.
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository stores journal rows. Writes go through the single-connection
// writer pool; queries use the reader pool.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
	now    func() time.Time
}

// NewRepository creates a Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer(), now: time.Now}
}

// InsertEvent journals one delivery and returns the stored row. Level
// defaults to INFO.
func (r *Repository) InsertEvent(input WriteEventInput) (*AuditEvent, error) {
	eventID := uuid.NewString()
	timestamp := FormatTimestamp(r.now())

	level := EventLevelInfo
	if input.Level != nil {
		level = *input.Level
	}

	payload := input.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	_, err = r.writer.Exec(`
		INSERT INTO audit_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, eventID, timestamp, input.Kind, input.TrackID, string(input.Outcome), string(level), input.RequestID, input.DurationMs, input.Message, string(payloadJSON))
	if err != nil {
		return nil, err
	}

	return r.GetEvent(eventID)
}

// GetEvent returns nil, nil for an unknown id.
func (r *Repository) GetEvent(eventID string) (*AuditEvent, error) {
	row := r.reader.QueryRow(`SELECT `+eventColumns+` FROM audit_events WHERE event_id = ?`, eventID)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

// QueryEvents retrieves events matching filters, newest first, along with
// the total number of matches.
func (r *Repository) QueryEvents(filters EventQueryFilters) ([]AuditEvent, int, error) {
	whereClause, args := buildWhereClause(filters)

	var total int
	if err := r.reader.QueryRow("SELECT COUNT(*) FROM audit_events "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	query := `SELECT ` + eventColumns + ` FROM audit_events ` + whereClause + `
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ? OFFSET ?`
	rows, err := r.reader.Query(query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// Prune deletes events older than the cutoff and returns the number removed.
func (r *Repository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.writer.Exec(`DELETE FROM audit_events WHERE timestamp < ?`, FormatTimestamp(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// FormatTimestamp renders t in the stored layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// whereTerm is one optional equality or range condition.
type whereTerm struct {
	condition string
	value     *string
}

func buildWhereClause(filters EventQueryFilters) (string, []any) {
	terms := []whereTerm{
		{"kind = ?", filters.Kind},
		{"outcome = ?", (*string)(filters.Outcome)},
		{"level = ?", (*string)(filters.Level)},
		{"track_id = ?", filters.TrackID},
		{"timestamp >= ?", filters.StartDate},
		{"timestamp <= ?", filters.EndDate},
	}
	present := lo.Filter(terms, func(term whereTerm, _ int) bool { return term.value != nil })
	if len(present) == 0 {
		return "", nil
	}

	conditions := lo.Map(present, func(term whereTerm, _ int) string { return term.condition })
	args := lo.Map(present, func(term whereTerm, _ int) any { return *term.value })
	return "WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*AuditEvent, error) {
	var (
		event       AuditEvent
		timestamp   string
		outcome     string
		level       string
		requestID   sql.NullString
		payloadJSON string
	)

	err := row.Scan(
		&event.EventID,
		&timestamp,
		&event.Kind,
		&event.TrackID,
		&outcome,
		&level,
		&requestID,
		&event.DurationMs,
		&event.Message,
		&payloadJSON,
	)
	if err != nil {
		return nil, err
	}

	event.Timestamp, err = time.Parse(TimestampLayout, timestamp)
	if err != nil {
		event.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	}
	event.Outcome = Outcome(outcome)
	event.Level = EventLevel(level)
	if requestID.Valid {
		event.RequestID = &requestID.String
	}
	if err := json.Unmarshal([]byte(payloadJSON), &event.Payload); err != nil {
		return nil, err
	}

	return &event, nil
}

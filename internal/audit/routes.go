package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/connect-bridge-go/internal/api"
	"github.com/strefethen/connect-bridge-go/internal/apperrors"
)

var validEventLevels = map[string]EventLevel{
	"DEBUG": EventLevelDebug,
	"INFO":  EventLevelInfo,
	"WARN":  EventLevelWarn,
	"ERROR": EventLevelError,
}

// RegisterRoutes wires audit routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/v1/audit/events", api.Handler(queryEvents(service)))
	router.Method(http.MethodGet, "/v1/audit/events/{event_id}", api.Handler(getEvent(service)))
}

// GET /v1/audit/events
func queryEvents(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		filters, err := parseQueryFilters(r)
		if err != nil {
			return err
		}

		events, _, hasMore, err := service.QueryEvents(filters)
		if err != nil {
			return apperrors.NewInternalError("Failed to query audit events")
		}

		formatted := make([]map[string]any, 0, len(events))
		for i := range events {
			formatted = append(formatted, formatEvent(&events[i]))
		}
		return api.WriteList(w, "/v1/audit/events", formatted, hasMore)
	}
}

// GET /v1/audit/events/{event_id}
func getEvent(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		eventID := chi.URLParam(r, "event_id")

		event, err := service.GetEvent(eventID)
		if err != nil {
			var notFound *EventNotFoundError
			if errors.As(err, &notFound) {
				return apperrors.NewAppError(apperrors.ErrorCodeEventNotFound, "Event not found", http.StatusNotFound, map[string]any{
					"event_id": eventID,
				})
			}
			return apperrors.NewInternalError("Failed to get audit event")
		}

		return api.WriteResource(w, http.StatusOK, formatEvent(event))
	}
}

func parseQueryFilters(r *http.Request) (EventQueryFilters, error) {
	filters := EventQueryFilters{Limit: DefaultQueryLimit}
	query := r.URL.Query()

	for _, bound := range []struct {
		param string
		dest  **string
	}{
		{"from", &filters.StartDate},
		{"to", &filters.EndDate},
	} {
		raw := query.Get(bound.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, apperrors.NewValidationError("invalid '"+bound.param+"' datetime format, expected RFC 3339", map[string]any{bound.param: raw})
		}
		normalized := FormatTimestamp(t)
		*bound.dest = &normalized
	}

	if kind := query.Get("kind"); kind != "" {
		filters.Kind = &kind
	}
	if trackID := query.Get("track_id"); trackID != "" {
		filters.TrackID = &trackID
	}

	if raw := query.Get("outcome"); raw != "" {
		outcome := Outcome(raw)
		if !outcome.Valid() {
			return filters, apperrors.NewValidationError("invalid outcome", map[string]any{
				"outcome":        raw,
				"valid_outcomes": []Outcome{OutcomeAccepted, OutcomeDuplicate, OutcomeRejected, OutcomeFailed},
			})
		}
		filters.Outcome = &outcome
	}

	if raw := query.Get("level"); raw != "" {
		level, ok := validEventLevels[raw]
		if !ok {
			return filters, apperrors.NewValidationError("invalid level", map[string]any{
				"level":        raw,
				"valid_levels": []string{"DEBUG", "INFO", "WARN", "ERROR"},
			})
		}
		filters.Level = &level
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxQueryLimit {
			return filters, apperrors.NewValidationError("invalid limit, must be between 1 and 1000", map[string]any{"limit": raw})
		}
		filters.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filters, apperrors.NewValidationError("invalid offset, must be >= 0", map[string]any{"offset": raw})
		}
		filters.Offset = offset
	}

	return filters, nil
}

func formatEvent(event *AuditEvent) map[string]any {
	result := map[string]any{
		"object":      "audit_event",
		"event_id":    event.EventID,
		"timestamp":   FormatTimestamp(event.Timestamp),
		"kind":        event.Kind,
		"track_id":    event.TrackID,
		"outcome":     string(event.Outcome),
		"level":       string(event.Level),
		"duration_ms": event.DurationMs,
		"message":     event.Message,
	}
	if event.RequestID != nil {
		result["request_id"] = *event.RequestID
	}
	if len(event.Payload) > 0 {
		result["payload"] = event.Payload
	}
	return result
}

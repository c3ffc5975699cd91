package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(setupTestDB(t), 0, nil)
}

func TestService_RecordEventDefaultsLevel(t *testing.T) {
	svc := newTestService(t)

	event, err := svc.RecordEvent(WriteEventInput{Kind: "stop", Outcome: OutcomeAccepted, Message: "ok"})
	require.NoError(t, err)
	require.Equal(t, EventLevelInfo, event.Level)
	require.True(t, svc.IsHealthy())
}

func TestService_GetEventNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetEvent("nope")
	var notFound *EventNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "nope", notFound.EventID)
}

func TestService_QueryEventsHasMore(t *testing.T) {
	svc := newTestService(t)
	for i := 0; i < 3; i++ {
		_, err := svc.RecordEvent(WriteEventInput{Kind: "playing", Outcome: OutcomeAccepted})
		require.NoError(t, err)
	}

	events, total, hasMore, err := svc.QueryEvents(EventQueryFilters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 3, total)
	require.True(t, hasMore)

	_, _, hasMore, err = svc.QueryEvents(EventQueryFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.False(t, hasMore)
}

func TestService_UnhealthyAfterRepeatedFailures(t *testing.T) {
	pair := setupTestDB(t)
	svc := NewService(pair, 7, nil)
	require.NoError(t, pair.Close())

	for i := 0; i < MaxConsecutiveFailures; i++ {
		_, err := svc.RecordEvent(WriteEventInput{Outcome: OutcomeAccepted})
		require.Error(t, err)
	}
	require.False(t, svc.IsHealthy())
}

func newAuditRouter(t *testing.T, svc *Service) http.Handler {
	t.Helper()
	router := chi.NewRouter()
	RegisterRoutes(router, svc)
	return router
}

func TestRoutes_ListEvents(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.RecordEvent(WriteEventInput{Kind: "playing", TrackID: "abc", Outcome: OutcomeAccepted})
	require.NoError(t, err)
	_, err = svc.RecordEvent(WriteEventInput{Kind: "playing", TrackID: "abc", Outcome: OutcomeDuplicate})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/audit/events?outcome=duplicate&kind=playing", nil)
	newAuditRouter(t, svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Object  string           `json:"object"`
		Data    []map[string]any `json:"data"`
		HasMore bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "list", body.Object)
	require.Len(t, body.Data, 1)
	require.Equal(t, "duplicate", body.Data[0]["outcome"])
	require.Equal(t, "audit_event", body.Data[0]["object"])
	require.False(t, body.HasMore)
}

func TestRoutes_ListEventsValidation(t *testing.T) {
	svc := newTestService(t)
	router := newAuditRouter(t, svc)

	for _, query := range []string{"outcome=maybe", "limit=0", "limit=5000", "offset=-1", "level=LOUD", "from=yesterday"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events?"+query, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestRoutes_GetEvent(t *testing.T) {
	svc := newTestService(t)
	event, err := svc.RecordEvent(WriteEventInput{Kind: "stop", Outcome: OutcomeAccepted, Message: "Librespot update handled"})
	require.NoError(t, err)
	router := newAuditRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events/"+event.EventID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, event.EventID, got["event_id"])
	require.Equal(t, "stop", got["kind"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "EVENT_NOT_FOUND")
}

package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strefethen/connect-bridge-go/internal/db"
)

func setupTestDB(t *testing.T) *db.DBPair {
	t.Helper()
	dbPair, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbPair.Close() })
	return dbPair
}

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(setupTestDB(t))
}

func strPtr(s string) *string { return &s }

func TestRepository_InsertEvent(t *testing.T) {
	repo := setupTestRepo(t)

	event, err := repo.InsertEvent(WriteEventInput{
		Kind:       "playing",
		TrackID:    "abc",
		Outcome:    OutcomeAccepted,
		RequestID:  strPtr("req-123"),
		DurationMs: 42,
		Message:    "Librespot update handled",
		Payload:    map[string]any{"position_ms": 1000},
	})
	require.NoError(t, err)
	require.NotEmpty(t, event.EventID)
	require.Equal(t, "playing", event.Kind)
	require.Equal(t, "abc", event.TrackID)
	require.Equal(t, OutcomeAccepted, event.Outcome)
	require.Equal(t, EventLevelInfo, event.Level)
	require.Equal(t, "req-123", *event.RequestID)
	require.Equal(t, int64(42), event.DurationMs)
	require.Equal(t, float64(1000), event.Payload["position_ms"])
	require.False(t, event.Timestamp.IsZero())
}

func TestRepository_InsertEvent_WithLevelAndNoPayload(t *testing.T) {
	repo := setupTestRepo(t)

	level := EventLevelWarn
	event, err := repo.InsertEvent(WriteEventInput{
		Outcome: OutcomeRejected,
		Level:   &level,
		Message: "missing trackID",
	})
	require.NoError(t, err)
	require.Equal(t, EventLevelWarn, event.Level)
	require.Empty(t, event.Kind)
	require.Nil(t, event.RequestID)
	require.Empty(t, event.Payload)
}

func TestRepository_GetEvent_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	event, err := repo.GetEvent("missing")
	require.NoError(t, err)
	require.Nil(t, event)
}

func TestRepository_QueryEvents_FiltersAndOrder(t *testing.T) {
	repo := setupTestRepo(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	repo.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	inputs := []WriteEventInput{
		{Kind: "start", TrackID: "a", Outcome: OutcomeAccepted},
		{Kind: "playing", TrackID: "a", Outcome: OutcomeAccepted},
		{Kind: "playing", TrackID: "a", Outcome: OutcomeDuplicate},
		{Kind: "paused", TrackID: "b", Outcome: OutcomeFailed},
	}
	for _, in := range inputs {
		_, err := repo.InsertEvent(in)
		require.NoError(t, err)
	}

	all, total, err := repo.QueryEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Equal(t, "paused", all[0].Kind)
	require.Equal(t, "start", all[3].Kind)

	kind := "playing"
	playing, total, err := repo.QueryEvents(EventQueryFilters{Kind: &kind})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, playing, 2)

	dup := OutcomeDuplicate
	dups, _, err := repo.QueryEvents(EventQueryFilters{Outcome: &dup})
	require.NoError(t, err)
	require.Len(t, dups, 1)
	require.Equal(t, OutcomeDuplicate, dups[0].Outcome)

	from := FormatTimestamp(base.Add(2 * time.Second))
	to := FormatTimestamp(base.Add(3 * time.Second))
	window, _, err := repo.QueryEvents(EventQueryFilters{StartDate: &from, EndDate: &to})
	require.NoError(t, err)
	require.Len(t, window, 2)

	page, total, err := repo.QueryEvents(EventQueryFilters{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, page, 1)
	require.Equal(t, OutcomeDuplicate, page[0].Outcome)
}

func TestRepository_Prune(t *testing.T) {
	repo := setupTestRepo(t)

	now := time.Now()
	repo.now = func() time.Time { return now.AddDate(0, 0, -40) }
	_, err := repo.InsertEvent(WriteEventInput{Kind: "start", Outcome: OutcomeAccepted})
	require.NoError(t, err)

	repo.now = func() time.Time { return now }
	_, err = repo.InsertEvent(WriteEventInput{Kind: "stop", Outcome: OutcomeAccepted})
	require.NoError(t, err)

	removed, err := repo.Prune(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	remaining, total, err := repo.QueryEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "stop", remaining[0].Kind)
}

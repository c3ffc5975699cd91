package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strefethen/connect-bridge-go/internal/librespot"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestBuildPayload(t *testing.T) {
	payload, err := buildPayload(env(map[string]string{
		"PLAYER_EVENT": "playing",
		"TRACK_ID":     "abc",
		"DURATION_MS":  "200000",
		"POSITION_MS":  "1500",
		"VOLUME":       "ignored",
	}))
	require.NoError(t, err)
	require.Equal(t, "playing", *payload.Event)
	require.Equal(t, 1500, *payload.PositionMS)
	require.Equal(t, 200000, *payload.DurationMS)
	require.Nil(t, payload.Volume)

	event, err := payload.ToEvent()
	require.NoError(t, err)
	require.Equal(t, librespot.KindPlaying, event.Kind())
}

func TestBuildPayload_ChangeAndVolume(t *testing.T) {
	payload, err := buildPayload(env(map[string]string{
		"PLAYER_EVENT": "change",
		"TRACK_ID":     "new",
		"OLD_TRACK_ID": "old",
	}))
	require.NoError(t, err)
	require.Equal(t, "old", *payload.OldTrackID)

	payload, err = buildPayload(env(map[string]string{"PLAYER_EVENT": "volume_set", "VOLUME": "35"}))
	require.NoError(t, err)
	require.Equal(t, 35, *payload.Volume)
	require.Equal(t, "", *payload.TrackID)
}

func TestBuildPayload_BadInteger(t *testing.T) {
	_, err := buildPayload(env(map[string]string{"PLAYER_EVENT": "paused", "DURATION_MS": "x"}))
	require.ErrorContains(t, err, "DURATION_MS")
}

func TestDeliver(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload, err := buildPayload(env(map[string]string{"PLAYER_EVENT": "stop", "TRACK_ID": "abc"}))
	require.NoError(t, err)
	require.NoError(t, deliver(context.Background(), srv.Client(), srv.URL, payload))
	require.Equal(t, map[string]any{"event": "stop", "trackID": "abc"}, got)
}

func TestDeliver_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"id":1,"jsonrpc":"2.0","error":{"code":32001,"message":"busy"}}`))
	}))
	defer srv.Close()

	payload, err := buildPayload(env(map[string]string{"PLAYER_EVENT": "stop"}))
	require.NoError(t, err)
	err = deliver(context.Background(), srv.Client(), srv.URL, payload)
	require.ErrorContains(t, err, "32001 busy")
}

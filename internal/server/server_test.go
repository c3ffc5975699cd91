package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strefethen/connect-bridge-go/internal/auth"
	"github.com/strefethen/connect-bridge-go/internal/config"
	"github.com/strefethen/connect-bridge-go/internal/session"
)

type fakeRemote struct {
	devices []session.Device
}

func (f *fakeRemote) Devices(context.Context) ([]session.Device, error) { return f.devices, nil }
func (f *fakeRemote) PlaybackState(context.Context) (*session.PlaybackSnapshot, error) {
	return nil, nil
}
func (f *fakeRemote) TransferPlayback(context.Context, string, bool) error { return nil }
func (f *fakeRemote) StartPlayback(context.Context, string, session.StartOptions) error {
	return nil
}
func (f *fakeRemote) Pause(context.Context, string) error                          { return nil }
func (f *fakeRemote) Seek(context.Context, string, int) error                      { return nil }
func (f *fakeRemote) SetVolume(context.Context, string, int) error                 { return nil }
func (f *fakeRemote) SetShuffle(context.Context, string, bool) error               { return nil }
func (f *fakeRemote) SetRepeat(context.Context, string, session.RepeatState) error { return nil }

// fakeMopidy answers JSON-RPC calls from a fixed result table.
type fakeMopidy struct {
	mu      sync.Mutex
	methods []string
	results map[string]any
}

func (f *fakeMopidy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	result := f.results[req.Method]
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (f *fakeMopidy) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func testConfig(t *testing.T, mopidyURL string) config.Config {
	t.Helper()
	return config.Config{
		Host:                    "127.0.0.1",
		Port:                    "0",
		SQLiteDBPath:            filepath.Join(t.TempDir(), "bridge.db"),
		JWTAccessTokenExpirySec: 60,
		SpotifyDeviceName:       "Living Room",
		ReconcileLockTimeout:    time.Second,
		MopidyRPCURL:            mopidyURL,
		MopidyTimeout:           time.Second,
		AuditRetentionDays:      30,
		AuditPruneSchedule:      "@daily",
		DeviceResolveSchedule:   "@every 1m",
		CORSAllowOrigin:         "*",
	}
}

func newTestHandler(t *testing.T, cfg config.Config, remote *fakeRemote) http.Handler {
	t.Helper()
	handler, shutdown, err := NewHandler(cfg, nil, Options{Remote: remote, DisableJobs: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, shutdown(context.Background())) })
	return handler
}

func do(handler http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	remote := &fakeRemote{devices: []session.Device{{ID: "dev-1", Name: "Living Room"}}}
	handler := newTestHandler(t, testConfig(t, "http://127.0.0.1:1"), remote)

	require.Equal(t, http.StatusOK, do(handler, http.MethodGet, "/v1/health", "", nil).Code)
	require.Equal(t, http.StatusOK, do(handler, http.MethodGet, "/v1/health/live", "", nil).Code)

	rec := do(handler, http.MethodGet, "/v1/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(handler, http.MethodPost, "/v1/device/resolve", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(handler, http.MethodGet, "/v1/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ready", body["status"])
}

func TestWebhookReconcilesAndJournals(t *testing.T) {
	mopidy := &fakeMopidy{results: map[string]any{
		"core.mixer.get_volume": 20,
		"core.mixer.get_mute":   false,
		"core.mixer.set_volume": true,
	}}
	srv := httptest.NewServer(mopidy)
	t.Cleanup(srv.Close)

	handler := newTestHandler(t, testConfig(t, srv.URL), &fakeRemote{})

	rec := do(handler, http.MethodOptions, "/librespot", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(handler, http.MethodPost, "/librespot", `{"event":"volume_set","trackID":"","volume":40}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, mopidy.called(), "core.mixer.set_volume")

	rec = do(handler, http.MethodPost, "/librespot", `{"event":`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(handler, http.MethodGet, "/v1/audit/events?outcome=accepted", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, "volume_set", list.Data[0]["kind"])

	rec = do(handler, http.MethodGet, "/v1/audit/events?outcome=rejected", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
}

func TestAuthProtectsV1ButNotWebhook(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	handler := newTestHandler(t, cfg, &fakeRemote{})

	require.Equal(t, http.StatusUnauthorized, do(handler, http.MethodGet, "/v1/device", "", nil).Code)
	require.Equal(t, http.StatusOK, do(handler, http.MethodGet, "/v1/health", "", nil).Code)
	require.Equal(t, http.StatusNoContent, do(handler, http.MethodOptions, "/librespot", "", nil).Code)

	token, err := auth.GenerateAccessToken(cfg, auth.TokenPayload{Sub: "test"})
	require.NoError(t, err)
	rec := do(handler, http.MethodGet, "/v1/device", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)
}

package librespot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu       sync.Mutex
	events   []Event
	rejected []error
	err      error
}

func (f *fakeProcessor) Process(_ context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeProcessor) Reject(_ context.Context, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, cause)
}

func newWebhookRouter(p Processor) http.Handler {
	hook := NewWebhook(p, "", nil)
	hook.now = func() time.Time { return time.Unix(1700000000, 0) }
	router := chi.NewRouter()
	hook.RegisterRoutes(router)
	return router
}

func post(t *testing.T, router http.Handler, path, body string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestWebhook_Success(t *testing.T) {
	p := &fakeProcessor{}
	router := newWebhookRouter(p)

	for _, path := range []string{"/librespot", "/librespot/"} {
		rec, env := post(t, router, path, `{"event":"start","trackID":"abc"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, int64(1700000000), env.ID)
		require.Equal(t, "2.0", env.JSONRPC)
		require.Nil(t, env.Error)
		require.Equal(t, HandledMessage, env.Result.Message)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	require.Equal(t, []Event{Start{Track: "abc"}, Start{Track: "abc"}}, p.events)
}

func TestWebhook_Malformed(t *testing.T) {
	p := &fakeProcessor{}
	router := newWebhookRouter(p)

	rec, env := post(t, router, "/librespot", `{"event":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, CodeMalformed, env.Error.Code)
	require.Equal(t, "Missing or invalid payload", env.Error.Message)
	require.Nil(t, env.Result)
	require.Empty(t, p.events)
	require.Len(t, p.rejected, 1)
	require.ErrorIs(t, p.rejected[0], ErrMalformed)
}

func TestWebhook_Invalid(t *testing.T) {
	p := &fakeProcessor{}
	router := newWebhookRouter(p)

	cases := map[string]string{
		`{"trackID":"abc"}`: "event",
		`{"event":"start"}`: "trackID",
		`{"event":"playing","trackID":"abc","durationMS":1}`: "positionMS",
		`{"event":"volume_set","trackID":"","volume":101}`:   "volume",
		`{"event":"change","trackID":"abc"}`:                 "oldTrackID",
	}
	for body, field := range cases {
		rec, env := post(t, router, "/librespot", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Equal(t, CodeInvalid, env.Error.Code, body)
		require.Equal(t, field, env.Error.Data["field"], body)
	}
	require.Empty(t, p.events)
	require.Len(t, p.rejected, len(cases))
}

func TestWebhook_ProcessFailure(t *testing.T) {
	p := &fakeProcessor{err: errors.New("host unreachable")}
	router := newWebhookRouter(p)

	rec, env := post(t, router, "/librespot", `{"event":"stop","trackID":"abc"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, CodeFailed, env.Error.Code)
	require.Equal(t, "host unreachable", env.Error.Message)
}

func TestWebhook_Busy(t *testing.T) {
	p := &fakeProcessor{err: fmt.Errorf("%w: lock wait exceeded", ErrBusy)}
	router := newWebhookRouter(p)

	rec, env := post(t, router, "/librespot", `{"event":"stop","trackID":"abc"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, CodeBusy, env.Error.Code)
}

func TestWebhook_Preflight(t *testing.T) {
	hook := NewWebhook(&fakeProcessor{}, "https://example.test", nil)
	router := chi.NewRouter()
	hook.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/librespot", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://example.test", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Client-Security-Token")
	require.Empty(t, rec.Body.String())
}

func TestWebhook_OversizedBody(t *testing.T) {
	p := &fakeProcessor{}
	router := newWebhookRouter(p)

	body := `{"event":"start","trackID":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec, env := post(t, router, "/librespot", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, CodeMalformed, env.Error.Code)
}

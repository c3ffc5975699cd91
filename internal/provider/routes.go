package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/connect-bridge-go/internal/api"
	"github.com/strefethen/connect-bridge-go/internal/apperrors"
	"github.com/strefethen/connect-bridge-go/internal/host"
	"github.com/strefethen/connect-bridge-go/internal/session"
)

// Host listener event names accepted by POST /v1/host/events.
const (
	EventTrackPlaybackStarted = "track_playback_started"
	EventVolumeChanged        = "volume_changed"
	EventMuteChanged          = "mute_changed"
	EventOptionsChanged       = "options_changed"
)

// DeviceStatus is the identity surface behind the device routes.
type DeviceStatus interface {
	DeviceName() string
	DeviceID() string
	ResolveDevice(ctx context.Context) (string, error)
	IsBoundDeviceActive(ctx context.Context) (bool, error)
}

type changeTrackRequest struct {
	URI string `json:"uri"`
}

type seekRequest struct {
	PositionMs *int `json:"position_ms"`
}

// HostEventRequest is the body of POST /v1/host/events.
type HostEventRequest struct {
	Event   string        `json:"event"`
	TlTrack *host.TlTrack `json:"tl_track,omitempty"`
	Volume  *int          `json:"volume,omitempty"`
	Mute    *bool         `json:"mute,omitempty"`
}

// RegisterRoutes wires playback provider and host listener routes.
func RegisterRoutes(router chi.Router, playback *Playback, listener *Listener) {
	router.Method(http.MethodPost, "/v1/playback/change-track", api.Handler(changeTrack(playback)))
	router.Method(http.MethodPost, "/v1/playback/play", api.Handler(simple(playback.Play)))
	router.Method(http.MethodPost, "/v1/playback/resume", api.Handler(simple(playback.Resume)))
	router.Method(http.MethodPost, "/v1/playback/pause", api.Handler(simple(playback.Pause)))
	router.Method(http.MethodPost, "/v1/playback/stop", api.Handler(simple(playback.Stop)))
	router.Method(http.MethodPost, "/v1/playback/seek", api.Handler(seek(playback)))
	router.Method(http.MethodGet, "/v1/playback/time-position", api.Handler(timePosition(playback)))
	router.Method(http.MethodPost, "/v1/host/events", api.Handler(hostEvent(listener)))
}

// RegisterDeviceRoutes wires the device identity routes.
func RegisterDeviceRoutes(router chi.Router, status DeviceStatus) {
	router.Method(http.MethodGet, "/v1/device", api.Handler(getDevice(status)))
	router.Method(http.MethodPost, "/v1/device/resolve", api.Handler(resolveDevice(status)))
}

func playbackResult(handled bool) map[string]any {
	return map[string]any{"object": "playback_result", "handled": handled}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	return nil
}

// POST /v1/playback/change-track
func changeTrack(playback *Playback) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req changeTrackRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		handled, err := playback.ChangeTrack(r.Context(), req.URI)
		if err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, playbackResult(handled))
	}
}

func simple(fn func(ctx context.Context) error) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := fn(r.Context()); err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, playbackResult(true))
	}
}

// POST /v1/playback/seek
func seek(playback *Playback) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req seekRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if req.PositionMs == nil || *req.PositionMs < 0 {
			return apperrors.NewValidationError("position_ms must be a non-negative integer", map[string]any{"field": "position_ms"})
		}
		if err := playback.Seek(r.Context(), *req.PositionMs); err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, playbackResult(true))
	}
}

// GET /v1/playback/time-position
func timePosition(playback *Playback) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		position, err := playback.TimePosition(r.Context())
		if err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":      "time_position",
			"position_ms": position,
		})
	}
}

// POST /v1/host/events
func hostEvent(listener *Listener) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req HostEventRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}

		ctx := r.Context()
		var err error
		switch req.Event {
		case EventTrackPlaybackStarted:
			if req.TlTrack == nil {
				return apperrors.NewValidationError("tl_track is required", map[string]any{"field": "tl_track"})
			}
			err = listener.TrackPlaybackStarted(ctx, req.TlTrack.Track)
		case EventVolumeChanged:
			if req.Volume == nil || *req.Volume < 0 || *req.Volume > 100 {
				return apperrors.NewValidationError("volume must be between 0 and 100", map[string]any{"field": "volume"})
			}
			err = listener.VolumeChanged(ctx, *req.Volume)
		case EventMuteChanged:
			if req.Mute == nil {
				return apperrors.NewValidationError("mute is required", map[string]any{"field": "mute"})
			}
			err = listener.MuteChanged(ctx, *req.Mute)
		case EventOptionsChanged:
			err = listener.OptionsChanged(ctx)
		default:
			return apperrors.NewValidationError("unknown event", map[string]any{
				"event":        req.Event,
				"valid_events": []string{EventTrackPlaybackStarted, EventVolumeChanged, EventMuteChanged, EventOptionsChanged},
			})
		}
		if err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusAccepted, map[string]any{"object": "host_event", "event": req.Event})
	}
}

func deviceResource(ctx context.Context, status DeviceStatus) (map[string]any, error) {
	resource := map[string]any{
		"object":    "device",
		"name":      status.DeviceName(),
		"device_id": nil,
		"bound":     false,
		"active":    false,
	}
	id := status.DeviceID()
	if id == "" {
		return resource, nil
	}
	active, err := status.IsBoundDeviceActive(ctx)
	if err != nil {
		return nil, err
	}
	resource["device_id"] = id
	resource["bound"] = true
	resource["active"] = active
	return resource, nil
}

// GET /v1/device
func getDevice(status DeviceStatus) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		resource, err := deviceResource(r.Context(), status)
		if err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, resource)
	}
}

// POST /v1/device/resolve
func resolveDevice(status DeviceStatus) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		if _, err := status.ResolveDevice(r.Context()); err != nil {
			if errors.Is(err, session.ErrDeviceNotResolved) {
				return apperrors.NewNotFoundError("No visible device matches the configured name", map[string]any{
					"name": status.DeviceName(),
				})
			}
			return toAppError(err)
		}
		resource, err := deviceResource(r.Context(), status)
		if err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, resource)
	}
}

// Package spotifyapi implements the remote control API used by the session
// client on top of the Spotify Web API.
package spotifyapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/strefethen/connect-bridge-go/internal/session"
)

// Scopes requested for the refresh token. Playback state must be readable and
// modifiable.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
}

// Config holds the credentials for the Web API.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timeout      time.Duration
	// BaseURL overrides the API endpoint; empty uses the public API.
	BaseURL string
}

// Client adapts *spotify.Client to session.Remote.
type Client struct {
	api    *spotify.Client
	logger logrus.FieldLogger
}

var _ session.Remote = (*Client)(nil)

// NewClient builds an authenticated client. Access tokens are obtained and
// refreshed from cfg.RefreshToken on demand.
func NewClient(ctx context.Context, cfg Config, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	// Token endpoint requests use this client too.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)
	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	httpClient.Timeout = cfg.Timeout

	return NewWithHTTPClient(httpClient, cfg.BaseURL, logger)
}

// NewWithHTTPClient wraps an already-authenticated HTTP client.
func NewWithHTTPClient(httpClient *http.Client, baseURL string, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	var opts []spotify.ClientOption
	if baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(baseURL))
	}
	return &Client{
		api:    spotify.New(httpClient, opts...),
		logger: logger.WithField("component", "spotifyapi"),
	}
}

func (c *Client) Devices(ctx context.Context) ([]session.Device, error) {
	devices, err := c.api.PlayerDevices(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]session.Device, 0, len(devices))
	for _, d := range devices {
		volume := int(d.Volume)
		out = append(out, session.Device{
			ID:            d.ID.String(),
			Name:          d.Name,
			Active:        d.Active,
			VolumePercent: &volume,
		})
	}
	return out, nil
}

func (c *Client) PlaybackState(ctx context.Context) (*session.PlaybackSnapshot, error) {
	state, err := c.api.PlayerState(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	if state == nil || state.Device.ID == "" {
		return nil, nil
	}

	snapshot := &session.PlaybackSnapshot{
		DeviceID:   state.Device.ID.String(),
		IsPlaying:  state.Playing,
		ContextURI: string(state.PlaybackContext.URI),
		PositionMs: int(state.Progress),
		Shuffle:    state.ShuffleState,
		Repeat:     session.RepeatState(state.RepeatState),
	}
	if state.Item != nil {
		snapshot.TrackURI = string(state.Item.URI)
	}
	if !state.Device.Restricted {
		volume := int(state.Device.Volume)
		snapshot.VolumePercent = &volume
	}
	return snapshot, nil
}

func (c *Client) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	return mapError(c.api.TransferPlayback(ctx, spotify.ID(deviceID), play))
}

func (c *Client) StartPlayback(ctx context.Context, deviceID string, opts session.StartOptions) error {
	id := spotify.ID(deviceID)
	playOpts := &spotify.PlayOptions{DeviceID: &id}

	if opts.ContextURI != "" {
		contextURI := spotify.URI(opts.ContextURI)
		playOpts.PlaybackContext = &contextURI
		if opts.OffsetURI != "" {
			playOpts.PlaybackOffset = &spotify.PlaybackOffset{URI: spotify.URI(opts.OffsetURI)}
		}
	} else {
		for _, uri := range opts.URIs {
			playOpts.URIs = append(playOpts.URIs, spotify.URI(uri))
		}
	}

	return mapError(c.api.PlayOpt(ctx, playOpts))
}

func (c *Client) Pause(ctx context.Context, deviceID string) error {
	return mapError(c.api.PauseOpt(ctx, deviceOpt(deviceID)))
}

func (c *Client) Seek(ctx context.Context, deviceID string, positionMs int) error {
	return mapError(c.api.SeekOpt(ctx, positionMs, deviceOpt(deviceID)))
}

func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	return mapError(c.api.VolumeOpt(ctx, percent, deviceOpt(deviceID)))
}

func (c *Client) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	return mapError(c.api.ShuffleOpt(ctx, on, deviceOpt(deviceID)))
}

func (c *Client) SetRepeat(ctx context.Context, deviceID string, state session.RepeatState) error {
	return mapError(c.api.RepeatOpt(ctx, string(state), deviceOpt(deviceID)))
}

func deviceOpt(deviceID string) *spotify.PlayOptions {
	id := spotify.ID(deviceID)
	return &spotify.PlayOptions{DeviceID: &id}
}

// mapError translates Web API errors into session errors. A 404 naming the
// device becomes session.ErrDeviceNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr):
		apiErr = *apiErrPtr
	default:
		return err
	}

	if apiErr.Status == http.StatusNotFound && strings.Contains(strings.ToLower(apiErr.Message), "device") {
		return session.ErrDeviceNotFound
	}
	return &session.RemoteError{Status: apiErr.Status, Message: apiErr.Message}
}

// Package provider carries host-initiated playback requests and host state
// changes to the bound device.
package provider

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/host"
	"github.com/strefethen/connect-bridge-go/internal/session"
)

// Device is the part of the session client driven from the host side.
type Device interface {
	IsBoundDeviceActive(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (*session.PlaybackSnapshot, error)
	Play(ctx context.Context, trackURI, contextURI string) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	CurrentPositionMs(ctx context.Context) (int, error)
	Volume(ctx context.Context) (int, bool, error)
	SetVolume(ctx context.Context, percent int) error
	SetShuffle(ctx context.Context, on bool) error
	SetRepeat(ctx context.Context, state session.RepeatState) error
}

// HostState is the host state read when mirroring host changes.
type HostState interface {
	Options(ctx context.Context) (host.Options, error)
	Volume(ctx context.Context) (int, error)
	Mute(ctx context.Context) (bool, error)
}

// Playback answers the host's playback provider requests for device tracks.
// It never takes the reconciliation lock: the host issues these requests
// while the engine is waiting on the host.
type Playback struct {
	device Device
	logger logrus.FieldLogger
}

// NewPlayback creates a Playback.
func NewPlayback(device Device, logger logrus.FieldLogger) *Playback {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Playback{device: device, logger: logger.WithField("component", "provider")}
}

// ChangeTrack starts uri on the device. It reports false for an empty uri.
func (p *Playback) ChangeTrack(ctx context.Context, uri string) (bool, error) {
	if uri == "" {
		return false, nil
	}
	p.logger.WithField("uri", uri).Debug("Host requested change of track")
	if err := p.device.Play(ctx, uri, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Play transfers playback to the device.
func (p *Playback) Play(ctx context.Context) error {
	p.logger.Debug("Host requested play")
	return p.device.Play(ctx, "", "")
}

// Resume resumes the device.
func (p *Playback) Resume(ctx context.Context) error {
	p.logger.Debug("Host requested resume")
	return p.device.Play(ctx, "", "")
}

// Pause pauses the device.
func (p *Playback) Pause(ctx context.Context) error {
	p.logger.Debug("Host requested pause")
	return p.device.Pause(ctx)
}

// Stop pauses the device; the device has no stopped state.
func (p *Playback) Stop(ctx context.Context) error {
	p.logger.Debug("Host requested stop")
	return p.device.Pause(ctx)
}

// Seek moves the device to positionMs.
func (p *Playback) Seek(ctx context.Context, positionMs int) error {
	p.logger.WithField("position_ms", positionMs).Debug("Host requested seek")
	return p.device.Seek(ctx, positionMs)
}

// TimePosition returns the device position.
func (p *Playback) TimePosition(ctx context.Context) (int, error) {
	return p.device.CurrentPositionMs(ctx)
}

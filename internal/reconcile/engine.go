// Package reconcile converges host playback state with device player events.
package reconcile

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/host"
	"github.com/strefethen/connect-bridge-go/internal/librespot"
	"github.com/strefethen/connect-bridge-go/internal/session"
	"github.com/strefethen/connect-bridge-go/internal/trackuri"
)

// Device is the part of the session client the engine reads and drives.
type Device interface {
	IsBoundDeviceActive(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (*session.PlaybackSnapshot, error)
	InvalidateSnapshot()
	SetVolume(ctx context.Context, percent int) error
}

// Engine applies the host mutations implied by one device event. It is not
// safe for concurrent use; callers serialize through a Lock.
type Engine struct {
	device Device
	host   host.Adapter
	logger logrus.FieldLogger
}

// NewEngine creates an Engine.
func NewEngine(device Device, adapter host.Adapter, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		device: device,
		host:   adapter,
		logger: logger.WithField("component", "reconcile"),
	}
}

// Handle reconciles the host with event. Device state is re-read for every
// event.
func (e *Engine) Handle(ctx context.Context, event librespot.Event) error {
	e.device.InvalidateSnapshot()

	log := e.logger.WithFields(logrus.Fields{
		"event":    event.Kind(),
		"track_id": event.TrackID(),
	})

	switch ev := event.(type) {
	case librespot.Stop:
		return e.handleStop(ctx, log)
	case librespot.VolumeSet:
		active, err := e.device.IsBoundDeviceActive(ctx)
		if err != nil {
			return fmt.Errorf("check device active: %w", err)
		}
		if active {
			if err := e.syncOptions(ctx, log); err != nil {
				return err
			}
		}
		return e.handleVolume(ctx, ev, log)
	}

	if err := e.syncOptions(ctx, log); err != nil {
		return err
	}

	switch ev := event.(type) {
	case librespot.Start:
		return e.handleStart(ctx, log)
	case librespot.Change:
		return e.changeTrack(ctx, trackuri.FromID(ev.Track), log)
	case librespot.Playing:
		return e.handlePlaying(ctx, ev, log)
	case librespot.Paused:
		return e.handlePaused(ctx, ev, log)
	default:
		return fmt.Errorf("unsupported event %T", event)
	}
}

func (e *Engine) handleStart(ctx context.Context, log logrus.FieldLogger) error {
	state, err := e.host.State(ctx)
	if err != nil {
		return err
	}
	if state != host.StateStopped {
		log.WithField("state", state).Info("Device session started, stopping host playback")
		if err := e.host.Stop(ctx); err != nil {
			return err
		}
	}

	volume, err := e.host.Volume(ctx)
	if err != nil {
		return err
	}
	muted, err := e.host.Mute(ctx)
	if err != nil {
		return err
	}
	if muted {
		volume = 0
	}
	return e.device.SetVolume(ctx, volume)
}

func (e *Engine) handleStop(ctx context.Context, log logrus.FieldLogger) error {
	state, err := e.host.State(ctx)
	if err != nil {
		return err
	}
	if state == host.StateStopped {
		return nil
	}

	current, err := e.host.CurrentTlTrack(ctx)
	if err != nil {
		return err
	}
	if current == nil || !trackuri.InNamespace(current.Track.URI) {
		log.Debug("Host is not playing device content, ignoring stop")
		return nil
	}

	if err := e.host.Stop(ctx); err != nil {
		return err
	}
	e.host.ReachedEndOfStream()
	return nil
}

func (e *Engine) handlePlaying(ctx context.Context, ev librespot.Playing, log logrus.FieldLogger) error {
	target := trackuri.FromID(ev.Track)

	current, err := e.host.CurrentTlTrack(ctx)
	if err != nil {
		return err
	}
	state, err := e.host.State(ctx)
	if err != nil {
		return err
	}
	snapshot, err := e.device.Snapshot(ctx)
	if err != nil {
		return err
	}

	active := current != nil && trackuri.Matches(current.Track.URI, target)
	correctTrack := active
	if snapshot != nil {
		correctTrack = trackuri.Matches(snapshot.TrackURI, target)
	}

	switch {
	case !active || !correctTrack || state == host.StateStopped:
		if err := e.changeTrack(ctx, target, log); err != nil {
			return err
		}
	case state == host.StatePaused:
		log.Info("Resuming host playback")
		if err := e.host.Resume(ctx); err != nil {
			return err
		}
	}

	e.host.PositionChanged(ev.PositionMs)
	e.host.Seeked(ev.PositionMs)
	return nil
}

func (e *Engine) handlePaused(ctx context.Context, ev librespot.Paused, log logrus.FieldLogger) error {
	current, err := e.host.CurrentTlTrack(ctx)
	if err != nil {
		return err
	}
	if current != nil && !trackuri.InNamespace(current.Track.URI) {
		log.WithField("host_track", current.Track.URI).Info("Foreign source active, ignoring pause")
		return nil
	}

	if ev.PositionMs > 0 {
		return e.pause(ctx, ev.PositionMs)
	}

	state, err := e.host.State(ctx)
	if err != nil {
		return err
	}
	if state == host.StatePaused {
		return e.confirmPause(ctx, ev.PositionMs)
	}

	next, err := e.host.NextEntry(ctx, current)
	if err != nil {
		return err
	}
	if next == nil {
		log.Info("End of tracklist, pausing host")
		return e.pause(ctx, ev.PositionMs)
	}

	log.WithField("tlid", next.TLID).Info("End of track, scheduling next")
	return e.host.ScheduleNext(ctx)
}

func (e *Engine) pause(ctx context.Context, positionMs int) error {
	if err := e.host.Pause(ctx); err != nil {
		return err
	}
	return e.confirmPause(ctx, positionMs)
}

func (e *Engine) confirmPause(ctx context.Context, positionMs int) error {
	e.host.Seeked(positionMs)
	return e.host.SetState(ctx, host.StatePaused)
}

func (e *Engine) handleVolume(ctx context.Context, ev librespot.VolumeSet, log logrus.FieldLogger) error {
	volume, err := e.host.Volume(ctx)
	if err != nil {
		return err
	}
	muted, err := e.host.Mute(ctx)
	if err != nil {
		return err
	}

	if ev.Volume > 0 && volume != ev.Volume {
		log.WithField("volume", ev.Volume).Debug("Setting host volume")
		if err := e.host.SetVolume(ctx, ev.Volume); err != nil {
			return err
		}
	}

	switch {
	case muted && ev.Volume > 0:
		return e.host.SetMute(ctx, false)
	case !muted && ev.Volume == 0:
		return e.host.SetMute(ctx, true)
	}
	return nil
}

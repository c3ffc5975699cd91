package provider

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/host"
	"github.com/strefethen/connect-bridge-go/internal/reconcile"
	"github.com/strefethen/connect-bridge-go/internal/trackuri"
)

// Listener mirrors host state changes onto the bound device. Each callback
// runs inside the reconciliation critical section so it never interleaves
// with a device event.
type Listener struct {
	device      Device
	host        HostState
	lock        *reconcile.Lock
	lockTimeout time.Duration
	logger      logrus.FieldLogger
}

// NewListener creates a Listener. A nil lock gets a private one.
func NewListener(device Device, hostState HostState, lock *reconcile.Lock, lockTimeout time.Duration, logger logrus.FieldLogger) *Listener {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if lock == nil {
		lock = reconcile.NewLock(logger)
	}
	return &Listener{
		device:      device,
		host:        hostState,
		lock:        lock,
		lockTimeout: lockTimeout,
		logger:      logger.WithField("component", "listener"),
	}
}

// TrackPlaybackStarted pauses the device when the host starts playing
// something outside the device catalog.
func (l *Listener) TrackPlaybackStarted(ctx context.Context, track host.Track) error {
	if trackuri.InNamespace(track.URI) {
		return nil
	}
	return l.lock.WithLock(ctx, "track_playback_started", l.lockTimeout, func() error {
		l.logger.WithField("uri", track.URI).Info("Host started foreign track, pausing device")
		return l.device.Pause(ctx)
	})
}

// VolumeChanged pushes the host volume to the active device.
func (l *Listener) VolumeChanged(ctx context.Context, volume int) error {
	return l.lock.WithLock(ctx, "volume_changed", l.lockTimeout, func() error {
		muted, err := l.host.Mute(ctx)
		if err != nil {
			return err
		}
		return l.pushVolume(ctx, volume, muted)
	})
}

// MuteChanged pushes the effective host volume to the active device.
func (l *Listener) MuteChanged(ctx context.Context, mute bool) error {
	return l.lock.WithLock(ctx, "mute_changed", l.lockTimeout, func() error {
		volume, err := l.host.Volume(ctx)
		if err != nil {
			return err
		}
		return l.pushVolume(ctx, volume, mute)
	})
}

func (l *Listener) pushVolume(ctx context.Context, volume int, muted bool) error {
	active, err := l.device.IsBoundDeviceActive(ctx)
	if err != nil || !active {
		return err
	}

	target := volume
	if muted {
		target = 0
	}

	current, known, err := l.device.Volume(ctx)
	if err != nil {
		return err
	}
	if known && current == target {
		return nil
	}

	l.logger.WithField("volume", target).Debug("Pushing host volume to device")
	return l.device.SetVolume(ctx, target)
}

// OptionsChanged pushes host shuffle and repeat modes to the active device.
func (l *Listener) OptionsChanged(ctx context.Context) error {
	return l.lock.WithLock(ctx, "options_changed", l.lockTimeout, func() error {
		active, err := l.device.IsBoundDeviceActive(ctx)
		if err != nil || !active {
			return err
		}

		opts, err := l.host.Options(ctx)
		if err != nil {
			return err
		}
		snapshot, err := l.device.Snapshot(ctx)
		if err != nil || snapshot == nil {
			return err
		}

		if snapshot.Shuffle != opts.Random {
			l.logger.WithField("shuffle", opts.Random).Debug("Updating device shuffle")
			if err := l.device.SetShuffle(ctx, opts.Random); err != nil {
				return err
			}
		}

		repeat := reconcile.DeviceRepeatFor(opts)
		if snapshot.Repeat != repeat {
			l.logger.WithField("repeat", repeat).Debug("Updating device repeat")
			if err := l.device.SetRepeat(ctx, repeat); err != nil {
				return err
			}
		}
		return nil
	})
}

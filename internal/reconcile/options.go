package reconcile

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/host"
	"github.com/strefethen/connect-bridge-go/internal/session"
)

// HostOptionsFor maps the device repeat mode and shuffle flag onto host
// tracklist options.
func HostOptionsFor(repeat session.RepeatState, shuffle bool) host.Options {
	opts := host.Options{Random: shuffle}
	switch repeat {
	case session.RepeatTrack:
		opts.Repeat, opts.Single = true, true
	case session.RepeatContext:
		opts.Repeat = true
	}
	return opts
}

// DeviceRepeatFor maps host tracklist options onto the device repeat mode.
func DeviceRepeatFor(opts host.Options) session.RepeatState {
	switch {
	case opts.Repeat && opts.Single:
		return session.RepeatTrack
	case opts.Repeat:
		return session.RepeatContext
	default:
		return session.RepeatOff
	}
}

// syncOptions pushes the device's shuffle and repeat state onto the host.
// Without a snapshot the device is not ours and nothing is synced.
func (e *Engine) syncOptions(ctx context.Context, log logrus.FieldLogger) error {
	snapshot, err := e.device.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}

	current, err := e.host.Options(ctx)
	if err != nil {
		return err
	}
	want := HostOptionsFor(snapshot.Repeat, snapshot.Shuffle)
	if current == want {
		return nil
	}

	log.WithFields(logrus.Fields{
		"random": want.Random,
		"repeat": want.Repeat,
		"single": want.Single,
	}).Debug("Syncing host options from device")

	if current.Random != want.Random {
		if err := e.host.SetRandom(ctx, want.Random); err != nil {
			return err
		}
	}
	if current.Repeat != want.Repeat {
		if err := e.host.SetRepeat(ctx, want.Repeat); err != nil {
			return err
		}
	}
	if current.Single != want.Single {
		if err := e.host.SetSingle(ctx, want.Single); err != nil {
			return err
		}
	}
	return nil
}

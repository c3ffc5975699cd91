package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/trackuri"
)

// Client drives the remote device bound to this process.
type Client struct {
	remote     Remote
	deviceName string
	cache      *SnapshotCache
	logger     logrus.FieldLogger

	mu       sync.RWMutex
	deviceID string
}

// NewClient creates a Client for the device with the given name. The device
// is not resolved until ResolveDevice is called.
func NewClient(remote Remote, deviceName string, cache *SnapshotCache, logger logrus.FieldLogger) *Client {
	if cache == nil {
		cache = NewSnapshotCache(0)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		remote:     remote,
		deviceName: deviceName,
		cache:      cache,
		logger:     logger.WithField("component", "session"),
	}
}

// DeviceName returns the configured device name.
func (c *Client) DeviceName() string {
	return c.deviceName
}

// DeviceID returns the bound device id, empty while unresolved.
func (c *Client) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}

// Cache returns the snapshot cache.
func (c *Client) Cache() *SnapshotCache {
	return c.cache
}

// InvalidateSnapshot forces the next Snapshot call to hit the remote.
func (c *Client) InvalidateSnapshot() {
	c.cache.Invalidate()
}

// ResolveDevice binds the first visible device whose name equals the
// configured name. When none matches the previous binding is kept and
// ErrDeviceNotResolved is returned.
func (c *Client) ResolveDevice(ctx context.Context) (string, error) {
	devices, err := c.remote.Devices(ctx)
	if err != nil {
		return "", err
	}

	for _, d := range devices {
		if d.Name != c.deviceName {
			continue
		}
		c.mu.Lock()
		previous := c.deviceID
		c.deviceID = d.ID
		c.mu.Unlock()
		c.cache.Invalidate()

		if previous != d.ID {
			c.logger.WithFields(logrus.Fields{
				"device_id":   d.ID,
				"device_name": d.Name,
			}).Info("Bound remote device")
		}
		return d.ID, nil
	}

	c.logger.WithField("device_name", c.deviceName).Warn("No remote device with configured name")
	return "", ErrDeviceNotResolved
}

// IsBoundDeviceActive reports whether the remote's active device is the
// bound one.
func (c *Client) IsBoundDeviceActive(ctx context.Context) (bool, error) {
	deviceID := c.DeviceID()
	if deviceID == "" {
		return false, nil
	}

	devices, err := c.remote.Devices(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range devices {
		if d.Active {
			return d.ID == deviceID, nil
		}
	}
	return false, nil
}

// Snapshot returns the current playback state of the bound device, or nil
// when no device is bound or another device is playing.
func (c *Client) Snapshot(ctx context.Context) (*PlaybackSnapshot, error) {
	deviceID := c.DeviceID()
	if deviceID == "" {
		return nil, nil
	}

	snapshot, err := c.cache.GetOrFetch(func() (*PlaybackSnapshot, error) {
		return c.remote.PlaybackState(ctx)
	})
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.DeviceID != deviceID {
		return nil, nil
	}
	return snapshot, nil
}

// Play starts playback on the bound device. With an empty trackURI playback
// is transferred to the device; otherwise the track is started, inside
// contextURI (or a context embedded in trackURI) when one is known. Play is
// a no-op when the device is already on the requested track, playing or
// paused, or is already playing when no track is requested.
func (c *Client) Play(ctx context.Context, trackURI, contextURI string) error {
	if c.DeviceID() == "" {
		if _, err := c.ResolveDevice(ctx); err != nil {
			if errors.Is(err, ErrDeviceNotResolved) {
				c.logger.Info("Skipping play, no device bound")
				return nil
			}
			return err
		}
	}

	track, embedded := trackuri.SplitContext(trackURI)
	if contextURI == "" {
		contextURI = embedded
	}

	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snapshot != nil {
		if track == "" && snapshot.IsPlaying {
			return nil
		}
		if track != "" && trackuri.Matches(snapshot.TrackURI, track) {
			return nil
		}
	}

	if track == "" {
		return c.withDeviceRecovery(ctx, "transfer playback", func(deviceID string) error {
			return c.remote.TransferPlayback(ctx, deviceID, true)
		})
	}

	opts := StartOptions{URIs: []string{track}}
	if contextURI != "" {
		opts = StartOptions{ContextURI: contextURI, OffsetURI: track}
	}
	return c.withDeviceRecovery(ctx, "start playback", func(deviceID string) error {
		return c.remote.StartPlayback(ctx, deviceID, opts)
	})
}

// Pause pauses the bound device. No-op without a snapshot.
func (c *Client) Pause(ctx context.Context) error {
	snapshot, err := c.Snapshot(ctx)
	if err != nil || snapshot == nil {
		return err
	}
	return c.withDeviceRecovery(ctx, "pause", func(deviceID string) error {
		return c.remote.Pause(ctx, deviceID)
	})
}

// Seek moves the bound device to positionMs. No-op without a snapshot.
func (c *Client) Seek(ctx context.Context, positionMs int) error {
	snapshot, err := c.Snapshot(ctx)
	if err != nil || snapshot == nil {
		return err
	}
	return c.withDeviceRecovery(ctx, "seek", func(deviceID string) error {
		return c.remote.Seek(ctx, deviceID, positionMs)
	})
}

// Volume returns the device volume and whether it is known.
func (c *Client) Volume(ctx context.Context) (int, bool, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return 0, false, err
	}
	if snapshot == nil || snapshot.VolumePercent == nil {
		return 0, false, nil
	}
	return *snapshot.VolumePercent, true, nil
}

// SetVolume sets the device volume. No-op unless the bound device is active.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	active, err := c.IsBoundDeviceActive(ctx)
	if err != nil || !active {
		return err
	}
	return c.withDeviceRecovery(ctx, "set volume", func(deviceID string) error {
		return c.remote.SetVolume(ctx, deviceID, percent)
	})
}

// SetShuffle sets the device shuffle flag. No-op unless the bound device is
// active.
func (c *Client) SetShuffle(ctx context.Context, on bool) error {
	active, err := c.IsBoundDeviceActive(ctx)
	if err != nil || !active {
		return err
	}
	return c.withDeviceRecovery(ctx, "set shuffle", func(deviceID string) error {
		return c.remote.SetShuffle(ctx, deviceID, on)
	})
}

// SetRepeat sets the device repeat mode. No-op unless the bound device is
// active.
func (c *Client) SetRepeat(ctx context.Context, state RepeatState) error {
	active, err := c.IsBoundDeviceActive(ctx)
	if err != nil || !active {
		return err
	}
	return c.withDeviceRecovery(ctx, "set repeat", func(deviceID string) error {
		return c.remote.SetRepeat(ctx, deviceID, state)
	})
}

// CurrentPositionMs returns the device position, 0 without a snapshot.
func (c *Client) CurrentPositionMs(ctx context.Context) (int, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil || snapshot == nil {
		return 0, err
	}
	return snapshot.PositionMs, nil
}

// withDeviceRecovery runs call against the bound device. When the remote
// reports the device missing, the identity is re-resolved once and call is
// retried; a second miss returns a *DeviceLostError.
func (c *Client) withDeviceRecovery(ctx context.Context, op string, call func(deviceID string) error) error {
	defer c.cache.Invalidate()

	err := call(c.DeviceID())
	if !errors.Is(err, ErrDeviceNotFound) {
		return err
	}

	log := c.logger.WithFields(logrus.Fields{"op": op, "device_id": c.DeviceID()})
	log.Warn("Remote reports device missing, re-resolving")

	if _, rerr := c.ResolveDevice(ctx); rerr != nil {
		return &DeviceLostError{Op: op, Cause: rerr}
	}

	err = call(c.DeviceID())
	if errors.Is(err, ErrDeviceNotFound) {
		log.Error("Device still missing after re-resolve")
		return &DeviceLostError{Op: op, Cause: err}
	}
	return err
}

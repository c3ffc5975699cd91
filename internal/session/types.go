package session

import "context"

// RepeatState is the device player's repeat mode.
type RepeatState string

const (
	RepeatOff     RepeatState = "off"
	RepeatContext RepeatState = "context"
	RepeatTrack   RepeatState = "track"
)

// Device is one entry of the remote device list.
type Device struct {
	ID            string
	Name          string
	Active        bool
	VolumePercent *int
}

// PlaybackSnapshot is a point-in-time read of the remote transport state.
type PlaybackSnapshot struct {
	DeviceID      string
	IsPlaying     bool
	TrackURI      string
	ContextURI    string
	PositionMs    int
	VolumePercent *int
	Shuffle       bool
	Repeat        RepeatState
}

// StartOptions selects what a start-playback call plays. URIs and ContextURI
// are mutually exclusive; OffsetURI positions playback within the context.
type StartOptions struct {
	URIs       []string
	ContextURI string
	OffsetURI  string
}

// Remote is the remote control API the client drives. Implementations
// return ErrDeviceNotFound when the given device id is unknown, and a nil
// snapshot when nothing is playing on the account.
type Remote interface {
	Devices(ctx context.Context) ([]Device, error)
	PlaybackState(ctx context.Context) (*PlaybackSnapshot, error)
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	StartPlayback(ctx context.Context, deviceID string, opts StartOptions) error
	Pause(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, deviceID string, positionMs int) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	SetShuffle(ctx context.Context, deviceID string, on bool) error
	SetRepeat(ctx context.Context, deviceID string, state RepeatState) error
}

// Package host defines the contract the reconciliation engine uses to read
// and drive the host media player.
package host

import "context"

// PlaybackState is the host transport state.
type PlaybackState string

const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// Track is a playable item known to the host library.
type Track struct {
	URI    string `json:"uri"`
	Name   string `json:"name,omitempty"`
	Length int    `json:"length,omitempty"`
}

// TlTrack is a tracklist entry. TLID is unique within the host tracklist.
type TlTrack struct {
	TLID  int   `json:"tlid"`
	Track Track `json:"track"`
}

// Options are the host tracklist playback modes.
type Options struct {
	Random bool `json:"random"`
	Repeat bool `json:"repeat"`
	Single bool `json:"single"`
}

// Playback reads and drives the host transport.
type Playback interface {
	State(ctx context.Context) (PlaybackState, error)
	SetState(ctx context.Context, state PlaybackState) error
	CurrentTlTrack(ctx context.Context) (*TlTrack, error)
	Play(ctx context.Context, tlid int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	// ScheduleNext asks the host to advance as it would when the current
	// track is about to finish.
	ScheduleNext(ctx context.Context) error
}

// Tracklist reads and grows the host tracklist.
type Tracklist interface {
	TlTracks(ctx context.Context) ([]TlTrack, error)
	Add(ctx context.Context, uris []string) ([]TlTrack, error)
	// NextEntry returns the entry following current, or nil at the end.
	NextEntry(ctx context.Context, current *TlTrack) (*TlTrack, error)
	Options(ctx context.Context) (Options, error)
	SetRandom(ctx context.Context, on bool) error
	SetRepeat(ctx context.Context, on bool) error
	SetSingle(ctx context.Context, on bool) error
}

// Mixer reads and drives the host volume.
type Mixer interface {
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, volume int) error
	Mute(ctx context.Context) (bool, error)
	SetMute(ctx context.Context, mute bool) error
}

// Library resolves URIs, including album and playlist contexts, to tracks.
type Library interface {
	Lookup(ctx context.Context, uri string) ([]Track, error)
}

// Notifier receives fire-and-forget notifications for host listeners.
// Implementations must not block the caller.
type Notifier interface {
	StreamChanged(uri string)
	PositionChanged(positionMs int)
	Seeked(positionMs int)
	ReachedEndOfStream()
}

// Adapter is the full host surface used by the engine.
type Adapter interface {
	Playback
	Tracklist
	Mixer
	Library
	Notifier
}

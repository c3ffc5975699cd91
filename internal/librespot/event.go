package librespot

import "github.com/strefethen/connect-bridge-go/internal/trackuri"

// Kind identifies a device player lifecycle notification.
type Kind string

const (
	KindStart     Kind = "start"
	KindStop      Kind = "stop"
	KindChange    Kind = "change"
	KindPlaying   Kind = "playing"
	KindPaused    Kind = "paused"
	KindVolumeSet Kind = "volume_set"
)

// Event is one validated notification from the device player. The concrete
// types below are the only implementations; consumers switch on them.
type Event interface {
	Kind() Kind
	// TrackID returns the bare track id, empty when the event carries none.
	TrackID() string
	isEvent()
}

// Start is emitted when the device player session starts.
type Start struct {
	Track string
}

// Stop is emitted when the device player session stops.
type Stop struct {
	Track string
}

// Change is emitted when the device player switches tracks.
type Change struct {
	Track    string
	OldTrack string
}

// Playing is emitted when playback starts or resumes, and after seeks.
type Playing struct {
	Track      string
	PositionMs int
	DurationMs int
}

// Paused is emitted when playback pauses, including at end of track.
type Paused struct {
	Track      string
	PositionMs int
	DurationMs int
}

// VolumeSet is emitted when the device volume changes. Volume is 0-100.
type VolumeSet struct {
	Track  string
	Volume int
}

func (Start) Kind() Kind     { return KindStart }
func (Stop) Kind() Kind      { return KindStop }
func (Change) Kind() Kind    { return KindChange }
func (Playing) Kind() Kind   { return KindPlaying }
func (Paused) Kind() Kind    { return KindPaused }
func (VolumeSet) Kind() Kind { return KindVolumeSet }

func (e Start) TrackID() string     { return e.Track }
func (e Stop) TrackID() string      { return e.Track }
func (e Change) TrackID() string    { return e.Track }
func (e Playing) TrackID() string   { return e.Track }
func (e Paused) TrackID() string    { return e.Track }
func (e VolumeSet) TrackID() string { return e.Track }

func (Start) isEvent()     {}
func (Stop) isEvent()      {}
func (Change) isEvent()    {}
func (Playing) isEvent()   {}
func (Paused) isEvent()    {}
func (VolumeSet) isEvent() {}

// TrackURI returns the namespaced URI of the event's track, or "" when the
// event has no track.
func TrackURI(e Event) string {
	return trackuri.FromID(e.TrackID())
}

package mopidy

import (
	"context"

	"github.com/samber/lo"

	"github.com/strefethen/connect-bridge-go/internal/host"
)

// Adapter implements host.Adapter over the JSON-RPC client. Notifications
// are forwarded to the configured notifier.
type Adapter struct {
	rpc *Client
	host.Notifier
}

var _ host.Adapter = (*Adapter)(nil)

// NewAdapter creates an Adapter. A nil notifier discards notifications.
func NewAdapter(rpc *Client, notifier host.Notifier) *Adapter {
	if notifier == nil {
		notifier = discard{}
	}
	return &Adapter{rpc: rpc, Notifier: notifier}
}

// wireTrack and wireTlTrack carry the model markers the host needs to
// decode tracklist entries passed back as parameters.
type wireTrack struct {
	Model  string `json:"__model__"`
	URI    string `json:"uri"`
	Name   string `json:"name,omitempty"`
	Length int    `json:"length,omitempty"`
}

type wireTlTrack struct {
	Model string    `json:"__model__"`
	TLID  int       `json:"tlid"`
	Track wireTrack `json:"track"`
}

func (w wireTlTrack) toHost() host.TlTrack {
	return host.TlTrack{TLID: w.TLID, Track: w.Track.toHost()}
}

func (w wireTrack) toHost() host.Track {
	return host.Track{URI: w.URI, Name: w.Name, Length: w.Length}
}

func toWire(t host.TlTrack) wireTlTrack {
	return wireTlTrack{
		Model: "TlTrack",
		TLID:  t.TLID,
		Track: wireTrack{Model: "Track", URI: t.Track.URI, Name: t.Track.Name, Length: t.Track.Length},
	}
}

func (a *Adapter) State(ctx context.Context) (host.PlaybackState, error) {
	var state string
	if err := a.rpc.Call(ctx, "core.playback.get_state", nil, &state); err != nil {
		return "", err
	}
	return host.PlaybackState(state), nil
}

func (a *Adapter) SetState(ctx context.Context, state host.PlaybackState) error {
	return a.rpc.Call(ctx, "core.playback.set_state", map[string]any{"new_state": string(state)}, nil)
}

func (a *Adapter) CurrentTlTrack(ctx context.Context) (*host.TlTrack, error) {
	var current *wireTlTrack
	if err := a.rpc.Call(ctx, "core.playback.get_current_tl_track", nil, &current); err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	t := current.toHost()
	return &t, nil
}

func (a *Adapter) Play(ctx context.Context, tlid int) error {
	return a.rpc.Call(ctx, "core.playback.play", map[string]any{"tlid": tlid}, nil)
}

func (a *Adapter) Pause(ctx context.Context) error {
	return a.rpc.Call(ctx, "core.playback.pause", nil, nil)
}

func (a *Adapter) Resume(ctx context.Context) error {
	return a.rpc.Call(ctx, "core.playback.resume", nil, nil)
}

func (a *Adapter) Stop(ctx context.Context) error {
	return a.rpc.Call(ctx, "core.playback.stop", nil, nil)
}

// ScheduleNext plays the entry the host would pick at end of track, or stops
// when there is none.
func (a *Adapter) ScheduleNext(ctx context.Context) error {
	current, err := a.CurrentTlTrack(ctx)
	if err != nil {
		return err
	}
	next, err := a.NextEntry(ctx, current)
	if err != nil {
		return err
	}
	if next == nil {
		return a.Stop(ctx)
	}
	return a.Play(ctx, next.TLID)
}

func (a *Adapter) TlTracks(ctx context.Context) ([]host.TlTrack, error) {
	var tracks []wireTlTrack
	if err := a.rpc.Call(ctx, "core.tracklist.get_tl_tracks", nil, &tracks); err != nil {
		return nil, err
	}
	return lo.Map(tracks, func(t wireTlTrack, _ int) host.TlTrack { return t.toHost() }), nil
}

func (a *Adapter) Add(ctx context.Context, uris []string) ([]host.TlTrack, error) {
	var added []wireTlTrack
	if err := a.rpc.Call(ctx, "core.tracklist.add", map[string]any{"uris": uris}, &added); err != nil {
		return nil, err
	}
	return lo.Map(added, func(t wireTlTrack, _ int) host.TlTrack { return t.toHost() }), nil
}

func (a *Adapter) NextEntry(ctx context.Context, current *host.TlTrack) (*host.TlTrack, error) {
	params := map[string]any{"tl_track": nil}
	if current != nil {
		params["tl_track"] = toWire(*current)
	}

	var next *wireTlTrack
	if err := a.rpc.Call(ctx, "core.tracklist.eot_track", params, &next); err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}
	t := next.toHost()
	return &t, nil
}

func (a *Adapter) Options(ctx context.Context) (host.Options, error) {
	var opts host.Options
	if err := a.rpc.Call(ctx, "core.tracklist.get_random", nil, &opts.Random); err != nil {
		return opts, err
	}
	if err := a.rpc.Call(ctx, "core.tracklist.get_repeat", nil, &opts.Repeat); err != nil {
		return opts, err
	}
	if err := a.rpc.Call(ctx, "core.tracklist.get_single", nil, &opts.Single); err != nil {
		return opts, err
	}
	return opts, nil
}

func (a *Adapter) SetRandom(ctx context.Context, on bool) error {
	return a.rpc.Call(ctx, "core.tracklist.set_random", map[string]any{"value": on}, nil)
}

func (a *Adapter) SetRepeat(ctx context.Context, on bool) error {
	return a.rpc.Call(ctx, "core.tracklist.set_repeat", map[string]any{"value": on}, nil)
}

func (a *Adapter) SetSingle(ctx context.Context, on bool) error {
	return a.rpc.Call(ctx, "core.tracklist.set_single", map[string]any{"value": on}, nil)
}

func (a *Adapter) Volume(ctx context.Context) (int, error) {
	var volume *int
	if err := a.rpc.Call(ctx, "core.mixer.get_volume", nil, &volume); err != nil {
		return 0, err
	}
	return lo.FromPtr(volume), nil
}

func (a *Adapter) SetVolume(ctx context.Context, volume int) error {
	return a.rpc.Call(ctx, "core.mixer.set_volume", map[string]any{"volume": volume}, nil)
}

func (a *Adapter) Mute(ctx context.Context) (bool, error) {
	var mute *bool
	if err := a.rpc.Call(ctx, "core.mixer.get_mute", nil, &mute); err != nil {
		return false, err
	}
	return lo.FromPtr(mute), nil
}

func (a *Adapter) SetMute(ctx context.Context, mute bool) error {
	return a.rpc.Call(ctx, "core.mixer.set_mute", map[string]any{"mute": mute}, nil)
}

// Lookup resolves a track, album or playlist URI to its tracks.
func (a *Adapter) Lookup(ctx context.Context, uri string) ([]host.Track, error) {
	var result map[string][]wireTrack
	if err := a.rpc.Call(ctx, "core.library.lookup", map[string]any{"uris": []string{uri}}, &result); err != nil {
		return nil, err
	}
	return lo.Map(result[uri], func(t wireTrack, _ int) host.Track { return t.toHost() }), nil
}

type discard struct{}

func (discard) StreamChanged(string) {}
func (discard) PositionChanged(int)  {}
func (discard) Seeked(int)           {}
func (discard) ReachedEndOfStream()  {}

package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/strefethen/connect-bridge-go/internal/host"
	"github.com/strefethen/connect-bridge-go/internal/session"
)

// fakeHost is an in-memory host that records every mutating call and
// notification in order.
type fakeHost struct {
	mu        sync.Mutex
	state     host.PlaybackState
	current   *host.TlTrack
	tracklist []host.TlTrack
	options   host.Options
	volume    int
	mute      bool
	library   map[string][]host.Track
	nextTLID  int

	calls []string
	notes []string

	failOn map[string]error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		state:    host.StateStopped,
		library:  map[string][]host.Track{},
		nextTLID: 1,
		failOn:   map[string]error{},
	}
}

func (f *fakeHost) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeHost) callsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeHost) notesSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notes...)
}

func (f *fakeHost) count(call string) int {
	n := 0
	for _, c := range f.callsSnapshot() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeHost) seed(uris ...string) []host.TlTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendLocked(uris)
}

func (f *fakeHost) appendLocked(uris []string) []host.TlTrack {
	added := make([]host.TlTrack, 0, len(uris))
	for _, uri := range uris {
		entry := host.TlTrack{TLID: f.nextTLID, Track: host.Track{URI: uri}}
		f.nextTLID++
		f.tracklist = append(f.tracklist, entry)
		added = append(added, entry)
	}
	return added
}

func (f *fakeHost) State(context.Context) (host.PlaybackState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeHost) SetState(_ context.Context, state host.PlaybackState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	return f.record("set_state:" + string(state))
}

func (f *fakeHost) CurrentTlTrack(context.Context) (*host.TlTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	cp := *f.current
	return &cp, nil
}

func (f *fakeHost) Play(_ context.Context, tlid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("play:%d", tlid)); err != nil {
		return err
	}
	for i := range f.tracklist {
		if f.tracklist[i].TLID == tlid {
			cp := f.tracklist[i]
			f.current = &cp
			f.state = host.StatePlaying
			return nil
		}
	}
	return fmt.Errorf("no tlid %d", tlid)
}

func (f *fakeHost) Pause(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = host.StatePaused
	return f.record("pause")
}

func (f *fakeHost) Resume(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = host.StatePlaying
	return f.record("resume")
}

func (f *fakeHost) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = host.StateStopped
	return f.record("stop")
}

func (f *fakeHost) ScheduleNext(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("schedule_next")
}

func (f *fakeHost) TlTracks(context.Context) ([]host.TlTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.TlTrack(nil), f.tracklist...), nil
}

func (f *fakeHost) Add(_ context.Context, uris []string) ([]host.TlTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("add:%d", len(uris))); err != nil {
		return nil, err
	}
	return f.appendLocked(uris), nil
}

func (f *fakeHost) NextEntry(_ context.Context, current *host.TlTrack) (*host.TlTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if current == nil {
		return nil, nil
	}
	for i := range f.tracklist {
		if f.tracklist[i].TLID == current.TLID && i+1 < len(f.tracklist) {
			next := f.tracklist[i+1]
			return &next, nil
		}
	}
	return nil, nil
}

func (f *fakeHost) Options(context.Context) (host.Options, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options, nil
}

func (f *fakeHost) SetRandom(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options.Random = on
	return f.record(fmt.Sprintf("random:%t", on))
}

func (f *fakeHost) SetRepeat(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options.Repeat = on
	return f.record(fmt.Sprintf("repeat:%t", on))
}

func (f *fakeHost) SetSingle(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options.Single = on
	return f.record(fmt.Sprintf("single:%t", on))
}

func (f *fakeHost) Volume(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, nil
}

func (f *fakeHost) SetVolume(_ context.Context, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	return f.record(fmt.Sprintf("volume:%d", volume))
}

func (f *fakeHost) Mute(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mute, nil
}

func (f *fakeHost) SetMute(_ context.Context, mute bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mute = mute
	return f.record(fmt.Sprintf("mute:%t", mute))
}

func (f *fakeHost) Lookup(_ context.Context, uri string) ([]host.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.library[uri], nil
}

func (f *fakeHost) StreamChanged(uri string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, "stream_changed:"+uri)
}

func (f *fakeHost) PositionChanged(positionMs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, fmt.Sprintf("position_changed:%d", positionMs))
}

func (f *fakeHost) Seeked(positionMs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, fmt.Sprintf("seeked:%d", positionMs))
}

func (f *fakeHost) ReachedEndOfStream() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, "end_of_stream")
}

// fakeDevice stands in for the session client.
type fakeDevice struct {
	mu            sync.Mutex
	active        bool
	snapshot      *session.PlaybackSnapshot
	snapshotErr   error
	invalidations int
	volumes       []int
}

func (d *fakeDevice) IsBoundDeviceActive(context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, nil
}

func (d *fakeDevice) Snapshot(context.Context) (*session.PlaybackSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapshotErr != nil {
		return nil, d.snapshotErr
	}
	if d.snapshot == nil {
		return nil, nil
	}
	cp := *d.snapshot
	return &cp, nil
}

func (d *fakeDevice) InvalidateSnapshot() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidations++
}

func (d *fakeDevice) SetVolume(_ context.Context, percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volumes = append(d.volumes, percent)
	return nil
}

func (d *fakeDevice) setTrack(uri string, playing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapshot == nil {
		d.snapshot = &session.PlaybackSnapshot{DeviceID: "dev-1", Repeat: session.RepeatOff}
	}
	d.snapshot.TrackURI = uri
	d.snapshot.IsPlaying = playing
}

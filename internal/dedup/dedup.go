package dedup

import (
	"strconv"
	"sync"

	"github.com/strefethen/connect-bridge-go/internal/librespot"
	"github.com/strefethen/connect-bridge-go/internal/trackuri"
)

// Signature identifies an event for duplicate detection.
type Signature struct {
	Kind    librespot.Kind
	TrackID string
	// Detail distinguishes events that carry no track, currently the target
	// volume of a VolumeSet.
	Detail string
}

// SignatureOf returns the duplicate-detection signature of an event.
func SignatureOf(event librespot.Event) Signature {
	sig := Signature{
		Kind:    event.Kind(),
		TrackID: trackuri.BareID(event.TrackID()),
	}
	if v, ok := event.(librespot.VolumeSet); ok {
		sig.Detail = strconv.Itoa(v.Volume)
	}
	return sig
}

// LastAcceptedEvent holds the signature of the most recently accepted event.
// It starts at the zero sentinel and lives for the lifetime of the process.
type LastAcceptedEvent struct {
	mu      sync.Mutex
	current Signature
	set     bool
}

// NewLastAcceptedEvent returns state initialised to the sentinel.
func NewLastAcceptedEvent() *LastAcceptedEvent {
	return &LastAcceptedEvent{}
}

// Get returns the current signature and whether any event has been accepted.
func (l *LastAcceptedEvent) Get() (Signature, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, l.set
}

// compareAndSwap stores sig unless it equals the current value. It reports
// whether the store happened.
func (l *LastAcceptedEvent) compareAndSwap(sig Signature) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.set && l.current == sig {
		return false
	}
	l.current = sig
	l.set = true
	return true
}

// reset returns to the sentinel when sig is still current.
func (l *LastAcceptedEvent) reset(sig Signature) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.set || l.current != sig {
		return
	}
	l.current = Signature{}
	l.set = false
}

// Deduplicator drops an event identical to the immediately preceding
// accepted event.
type Deduplicator struct {
	state *LastAcceptedEvent
}

// New creates a Deduplicator over the given state. A nil state gets a fresh
// sentinel.
func New(state *LastAcceptedEvent) *Deduplicator {
	if state == nil {
		state = NewLastAcceptedEvent()
	}
	return &Deduplicator{state: state}
}

// Accept returns false for a duplicate. Otherwise it records the event as the
// last accepted one and returns true.
func (d *Deduplicator) Accept(event librespot.Event) bool {
	return d.state.compareAndSwap(SignatureOf(event))
}

// Release forgets event when its handling failed, so that a redelivery by
// the sender is processed instead of absorbed. State returns to the sentinel
// rather than to the earlier event, which would otherwise mask it.
func (d *Deduplicator) Release(event librespot.Event) {
	d.state.reset(SignatureOf(event))
}

// State exposes the underlying state for inspection.
func (d *Deduplicator) State() *LastAcceptedEvent {
	return d.state
}

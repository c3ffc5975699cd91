package librespot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/strefethen/connect-bridge-go/internal/trackuri"
)

var (
	// ErrMalformed is returned when the body is not a JSON object.
	ErrMalformed = errors.New("missing or invalid payload")
	// ErrInvalid is returned when required fields are missing or out of range.
	ErrInvalid = errors.New("invalid JSON payload")
)

// ValidationError describes the offending field of a rejected payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Payload is the wire shape posted by the device player's event hook.
// Pointers distinguish absent fields from zero values.
type Payload struct {
	Event      *string `json:"event"`
	TrackID    *string `json:"trackID"`
	OldTrackID *string `json:"oldTrackID,omitempty"`
	DurationMS *int    `json:"durationMS,omitempty"`
	PositionMS *int    `json:"positionMS,omitempty"`
	Volume     *int    `json:"volume,omitempty"`
}

// Decode parses and validates a webhook body.
func Decode(body []byte) (Event, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return payload.ToEvent()
}

// ToEvent converts a decoded payload into a validated Event.
func (p Payload) ToEvent() (Event, error) {
	if p.Event == nil {
		return nil, &ValidationError{Field: "event", Reason: "required"}
	}
	if p.TrackID == nil {
		return nil, &ValidationError{Field: "trackID", Reason: "required"}
	}
	track := trackuri.BareID(*p.TrackID)

	switch Kind(*p.Event) {
	case KindStart:
		return Start{Track: track}, nil
	case KindStop:
		return Stop{Track: track}, nil
	case KindChange:
		if p.OldTrackID == nil {
			return nil, &ValidationError{Field: "oldTrackID", Reason: "required for change"}
		}
		if track == "" {
			return nil, &ValidationError{Field: "trackID", Reason: "must not be empty for change"}
		}
		return Change{Track: track, OldTrack: trackuri.BareID(*p.OldTrackID)}, nil
	case KindPlaying, KindPaused:
		position, duration, err := p.progress()
		if err != nil {
			return nil, err
		}
		if track == "" {
			return nil, &ValidationError{Field: "trackID", Reason: "must not be empty for " + *p.Event}
		}
		if Kind(*p.Event) == KindPlaying {
			return Playing{Track: track, PositionMs: position, DurationMs: duration}, nil
		}
		return Paused{Track: track, PositionMs: position, DurationMs: duration}, nil
	case KindVolumeSet:
		if p.Volume == nil {
			return nil, &ValidationError{Field: "volume", Reason: "required for volume_set"}
		}
		if *p.Volume < 0 || *p.Volume > 100 {
			return nil, &ValidationError{Field: "volume", Reason: "must be between 0 and 100"}
		}
		return VolumeSet{Track: track, Volume: *p.Volume}, nil
	default:
		return nil, &ValidationError{Field: "event", Reason: fmt.Sprintf("unknown event %q", *p.Event)}
	}
}

func (p Payload) progress() (int, int, error) {
	if p.PositionMS == nil {
		return 0, 0, &ValidationError{Field: "positionMS", Reason: "required for " + *p.Event}
	}
	if p.DurationMS == nil {
		return 0, 0, &ValidationError{Field: "durationMS", Reason: "required for " + *p.Event}
	}
	if *p.PositionMS < 0 {
		return 0, 0, &ValidationError{Field: "positionMS", Reason: "must not be negative"}
	}
	if *p.DurationMS < 0 {
		return 0, 0, &ValidationError{Field: "durationMS", Reason: "must not be negative"}
	}
	return *p.PositionMS, *p.DurationMS, nil
}

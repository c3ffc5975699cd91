package session

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotResolved is returned when no visible device carries the
	// configured name.
	ErrDeviceNotResolved = errors.New("device not resolved")

	// ErrDeviceNotFound is returned by a Remote when the device id it was
	// given no longer exists.
	ErrDeviceNotFound = errors.New("device not found")
)

// DeviceLostError is returned when a call still reports the device missing
// after the identity was re-resolved and the call retried once.
type DeviceLostError struct {
	Op    string
	Cause error
}

func (e *DeviceLostError) Error() string {
	return fmt.Sprintf("%s: device lost after re-resolve: %v", e.Op, e.Cause)
}

func (e *DeviceLostError) Unwrap() []error {
	if e.Cause == nil || errors.Is(e.Cause, ErrDeviceNotFound) {
		return []error{ErrDeviceNotFound}
	}
	return []error{ErrDeviceNotFound, e.Cause}
}

// RemoteError is a non-device failure reported by the remote control API.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
}

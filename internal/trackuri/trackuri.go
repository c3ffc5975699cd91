package trackuri

import "strings"

// Namespace prefixes used by the device player's remote catalog.
const (
	Scheme      = "spotify:"
	TrackPrefix = "spotify:track:"

	// contextSeparator joins a track URI with the album/playlist it was queued from.
	contextSeparator = "#context="
)

// FromID builds a track URI from a bare id. Values that already carry the
// track prefix are returned unchanged.
func FromID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, TrackPrefix) {
		return id
	}
	return TrackPrefix + id
}

// BareID strips the track prefix and any embedded context, returning the
// canonical id used for equality checks.
func BareID(uri string) string {
	uri, _ = SplitContext(strings.TrimSpace(uri))
	return strings.TrimPrefix(uri, TrackPrefix)
}

// InNamespace reports whether a URI belongs to the device player's catalog.
func InNamespace(uri string) bool {
	return strings.HasPrefix(uri, Scheme)
}

// Matches reports whether candidate refers to the same track as target.
// candidate may carry an embedded context or other suffix; target must be the
// bare track URI. The character after the shared prefix must end the id so
// that "spotify:track:abc" does not match "spotify:track:abcd".
func Matches(candidate, target string) bool {
	if candidate == "" || target == "" {
		return false
	}
	if !strings.HasPrefix(candidate, target) {
		return false
	}
	if len(candidate) == len(target) {
		return true
	}
	switch candidate[len(target)] {
	case '#', '?', ':':
		return true
	}
	return false
}

// WithContext embeds the context URI into a track URI so that later playback
// requests can restore "what plays next" on the device.
func WithContext(trackURI, contextURI string) string {
	if contextURI == "" {
		return trackURI
	}
	base, _ := SplitContext(trackURI)
	return base + contextSeparator + contextURI
}

// SplitContext separates an embedded context URI from a track URI.
func SplitContext(uri string) (track string, context string) {
	idx := strings.Index(uri, contextSeparator)
	if idx < 0 {
		return uri, ""
	}
	return uri[:idx], uri[idx+len(contextSeparator):]
}

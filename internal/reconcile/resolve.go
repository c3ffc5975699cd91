package reconcile

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/host"
	"github.com/strefethen/connect-bridge-go/internal/trackuri"
)

// changeTrack makes target the playing host entry and announces the new
// stream. A foreign source playing on the host is stopped first.
func (e *Engine) changeTrack(ctx context.Context, target string, log logrus.FieldLogger) error {
	current, err := e.host.CurrentTlTrack(ctx)
	if err != nil {
		return err
	}
	if current != nil && !trackuri.InNamespace(current.Track.URI) {
		log.WithField("host_track", current.Track.URI).Info("Stopping foreign source")
		if err := e.host.Stop(ctx); err != nil {
			return err
		}
	}

	entry, err := e.resolveTrack(ctx, target, log)
	if err != nil {
		return err
	}

	log.WithField("tlid", entry.TLID).Info("Playing device track on host")
	if err := e.host.Play(ctx, entry.TLID); err != nil {
		return err
	}
	e.host.StreamChanged(target)
	return nil
}

// resolveTrack returns the tracklist entry for target, adding it when it is
// missing. When the device is playing target inside a known context, the
// whole context is added so the host knows what plays next.
func (e *Engine) resolveTrack(ctx context.Context, target string, log logrus.FieldLogger) (host.TlTrack, error) {
	tracks, err := e.host.TlTracks(ctx)
	if err != nil {
		return host.TlTrack{}, err
	}
	if entry, ok := findTrack(tracks, target); ok {
		return entry, nil
	}

	contextURI, err := e.knownContext(ctx, target)
	if err != nil {
		return host.TlTrack{}, err
	}

	if contextURI != "" {
		entry, ok, err := e.addContext(ctx, target, contextURI, log)
		if err != nil {
			return host.TlTrack{}, err
		}
		if ok {
			return entry, nil
		}
	}

	added, err := e.host.Add(ctx, []string{target})
	if err != nil {
		return host.TlTrack{}, err
	}
	if len(added) == 0 {
		return host.TlTrack{}, fmt.Errorf("host added no entry for %s", target)
	}
	return added[0], nil
}

func (e *Engine) addContext(ctx context.Context, target, contextURI string, log logrus.FieldLogger) (host.TlTrack, bool, error) {
	contextTracks, err := e.host.Lookup(ctx, contextURI)
	if err != nil {
		return host.TlTrack{}, false, err
	}
	if len(contextTracks) == 0 {
		return host.TlTrack{}, false, nil
	}

	uris := lo.Map(contextTracks, func(t host.Track, _ int) string {
		return trackuri.WithContext(t.URI, contextURI)
	})

	log.WithFields(logrus.Fields{
		"context": contextURI,
		"tracks":  len(uris),
	}).Info("Adding device context to tracklist")

	added, err := e.host.Add(ctx, uris)
	if err != nil {
		return host.TlTrack{}, false, err
	}
	entry, ok := findTrack(added, target)
	return entry, ok, nil
}

// knownContext returns the context the device is playing target from, if
// the device snapshot is on that track.
func (e *Engine) knownContext(ctx context.Context, target string) (string, error) {
	snapshot, err := e.device.Snapshot(ctx)
	if err != nil || snapshot == nil {
		return "", err
	}
	if !trackuri.Matches(snapshot.TrackURI, target) {
		return "", nil
	}
	return snapshot.ContextURI, nil
}

func findTrack(tracks []host.TlTrack, target string) (host.TlTrack, bool) {
	return lo.Find(tracks, func(t host.TlTrack) bool {
		return trackuri.Matches(t.Track.URI, target)
	})
}

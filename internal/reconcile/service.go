package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/api"
	"github.com/strefethen/connect-bridge-go/internal/audit"
	"github.com/strefethen/connect-bridge-go/internal/dedup"
	"github.com/strefethen/connect-bridge-go/internal/librespot"
)

// Journal records the outcome of each delivery.
type Journal interface {
	RecordEvent(input audit.WriteEventInput) (*audit.AuditEvent, error)
}

// Service runs deduplication and reconciliation for webhook deliveries, one
// at a time.
type Service struct {
	engine      *Engine
	dedup       *dedup.Deduplicator
	lock        *Lock
	lockTimeout time.Duration
	journal     Journal
	logger      logrus.FieldLogger
}

// Options configure a Service.
type Options struct {
	LockTimeout time.Duration
	// Journal is optional.
	Journal Journal
	Logger  logrus.FieldLogger
}

// NewService creates a Service.
func NewService(engine *Engine, deduplicator *dedup.Deduplicator, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if deduplicator == nil {
		deduplicator = dedup.New(nil)
	}
	return &Service{
		engine:      engine,
		dedup:       deduplicator,
		lock:        NewLock(logger),
		lockTimeout: opts.LockTimeout,
		journal:     opts.Journal,
		logger:      logger.WithField("component", "reconcile"),
	}
}

// Lock exposes the reconciliation lock so other host-driven work can share
// the critical section.
func (s *Service) Lock() *Lock {
	return s.lock
}

// Process deduplicates and reconciles one event. Duplicates return nil.
// A failed event is released from the deduplicator so a redelivery is
// processed.
func (s *Service) Process(ctx context.Context, event librespot.Event) error {
	start := time.Now()
	outcome := audit.OutcomeAccepted

	err := s.lock.WithLock(ctx, string(event.Kind()), s.lockTimeout, func() error {
		if !s.dedup.Accept(event) {
			outcome = audit.OutcomeDuplicate
			s.logger.WithFields(logrus.Fields{
				"event":    event.Kind(),
				"track_id": event.TrackID(),
			}).Debug("Dropping duplicate event")
			return nil
		}

		if err := s.engine.Handle(ctx, event); err != nil {
			s.dedup.Release(event)
			return err
		}
		return nil
	})

	if err != nil {
		outcome = audit.OutcomeFailed
		if errors.Is(err, ErrLockTimeout) {
			err = fmt.Errorf("%w: %v", librespot.ErrBusy, err)
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event":    event.Kind(),
			"track_id": event.TrackID(),
		}).Error("Reconciliation failed")
	}

	s.record(ctx, event, outcome, err, time.Since(start))
	return err
}

// Reject journals a payload that failed validation.
func (s *Service) Reject(ctx context.Context, cause error) {
	s.logger.WithError(cause).Info("Rejected device event payload")
	s.record(ctx, nil, audit.OutcomeRejected, cause, 0)
}

func (s *Service) record(ctx context.Context, event librespot.Event, outcome audit.Outcome, cause error, elapsed time.Duration) {
	if s.journal == nil {
		return
	}

	input := audit.WriteEventInput{
		Outcome:    outcome,
		Message:    "Librespot update handled",
		DurationMs: elapsed.Milliseconds(),
		RequestID:  requestIDFrom(ctx),
	}
	if event != nil {
		input.Kind = string(event.Kind())
		input.TrackID = event.TrackID()
		input.Payload = eventPayload(event)
	}
	if cause != nil {
		input.Message = cause.Error()
		level := audit.EventLevelError
		if outcome == audit.OutcomeRejected {
			level = audit.EventLevelWarn
		}
		input.Level = &level
	}

	if _, err := s.journal.RecordEvent(input); err != nil {
		s.logger.WithError(err).Warn("Failed to journal device event")
	}
}

func eventPayload(event librespot.Event) map[string]any {
	switch ev := event.(type) {
	case librespot.Change:
		return map[string]any{"old_track_id": ev.OldTrack}
	case librespot.Playing:
		return map[string]any{"position_ms": ev.PositionMs, "duration_ms": ev.DurationMs}
	case librespot.Paused:
		return map[string]any{"position_ms": ev.PositionMs, "duration_ms": ev.DurationMs}
	case librespot.VolumeSet:
		return map[string]any{"volume": ev.Volume}
	}
	return nil
}

func requestIDFrom(ctx context.Context) *string {
	if id := api.RequestIDFromContext(ctx); id != "" {
		return &id
	}
	return nil
}

package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/reconcile"
	"github.com/strefethen/connect-bridge-go/internal/session"
)

// Job names.
const (
	DeviceResolveJob = "device-resolve"
	AuditPruneJob    = "audit-prune"
)

// DeviceResolver binds the device identity.
type DeviceResolver interface {
	DeviceID() string
	ResolveDevice(ctx context.Context) (string, error)
}

// Locker is the reconciliation critical section.
type Locker interface {
	WithLock(ctx context.Context, owner string, timeout time.Duration, fn func() error) error
}

// Pruner removes journal entries past retention.
type Pruner interface {
	Prune() (int64, error)
}

// ResolveDevice returns a job that binds the device while no identity is
// bound. The binding is written under lock so it never changes in the middle
// of a reconciliation step; a busy lock skips the run until the next tick. A
// device that is simply not visible yet is not an error.
func ResolveDevice(resolver DeviceResolver, lock Locker, lockTimeout time.Duration, logger logrus.FieldLogger) Func {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(ctx context.Context) error {
		if resolver.DeviceID() != "" {
			return nil
		}

		var id string
		resolve := func() error {
			if resolver.DeviceID() != "" {
				return nil
			}
			var err error
			id, err = resolver.ResolveDevice(ctx)
			return err
		}

		var err error
		if lock != nil {
			err = lock.WithLock(ctx, DeviceResolveJob, lockTimeout, resolve)
		} else {
			err = resolve()
		}

		switch {
		case errors.Is(err, reconcile.ErrLockTimeout):
			logger.Debug("Reconciliation in progress, device resolve deferred")
			return nil
		case errors.Is(err, session.ErrDeviceNotResolved):
			logger.Debug("Device not visible yet")
			return nil
		case err != nil:
			return err
		}
		if id != "" {
			logger.WithField("device_id", id).Info("Device bound by background resolve")
		}
		return nil
	}
}

// PruneAudit returns a job that prunes the delivery journal.
func PruneAudit(pruner Pruner) Func {
	return func(context.Context) error {
		_, err := pruner.Prune()
		return err
	}
}

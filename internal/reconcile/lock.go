package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrLockTimeout is returned when the reconciliation lock is not acquired
// in time.
var ErrLockTimeout = errors.New("reconciliation lock timeout")

// DefaultLockTimeout bounds how long an event waits for the one in flight.
const DefaultLockTimeout = 10 * time.Second

// Lock serializes reconciliation steps. At most one holder runs at a time;
// waiters give up after their timeout.
type Lock struct {
	sem    chan struct{}
	logger logrus.FieldLogger

	mu       sync.Mutex
	lockTime time.Time
	owner    string
}

// NewLock creates an unlocked Lock.
func NewLock(logger logrus.FieldLogger) *Lock {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Lock{
		sem:    make(chan struct{}, 1),
		logger: logger,
	}
}

// WithLock runs fn while holding the lock. It returns ErrLockTimeout when
// the lock cannot be acquired within timeout, or ctx's error when ctx ends
// first.
func (l *Lock) WithLock(ctx context.Context, owner string, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
	case <-timer.C:
		l.logger.WithField("owner", owner).Warn("Timed out waiting for reconciliation lock")
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	l.lockTime = time.Now()
	l.owner = owner
	l.mu.Unlock()
	l.logger.WithField("owner", owner).Debug("Acquired reconciliation lock")

	defer func() {
		l.mu.Lock()
		l.lockTime = time.Time{}
		l.owner = ""
		l.mu.Unlock()
		<-l.sem
		l.logger.WithField("owner", owner).Debug("Released reconciliation lock")
	}()

	return fn()
}

// TryLock acquires the lock without blocking.
func (l *Lock) TryLock(owner string) bool {
	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.lockTime = time.Now()
		l.owner = owner
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Unlock releases a lock acquired with TryLock.
func (l *Lock) Unlock() {
	l.mu.Lock()
	l.lockTime = time.Time{}
	l.owner = ""
	l.mu.Unlock()
	select {
	case <-l.sem:
	default:
	}
}

// LockInfo reports whether the lock is held, by whom and for how long.
func (l *Lock) LockInfo() (locked bool, owner string, held time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockTime.IsZero() {
		return false, "", 0
	}
	return true, l.owner, time.Since(l.lockTime)
}

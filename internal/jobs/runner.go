// Package jobs runs the bridge's periodic background work on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = time.Minute

// Func is one run of a job.
type Func func(ctx context.Context) error

// Runner schedules named jobs. Overlapping runs of the same job are skipped.
type Runner struct {
	cron    *cron.Cron
	logger  logrus.FieldLogger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRunner creates a stopped Runner. Schedules accept the standard five
// cron fields and descriptors such as "@daily" or "@every 1m".
func NewRunner(logger logrus.FieldLogger) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "jobs")

	cronLogger := cronLogrus{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
			cron.WithLogger(cronLogger),
		),
		logger:  logger,
		timeout: DefaultJobTimeout,
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name. An empty schedule disables the job.
func (r *Runner) Add(name, schedule string, fn Func) error {
	if schedule == "" {
		r.logger.WithField("job", name).Info("Job disabled")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	id, err := r.cron.AddFunc(schedule, func() { r.run(name, fn) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	r.entries[name] = id
	return nil
}

// RunNow runs the named job synchronously, outside its schedule.
func (r *Runner) RunNow(name string, fn Func) {
	r.run(name, fn)
}

// Next returns the next scheduled run of the named job.
func (r *Runner) Next(name string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}

// Start begins scheduling in the background.
func (r *Runner) Start() {
	r.logger.WithField("jobs", len(r.entries)).Info("Job runner starting")
	r.cron.Start()
}

// Stop halts scheduling, cancels running jobs and waits for them to return
// or for ctx to end.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	r.cancel()
	select {
	case <-done.Done():
		r.logger.Info("Job runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(name string, fn Func) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	log := r.logger.WithField("job", name)
	start := time.Now()
	if err := fn(ctx); err != nil {
		log.WithError(err).Warn("Job failed")
		return
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Job finished")
}

// cronLogrus adapts logrus to cron.Logger.
type cronLogrus struct {
	logger logrus.FieldLogger
}

func (c cronLogrus) Info(msg string, keysAndValues ...interface{}) {
	c.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (c cronLogrus) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}

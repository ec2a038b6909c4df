package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
	"github.com/vsinha/mfgplan/pkg/infrastructure/locking"
)

const moduleName = "orchestration"

// ErrScopeBusy is returned when another job holds the scope
var ErrScopeBusy = errors.New("scope is busy")

// lockGrace keeps the lock alive a little past the job deadline so a
// cancelled job can finish rolling back before the scope frees up
const lockGrace = 5 * time.Second

// Job is one unit of planning work run under a scope lock
type Job func(ctx context.Context) error

// Runner runs jobs one at a time per scope with a deadline
type Runner struct {
	locker    locking.Locker
	timeout   time.Duration
	publisher events.Publisher
	logger    *logrus.Logger
}

// NewRunner creates a runner. A zero timeout means five minutes.
func NewRunner(locker locking.Locker, timeout time.Duration, publisher events.Publisher, logger *logrus.Logger) *Runner {
	if locker == nil {
		locker = locking.NewLocalLocker()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Runner{locker: locker, timeout: timeout, publisher: publisher, logger: logger}
}

// Run obtains scope, runs job under the runner's deadline and releases the
// scope. A held scope yields ErrScopeBusy without running job.
func (r *Runner) Run(ctx context.Context, scope string, job Job) error {
	lock, err := r.locker.Obtain(ctx, scope, r.timeout+lockGrace)
	if errors.Is(err, locking.ErrNotObtained) {
		config.LogWarning(r.logger, moduleName, "Run", scope, "scope is held by another job")
		return fmt.Errorf("%w: %s", ErrScopeBusy, scope)
	}
	if err != nil {
		config.LogError(r.logger, moduleName, "Run", "obtain lock", scope, err)
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			config.LogError(r.logger, moduleName, "Run", "release lock", scope, err)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	if err := job(jobCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("job %s exceeded %s: %w", scope, r.timeout, err)
		}
		r.fail(scope, err)
		return err
	}
	r.logger.WithFields(logrus.Fields{
		"module":  moduleName,
		"scope":   scope,
		"elapsed": time.Since(started).String(),
	}).Info("job completed")
	return nil
}

func (r *Runner) fail(scope string, err error) {
	config.LogError(r.logger, moduleName, "Run", "scope", scope, err)
	event := events.NewEvent(events.JobFailedEvent, scope, events.JobFailed{Scope: scope, Error: err.Error()})
	if perr := r.publisher.AppendEvent(scope, event); perr != nil {
		config.LogError(r.logger, moduleName, "fail", "event", events.JobFailedEvent, perr)
	}
}

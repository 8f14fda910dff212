package async

import (
	"context"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// SafeGo executes fn in a goroutine with a timeout, panic recovery and
// error logging. The logger is taken from parentCtx.
//
// Request handlers should detach the context first so the task outlives
// the request:
//
//	async.SafeGo(context.WithoutCancel(r.Context()), 5*time.Second, "support notification", func(ctx context.Context) error {
//	    return notifier.LimitsExceeded(ctx, orgID, err)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	logger := observability.FromContext(parentCtx).WithField("task", taskName)

	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Group runs a fixed set of tasks concurrently and waits for all of them.
// A panicking task is reported as an error rather than crashing the process.
type Group struct {
	timeout time.Duration
	tasks   []func(context.Context) error
}

// NewGroup creates a task group whose tasks share a single timeout.
func NewGroup(timeout time.Duration) *Group {
	return &Group{timeout: timeout}
}

// Go queues a task. Tasks start when Wait is called.
func (g *Group) Go(fn func(context.Context) error) {
	g.tasks = append(g.tasks, fn)
}

// Wait runs all queued tasks and returns their errors in submission order.
// Nil entries mean the task succeeded.
func (g *Group) Wait(ctx context.Context) []error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	errs := make([]error, len(g.tasks))
	done := make(chan struct{}, len(g.tasks))

	for i, fn := range g.tasks {
		go func(i int, fn func(context.Context) error) {
			defer func() { done <- struct{}{} }()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = &PanicError{Value: r}
				}
			}()
			errs[i] = fn(ctx)
		}(i, fn)
	}

	for range g.tasks {
		<-done
	}
	return errs
}

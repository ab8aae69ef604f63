package engine

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned by Race when the deadline fires before the task settles.
var ErrDeadline = errors.New("engine: deadline elapsed before task settled")

// Race runs task against a deadline timer. Whichever settles first decides the
// outcome: the task's own result, or ErrDeadline. When the deadline or the
// parent context wins, the task's context is cancelled and its eventual result
// is dropped; Race never waits for it.
//
// A task error that arrives before the deadline is returned as-is so the
// caller can fall back immediately instead of sitting out the timer.
func Race[T any](ctx context.Context, deadline time.Duration, task func(context.Context) (T, error)) (T, error) {
	type settled struct {
		val T
		err error
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the losing goroutine can always send and exit.
	done := make(chan settled, 1)
	go func() {
		v, err := task(taskCtx)
		done <- settled{val: v, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var zero T
	select {
	case s := <-done:
		return s.val, s.err
	case <-timer.C:
		return zero, ErrDeadline
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type outcome int

const (
	outcomeReturned outcome = iota
	outcomeTimedOut
	outcomeCanceled
	outcomePanicked
)

var errPanicked = errors.New("adapter panicked")

type result[T any] struct {
	value T
	err   error
}

// call runs fn in its own goroutine under a deadline and stops waiting when the deadline
// passes. A late result is dropped into a buffered channel nobody reads.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, outcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result[T]{value: zero, err: fmt.Errorf("%w: %v", errPanicked, r)}
			}
		}()
		v, err := fn(callCtx)
		done <- result[T]{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if errors.Is(r.err, errPanicked) {
			return zero, outcomePanicked, r.err
		}
		return r.value, outcomeReturned, r.err
	case <-callCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return zero, outcomeCanceled, ctx.Err()
		}
		return zero, outcomeTimedOut, nil
	}
}

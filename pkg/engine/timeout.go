package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when an evaluation exceeds its time limit.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrPanic is returned when the interpreter or a builtin panics.
	ErrPanic = errors.New("panic during evaluation")
)

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	res *EvalResult
	err error
}

// waitWithTimeout waits for a result from ch, bounded by limit and by ctx.
// On timeout the evaluating goroutine may still be running; ch is buffered
// so its eventual send never blocks.
func waitWithTimeout(ctx context.Context, ch <-chan evalResult, limit time.Duration) (*EvalResult, error) {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, limit)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

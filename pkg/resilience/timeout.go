package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// WithTimeout runs fn under a context that expires after timeout. An
// expired deadline is reported as apperrors.ErrTimeout; a cancelled parent
// is reported as its own error. fn keeps running in the background after a
// timeout and should honour its context.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%w: %s exceeded %v: %w", apperrors.ErrTimeout, name, timeout, context.DeadlineExceeded)
	}
}

package resolver

import (
	"context"
	"time"
)

// Poll calls check until it reports true or timeout elapses, waiting
// interval between calls. check always runs at least once. A timeout is a
// normal "not found" result; only cancellation of ctx returns an error.
func Poll(ctx context.Context, interval, timeout time.Duration, check func(context.Context) bool) (bool, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if check(pollCtx) {
			return true, nil
		}
		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return false, err
			}
			return false, nil
		case <-ticker.C:
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

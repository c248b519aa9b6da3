// internal/pkg/lock/instrumented.go
package lock

import (
	"context"
	"strings"
	"time"

	"nexus-fulfillment/internal/pkg/metrics"
)

type instrumented struct {
	next Locker
}

// Instrument 记录每次加锁的等待耗时，按 key 的前缀（order、coupon）分组。
func Instrument(l Locker) Locker {
	return instrumented{next: l}
}

func (i instrumented) Acquire(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	release, err := i.next.Acquire(ctx, key)
	metrics.LockWaitSeconds.WithLabelValues(scopeOf(key)).Observe(time.Since(start).Seconds())
	return release, err
}

func scopeOf(key string) string {
	scope, _, _ := strings.Cut(key, ":")
	return scope
}

// internal/pkg/lock/redis.go
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"nexus-fulfillment/internal/pkg/logger"
)

// 只删除自己持有的锁，避免过期后误删他人的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 是基于 SET NX PX 的租约锁。
// 租约到期后锁会自动失效，所以 TTL 必须覆盖最长的临界区；数据库行锁兜底正确性。
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.retry = d }
}

func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: "fulfillment:lock:",
		ttl:    10 * time.Second,
		retry:  20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, errors.Wrapf(err, "redis setnx %s", redisKey)
		}
		if ok {
			return func() {
				// 调用方的 ctx 可能已经取消，释放锁使用独立的超时
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
					logger.Ctx(ctx).Error().Err(err).Str("key", redisKey).Msg("failed to release redis lock")
				}
			}, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

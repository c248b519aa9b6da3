// internal/pkg/lock/locker.go
package lock

import (
	"context"
	"strings"
)

// Locker 是按 key 加锁的抽象。
// 进程内默认使用 keymutex.Registry；多实例部署时可以切换为 ZooKeeper 或 Redis 实现，
// 数据库行锁始终作为第二道防线存在。
type Locker interface {
	// Acquire 阻塞直到获得 key 的锁或 ctx 结束，release 必须在所有退出路径上调用。
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// WithLock 在持有 key 锁的情况下执行 fn
func WithLock(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// 业务上的竞争 key。下单、取消、充值确认都会修改同一个用户的积分余额，所以共用用户维度的 key。
const (
	userKeyPrefix   = "order:user:"
	couponKeyPrefix = "coupon:"
)

func UserKey(userID string) string { return userKeyPrefix + userID }

func CouponKey(couponID string) string { return couponKeyPrefix + couponID }

// nodeName 把 key 转换成可以作为 ZooKeeper 节点名的字符串
func nodeName(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

// internal/pkg/lock/local.go
package lock

import (
	"time"

	"nexus-fulfillment/internal/pkg/keymutex"
)

// NewLocal 返回进程内的锁实现，单实例部署和测试使用
func NewLocal(sweepInterval time.Duration) *keymutex.Registry {
	return keymutex.New(sweepInterval)
}

var _ Locker = (*keymutex.Registry)(nil)
var _ Locker = (*ZookeeperLocker)(nil)
var _ Locker = (*RedisLocker)(nil)

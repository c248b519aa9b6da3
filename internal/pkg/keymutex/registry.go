// internal/pkg/keymutex/registry.go
package keymutex

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval 是后台清理空闲锁的默认周期
const DefaultSweepInterval = 5 * time.Minute

// entry 是某个 key 对应的锁。
// held 为 true 时表示有持有者；waiters 按到达顺序排队，释放时直接把锁移交给队首，
// 因此新来的请求无法插队。
type entry struct {
	held    bool
	waiters []chan struct{}
}

// Registry 为任意字符串 key 按需创建互斥锁（例如每个用户、每张优惠券一把锁）。
// 不同 key 之间互不阻塞；既没有持有者也没有等待者的锁会被后台定期清理，
// 所以内存占用只和当前存在竞争的 key 数量有关。
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	interval  time.Duration
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New 创建注册表并启动后台清理协程，interval <= 0 时使用 DefaultSweepInterval。
// 使用方必须在关停时调用 Close。
func New(interval time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	r := &Registry{
		entries:  make(map[string]*entry),
		interval: interval,
		stop:     make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sweepLoop()

	return r
}

// Acquire 获取 key 对应的锁，返回的 release 必须在所有退出路径上调用（推荐 defer）。
// release 可以重复调用，只有第一次生效。
// 如果在排队期间 ctx 结束，请求会离开队列并返回 ctx.Err()，不会占用锁。
func (r *Registry) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	if !e.held {
		e.held = true
		r.mu.Unlock()
		return r.releaser(e), nil
	}

	ready := make(chan struct{})
	e.waiters = append(e.waiters, ready)
	r.mu.Unlock()

	select {
	case <-ready:
		return r.releaser(e), nil
	case <-ctx.Done():
		r.mu.Lock()
		if removeWaiter(e, ready) {
			r.mu.Unlock()
			return nil, ctx.Err()
		}
		r.mu.Unlock()
		// 取消与移交同时发生：锁已经归我们所有，必须继续移交出去
		r.unlock(e)
		return nil, ctx.Err()
	}
}

// WithLock 在持有 key 对应锁的情况下执行 fn，fn 返回或 panic 时都会释放锁。
func (r *Registry) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := r.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// IsLocked 报告 key 当前是否有持有者
func (r *Registry) IsLocked(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return ok && e.held
}

// Sweep 删除所有空闲的锁对象，返回删除的数量
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.entries {
		if !e.held && len(e.waiters) == 0 {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len 返回注册表中当前保留的锁对象数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close 停止后台清理并等待其退出，可以重复调用。
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
	return nil
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) releaser(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.unlock(e) })
	}
}

// unlock 把锁移交给队首等待者；没有等待者时标记为空闲，等待清理。
func (r *Registry) unlock(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters[0] = nil
		e.waiters = e.waiters[1:]
		close(next)
		return
	}
	e.held = false
}

func removeWaiter(e *entry, ready chan struct{}) bool {
	for i, w := range e.waiters {
		if w == ready {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// waiting 返回 key 上排队的等待者数量（测试用）
func (r *Registry) waiting(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return len(e.waiters)
	}
	return 0
}

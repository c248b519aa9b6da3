package keymutex

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T) *Registry {
	r := New(time.Hour)
	t.Cleanup(func() { r.Close() })
	return r
}

func waitForWaiters(t *testing.T, r *Registry, key string, n int) {
	require.Eventually(t, func() bool { return r.waiting(key) == n }, time.Second, time.Millisecond)
}

func TestRegistry_MutualExclusion(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.WithLock(ctx, "user-1", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.False(t, r.IsLocked("user-1"))
}

func TestRegistry_WaitersServedInArrivalOrder(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	release, err := r.Acquire(ctx, "coupon-1")
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rel, err := r.Acquire(ctx, "coupon-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			rel()
		}(i)
		waitForWaiters(t, r, "coupon-1", i+1)
	}

	release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRegistry_DifferentKeysDoNotBlock(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	releaseA, err := r.Acquire(ctx, "user-a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := r.Acquire(ctx, "user-b")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring an unrelated key blocked")
	}
}

func TestRegistry_ReleasedOnError(t *testing.T) {
	r := setupRegistry(t)
	errBoom := errors.New("boom")

	err := r.WithLock(context.Background(), "k", func(ctx context.Context) error {
		assert.True(t, r.IsLocked("k"))
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.False(t, r.IsLocked("k"))
}

func TestRegistry_ReleasedOnPanic(t *testing.T) {
	r := setupRegistry(t)

	assert.Panics(t, func() {
		_ = r.WithLock(context.Background(), "k", func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.False(t, r.IsLocked("k"))
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	release, err := r.Acquire(ctx, "k")
	require.NoError(t, err)

	waiterGot := make(chan func())
	go func() {
		rel, err := r.Acquire(ctx, "k")
		assert.NoError(t, err)
		waiterGot <- rel
	}()
	waitForWaiters(t, r, "k", 1)

	release()
	rel := <-waiterGot
	release() // 第二次调用不能把别人的锁释放掉
	assert.True(t, r.IsLocked("k"))
	rel()
	assert.False(t, r.IsLocked("k"))
}

func TestRegistry_CancelledWaiterLeavesQueue(t *testing.T) {
	r := setupRegistry(t)

	release, err := r.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		_, err := r.Acquire(ctx, "k")
		errCh <- err
	}()
	waitForWaiters(t, r, "k", 1)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, r.waiting("k"))

	release()
	assert.False(t, r.IsLocked("k"))
}

func TestRegistry_AcquireWithDoneContext(t *testing.T) {
	r := setupRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.IsLocked("k"))
}

func TestRegistry_SweepRemovesIdleEntries(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		release, err := r.Acquire(ctx, key)
		require.NoError(t, err)
		release()
	}
	held, err := r.Acquire(ctx, "d")
	require.NoError(t, err)
	defer held()

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, 3, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.IsLocked("d"))
}

func TestRegistry_BackgroundSweep(t *testing.T) {
	r := New(5 * time.Millisecond)
	defer r.Close()

	release, err := r.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRegistry_CloseIsIdempotent(t *testing.T) {
	r := New(time.Hour)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

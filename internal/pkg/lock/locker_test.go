package lock

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLock_ReleasesAfterFn(t *testing.T) {
	l := NewLocal(time.Hour)
	defer l.Close()

	errBoom := errors.New("boom")
	err := WithLock(context.Background(), l, UserKey("u-1"), func(ctx context.Context) error {
		assert.True(t, l.IsLocked("order:user:u-1"))
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.False(t, l.IsLocked("order:user:u-1"))
}

func TestWithLock_AcquireFailureSkipsFn(t *testing.T) {
	l := NewLocal(time.Hour)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithLock(ctx, l, CouponKey("c-1"), func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "order:user:42", UserKey("42"))
	assert.Equal(t, "coupon:c-9", CouponKey("c-9"))
	assert.Equal(t, "a_b", nodeName("a/b"))
}

func TestSequenceOrdering_IgnoresProtectedPrefix(t *testing.T) {
	children := []string{
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000010",
		"_c_aaaa-lock-0000000001",
	}
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})

	assert.Equal(t, []string{
		"_c_aaaa-lock-0000000001",
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000010",
	}, children)
}

func TestInstrument_DelegatesToLocker(t *testing.T) {
	local := NewLocal(time.Hour)
	defer local.Close()
	l := Instrument(local)

	release, err := l.Acquire(context.Background(), UserKey("u-1"))
	require.NoError(t, err)
	assert.True(t, local.IsLocked("order:user:u-1"))
	release()
	assert.False(t, local.IsLocked("order:user:u-1"))

	assert.Equal(t, "coupon", scopeOf(CouponKey("c-1")))
}

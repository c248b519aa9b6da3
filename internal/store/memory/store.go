// internal/store/memory/store.go
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/keymutex"
	"nexus-fulfillment/internal/pkg/txctx"
	orderdomain "nexus-fulfillment/internal/service/order/domain"
	pointdomain "nexus-fulfillment/internal/service/point/domain"
	productdomain "nexus-fulfillment/internal/service/product/domain"
	promotiondomain "nexus-fulfillment/internal/service/promotion/domain"
)

// Store 是所有仓储端口的内存实现，用于测试和单机演示（driver: memory）。
// 它提供和数据库相同的事务语义：
//   - 事务内的写入记录 undo 日志，回滚时按逆序撤销；
//   - WithLock 读取对行加排他锁，锁一直持有到事务结束，同一事务可重入；
//   - 读写都复制值，调用方拿到的实体修改后必须 Save 才会生效。
//
// 非加锁读可以看到其他事务未提交的写入，所有修改都必须先经过加锁读。
type Store struct {
	mu   sync.Mutex
	rows *keymutex.Registry

	options        map[string]productdomain.Option
	balances       map[string]pointdomain.Balance
	transactions   []pointdomain.PointTransaction
	chargeRequests map[string]pointdomain.ChargeRequest
	coupons        map[string]promotiondomain.Coupon
	userCoupons    map[string]promotiondomain.UserCoupon
	histories      []promotiondomain.CouponHistory
	orders         map[string]orderdomain.Order
	carts          map[string][]orderdomain.CartItem
}

func New() *Store {
	return &Store{
		rows:           keymutex.New(time.Minute),
		options:        make(map[string]productdomain.Option),
		balances:       make(map[string]pointdomain.Balance),
		chargeRequests: make(map[string]pointdomain.ChargeRequest),
		coupons:        make(map[string]promotiondomain.Coupon),
		userCoupons:    make(map[string]promotiondomain.UserCoupon),
		orders:         make(map[string]orderdomain.Order),
		carts:          make(map[string][]orderdomain.CartItem),
	}
}

// Close 停止行锁注册表的后台清理
func (s *Store) Close() error {
	return s.rows.Close()
}

// memTx 是内存存储的事务
type memTx struct {
	store *Store

	mu       sync.Mutex
	undo     []func()
	releases map[string]func()
	done     bool
}

var errTxDone = errors.New("transaction already finished")

func (s *Store) Begin(ctx context.Context) (txctx.Tx, error) {
	return &memTx{store: s, releases: make(map[string]func())}, nil
}

func (t *memTx) Commit() error {
	return t.finish(false)
}

func (t *memTx) Rollback() error {
	return t.finish(true)
}

func (t *memTx) finish(rollback bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true

	if rollback {
		t.store.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.store.mu.Unlock()
	}
	t.undo = nil

	for _, release := range t.releases {
		release()
	}
	t.releases = nil
	return nil
}

// currentTx 返回 ctx 中属于本存储的事务
func (s *Store) currentTx(ctx context.Context) *memTx {
	tx, ok := txctx.FromContext(ctx)
	if !ok {
		return nil
	}
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil
	}
	return mt
}

// lockRow 在当前事务中对 key 加行锁，没有事务时等同于普通读。
func (s *Store) lockRow(ctx context.Context, key string) error {
	tx := s.currentTx(ctx)
	if tx == nil {
		return nil
	}

	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return errTxDone
	}
	if _, held := tx.releases[key]; held {
		tx.mu.Unlock()
		return nil
	}
	tx.mu.Unlock()

	release, err := s.rows.Acquire(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "lock row %s", key)
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		release()
		return errTxDone
	}
	tx.releases[key] = release
	return nil
}

// write 在持有 s.mu 时执行 apply，并把 revert 记入当前事务的 undo 日志。
func (s *Store) write(ctx context.Context, apply func(), revert func()) error {
	tx := s.currentTx(ctx)
	if tx != nil {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		if tx.done {
			return errTxDone
		}
		tx.undo = append(tx.undo, revert)
	}

	s.mu.Lock()
	apply()
	s.mu.Unlock()
	return nil
}

// putRow 写入 map 并返回对应的撤销函数
func putRow[K comparable, V any](m map[K]V, key K, value V) func() {
	prev, existed := m[key]
	m[key] = value
	return func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	}
}

// saveRow 以事务方式写入一行
func saveRow[K comparable, V any](ctx context.Context, s *Store, m map[K]V, key K, value V) error {
	var revert func()
	return s.write(ctx, func() {
		revert = putRow(m, key, value)
	}, func() {
		revert()
	})
}

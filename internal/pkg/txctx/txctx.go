// internal/pkg/txctx/txctx.go
package txctx

import (
	"context"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/logger"
)

// Tx 是一个已经开启的事务
type Tx interface {
	Commit() error
	Rollback() error
}

// Beginner 由存储后端实现（gorm、内存存储），负责开启事务。
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

type ctxKey struct{}

// state 是绑定在 context 上的环境事务
type state struct {
	tx          Tx
	afterCommit []func(ctx context.Context)
}

// Manager 负责事务的开启、传播与结束。
// 如果 ctx 中已经存在环境事务，嵌套调用直接复用，不会开启第二个事务，
// 所以仓储和服务可以自由组合，最外层调用决定提交还是回滚。
type Manager struct {
	beginner Beginner
}

func NewManager(b Beginner) *Manager {
	return &Manager{beginner: b}
}

// Run 在事务中执行 fn：fn 返回 nil 时提交，返回错误或 panic 时回滚（panic 会在回滚后继续抛出）。
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(ctxKey{}).(*state); ok {
		return fn(ctx)
	}

	tx, err := m.beginner.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	st := &state{tx: tx}

	if err := execute(context.WithValue(ctx, ctxKey{}, st), st, fn); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}

	for _, cb := range st.afterCommit {
		cb(ctx)
	}
	return nil
}

func execute(ctx context.Context, st *state, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rollback(ctx, st.tx)
			panic(r)
		}
	}()

	if err = fn(ctx); err != nil {
		rollback(ctx, st.tx)
	}
	return err
}

func rollback(ctx context.Context, tx Tx) {
	if err := tx.Rollback(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to rollback transaction")
	}
}

// Run 是带返回值的 Manager.Run
func Run[T any](ctx context.Context, m *Manager, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := m.Run(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Transactional 把 fn 标记为事务性的：返回的函数每次被调用都恰好经过一次 Run。
func Transactional[T any](m *Manager, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Run(ctx, m, fn)
	}
}

// FromContext 返回 ctx 中的环境事务
func FromContext(ctx context.Context) (Tx, bool) {
	st, ok := ctx.Value(ctxKey{}).(*state)
	if !ok {
		return nil, false
	}
	return st.tx, true
}

// AfterCommit 注册在最外层事务提交后执行的回调，回滚时丢弃。
// ctx 中没有环境事务时立即执行。
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	st, ok := ctx.Value(ctxKey{}).(*state)
	if !ok {
		fn(ctx)
		return
	}
	st.afterCommit = append(st.afterCommit, fn)
}

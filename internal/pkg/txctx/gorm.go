// internal/pkg/txctx/gorm.go
package txctx

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormBeginner 使用 gorm 开启数据库事务
type GormBeginner struct {
	db *gorm.DB
}

func NewGormBeginner(db *gorm.DB) *GormBeginner {
	return &GormBeginner{db: db}
}

func (b *GormBeginner) Begin(ctx context.Context) (Tx, error) {
	tx := b.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.WithStack(tx.Error)
	}
	return &GormTx{db: tx}, nil
}

type GormTx struct {
	db *gorm.DB
}

func (t *GormTx) Commit() error {
	return t.db.Commit().Error
}

func (t *GormTx) Rollback() error {
	return t.db.Rollback().Error
}

// DB 返回仓储应当使用的句柄：有环境事务时使用事务句柄，否则使用普通连接。
func DB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if g, ok := gormTx(ctx); ok {
		return g.db.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// Savepoint 在环境事务中用保存点包住 fn，fn 失败时只回滚到保存点，外层事务仍然可以提交。
// 没有环境事务时直接执行 fn。
func Savepoint(ctx context.Context, db *gorm.DB, name string, fn func(db *gorm.DB) error) error {
	g, ok := gormTx(ctx)
	if !ok {
		return fn(db.WithContext(ctx))
	}

	conn := g.db.WithContext(ctx)
	if err := conn.SavePoint(name).Error; err != nil {
		return errors.Wrapf(err, "savepoint %s", name)
	}
	if err := fn(conn); err != nil {
		if rbErr := conn.RollbackTo(name).Error; rbErr != nil {
			return errors.Wrapf(rbErr, "rollback to savepoint %s after: %v", name, err)
		}
		return err
	}
	return nil
}

func gormTx(ctx context.Context) (*GormTx, bool) {
	tx, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	g, ok := tx.(*GormTx)
	return g, ok
}

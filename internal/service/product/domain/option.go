// internal/service/product/domain/option.go
package domain

import (
	"context"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
)

var (
	ErrInsufficientStock = apperr.NewBadRequest("insufficient stock")
	ErrInvalidQuantity   = apperr.NewBadRequest("quantity must be positive")
)

// Option 是商品的一个可售规格（颜色、尺码……），库存记在规格上。
type Option struct {
	ID          string
	ProductID   string
	ProductName string
	Name        string
	Price       int64
	Stock       int64
}

// DecreaseStock 扣减库存，库存不足时失败且不修改任何状态。
func (o *Option) DecreaseStock(quantity int64) error {
	if quantity <= 0 {
		return errors.WithStack(ErrInvalidQuantity)
	}
	if quantity > o.Stock {
		return errors.WithStack(ErrInsufficientStock)
	}
	o.Stock -= quantity
	return nil
}

// IncreaseStock 归还库存（订单取消时的补偿）
func (o *Option) IncreaseStock(quantity int64) error {
	if quantity <= 0 {
		return errors.WithStack(ErrInvalidQuantity)
	}
	o.Stock += quantity
	return nil
}

// OptionRepository 定义了商品规格的持久化接口。
// FindOptionWithLock 必须在环境事务中对行加排他锁，锁在事务结束时释放。
type OptionRepository interface {
	FindOptionWithLock(ctx context.Context, id string) (*Option, error)
	FindOption(ctx context.Context, id string) (*Option, error)
	SaveOption(ctx context.Context, option *Option) error
}

// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Save 保存订单聚合；新订单会连同明细一起写入，已有订单只更新状态。
	Save(ctx context.Context, order *Order) error

	// FindWithLock 在环境事务中加行锁读取订单
	FindWithLock(ctx context.Context, id string) (*Order, error)

	// FindByIDAndUser 只返回属于 userID 的订单
	FindByIDAndUser(ctx context.Context, id, userID string) (*Order, error)
}

// CartItem 是购物车中的一行
type CartItem struct {
	ID       string
	UserID   string
	OptionID string
	Quantity int64
}

// CartRepository 下单后清理购物车
type CartRepository interface {
	RemoveItems(ctx context.Context, userID string, optionIDs []string) error
}

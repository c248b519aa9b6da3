// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
)

var (
	ErrEmptyOrder        = apperr.NewBadRequest("order must contain at least one item")
	ErrAmountMismatch    = apperr.NewBadRequest("amount mismatch")
	ErrInvalidTransition = apperr.NewBadRequest("order status cannot be changed")
)

// Order 是订单聚合的根实体，独占其 OrderItem。持久化之后明细不再变化。
type Order struct {
	ID            string
	UserID        string
	Items         []OrderItem
	TotalPrice    int64
	DiscountPrice int64
	FinalPrice    int64
	UserCouponID  *string
	Status        State
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem 是下单时商品规格的快照
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	OptionID    string
	ProductName string
	OptionName  string
	UnitPrice   int64
	Quantity    int64
}

func (i OrderItem) Subtotal() int64 {
	return i.UnitPrice * i.Quantity
}

// NewOrder 创建一个 PENDING 订单，FinalPrice = TotalPrice - DiscountPrice。
func NewOrder(id, userID string, items []OrderItem, discount int64, userCouponID *string, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, errors.WithStack(ErrEmptyOrder)
	}

	var total int64
	for i := range items {
		items[i].OrderID = id
		total += items[i].Subtotal()
	}
	if discount < 0 || discount > total {
		return nil, apperr.BadRequest("invalid discount %d for order amount %d", discount, total)
	}

	return &Order{
		ID:            id,
		UserID:        userID,
		Items:         items,
		TotalPrice:    total,
		DiscountPrice: discount,
		FinalPrice:    total - discount,
		UserCouponID:  userCouponID,
		Status:        StatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Complete 完成订单，不涉及资源变动
func (o *Order) Complete(now time.Time) error {
	if o.Status != StatePending {
		return errors.WithStack(ErrInvalidTransition)
	}
	o.Status = StateCompleted
	o.UpdatedAt = now
	return nil
}

// Cancel 只负责状态流转，资源归还由应用层在同一事务中完成
func (o *Order) Cancel(now time.Time) error {
	if o.Status != StatePending {
		return errors.WithStack(ErrInvalidTransition)
	}
	o.Status = StateCancelled
	o.UpdatedAt = now
	return nil
}

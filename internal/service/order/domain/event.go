// internal/service/order/domain/event.go
package domain

import "time"

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderPlaced 在下单事务提交后发布
type OrderPlaced struct {
	OrderID       string    `json:"orderId"`
	UserID        string    `json:"userId"`
	TotalPrice    int64     `json:"totalPrice"`
	DiscountPrice int64     `json:"discountPrice"`
	FinalPrice    int64     `json:"finalPrice"`
	UserCouponID  *string   `json:"userCouponId,omitempty"`
	PlacedAt      time.Time `json:"placedAt"`
}

// OrderStatusChanged 在订单完成或取消后发布
type OrderStatusChanged struct {
	OrderID        string    `json:"orderId"`
	UserID         string    `json:"userId"`
	From           State     `json:"from"`
	To             State     `json:"to"`
	CouponRestored bool      `json:"couponRestored"`
	RefundedAmount int64     `json:"refundedAmount"`
	ChangedAt      time.Time `json:"changedAt"`
}

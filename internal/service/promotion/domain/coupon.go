// internal/service/promotion/domain/coupon.go
package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"nexus-fulfillment/internal/pkg/apperr"
)

// DiscountType 定义了优惠的计算方式
type DiscountType string

const (
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT" // 立减
	DiscountTypePercentage  DiscountType = "PERCENTAGE"   // 折扣，DiscountValue 为百分比
)

var ErrCannotIssue = apperr.NewBadRequest("cannot issue")

var hundred = decimal.NewFromInt(100)

// Coupon 是一批限量发放的优惠券，同时承载额度（TotalQuantity/IssuedQuantity）和优惠规则。
// IssuedQuantity 只增不减：已领取的券即使最终没有使用，也不会归还额度。
type Coupon struct {
	ID                string
	Name              string
	DiscountType      DiscountType
	DiscountValue     int64
	MinOrderAmount    int64
	MaxDiscountAmount int64 // 0 表示不封顶
	TotalQuantity     int64
	IssuedQuantity    int64
	ValidFrom         time.Time
	ValidTo           time.Time
	Rule              string // 可选的 CEL 条件，为空时不限制
	CreatedAt         time.Time
}

// IsValidAt 判断 now 是否落在有效期内（闭区间）
func (c *Coupon) IsValidAt(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

func (c *Coupon) Remaining() int64 {
	return c.TotalQuantity - c.IssuedQuantity
}

// Issue 占用一个额度，不在有效期内或额度已满时失败且不修改状态。
func (c *Coupon) Issue(now time.Time) error {
	if !c.IsValidAt(now) || c.IssuedQuantity >= c.TotalQuantity {
		return errors.WithStack(ErrCannotIssue)
	}
	c.IssuedQuantity++
	return nil
}

// Discount 计算订单金额可以享受的优惠，结果不会超过订单金额。
func (c *Coupon) Discount(orderAmount int64) int64 {
	if orderAmount <= 0 {
		return 0
	}

	var discount int64
	switch c.DiscountType {
	case DiscountTypeFixedAmount:
		discount = c.DiscountValue
	case DiscountTypePercentage:
		discount = decimal.NewFromInt(orderAmount).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(hundred).
			Floor().
			IntPart()
	}

	if c.MaxDiscountAmount > 0 && discount > c.MaxDiscountAmount {
		discount = c.MaxDiscountAmount
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// internal/service/promotion/domain/user_coupon.go
package domain

import (
	"time"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
)

var (
	ErrAlreadyIssued      = apperr.NewBadRequest("already issued")
	ErrCouponNotOwned     = apperr.NewBadRequest("coupon does not belong to user")
	ErrCouponAlreadyUsed  = apperr.NewBadRequest("coupon already used")
	ErrCouponExpired      = apperr.NewBadRequest("coupon expired")
	ErrCouponNotUsed      = apperr.NewBadRequest("coupon is not used")
	ErrBelowMinimumAmount = apperr.NewBadRequest("order amount below coupon minimum")
	ErrRuleNotSatisfied   = apperr.NewBadRequest("coupon conditions not satisfied")
)

// UserCoupon 是用户领取到的一张券。
// 它通过 CouponID 引用券批次（不拥有），有效期在领取时从批次复制，之后不再变化。
type UserCoupon struct {
	ID        string
	CouponID  string
	UserID    string
	IssuedAt  time.Time
	ValidFrom time.Time
	ValidTo   time.Time
	UsedAt    *time.Time
	OrderID   *string
}

// NewUserCoupon 创建一张绑定批次当前有效期的用户券
func NewUserCoupon(id string, coupon *Coupon, userID string, issuedAt time.Time) *UserCoupon {
	return &UserCoupon{
		ID:        id,
		CouponID:  coupon.ID,
		UserID:    userID,
		IssuedAt:  issuedAt,
		ValidFrom: coupon.ValidFrom,
		ValidTo:   coupon.ValidTo,
	}
}

func (u *UserCoupon) IsUsed() bool {
	return u.UsedAt != nil
}

func (u *UserCoupon) IsExpired(now time.Time) bool {
	return now.Before(u.ValidFrom) || now.After(u.ValidTo)
}

// CheckUsable 校验 userID 能否在金额为 orderAmount 的订单上使用这张券
func (u *UserCoupon) CheckUsable(userID string, coupon *Coupon, orderAmount int64, now time.Time) error {
	switch {
	case u.UserID != userID:
		return errors.WithStack(ErrCouponNotOwned)
	case u.IsUsed():
		return errors.WithStack(ErrCouponAlreadyUsed)
	case u.IsExpired(now):
		return errors.WithStack(ErrCouponExpired)
	case orderAmount < coupon.MinOrderAmount:
		return errors.WithStack(ErrBelowMinimumAmount)
	}
	return nil
}

// Use 标记券已被 orderID 使用
func (u *UserCoupon) Use(orderID string, now time.Time) error {
	if u.IsUsed() {
		return errors.WithStack(ErrCouponAlreadyUsed)
	}
	if u.IsExpired(now) {
		return errors.WithStack(ErrCouponExpired)
	}
	u.UsedAt = &now
	u.OrderID = &orderID
	return nil
}

// Restore 撤销使用（订单取消时的补偿）。券已过期时失败，调用方决定是否容忍。
func (u *UserCoupon) Restore(now time.Time) error {
	if !u.IsUsed() {
		return errors.WithStack(ErrCouponNotUsed)
	}
	if u.IsExpired(now) {
		return errors.WithStack(ErrCouponExpired)
	}
	u.UsedAt = nil
	u.OrderID = nil
	return nil
}

// CouponHistory 记录一次券的核销，只追加不修改
type CouponHistory struct {
	ID             string
	UserCouponID   string
	CouponID       string
	UserID         string
	OrderID        string
	DiscountAmount int64
	OrderAmount    int64
	UsedAt         time.Time
}

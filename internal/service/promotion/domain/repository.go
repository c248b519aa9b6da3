// internal/service/promotion/domain/repository.go
package domain

import "context"

// CouponRepository 定义了券批次、用户券和核销记录的持久化接口。
// WithLock 结尾的方法必须在环境事务中加行锁。
type CouponRepository interface {
	FindCouponWithLock(ctx context.Context, id string) (*Coupon, error)
	FindCoupon(ctx context.Context, id string) (*Coupon, error)
	SaveCoupon(ctx context.Context, coupon *Coupon) error

	ExistsUserCoupon(ctx context.Context, couponID, userID string) (bool, error)
	FindUserCoupon(ctx context.Context, id string) (*UserCoupon, error)
	FindUserCouponWithLock(ctx context.Context, id string) (*UserCoupon, error)
	FindUserCouponsByUser(ctx context.Context, userID string) ([]*UserCoupon, error)
	// CreateUserCoupon 在 (CouponID, UserID) 已存在时返回 ErrAlreadyIssued
	CreateUserCoupon(ctx context.Context, uc *UserCoupon) error
	// SaveUserCoupon 只更新已有用户券的核销状态
	SaveUserCoupon(ctx context.Context, uc *UserCoupon) error

	SaveHistory(ctx context.Context, history *CouponHistory) error
}

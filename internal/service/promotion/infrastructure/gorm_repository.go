package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/txctx"
	"nexus-fulfillment/internal/service/promotion/domain"
)

var _ domain.CouponRepository = (*GormCouponRepository)(nil)

// GormCouponRepository 是 CouponRepository 的 GORM 实现。
// 所有方法都通过 txctx.DB 取得句柄，在环境事务中执行。
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository 创建一个新的 GORM 仓储实例
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

func (r *GormCouponRepository) conn(ctx context.Context) *gorm.DB {
	return txctx.DB(ctx, r.db)
}

func (r *GormCouponRepository) FindCouponWithLock(ctx context.Context, id string) (*domain.Coupon, error) {
	return r.findCoupon(r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormCouponRepository) FindCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	return r.findCoupon(r.conn(ctx), id)
}

func (r *GormCouponRepository) findCoupon(db *gorm.DB, id string) (*domain.Coupon, error) {
	var model CouponModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("coupon %s not found", id)
		}
		return nil, errors.Wrapf(err, "find coupon %s", id)
	}
	return ToDomainCoupon(&model), nil
}

func (r *GormCouponRepository) SaveCoupon(ctx context.Context, coupon *domain.Coupon) error {
	if err := r.conn(ctx).Save(FromDomainCoupon(coupon)).Error; err != nil {
		return errors.Wrapf(err, "save coupon %s", coupon.ID)
	}
	return nil
}

func (r *GormCouponRepository) ExistsUserCoupon(ctx context.Context, couponID, userID string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&UserCouponModel{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count user coupons")
	}
	return count > 0, nil
}

func (r *GormCouponRepository) FindUserCoupon(ctx context.Context, id string) (*domain.UserCoupon, error) {
	return r.findUserCoupon(r.conn(ctx), id)
}

func (r *GormCouponRepository) FindUserCouponWithLock(ctx context.Context, id string) (*domain.UserCoupon, error) {
	return r.findUserCoupon(r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormCouponRepository) findUserCoupon(db *gorm.DB, id string) (*domain.UserCoupon, error) {
	var model UserCouponModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user coupon %s not found", id)
		}
		return nil, errors.Wrapf(err, "find user coupon %s", id)
	}
	return ToDomainUserCoupon(&model), nil
}

// FindUserCouponsByUser 查找某个用户领取过的所有券，按领取时间排序
func (r *GormCouponRepository) FindUserCouponsByUser(ctx context.Context, userID string) ([]*domain.UserCoupon, error) {
	var models []*UserCouponModel
	if err := r.conn(ctx).Where("user_id = ?", userID).Order("issued_at").Find(&models).Error; err != nil {
		return nil, errors.Wrapf(err, "find user coupons of %s", userID)
	}

	coupons := make([]*domain.UserCoupon, len(models))
	for i, m := range models {
		coupons[i] = ToDomainUserCoupon(m)
	}
	return coupons, nil
}

// CreateUserCoupon 插入新领取的用户券；唯一索引冲突说明这个用户已经领过该批次
func (r *GormCouponRepository) CreateUserCoupon(ctx context.Context, uc *domain.UserCoupon) error {
	err := r.conn(ctx).Create(FromDomainUserCoupon(uc)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.WithStack(domain.ErrAlreadyIssued)
	}
	if err != nil {
		return errors.Wrapf(err, "create user coupon %s", uc.ID)
	}
	return nil
}

// SaveUserCoupon 只更新核销相关的列
func (r *GormCouponRepository) SaveUserCoupon(ctx context.Context, uc *domain.UserCoupon) error {
	m := FromDomainUserCoupon(uc)
	result := r.conn(ctx).Model(&UserCouponModel{}).Where("id = ?", uc.ID).Updates(map[string]any{
		"used_at":  m.UsedAt,
		"order_id": m.OrderID,
	})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "save user coupon %s", uc.ID)
	}
	if result.RowsAffected == 0 && !result.DryRun {
		return apperr.NotFound("user coupon %s not found", uc.ID)
	}
	return nil
}

func (r *GormCouponRepository) SaveHistory(ctx context.Context, history *domain.CouponHistory) error {
	if err := r.conn(ctx).Create(FromDomainHistory(history)).Error; err != nil {
		return errors.Wrapf(err, "save coupon history %s", history.ID)
	}
	return nil
}

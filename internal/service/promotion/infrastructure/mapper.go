package infrastructure

import (
	"database/sql"

	"nexus-fulfillment/internal/service/promotion/domain"
)

// ToDomainCoupon 将数据库模型转换为领域模型
func ToDomainCoupon(model *CouponModel) *domain.Coupon {
	return &domain.Coupon{
		ID:                model.ID,
		Name:              model.Name,
		DiscountType:      domain.DiscountType(model.DiscountType),
		DiscountValue:     model.DiscountValue,
		MinOrderAmount:    model.MinOrderAmount,
		MaxDiscountAmount: model.MaxDiscountAmount,
		TotalQuantity:     model.TotalQuantity,
		IssuedQuantity:    model.IssuedQuantity,
		ValidFrom:         model.ValidFrom,
		ValidTo:           model.ValidTo,
		Rule:              model.Rule,
		CreatedAt:         model.CreatedAt,
	}
}

func FromDomainCoupon(c *domain.Coupon) *CouponModel {
	return &CouponModel{
		ID:                c.ID,
		Name:              c.Name,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     c.DiscountValue,
		MinOrderAmount:    c.MinOrderAmount,
		MaxDiscountAmount: c.MaxDiscountAmount,
		TotalQuantity:     c.TotalQuantity,
		IssuedQuantity:    c.IssuedQuantity,
		ValidFrom:         c.ValidFrom,
		ValidTo:           c.ValidTo,
		Rule:              c.Rule,
		CreatedAt:         c.CreatedAt,
	}
}

// ToDomainUserCoupon 将数据库模型转换为领域模型，NULL 列映射为 nil
func ToDomainUserCoupon(model *UserCouponModel) *domain.UserCoupon {
	uc := &domain.UserCoupon{
		ID:        model.ID,
		CouponID:  model.CouponID,
		UserID:    model.UserID,
		IssuedAt:  model.IssuedAt,
		ValidFrom: model.ValidFrom,
		ValidTo:   model.ValidTo,
	}
	if model.UsedAt.Valid {
		usedAt := model.UsedAt.Time
		uc.UsedAt = &usedAt
	}
	if model.OrderID.Valid {
		orderID := model.OrderID.String
		uc.OrderID = &orderID
	}
	return uc
}

func FromDomainUserCoupon(uc *domain.UserCoupon) *UserCouponModel {
	model := &UserCouponModel{
		ID:        uc.ID,
		CouponID:  uc.CouponID,
		UserID:    uc.UserID,
		IssuedAt:  uc.IssuedAt,
		ValidFrom: uc.ValidFrom,
		ValidTo:   uc.ValidTo,
	}
	if uc.UsedAt != nil {
		model.UsedAt = sql.NullTime{Time: *uc.UsedAt, Valid: true}
	}
	if uc.OrderID != nil {
		model.OrderID = sql.NullString{String: *uc.OrderID, Valid: true}
	}
	return model
}

func FromDomainHistory(h *domain.CouponHistory) *CouponHistoryModel {
	return &CouponHistoryModel{
		ID:             h.ID,
		UserCouponID:   h.UserCouponID,
		CouponID:       h.CouponID,
		UserID:         h.UserID,
		OrderID:        h.OrderID,
		DiscountAmount: h.DiscountAmount,
		OrderAmount:    h.OrderAmount,
		UsedAt:         h.UsedAt,
	}
}

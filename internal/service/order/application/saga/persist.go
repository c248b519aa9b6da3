package saga

import (
	pointdomain "nexus-fulfillment/internal/service/point/domain"
	promotiondomain "nexus-fulfillment/internal/service/promotion/domain"
)

// PersistHandler 写入前面步骤计算出的全部修改
type PersistHandler struct {
	NextHandler
}

func (h *PersistHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Persist")
	defer span.End()

	deps := orderCtx.Deps
	order := orderCtx.Order

	for _, option := range orderCtx.Options {
		if err := deps.Options.SaveOption(ctx, option); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if err := deps.Orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}

	if err := deps.Balances.SaveBalance(ctx, orderCtx.Balance); err != nil {
		span.RecordError(err)
		return err
	}
	tx := pointdomain.NewTransaction(deps.IDs.Generate(), orderCtx.Balance, pointdomain.TransactionUse, order.FinalPrice, order.ID, orderCtx.Now)
	if err := deps.Transactions.CreateTransaction(ctx, tx); err != nil {
		span.RecordError(err)
		return err
	}

	if uc := orderCtx.UserCoupon; uc != nil {
		if err := uc.Use(order.ID, orderCtx.Now); err != nil {
			span.RecordError(err)
			return err
		}
		if err := deps.Coupons.SaveUserCoupon(ctx, uc); err != nil {
			span.RecordError(err)
			return err
		}
		history := &promotiondomain.CouponHistory{
			ID:             deps.IDs.Generate(),
			UserCouponID:   uc.ID,
			CouponID:       uc.CouponID,
			UserID:         order.UserID,
			OrderID:        order.ID,
			DiscountAmount: order.DiscountPrice,
			OrderAmount:    order.TotalPrice,
			UsedAt:         orderCtx.Now,
		}
		if err := deps.Coupons.SaveHistory(ctx, history); err != nil {
			span.RecordError(err)
			return err
		}
	}

	span.AddEvent("order persisted")
	return h.executeNext(orderCtx)
}

package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	orderdomain "nexus-fulfillment/internal/service/order/domain"
	promotiondomain "nexus-fulfillment/internal/service/promotion/domain"
)

// PricingHandler 计算优惠金额，并用客户端提交的应付金额校验价格是否发生变化。
type PricingHandler struct {
	NextHandler
}

func (h *PricingHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Pricing")
	defer span.End()

	if orderCtx.UserCouponID != nil {
		if err := h.applyCoupon(ctx, orderCtx); err != nil {
			span.RecordError(err)
			return err
		}
	}

	final := orderCtx.OrderAmount - orderCtx.Discount
	span.SetAttributes(
		attribute.Int64("order.discount", orderCtx.Discount),
		attribute.Int64("order.final_amount", final),
		attribute.Int64("order.expected_amount", orderCtx.ExpectedAmount),
	)
	if final != orderCtx.ExpectedAmount {
		err := errors.WithMessagef(orderdomain.ErrAmountMismatch, "expected %d, calculated %d", orderCtx.ExpectedAmount, final)
		span.RecordError(err)
		return err
	}

	return h.executeNext(orderCtx)
}

func (h *PricingHandler) applyCoupon(ctx context.Context, orderCtx *OrderContext) error {
	coupons := orderCtx.Deps.Coupons

	uc, err := coupons.FindUserCouponWithLock(ctx, *orderCtx.UserCouponID)
	if err != nil {
		return err
	}
	coupon, err := coupons.FindCoupon(ctx, uc.CouponID)
	if err != nil {
		return err
	}
	if err := uc.CheckUsable(orderCtx.UserID, coupon, orderCtx.OrderAmount, orderCtx.Now); err != nil {
		return err
	}

	if coupon.Rule != "" && orderCtx.Deps.Rules != nil {
		ok, err := orderCtx.Deps.Rules.Evaluate(coupon.Rule, h.fact(orderCtx))
		if err != nil {
			return errors.Wrapf(err, "evaluate rule of coupon %s", coupon.ID)
		}
		if !ok {
			return errors.WithStack(promotiondomain.ErrRuleNotSatisfied)
		}
	}

	orderCtx.Coupon = coupon
	orderCtx.UserCoupon = uc
	orderCtx.Discount = coupon.Discount(orderCtx.OrderAmount)
	return nil
}

func (h *PricingHandler) fact(orderCtx *OrderContext) promotiondomain.Fact {
	fact := promotiondomain.Fact{
		UserID:      orderCtx.UserID,
		OrderAmount: orderCtx.OrderAmount,
		Now:         orderCtx.Now,
	}
	for _, line := range orderCtx.Lines {
		fact.ItemCount += line.Quantity
		fact.OptionIDs = append(fact.OptionIDs, line.OptionID)
	}
	return fact
}

package saga

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	orderdomain "nexus-fulfillment/internal/service/order/domain"
)

// PointHandler 创建订单实体并用积分支付应付金额
type PointHandler struct {
	NextHandler
}

func (h *PointHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.UsePoints")
	defer span.End()

	order, err := orderdomain.NewOrder(orderCtx.OrderID, orderCtx.UserID, orderCtx.Items, orderCtx.Discount, orderCtx.UserCouponID, orderCtx.Now)
	if err != nil {
		span.RecordError(err)
		return err
	}

	balance, err := orderCtx.Deps.Balances.FindBalanceWithLock(ctx, orderCtx.UserID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := balance.Use(order.FinalPrice, orderCtx.Now); err != nil {
		span.RecordError(err)
		return errors.WithMessagef(err, "balance %d, required %d", balance.Amount, order.FinalPrice)
	}

	span.SetAttributes(attribute.Int64("point.balance_after", balance.Amount))
	orderCtx.Order = order
	orderCtx.Balance = balance
	return h.executeNext(orderCtx)
}

package saga

import (
	"nexus-fulfillment/internal/pkg/logger"
)

// CartHandler 从购物车中移除已下单的规格。清理失败不影响下单结果。
type CartHandler struct {
	NextHandler
}

func (h *CartHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ClearCart")
	defer span.End()

	if orderCtx.Deps.Carts != nil {
		optionIDs := make([]string, 0, len(orderCtx.Lines))
		for _, line := range orderCtx.Lines {
			optionIDs = append(optionIDs, line.OptionID)
		}
		if err := orderCtx.Deps.Carts.RemoveItems(ctx, orderCtx.UserID, optionIDs); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderCtx.OrderID).Msg("failed to clear cart")
		}
	}

	return h.executeNext(orderCtx)
}

package saga

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	orderdomain "nexus-fulfillment/internal/service/order/domain"
	productdomain "nexus-fulfillment/internal/service/product/domain"
)

// StockHandler 负责加锁读取商品规格并在内存中扣减库存。
// Lines 已按 OptionID 排序，所有下单请求以相同的顺序加行锁。
type StockHandler struct {
	NextHandler
}

func (h *StockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ReserveStock")
	defer span.End()

	optionIDs := make([]string, 0, len(orderCtx.Lines))
	orderCtx.OrderID = orderCtx.Deps.IDs.Generate()
	orderCtx.Options = make([]*productdomain.Option, 0, len(orderCtx.Lines))
	orderCtx.Items = make([]orderdomain.OrderItem, 0, len(orderCtx.Lines))

	for _, line := range orderCtx.Lines {
		option, err := orderCtx.Deps.Options.FindOptionWithLock(ctx, line.OptionID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if err := option.DecreaseStock(line.Quantity); err != nil {
			span.RecordError(err)
			return errors.WithMessagef(err, "option %s", option.ID)
		}

		orderCtx.Options = append(orderCtx.Options, option)
		orderCtx.Items = append(orderCtx.Items, orderdomain.OrderItem{
			ID:          orderCtx.Deps.IDs.Generate(),
			ProductID:   option.ProductID,
			OptionID:    option.ID,
			ProductName: option.ProductName,
			OptionName:  option.Name,
			UnitPrice:   option.Price,
			Quantity:    line.Quantity,
		})
		orderCtx.OrderAmount += option.Price * line.Quantity
		optionIDs = append(optionIDs, option.ID)
	}

	span.SetAttributes(
		attribute.StringSlice("option.ids", optionIDs),
		attribute.Int64("order.amount", orderCtx.OrderAmount),
	)
	span.AddEvent("stock reserved")

	return h.executeNext(orderCtx)
}

// internal/service/order/application/saga/handler.go
package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"nexus-fulfillment/internal/pkg/idgen"
	orderdomain "nexus-fulfillment/internal/service/order/domain"
	pointdomain "nexus-fulfillment/internal/service/point/domain"
	productdomain "nexus-fulfillment/internal/service/product/domain"
	promotiondomain "nexus-fulfillment/internal/service/promotion/domain"
)

// Dependencies 是下单流程各步骤依赖的出站端口
type Dependencies struct {
	Options      productdomain.OptionRepository
	Balances     pointdomain.BalanceRepository
	Transactions pointdomain.TransactionRepository
	Coupons      promotiondomain.CouponRepository
	Rules        promotiondomain.RuleEngine
	Orders       orderdomain.OrderRepository
	Carts        orderdomain.CartRepository
	IDs          idgen.Generator
}

// Line 是一行下单请求
type Line struct {
	OptionID string
	Quantity int64
}

// OrderContext 在下单责任链中传递上下文数据。
// 整条链运行在同一个环境事务里，任何一步失败都由事务回滚撤销前面的修改，不需要逐步补偿。
type OrderContext struct {
	Ctx    context.Context
	Tracer trace.Tracer
	Deps   Dependencies
	Now    time.Time

	// 输入
	UserID         string
	Lines          []Line // 已合并、按 OptionID 排序
	ExpectedAmount int64
	UserCouponID   *string

	// 各步骤的中间结果
	Options     []*productdomain.Option // 与 Lines 一一对应，库存已在内存中扣减
	OrderID     string
	Items       []orderdomain.OrderItem
	OrderAmount int64
	Discount    int64
	Coupon      *promotiondomain.Coupon
	UserCoupon  *promotiondomain.UserCoupon
	Balance     *pointdomain.Balance

	// 输出
	Order *orderdomain.Order
}

// Handler 是责任链中的一个步骤
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// BuildCreateOrderChain 组装下单流程：构建上下文（加锁读取）→ 计算 → 持久化
func BuildCreateOrderChain() Handler {
	head := &StockHandler{}
	head.SetNext(&PricingHandler{}).
		SetNext(&PointHandler{}).
		SetNext(&PersistHandler{}).
		SetNext(&CartHandler{})
	return head
}

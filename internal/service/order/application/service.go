// internal/service/order/application/service.go
package application

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/lock"
	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/pkg/metrics"
	"nexus-fulfillment/internal/pkg/mq"
	"nexus-fulfillment/internal/pkg/tracing"
	"nexus-fulfillment/internal/pkg/txctx"
	"nexus-fulfillment/internal/service/order/application/saga"
	"nexus-fulfillment/internal/service/order/domain"
	pointdomain "nexus-fulfillment/internal/service/point/domain"
)

// OrderApplicationService 负责下单、完成与取消订单的流程编排。
// 同一用户的命令通过用户维度的锁串行执行，所有资源变动都发生在同一个环境事务里。
type OrderApplicationService struct {
	deps      saga.Dependencies
	locker    lock.Locker
	tx        *txctx.Manager
	publisher mq.Publisher
	topic     string
	tracer    trace.Tracer
	now       func() time.Time
	chain     saga.Handler
}

type Option func(*OrderApplicationService)

func WithClock(now func() time.Time) Option {
	return func(s *OrderApplicationService) { s.now = now }
}

func NewOrderApplicationService(
	deps saga.Dependencies,
	locker lock.Locker,
	tx *txctx.Manager,
	publisher mq.Publisher,
	topic string,
	tracer trace.Tracer,
	opts ...Option,
) *OrderApplicationService {
	s := &OrderApplicationService{
		deps:      deps,
		locker:    locker,
		tx:        tx,
		publisher: publisher,
		topic:     topic,
		tracer:    tracer,
		now:       time.Now,
		chain:     saga.BuildCreateOrderChain(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder 扣减库存、核销优惠券并用积分支付，全部成功或全部不生效。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", cmd.UserID),
		attribute.Int64("order.expected_amount", cmd.ExpectedAmount),
	)

	order, err := s.createOrder(ctx, cmd)
	metrics.OrdersTotal.WithLabelValues("create", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", cmd.UserID).Msg("create order failed")
		return nil, tracing.Fail(span, err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("user_id", order.UserID).
		Int64("final_price", order.FinalPrice).
		Msg("order created")
	return order, nil
}

func (s *OrderApplicationService) createOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	lines, err := cmd.lines()
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = lock.WithLock(ctx, s.locker, lock.UserKey(cmd.UserID), func(ctx context.Context) error {
		return s.tx.Run(ctx, func(ctx context.Context) error {
			orderCtx := &saga.OrderContext{
				Ctx:            ctx,
				Tracer:         s.tracer,
				Deps:           s.deps,
				Now:            s.now(),
				UserID:         cmd.UserID,
				Lines:          lines,
				ExpectedAmount: cmd.ExpectedAmount,
				UserCouponID:   cmd.UserCouponID,
			}
			if err := s.chain.Handle(orderCtx); err != nil {
				return err
			}
			order = orderCtx.Order

			mq.PublishAfterCommit(ctx, s.publisher, s.topic, order.UserID, mq.Event{
				ID:         s.deps.IDs.Generate(),
				Type:       domain.EventOrderPlaced,
				OccurredAt: orderCtx.Now,
				Payload: domain.OrderPlaced{
					OrderID:       order.ID,
					UserID:        order.UserID,
					TotalPrice:    order.TotalPrice,
					DiscountPrice: order.DiscountPrice,
					FinalPrice:    order.FinalPrice,
					UserCouponID:  order.UserCouponID,
					PlacedAt:      orderCtx.Now,
				},
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus 完成或取消订单。取消是补偿事务：归还库存、退还积分并尽量恢复优惠券。
func (s *OrderApplicationService) UpdateOrderStatus(ctx context.Context, userID, orderID, status string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", status),
	)

	order, err := s.updateOrderStatus(ctx, userID, orderID, status)
	metrics.OrdersTotal.WithLabelValues("update_status", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("status", string(order.Status)).
		Msg("order status updated")
	return order, nil
}

func (s *OrderApplicationService) updateOrderStatus(ctx context.Context, userID, orderID, status string) (*domain.Order, error) {
	target, err := domain.ParseTargetState(status)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = lock.WithLock(ctx, s.locker, lock.UserKey(userID), func(ctx context.Context) error {
		return s.tx.Run(ctx, func(ctx context.Context) error {
			o, err := s.deps.Orders.FindWithLock(ctx, orderID)
			if err != nil {
				return err
			}
			if o.UserID != userID {
				return apperr.NotFound("order %s not found", orderID)
			}

			now := s.now()
			from := o.Status
			changed := domain.OrderStatusChanged{OrderID: o.ID, UserID: o.UserID, From: from, To: target, ChangedAt: now}

			switch target {
			case domain.StateCompleted:
				if err := o.Complete(now); err != nil {
					return err
				}
			case domain.StateCancelled:
				if err := o.Cancel(now); err != nil {
					return err
				}
				restored, err := s.compensate(ctx, o, now)
				if err != nil {
					return err
				}
				changed.CouponRestored = restored
				changed.RefundedAmount = o.FinalPrice
			}

			if err := s.deps.Orders.Save(ctx, o); err != nil {
				return err
			}
			order = o

			mq.PublishAfterCommit(ctx, s.publisher, s.topic, o.UserID, mq.Event{
				ID:         s.deps.IDs.Generate(),
				Type:       domain.EventOrderStatusChanged,
				OccurredAt: now,
				Payload:    changed,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// compensate 归还订单占用的资源，返回优惠券是否被恢复
func (s *OrderApplicationService) compensate(ctx context.Context, order *domain.Order, now time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "app.CompensateOrder")
	defer span.End()

	items := slices.Clone(order.Items)
	slices.SortFunc(items, func(a, b domain.OrderItem) int {
		return strings.Compare(a.OptionID, b.OptionID)
	})
	for _, item := range items {
		option, err := s.deps.Options.FindOptionWithLock(ctx, item.OptionID)
		if err != nil {
			return false, tracing.Fail(span, err)
		}
		if err := option.IncreaseStock(item.Quantity); err != nil {
			return false, tracing.Fail(span, err)
		}
		if err := s.deps.Options.SaveOption(ctx, option); err != nil {
			return false, tracing.Fail(span, err)
		}
	}

	restored, err := s.restoreCoupon(ctx, order, now)
	if err != nil {
		return false, tracing.Fail(span, err)
	}

	if err := s.refund(ctx, order, now); err != nil {
		return false, tracing.Fail(span, err)
	}
	return restored, nil
}

// restoreCoupon 恢复订单使用的优惠券。券已过期时不恢复，取消照常进行。
func (s *OrderApplicationService) restoreCoupon(ctx context.Context, order *domain.Order, now time.Time) (bool, error) {
	if order.UserCouponID == nil {
		return false, nil
	}
	uc, err := s.deps.Coupons.FindUserCouponWithLock(ctx, *order.UserCouponID)
	if err != nil {
		return false, err
	}
	if err := uc.Restore(now); err != nil {
		if apperr.IsBadRequest(err) {
			logger.Ctx(ctx).Warn().
				Err(err).
				Str("order_id", order.ID).
				Str("user_coupon_id", uc.ID).
				Msg("coupon not restored on cancellation")
			return false, nil
		}
		return false, err
	}
	if err := s.deps.Coupons.SaveUserCoupon(ctx, uc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *OrderApplicationService) refund(ctx context.Context, order *domain.Order, now time.Time) error {
	balance, err := s.deps.Balances.FindBalanceWithLock(ctx, order.UserID)
	if err != nil {
		return err
	}
	if err := balance.Refund(order.FinalPrice, now); err != nil {
		return err
	}
	if err := s.deps.Balances.SaveBalance(ctx, balance); err != nil {
		return err
	}
	tx := pointdomain.NewTransaction(s.deps.IDs.Generate(), balance, pointdomain.TransactionRefund, order.FinalPrice, order.ID, now)
	return s.deps.Transactions.CreateTransaction(ctx, tx)
}

// GetOrder 返回属于 userID 的订单
func (s *OrderApplicationService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("order.id", orderID))

	order, err := s.deps.Orders.FindByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	return order, nil
}

// internal/service/promotion/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-fulfillment/internal/pkg/idgen"
	"nexus-fulfillment/internal/pkg/lock"
	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/pkg/metrics"
	"nexus-fulfillment/internal/pkg/mq"
	"nexus-fulfillment/internal/pkg/tracing"
	"nexus-fulfillment/internal/pkg/txctx"
	"nexus-fulfillment/internal/service/promotion/domain"
)

const EventCouponIssued = "coupon.issued"

// CouponIssued 在发券事务提交后发布
type CouponIssued struct {
	CouponID     string    `json:"couponId"`
	UserCouponID string    `json:"userCouponId"`
	UserID       string    `json:"userId"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// IssuanceService 负责从限量券批次中发券，每个用户每个批次只能领一张。
type IssuanceService struct {
	coupons   domain.CouponRepository
	locker    lock.Locker
	tx        *txctx.Manager
	ids       idgen.Generator
	publisher mq.Publisher
	topic     string
	tracer    trace.Tracer
}

// NewIssuanceService 创建一个新的发券服务实例
func NewIssuanceService(
	coupons domain.CouponRepository,
	locker lock.Locker,
	tx *txctx.Manager,
	ids idgen.Generator,
	publisher mq.Publisher,
	topic string,
	tracer trace.Tracer,
) *IssuanceService {
	return &IssuanceService{
		coupons:   coupons,
		locker:    locker,
		tx:        tx,
		ids:       ids,
		publisher: publisher,
		topic:     topic,
		tracer:    tracer,
	}
}

// IssueCoupon 为 userID 领取 couponID 的一张券。
// 竞争发生在批次额度上，所以按券加锁而不是按用户加锁；
// N 个并发请求争抢剩余额度 Q 时，恰好 min(N, Q) 个成功，其余返回 "cannot issue"。
func (s *IssuanceService) IssueCoupon(ctx context.Context, couponID, userID string, issuedAt time.Time) (*domain.UserCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "service.IssueCoupon")
	defer span.End()

	span.SetAttributes(
		attribute.String("coupon.id", couponID),
		attribute.String("user.id", userID),
	)

	var issued *domain.UserCoupon
	err := lock.WithLock(ctx, s.locker, lock.CouponKey(couponID), func(ctx context.Context) error {
		var err error
		issued, err = txctx.Run(ctx, s.tx, func(ctx context.Context) (*domain.UserCoupon, error) {
			return s.issue(ctx, couponID, userID, issuedAt)
		})
		return err
	})
	metrics.CouponIssuesTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	logger.Ctx(ctx).Info().
		Str("coupon_id", couponID).
		Str("user_id", userID).
		Str("user_coupon_id", issued.ID).
		Msg("coupon issued")
	return issued, nil
}

func (s *IssuanceService) issue(ctx context.Context, couponID, userID string, issuedAt time.Time) (*domain.UserCoupon, error) {
	exists, err := s.coupons.ExistsUserCoupon(ctx, couponID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.WithStack(domain.ErrAlreadyIssued)
	}

	coupon, err := s.coupons.FindCouponWithLock(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if err := coupon.Issue(issuedAt); err != nil {
		return nil, err
	}
	if err := s.coupons.SaveCoupon(ctx, coupon); err != nil {
		return nil, err
	}

	uc := domain.NewUserCoupon(s.ids.Generate(), coupon, userID, issuedAt)
	if err := s.coupons.CreateUserCoupon(ctx, uc); err != nil {
		return nil, err
	}

	mq.PublishAfterCommit(ctx, s.publisher, s.topic, couponID, mq.Event{
		ID:         s.ids.Generate(),
		Type:       EventCouponIssued,
		OccurredAt: issuedAt,
		Payload: CouponIssued{
			CouponID:     couponID,
			UserCouponID: uc.ID,
			UserID:       userID,
			IssuedAt:     issuedAt,
		},
	})
	return uc, nil
}

// ListUserCoupons 返回用户领取过的所有券
func (s *IssuanceService) ListUserCoupons(ctx context.Context, userID string) ([]*domain.UserCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListUserCoupons")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	coupons, err := s.coupons.FindUserCouponsByUser(ctx, userID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	return coupons, nil
}

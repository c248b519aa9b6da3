// internal/service/point/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/idgen"
	"nexus-fulfillment/internal/pkg/lock"
	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/pkg/metrics"
	"nexus-fulfillment/internal/pkg/mq"
	"nexus-fulfillment/internal/pkg/tracing"
	"nexus-fulfillment/internal/pkg/txctx"
	"nexus-fulfillment/internal/service/point/domain"
)

const EventPointCharged = "point.charged"

// ChargeResult 是充值确认的结果，重复确认返回相同的结果
type ChargeResult struct {
	ChargeRequestID string `json:"chargeRequestId"`
	Amount          int64  `json:"amount"`
	PreviousBalance int64  `json:"previousBalance"`
	CurrentBalance  int64  `json:"currentBalance"`
}

// PointCharged 在充值事务提交后发布
type PointCharged struct {
	ChargeRequestID string    `json:"chargeRequestId"`
	UserID          string    `json:"userId"`
	PaymentID       string    `json:"paymentId"`
	Amount          int64     `json:"amount"`
	BalanceAfter    int64     `json:"balanceAfter"`
	ChargedAt       time.Time `json:"chargedAt"`
}

// Repositories 聚合了积分服务使用的仓储
type Repositories struct {
	Balances       domain.BalanceRepository
	Transactions   domain.TransactionRepository
	ChargeRequests domain.ChargeRequestRepository
}

// ChargeService 负责积分充值：创建充值申请，并根据支付网关的确认幂等地完成充值。
type ChargeService struct {
	repos     Repositories
	gateway   domain.PaymentGateway
	locker    lock.Locker
	tx        *txctx.Manager
	ids       idgen.Generator
	publisher mq.Publisher
	topic     string
	limits    domain.ChargeLimits
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*ChargeService)

func WithLimits(limits domain.ChargeLimits) Option {
	return func(s *ChargeService) { s.limits = limits }
}

func WithClock(now func() time.Time) Option {
	return func(s *ChargeService) { s.now = now }
}

// NewChargeService 创建一个新的充值服务实例
func NewChargeService(
	repos Repositories,
	gateway domain.PaymentGateway,
	locker lock.Locker,
	tx *txctx.Manager,
	ids idgen.Generator,
	publisher mq.Publisher,
	topic string,
	tracer trace.Tracer,
	opts ...Option,
) *ChargeService {
	s := &ChargeService{
		repos:     repos,
		gateway:   gateway,
		locker:    locker,
		tx:        tx,
		ids:       ids,
		publisher: publisher,
		topic:     topic,
		limits:    domain.DefaultChargeLimits,
		tracer:    tracer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCharge 创建一笔待支付的充值申请
func (s *ChargeService) RequestCharge(ctx context.Context, userID string, amount int64) (*domain.ChargeRequest, error) {
	ctx, span := s.tracer.Start(ctx, "service.RequestCharge")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int64("charge.amount", amount))

	req, err := domain.NewChargeRequest(s.ids.Generate(), userID, amount, s.limits, s.now())
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	if err := s.repos.ChargeRequests.SaveChargeRequest(ctx, req); err != nil {
		return nil, tracing.Fail(span, err)
	}

	logger.Ctx(ctx).Info().Str("charge_request_id", req.ID).Int64("amount", amount).Msg("charge requested")
	return req, nil
}

// VerifyAndCompleteCharge 用支付网关的确认完成充值。
// 已完成的申请直接返回之前的结果，不会再次访问网关或入账，所以并发、重复的确认最多入账一次。
// 支付未完成或金额不一致时，申请被标记为 FAILED（该状态会提交），然后返回 BadRequest。
func (s *ChargeService) VerifyAndCompleteCharge(ctx context.Context, chargeRequestID, paymentID string) (*ChargeResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.VerifyAndCompleteCharge")
	defer span.End()
	span.SetAttributes(
		attribute.String("charge_request.id", chargeRequestID),
		attribute.String("payment.id", paymentID),
	)

	// 先无锁读取一次，拿到用户 ID 才能确定锁的 key
	req, err := s.repos.ChargeRequests.FindChargeRequest(ctx, chargeRequestID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	span.SetAttributes(attribute.String("user.id", req.UserID))

	var out verification
	verifyTx := txctx.Transactional(s.tx, func(ctx context.Context) (verification, error) {
		return s.verify(ctx, chargeRequestID, paymentID)
	})
	err = lock.WithLock(ctx, s.locker, lock.UserKey(req.UserID), func(ctx context.Context) error {
		var err error
		out, err = verifyTx(ctx)
		return err
	})
	if err == nil {
		err = out.rejected
	}
	metrics.ChargesTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	return out.result, nil
}

// verification 是事务内确认的结果。
// rejected 是支付校验失败，必须在 FAILED 状态提交之后才返回给调用方。
type verification struct {
	result   *ChargeResult
	rejected error
}

func (s *ChargeService) verify(ctx context.Context, chargeRequestID, paymentID string) (verification, error) {
	req, err := s.repos.ChargeRequests.FindChargeRequestWithLock(ctx, chargeRequestID)
	if err != nil {
		return verification{}, err
	}

	switch req.Status {
	case domain.ChargeStatusCompleted:
		result, err := s.completedResult(ctx, req)
		return verification{result: result}, err
	case domain.ChargeStatusFailed:
		return verification{}, errors.WithStack(domain.ErrChargeAlreadyFailed)
	}

	info, err := s.gateway.GetPaymentInfo(ctx, paymentID)
	if err != nil {
		return verification{}, errors.Wrapf(err, "get payment info %s", paymentID)
	}

	now := s.now()
	if rejected := info.Verify(req); rejected != nil {
		if err := req.Fail(paymentID, apperr.Message(rejected), now); err != nil {
			return verification{}, err
		}
		if err := s.repos.ChargeRequests.UpdateChargeRequestStatus(ctx, req); err != nil {
			return verification{}, err
		}
		logger.Ctx(ctx).Warn().
			Str("charge_request_id", req.ID).
			Str("payment_id", paymentID).
			Str("payment_status", string(info.Status)).
			Int64("payment_amount", info.Amount).
			Int64("charge_amount", req.Amount).
			Msg("charge verification failed")
		return verification{rejected: rejected}, nil
	}

	result, err := s.complete(ctx, req, paymentID, now)
	return verification{result: result}, err
}

// complete 入账、记流水并把申请标记为完成
func (s *ChargeService) complete(ctx context.Context, req *domain.ChargeRequest, paymentID string, now time.Time) (*ChargeResult, error) {
	opening := false
	balance, err := s.repos.Balances.FindBalanceWithLock(ctx, req.UserID)
	switch {
	case apperr.IsNotFound(err):
		// 第一次充值时开户
		balance = domain.NewBalance(req.UserID, now)
		opening = true
	case err != nil:
		return nil, err
	}

	previous := balance.Amount
	if err := balance.Charge(req.Amount, now); err != nil {
		return nil, err
	}
	save := s.repos.Balances.SaveBalance
	if opening {
		save = s.repos.Balances.CreateBalance
	}
	if err := save(ctx, balance); err != nil {
		return nil, err
	}
	tx := domain.NewTransaction(s.ids.Generate(), balance, domain.TransactionCharge, req.Amount, req.ID, now)
	if err := s.repos.Transactions.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := req.Complete(paymentID, now); err != nil {
		return nil, err
	}
	if err := s.repos.ChargeRequests.UpdateChargeRequestStatus(ctx, req); err != nil {
		return nil, err
	}

	mq.PublishAfterCommit(ctx, s.publisher, s.topic, req.UserID, mq.Event{
		ID:         s.ids.Generate(),
		Type:       EventPointCharged,
		OccurredAt: now,
		Payload: PointCharged{
			ChargeRequestID: req.ID,
			UserID:          req.UserID,
			PaymentID:       paymentID,
			Amount:          req.Amount,
			BalanceAfter:    balance.Amount,
			ChargedAt:       now,
		},
	})

	return &ChargeResult{
		ChargeRequestID: req.ID,
		Amount:          req.Amount,
		PreviousBalance: previous,
		CurrentBalance:  balance.Amount,
	}, nil
}

// completedResult 根据当前余额重新计算已完成申请的结果，不产生任何写入
func (s *ChargeService) completedResult(ctx context.Context, req *domain.ChargeRequest) (*ChargeResult, error) {
	balance, err := s.repos.Balances.FindBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &ChargeResult{
		ChargeRequestID: req.ID,
		Amount:          req.Amount,
		PreviousBalance: balance.Amount - req.Amount,
		CurrentBalance:  balance.Amount,
	}, nil
}

// GetBalance 返回用户当前的积分余额，没有开户的用户余额为 0
func (s *ChargeService) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetBalance")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	balance, err := s.repos.Balances.FindBalance(ctx, userID)
	if apperr.IsNotFound(err) {
		return domain.NewBalance(userID, s.now()), nil
	}
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	return balance, nil
}

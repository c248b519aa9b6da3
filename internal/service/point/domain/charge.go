// internal/service/point/domain/charge.go
package domain

import (
	"time"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
)

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "PENDING"
	ChargeStatusCompleted ChargeStatus = "COMPLETED"
	ChargeStatusFailed    ChargeStatus = "FAILED"
)

var (
	ErrChargeAlreadyFailed = apperr.NewBadRequest("charge request already failed")
	ErrChargeNotPending    = apperr.NewBadRequest("charge request is not pending")
	ErrPaymentNotPaid      = apperr.NewBadRequest("payment is not completed")
	ErrPaymentMismatch     = apperr.NewBadRequest("payment amount does not match charge amount")
)

// ChargeLimits 是单笔充值金额的范围
type ChargeLimits struct {
	Min int64
	Max int64
}

var DefaultChargeLimits = ChargeLimits{Min: 1_000, Max: 1_000_000}

// ChargeRequest 是一次积分充值申请，状态只能从 PENDING 单向流转一次。
type ChargeRequest struct {
	ID            string
	UserID        string
	Amount        int64
	Status        ChargeStatus
	PaymentID     string
	FailureReason string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

func NewChargeRequest(id, userID string, amount int64, limits ChargeLimits, now time.Time) (*ChargeRequest, error) {
	if amount < limits.Min || amount > limits.Max {
		return nil, apperr.BadRequest("charge amount must be between %d and %d", limits.Min, limits.Max)
	}
	return &ChargeRequest{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Status:    ChargeStatusPending,
		CreatedAt: now,
	}, nil
}

// Complete 标记充值成功
func (c *ChargeRequest) Complete(paymentID string, now time.Time) error {
	if c.Status != ChargeStatusPending {
		return errors.WithStack(ErrChargeNotPending)
	}
	c.Status = ChargeStatusCompleted
	c.PaymentID = paymentID
	c.CompletedAt = &now
	return nil
}

// Fail 标记充值失败，失败是终态
func (c *ChargeRequest) Fail(paymentID, reason string, now time.Time) error {
	if c.Status != ChargeStatusPending {
		return errors.WithStack(ErrChargeNotPending)
	}
	c.Status = ChargeStatusFailed
	c.PaymentID = paymentID
	c.FailureReason = reason
	c.CompletedAt = &now
	return nil
}

// PaymentStatus 是支付网关返回的支付状态
type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// PaymentInfo 是支付网关确认的支付结果
type PaymentInfo struct {
	PaymentID string
	Amount    int64
	Status    PaymentStatus
	PaidAt    time.Time
}

// Verify 检查支付是否可以用于完成 req
func (p PaymentInfo) Verify(req *ChargeRequest) error {
	if p.Status != PaymentStatusPaid {
		return errors.WithStack(ErrPaymentNotPaid)
	}
	if p.Amount != req.Amount {
		return errors.WithStack(ErrPaymentMismatch)
	}
	return nil
}

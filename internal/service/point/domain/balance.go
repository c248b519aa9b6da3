// internal/service/point/domain/balance.go
package domain

import (
	"time"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
)

var (
	ErrInsufficientBalance = apperr.NewBadRequest("insufficient balance")
	ErrInvalidAmount       = apperr.NewBadRequest("amount must be positive")

	// ErrBalanceExists 表示并发的首次充值已经先一步开户，重试即可
	ErrBalanceExists = errors.New("balance already opened")
)

// Balance 是用户的积分余额，任何时候都不能为负
type Balance struct {
	UserID    string
	Amount    int64
	UpdatedAt time.Time
}

func NewBalance(userID string, now time.Time) *Balance {
	return &Balance{UserID: userID, UpdatedAt: now}
}

// Use 扣减积分，余额不足时失败且不修改余额
func (b *Balance) Use(amount int64, now time.Time) error {
	if amount < 0 {
		return errors.WithStack(ErrInvalidAmount)
	}
	if amount > b.Amount {
		return errors.WithStack(ErrInsufficientBalance)
	}
	b.Amount -= amount
	b.UpdatedAt = now
	return nil
}

// Charge 充值入账
func (b *Balance) Charge(amount int64, now time.Time) error {
	if amount <= 0 {
		return errors.WithStack(ErrInvalidAmount)
	}
	b.Amount += amount
	b.UpdatedAt = now
	return nil
}

// Refund 退还订单消耗的积分
func (b *Balance) Refund(amount int64, now time.Time) error {
	if amount < 0 {
		return errors.WithStack(ErrInvalidAmount)
	}
	b.Amount += amount
	b.UpdatedAt = now
	return nil
}

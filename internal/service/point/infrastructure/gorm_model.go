package infrastructure

import (
	"database/sql"
	"time"

	"nexus-fulfillment/internal/service/point/domain"
)

// BalanceModel 对应数据库中的 point_balance 表，每个用户一行
type BalanceModel struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Amount    int64
	UpdatedAt time.Time
}

func (BalanceModel) TableName() string {
	return "point_balance"
}

// TransactionModel 对应数据库中的 point_transaction 表
type TransactionModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	UserID       string `gorm:"size:64;index"`
	Type         string `gorm:"size:16"`
	Amount       int64
	BalanceAfter int64
	RefID        string `gorm:"size:64;index"`
	CreatedAt    time.Time
}

func (TransactionModel) TableName() string {
	return "point_transaction"
}

// ChargeRequestModel 对应数据库中的 charge_request 表
type ChargeRequestModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"size:64;index"`
	Amount        int64
	Status        string `gorm:"size:16"`
	PaymentID     string `gorm:"size:64"`
	FailureReason string `gorm:"size:255"`
	CreatedAt     time.Time
	CompletedAt   sql.NullTime
}

func (ChargeRequestModel) TableName() string {
	return "charge_request"
}

// Models 返回需要迁移的表
func Models() []any {
	return []any{&BalanceModel{}, &TransactionModel{}, &ChargeRequestModel{}}
}

func toDomainBalance(m *BalanceModel) *domain.Balance {
	return &domain.Balance{UserID: m.UserID, Amount: m.Amount, UpdatedAt: m.UpdatedAt}
}

func fromDomainTransaction(t *domain.PointTransaction) *TransactionModel {
	return &TransactionModel{
		ID:           t.ID,
		UserID:       t.UserID,
		Type:         string(t.Type),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		RefID:        t.RefID,
		CreatedAt:    t.CreatedAt,
	}
}

func toDomainChargeRequest(m *ChargeRequestModel) *domain.ChargeRequest {
	req := &domain.ChargeRequest{
		ID:            m.ID,
		UserID:        m.UserID,
		Amount:        m.Amount,
		Status:        domain.ChargeStatus(m.Status),
		PaymentID:     m.PaymentID,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
	}
	if m.CompletedAt.Valid {
		completedAt := m.CompletedAt.Time
		req.CompletedAt = &completedAt
	}
	return req
}

func fromDomainChargeRequest(req *domain.ChargeRequest) *ChargeRequestModel {
	m := &ChargeRequestModel{
		ID:            req.ID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Status:        string(req.Status),
		PaymentID:     req.PaymentID,
		FailureReason: req.FailureReason,
		CreatedAt:     req.CreatedAt,
	}
	if req.CompletedAt != nil {
		m.CompletedAt = sql.NullTime{Time: *req.CompletedAt, Valid: true}
	}
	return m
}

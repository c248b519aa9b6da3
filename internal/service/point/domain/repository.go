// internal/service/point/domain/repository.go
package domain

import "context"

// BalanceRepository 定义了余额的持久化接口。
// FindBalanceWithLock 必须在环境事务中加行锁。
type BalanceRepository interface {
	FindBalanceWithLock(ctx context.Context, userID string) (*Balance, error)
	FindBalance(ctx context.Context, userID string) (*Balance, error)
	// CreateBalance 开户，账户已存在时返回 ErrBalanceExists
	CreateBalance(ctx context.Context, balance *Balance) error
	// SaveBalance 更新已有账户的余额
	SaveBalance(ctx context.Context, balance *Balance) error
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *PointTransaction) error
}

type ChargeRequestRepository interface {
	SaveChargeRequest(ctx context.Context, req *ChargeRequest) error
	FindChargeRequest(ctx context.Context, id string) (*ChargeRequest, error)
	FindChargeRequestWithLock(ctx context.Context, id string) (*ChargeRequest, error)
	UpdateChargeRequestStatus(ctx context.Context, req *ChargeRequest) error
}

// PaymentGateway 是外部支付网关的端口
type PaymentGateway interface {
	GetPaymentInfo(ctx context.Context, paymentID string) (*PaymentInfo, error)
}

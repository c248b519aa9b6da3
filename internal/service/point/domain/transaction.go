// internal/service/point/domain/transaction.go
package domain

import "time"

type TransactionType string

const (
	TransactionCharge TransactionType = "CHARGE"
	TransactionUse    TransactionType = "USE"
	TransactionRefund TransactionType = "REFUND"
)

// PointTransaction 是余额变动的流水，只追加不修改。
// RefID 指向引起变动的业务单据：充值请求或订单。
type PointTransaction struct {
	ID           string
	UserID       string
	Type         TransactionType
	Amount       int64
	BalanceAfter int64
	RefID        string
	CreatedAt    time.Time
}

// NewTransaction 在余额变动之后调用，记录变动后的余额
func NewTransaction(id string, balance *Balance, typ TransactionType, amount int64, refID string, now time.Time) *PointTransaction {
	return &PointTransaction{
		ID:           id,
		UserID:       balance.UserID,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: balance.Amount,
		RefID:        refID,
		CreatedAt:    now,
	}
}

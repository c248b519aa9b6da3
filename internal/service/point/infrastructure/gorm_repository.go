package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/txctx"
	"nexus-fulfillment/internal/service/point/domain"
)

var (
	_ domain.BalanceRepository       = (*GormPointRepository)(nil)
	_ domain.TransactionRepository   = (*GormPointRepository)(nil)
	_ domain.ChargeRequestRepository = (*GormPointRepository)(nil)
)

// GormPointRepository 实现了余额、流水和充值申请的持久化
type GormPointRepository struct {
	db *gorm.DB
}

func NewGormPointRepository(db *gorm.DB) *GormPointRepository {
	return &GormPointRepository{db: db}
}

func (r *GormPointRepository) conn(ctx context.Context) *gorm.DB {
	return txctx.DB(ctx, r.db)
}

func (r *GormPointRepository) FindBalanceWithLock(ctx context.Context, userID string) (*domain.Balance, error) {
	return r.findBalance(r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *GormPointRepository) FindBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	return r.findBalance(r.conn(ctx), userID)
}

func (r *GormPointRepository) findBalance(db *gorm.DB, userID string) (*domain.Balance, error) {
	var m BalanceModel
	if err := db.Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("balance for user %s not found", userID)
		}
		return nil, errors.Wrapf(err, "find balance of %s", userID)
	}
	return toDomainBalance(&m), nil
}

func (r *GormPointRepository) CreateBalance(ctx context.Context, balance *domain.Balance) error {
	m := &BalanceModel{UserID: balance.UserID, Amount: balance.Amount, UpdatedAt: balance.UpdatedAt}
	err := r.conn(ctx).Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.WithStack(domain.ErrBalanceExists)
	}
	if err != nil {
		return errors.Wrapf(err, "create balance of %s", balance.UserID)
	}
	return nil
}

// SaveBalance 只更新余额和更新时间
func (r *GormPointRepository) SaveBalance(ctx context.Context, balance *domain.Balance) error {
	result := r.conn(ctx).Model(&BalanceModel{}).Where("user_id = ?", balance.UserID).Updates(map[string]any{
		"amount":     balance.Amount,
		"updated_at": balance.UpdatedAt,
	})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "save balance of %s", balance.UserID)
	}
	if result.RowsAffected == 0 && !result.DryRun {
		return apperr.NotFound("balance for user %s not found", balance.UserID)
	}
	return nil
}

func (r *GormPointRepository) CreateTransaction(ctx context.Context, tx *domain.PointTransaction) error {
	if err := r.conn(ctx).Create(fromDomainTransaction(tx)).Error; err != nil {
		return errors.Wrapf(err, "create point transaction %s", tx.ID)
	}
	return nil
}

func (r *GormPointRepository) SaveChargeRequest(ctx context.Context, req *domain.ChargeRequest) error {
	if err := r.conn(ctx).Create(fromDomainChargeRequest(req)).Error; err != nil {
		return errors.Wrapf(err, "save charge request %s", req.ID)
	}
	return nil
}

func (r *GormPointRepository) FindChargeRequest(ctx context.Context, id string) (*domain.ChargeRequest, error) {
	return r.findChargeRequest(r.conn(ctx), id)
}

func (r *GormPointRepository) FindChargeRequestWithLock(ctx context.Context, id string) (*domain.ChargeRequest, error) {
	return r.findChargeRequest(r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormPointRepository) findChargeRequest(db *gorm.DB, id string) (*domain.ChargeRequest, error) {
	var m ChargeRequestModel
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("charge request %s not found", id)
		}
		return nil, errors.Wrapf(err, "find charge request %s", id)
	}
	return toDomainChargeRequest(&m), nil
}

// UpdateChargeRequestStatus 只更新状态相关的列
func (r *GormPointRepository) UpdateChargeRequestStatus(ctx context.Context, req *domain.ChargeRequest) error {
	m := fromDomainChargeRequest(req)
	result := r.conn(ctx).Model(&ChargeRequestModel{}).Where("id = ?", req.ID).Updates(map[string]any{
		"status":         m.Status,
		"payment_id":     m.PaymentID,
		"failure_reason": m.FailureReason,
		"completed_at":   m.CompletedAt,
	})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update charge request %s", req.ID)
	}
	if result.RowsAffected == 0 && !result.DryRun {
		return apperr.NotFound("charge request %s not found", req.ID)
	}
	return nil
}

package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/txctx"
	"nexus-fulfillment/internal/service/product/domain"
)

// OptionModel 对应数据库中的 product_option 表
type OptionModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	ProductID   string `gorm:"size:64;index"`
	ProductName string `gorm:"size:128"`
	Name        string `gorm:"size:128"`
	Price       int64
	Stock       int64
}

func (OptionModel) TableName() string {
	return "product_option"
}

// Models 返回需要迁移的表
func Models() []any {
	return []any{&OptionModel{}}
}

var _ domain.OptionRepository = (*GormOptionRepository)(nil)

type GormOptionRepository struct {
	db *gorm.DB
}

func NewGormOptionRepository(db *gorm.DB) *GormOptionRepository {
	return &GormOptionRepository{db: db}
}

func (r *GormOptionRepository) FindOptionWithLock(ctx context.Context, id string) (*domain.Option, error) {
	return r.find(txctx.DB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormOptionRepository) FindOption(ctx context.Context, id string) (*domain.Option, error) {
	return r.find(txctx.DB(ctx, r.db), id)
}

func (r *GormOptionRepository) find(db *gorm.DB, id string) (*domain.Option, error) {
	var m OptionModel
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("option %s not found", id)
		}
		return nil, errors.Wrapf(err, "find option %s", id)
	}
	return &domain.Option{
		ID:          m.ID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Name:        m.Name,
		Price:       m.Price,
		Stock:       m.Stock,
	}, nil
}

func (r *GormOptionRepository) SaveOption(ctx context.Context, option *domain.Option) error {
	m := &OptionModel{
		ID:          option.ID,
		ProductID:   option.ProductID,
		ProductName: option.ProductName,
		Name:        option.Name,
		Price:       option.Price,
		Stock:       option.Stock,
	}
	if err := txctx.DB(ctx, r.db).Save(m).Error; err != nil {
		return errors.Wrapf(err, "save option %s", option.ID)
	}
	return nil
}

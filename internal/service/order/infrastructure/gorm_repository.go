package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/txctx"
	"nexus-fulfillment/internal/service/order/domain"
)

// OrderModel 对应 orders 表，明细单独存放在 order_item
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"size:64;index"`
	TotalPrice    int64
	DiscountPrice int64
	FinalPrice    int64
	UserCouponID  sql.NullString `gorm:"size:64"`
	Status        string         `gorm:"size:16"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

type OrderItemModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	OrderID     string `gorm:"size:64;index"`
	ProductID   string `gorm:"size:64"`
	OptionID    string `gorm:"size:64"`
	ProductName string `gorm:"size:128"`
	OptionName  string `gorm:"size:128"`
	UnitPrice   int64
	Quantity    int64
}

func (OrderItemModel) TableName() string {
	return "order_item"
}

type CartItemModel struct {
	ID       string `gorm:"primaryKey;size:64"`
	UserID   string `gorm:"size:64;index:idx_cart_user_option"`
	OptionID string `gorm:"size:64;index:idx_cart_user_option"`
	Quantity int64
}

func (CartItemModel) TableName() string {
	return "cart_item"
}

// Models 返回需要迁移的表
func Models() []any {
	return []any{&OrderModel{}, &OrderItemModel{}, &CartItemModel{}}
}

var (
	_ domain.OrderRepository = (*GormOrderRepository)(nil)
	_ domain.CartRepository  = (*GormOrderRepository)(nil)
)

// GormOrderRepository 实现了订单和购物车的持久化
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) conn(ctx context.Context) *gorm.DB {
	return txctx.DB(ctx, r.db)
}

// Save 以 upsert 写入订单头：新订单插入明细，已有订单只更新状态列。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	db := r.conn(ctx)
	m := fromDomainOrder(order)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return errors.Wrapf(err, "save order %s", order.ID)
	}

	if len(order.Items) == 0 {
		return nil
	}
	items := make([]OrderItemModel, len(order.Items))
	for i, item := range order.Items {
		items[i] = fromDomainItem(order.ID, item)
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error; err != nil {
		return errors.Wrapf(err, "save items of order %s", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) FindWithLock(ctx context.Context, id string) (*domain.Order, error) {
	db := r.conn(ctx)
	return r.find(db, db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id), id)
}

func (r *GormOrderRepository) FindByIDAndUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	db := r.conn(ctx)
	return r.find(db, db.Where("id = ? AND user_id = ?", id, userID), id)
}

func (r *GormOrderRepository) find(db, query *gorm.DB, id string) (*domain.Order, error) {
	var m OrderModel
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %s not found", id)
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}

	var items []OrderItemModel
	if err := db.Where("order_id = ?", id).Order("option_id").Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "find items of order %s", id)
	}
	return toDomainOrder(&m, items), nil
}

// RemoveItems 删除购物车中已下单的规格。
// 删除放在保存点里，失败时不会让外层事务进入中止状态。
func (r *GormOrderRepository) RemoveItems(ctx context.Context, userID string, optionIDs []string) error {
	if len(optionIDs) == 0 {
		return nil
	}
	err := txctx.Savepoint(ctx, r.db, "cart", func(db *gorm.DB) error {
		return db.Where("user_id = ? AND option_id IN ?", userID, optionIDs).
			Delete(&CartItemModel{}).Error
	})
	if err != nil {
		return errors.Wrapf(err, "remove cart items of %s", userID)
	}
	return nil
}

func fromDomainOrder(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:            o.ID,
		UserID:        o.UserID,
		TotalPrice:    o.TotalPrice,
		DiscountPrice: o.DiscountPrice,
		FinalPrice:    o.FinalPrice,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.UserCouponID != nil {
		m.UserCouponID = sql.NullString{String: *o.UserCouponID, Valid: true}
	}
	return m
}

func fromDomainItem(orderID string, item domain.OrderItem) OrderItemModel {
	return OrderItemModel{
		ID:          item.ID,
		OrderID:     orderID,
		ProductID:   item.ProductID,
		OptionID:    item.OptionID,
		ProductName: item.ProductName,
		OptionName:  item.OptionName,
		UnitPrice:   item.UnitPrice,
		Quantity:    item.Quantity,
	}
}

func toDomainOrder(m *OrderModel, items []OrderItemModel) *domain.Order {
	o := &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		TotalPrice:    m.TotalPrice,
		DiscountPrice: m.DiscountPrice,
		FinalPrice:    m.FinalPrice,
		Status:        domain.State(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Items:         make([]domain.OrderItem, len(items)),
	}
	if m.UserCouponID.Valid {
		id := m.UserCouponID.String
		o.UserCouponID = &id
	}
	for i, item := range items {
		o.Items[i] = domain.OrderItem{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			OptionID:    item.OptionID,
			ProductName: item.ProductName,
			OptionName:  item.OptionName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		}
	}
	return o
}

package infrastructure

import (
	"database/sql"
	"time"
)

// CouponModel 对应数据库中的 coupon 表
type CouponModel struct {
	ID                string `gorm:"primaryKey;size:64"`
	Name              string `gorm:"size:128"`
	DiscountType      string `gorm:"size:32"`
	DiscountValue     int64
	MinOrderAmount    int64
	MaxDiscountAmount int64
	TotalQuantity     int64
	IssuedQuantity    int64
	ValidFrom         time.Time
	ValidTo           time.Time
	Rule              string `gorm:"type:text"`
	CreatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CouponModel) TableName() string {
	return "coupon"
}

// UserCouponModel 对应数据库中的 user_coupon 表，(coupon_id, user_id) 唯一
type UserCouponModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	CouponID  string `gorm:"size:64;uniqueIndex:uk_coupon_user"`
	UserID    string `gorm:"size:64;uniqueIndex:uk_coupon_user;index"`
	IssuedAt  time.Time
	ValidFrom time.Time
	ValidTo   time.Time
	UsedAt    sql.NullTime
	OrderID   sql.NullString `gorm:"size:64"`
}

// TableName 指定 GORM 应该使用的表名
func (UserCouponModel) TableName() string {
	return "user_coupon"
}

// CouponHistoryModel 对应数据库中的 coupon_history 表
type CouponHistoryModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	UserCouponID   string `gorm:"size:64;index"`
	CouponID       string `gorm:"size:64"`
	UserID         string `gorm:"size:64"`
	OrderID        string `gorm:"size:64"`
	DiscountAmount int64
	OrderAmount    int64
	UsedAt         time.Time
}

func (CouponHistoryModel) TableName() string {
	return "coupon_history"
}

// Models 返回需要迁移的表
func Models() []any {
	return []any{&CouponModel{}, &UserCouponModel{}, &CouponHistoryModel{}}
}

// Package seed 从 YAML 文件加载演示数据：商品规格、券批次和初始余额。
package seed

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/logger"
	pointdomain "nexus-fulfillment/internal/service/point/domain"
	productdomain "nexus-fulfillment/internal/service/product/domain"
	promotiondomain "nexus-fulfillment/internal/service/promotion/domain"
)

type Fixtures struct {
	Options  []Option  `yaml:"options"`
	Coupons  []Coupon  `yaml:"coupons"`
	Balances []Balance `yaml:"balances"`
}

type Option struct {
	ID          string `yaml:"id"`
	ProductID   string `yaml:"product_id"`
	ProductName string `yaml:"product_name"`
	Name        string `yaml:"name"`
	Price       int64  `yaml:"price"`
	Stock       int64  `yaml:"stock"`
}

type Coupon struct {
	ID                string    `yaml:"id"`
	Name              string    `yaml:"name"`
	DiscountType      string    `yaml:"discount_type"`
	DiscountValue     int64     `yaml:"discount_value"`
	MinOrderAmount    int64     `yaml:"min_order_amount"`
	MaxDiscountAmount int64     `yaml:"max_discount_amount"`
	TotalQuantity     int64     `yaml:"total_quantity"`
	ValidFrom         time.Time `yaml:"valid_from"`
	ValidTo           time.Time `yaml:"valid_to"`
	Rule              string    `yaml:"rule"`
}

type Balance struct {
	UserID string `yaml:"user_id"`
	Amount int64  `yaml:"amount"`
}

// Repositories 是写入演示数据需要的仓储
type Repositories struct {
	Options  productdomain.OptionRepository
	Coupons  promotiondomain.CouponRepository
	Balances pointdomain.BalanceRepository
}

// RuleValidator 在写入前检查券批次上的 CEL 条件
type RuleValidator interface {
	Validate(rule string) error
}

func Load(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read seed file %s", path)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse seed file %s", path)
	}
	return &f, nil
}

// Apply 写入全部数据，已存在的同 ID 记录会被覆盖
func (f *Fixtures) Apply(ctx context.Context, repos Repositories, rules RuleValidator, now time.Time) error {
	for _, o := range f.Options {
		option := &productdomain.Option{
			ID:          o.ID,
			ProductID:   o.ProductID,
			ProductName: o.ProductName,
			Name:        o.Name,
			Price:       o.Price,
			Stock:       o.Stock,
		}
		if err := repos.Options.SaveOption(ctx, option); err != nil {
			return err
		}
	}

	for _, c := range f.Coupons {
		coupon, err := c.toDomain(now)
		if err != nil {
			return err
		}
		if coupon.Rule != "" && rules != nil {
			if err := rules.Validate(coupon.Rule); err != nil {
				return errors.Wrapf(err, "coupon %s", c.ID)
			}
		}
		if err := repos.Coupons.SaveCoupon(ctx, coupon); err != nil {
			return err
		}
	}

	for _, b := range f.Balances {
		balance := &pointdomain.Balance{UserID: b.UserID, Amount: b.Amount, UpdatedAt: now}
		_, err := repos.Balances.FindBalance(ctx, b.UserID)
		switch {
		case apperr.IsNotFound(err):
			err = repos.Balances.CreateBalance(ctx, balance)
		case err == nil:
			err = repos.Balances.SaveBalance(ctx, balance)
		}
		if err != nil {
			return err
		}
	}

	logger.Ctx(ctx).Info().
		Int("options", len(f.Options)).
		Int("coupons", len(f.Coupons)).
		Int("balances", len(f.Balances)).
		Msg("seed data applied")
	return nil
}

func (c Coupon) toDomain(now time.Time) (*promotiondomain.Coupon, error) {
	discountType := promotiondomain.DiscountType(c.DiscountType)
	switch discountType {
	case promotiondomain.DiscountTypeFixedAmount, promotiondomain.DiscountTypePercentage:
	default:
		return nil, errors.Errorf("coupon %s: unknown discount type %q", c.ID, c.DiscountType)
	}
	if c.TotalQuantity <= 0 {
		return nil, errors.Errorf("coupon %s: total_quantity must be positive", c.ID)
	}
	if !c.ValidTo.After(c.ValidFrom) {
		return nil, errors.Errorf("coupon %s: valid_to must be after valid_from", c.ID)
	}
	return &promotiondomain.Coupon{
		ID:                c.ID,
		Name:              c.Name,
		DiscountType:      discountType,
		DiscountValue:     c.DiscountValue,
		MinOrderAmount:    c.MinOrderAmount,
		MaxDiscountAmount: c.MaxDiscountAmount,
		TotalQuantity:     c.TotalQuantity,
		ValidFrom:         c.ValidFrom,
		ValidTo:           c.ValidTo,
		Rule:              c.Rule,
		CreatedAt:         now,
	}, nil
}

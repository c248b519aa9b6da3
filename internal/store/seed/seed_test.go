package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/service/promotion/infrastructure/rule"
	"nexus-fulfillment/internal/store/memory"
)

const fixtures = `
options:
  - {id: opt-tee-m, product_id: tee, product_name: T-Shirt, name: M, price: 10000, stock: 20}
coupons:
  - id: welcome
    name: Welcome 10%
    discount_type: PERCENTAGE
    discount_value: 10
    max_discount_amount: 5000
    total_quantity: 100
    valid_from: 2025-01-01T00:00:00Z
    valid_to: 2030-01-01T00:00:00Z
    rule: "order_amount >= 10000"
balances:
  - {user_id: u-1, amount: 100000}
`

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndApply(t *testing.T) {
	f, err := Load(writeFile(t, fixtures))
	require.NoError(t, err)

	store := memory.New()
	defer store.Close()
	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.Apply(ctx, Repositories{Options: store, Coupons: store, Balances: store}, engine, now))

	option, err := store.FindOption(ctx, "opt-tee-m")
	require.NoError(t, err)
	assert.Equal(t, int64(20), option.Stock)

	coupon, err := store.FindCoupon(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, int64(0), coupon.IssuedQuantity)
	assert.Equal(t, "order_amount >= 10000", coupon.Rule)

	balance, err := store.FindBalance(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), balance.Amount)

	// 重复加载时覆盖已有账户
	f.Balances[0].Amount = 500
	require.NoError(t, f.Apply(ctx, Repositories{Options: store, Coupons: store, Balances: store}, engine, now))
	balance, err = store.FindBalance(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.Amount)
}

func TestApply_RejectsInvalidCoupons(t *testing.T) {
	store := memory.New()
	defer store.Close()
	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	repos := Repositories{Options: store, Coupons: store, Balances: store}
	now := time.Now()

	cases := map[string]Coupon{
		"unknown type": {ID: "c", DiscountType: "BOGO", TotalQuantity: 1, ValidTo: now.Add(time.Hour)},
		"no quantity":  {ID: "c", DiscountType: "FIXED_AMOUNT", ValidTo: now.Add(time.Hour)},
		"bad window":   {ID: "c", DiscountType: "FIXED_AMOUNT", TotalQuantity: 1},
		"bad rule":     {ID: "c", DiscountType: "FIXED_AMOUNT", TotalQuantity: 1, ValidTo: now.Add(time.Hour), Rule: "order_amount >"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			f := &Fixtures{Coupons: []Coupon{c}}
			assert.Error(t, f.Apply(context.Background(), repos, engine, now))
		})
	}
}

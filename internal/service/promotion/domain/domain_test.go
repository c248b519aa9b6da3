package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	validFrom = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	validTo   = time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	midJune   = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
)

func newCoupon(total int64) *Coupon {
	return &Coupon{
		ID:            "coupon-1",
		DiscountType:  DiscountTypeFixedAmount,
		DiscountValue: 1_000,
		TotalQuantity: total,
		ValidFrom:     validFrom,
		ValidTo:       validTo,
	}
}

func TestCoupon_IssueRespectsQuota(t *testing.T) {
	c := newCoupon(2)

	require.NoError(t, c.Issue(midJune))
	require.NoError(t, c.Issue(midJune))
	assert.ErrorIs(t, c.Issue(midJune), ErrCannotIssue)
	assert.Equal(t, int64(2), c.IssuedQuantity)
	assert.Equal(t, int64(0), c.Remaining())
}

func TestCoupon_IssueRespectsValidityWindow(t *testing.T) {
	c := newCoupon(10)

	assert.ErrorIs(t, c.Issue(validFrom.Add(-time.Second)), ErrCannotIssue)
	assert.ErrorIs(t, c.Issue(validTo.Add(time.Second)), ErrCannotIssue)
	require.NoError(t, c.Issue(validFrom))
	require.NoError(t, c.Issue(validTo))
	assert.Equal(t, int64(2), c.IssuedQuantity)
}

func TestCoupon_Discount(t *testing.T) {
	tests := []struct {
		name   string
		coupon Coupon
		amount int64
		want   int64
	}{
		{"fixed", Coupon{DiscountType: DiscountTypeFixedAmount, DiscountValue: 3_000}, 10_000, 3_000},
		{"fixed above amount", Coupon{DiscountType: DiscountTypeFixedAmount, DiscountValue: 3_000}, 2_000, 2_000},
		{"percentage floors", Coupon{DiscountType: DiscountTypePercentage, DiscountValue: 15}, 9_999, 1_499},
		{"percentage capped", Coupon{DiscountType: DiscountTypePercentage, DiscountValue: 50, MaxDiscountAmount: 2_000}, 10_000, 2_000},
		{"zero cap is unbounded", Coupon{DiscountType: DiscountTypePercentage, DiscountValue: 50}, 10_000, 5_000},
		{"fixed capped", Coupon{DiscountType: DiscountTypeFixedAmount, DiscountValue: 5_000, MaxDiscountAmount: 1_000}, 10_000, 1_000},
		{"empty order", Coupon{DiscountType: DiscountTypeFixedAmount, DiscountValue: 5_000}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.Discount(tt.amount))
		})
	}
}

func TestUserCoupon_CheckUsable(t *testing.T) {
	c := newCoupon(1)
	c.MinOrderAmount = 5_000
	uc := NewUserCoupon("uc-1", c, "u-1", midJune)

	assert.NoError(t, uc.CheckUsable("u-1", c, 5_000, midJune))
	assert.ErrorIs(t, uc.CheckUsable("u-2", c, 5_000, midJune), ErrCouponNotOwned)
	assert.ErrorIs(t, uc.CheckUsable("u-1", c, 4_999, midJune), ErrBelowMinimumAmount)
	assert.ErrorIs(t, uc.CheckUsable("u-1", c, 5_000, validTo.Add(time.Hour)), ErrCouponExpired)

	require.NoError(t, uc.Use("order-1", midJune))
	assert.ErrorIs(t, uc.CheckUsable("u-1", c, 5_000, midJune), ErrCouponAlreadyUsed)
}

func TestUserCoupon_UseAndRestore(t *testing.T) {
	uc := NewUserCoupon("uc-1", newCoupon(1), "u-1", midJune)

	assert.ErrorIs(t, uc.Restore(midJune), ErrCouponNotUsed)

	require.NoError(t, uc.Use("order-1", midJune))
	require.NotNil(t, uc.OrderID)
	assert.Equal(t, "order-1", *uc.OrderID)
	assert.ErrorIs(t, uc.Use("order-2", midJune), ErrCouponAlreadyUsed)

	require.NoError(t, uc.Restore(midJune))
	assert.Nil(t, uc.UsedAt)
	assert.Nil(t, uc.OrderID)
}

func TestUserCoupon_RestoreFailsAfterExpiry(t *testing.T) {
	uc := NewUserCoupon("uc-1", newCoupon(1), "u-1", midJune)
	require.NoError(t, uc.Use("order-1", midJune))

	assert.ErrorIs(t, uc.Restore(validTo.Add(time.Minute)), ErrCouponExpired)
	assert.True(t, uc.IsUsed())
}

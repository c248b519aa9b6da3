package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/pkg/apperr"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBalance_UseFailsClosed(t *testing.T) {
	b := &Balance{UserID: "u-1", Amount: 100}

	assert.ErrorIs(t, b.Use(101, now), ErrInsufficientBalance)
	assert.Equal(t, int64(100), b.Amount)

	require.NoError(t, b.Use(100, now))
	assert.Equal(t, int64(0), b.Amount)
}

func TestBalance_ChargeAndRefund(t *testing.T) {
	b := NewBalance("u-1", now)

	require.NoError(t, b.Charge(500, now))
	require.NoError(t, b.Refund(20, now))
	assert.Equal(t, int64(520), b.Amount)

	assert.ErrorIs(t, b.Charge(0, now), ErrInvalidAmount)
	assert.ErrorIs(t, b.Refund(-1, now), ErrInvalidAmount)
}

func TestNewTransaction_RecordsBalanceAfter(t *testing.T) {
	b := &Balance{UserID: "u-1", Amount: 300}
	tx := NewTransaction("tx-1", b, TransactionUse, 200, "order-1", now)

	assert.Equal(t, "u-1", tx.UserID)
	assert.Equal(t, int64(300), tx.BalanceAfter)
	assert.Equal(t, "order-1", tx.RefID)
}

func TestNewChargeRequest_EnforcesLimits(t *testing.T) {
	_, err := NewChargeRequest("c-1", "u-1", 999, DefaultChargeLimits, now)
	assert.True(t, apperr.IsBadRequest(err))

	_, err = NewChargeRequest("c-1", "u-1", 1_000_001, DefaultChargeLimits, now)
	assert.True(t, apperr.IsBadRequest(err))

	req, err := NewChargeRequest("c-1", "u-1", 1_000, DefaultChargeLimits, now)
	require.NoError(t, err)
	assert.Equal(t, ChargeStatusPending, req.Status)
}

func TestChargeRequest_TransitionsOnlyFromPending(t *testing.T) {
	req, err := NewChargeRequest("c-1", "u-1", 5_000, DefaultChargeLimits, now)
	require.NoError(t, err)

	require.NoError(t, req.Complete("pay-1", now))
	assert.Equal(t, ChargeStatusCompleted, req.Status)
	assert.Equal(t, "pay-1", req.PaymentID)
	require.NotNil(t, req.CompletedAt)

	assert.ErrorIs(t, req.Complete("pay-2", now), ErrChargeNotPending)
	assert.ErrorIs(t, req.Fail("pay-2", "late", now), ErrChargeNotPending)
	assert.Equal(t, "pay-1", req.PaymentID)
}

func TestPaymentInfo_Verify(t *testing.T) {
	req := &ChargeRequest{Amount: 50_000}

	assert.NoError(t, PaymentInfo{Amount: 50_000, Status: PaymentStatusPaid}.Verify(req))
	assert.ErrorIs(t, PaymentInfo{Amount: 50_000, Status: PaymentStatusPending}.Verify(req), ErrPaymentNotPaid)
	assert.ErrorIs(t, PaymentInfo{Amount: 40_000, Status: PaymentStatusPaid}.Verify(req), ErrPaymentMismatch)
}

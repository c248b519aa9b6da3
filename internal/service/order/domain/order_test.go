package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/pkg/apperr"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func sampleItems() []OrderItem {
	return []OrderItem{
		{ID: "i-1", OptionID: "opt-1", UnitPrice: 1_000, Quantity: 2},
		{ID: "i-2", OptionID: "opt-2", UnitPrice: 500, Quantity: 1},
	}
}

func TestNewOrder_ComputesPrices(t *testing.T) {
	o, err := NewOrder("o-1", "u-1", sampleItems(), 300, nil, now)
	require.NoError(t, err)

	assert.Equal(t, int64(2_500), o.TotalPrice)
	assert.Equal(t, int64(300), o.DiscountPrice)
	assert.Equal(t, int64(2_200), o.FinalPrice)
	assert.Equal(t, StatePending, o.Status)
	for _, item := range o.Items {
		assert.Equal(t, "o-1", item.OrderID)
	}
}

func TestNewOrder_Rejects(t *testing.T) {
	_, err := NewOrder("o-1", "u-1", nil, 0, nil, now)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = NewOrder("o-1", "u-1", sampleItems(), 2_501, nil, now)
	assert.True(t, apperr.IsBadRequest(err))
}

func TestOrder_Transitions(t *testing.T) {
	completed, err := NewOrder("o-1", "u-1", sampleItems(), 0, nil, now)
	require.NoError(t, err)
	require.NoError(t, completed.Complete(now))
	assert.ErrorIs(t, completed.Cancel(now), ErrInvalidTransition)
	assert.ErrorIs(t, completed.Complete(now), ErrInvalidTransition)

	cancelled, err := NewOrder("o-2", "u-1", sampleItems(), 0, nil, now)
	require.NoError(t, err)
	require.NoError(t, cancelled.Cancel(now))
	assert.Equal(t, StateCancelled, cancelled.Status)
	assert.ErrorIs(t, cancelled.Complete(now), ErrInvalidTransition)
}

func TestParseTargetState(t *testing.T) {
	s, err := ParseTargetState("CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, s)

	_, err = ParseTargetState("PENDING")
	assert.True(t, apperr.IsBadRequest(err))
}

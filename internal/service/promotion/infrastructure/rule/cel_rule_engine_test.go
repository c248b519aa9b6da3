package rule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/service/promotion/domain"
)

func newEngine(t *testing.T) *CELRuleEngine {
	e, err := NewCELRuleEngine()
	require.NoError(t, err)
	return e
}

func TestCELRuleEngine_Evaluate(t *testing.T) {
	e := newEngine(t)
	fact := domain.Fact{
		UserID:      "u-1",
		OrderAmount: 35_000,
		ItemCount:   3,
		OptionIDs:   []string{"opt-1", "opt-vip"},
		Now:         time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		rule string
		want bool
	}{
		{"", true},
		{"order_amount >= 30000 && item_count >= 2", true},
		{"order_amount >= 50000", false},
		{`"opt-vip" in option_ids`, true},
		{`user_id == "u-2"`, false},
		{`now.getHours("UTC") < 12`, true},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			got, err := e.Evaluate(tt.rule, fact)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELRuleEngine_RejectsInvalidRules(t *testing.T) {
	e := newEngine(t)

	assert.Error(t, e.Validate("order_amount >"))
	assert.Error(t, e.Validate("order_amount + 1"))
	assert.Error(t, e.Validate("unknown_var == 1"))
	assert.NoError(t, e.Validate("item_count > 0"))
}

func TestCELRuleEngine_CachesPrograms(t *testing.T) {
	e := newEngine(t)
	for i := 0; i < 3; i++ {
		_, err := e.Evaluate("item_count > 0", domain.Fact{ItemCount: 1})
		require.NoError(t, err)
	}
	assert.Len(t, e.programs, 1)
}

func TestGated_SkipsEvaluationWhenDisabled(t *testing.T) {
	enabled := false
	g := NewGated(newEngine(t), func() bool { return enabled })

	ok, err := g.Evaluate("order_amount > 1000000", domain.Fact{OrderAmount: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	enabled = true
	ok, err = g.Evaluate("order_amount > 1000000", domain.Fact{OrderAmount: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

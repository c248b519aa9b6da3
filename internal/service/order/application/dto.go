// internal/service/order/application/dto.go
package application

import (
	"slices"
	"strings"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/service/order/application/saga"
	"nexus-fulfillment/internal/service/order/domain"
	productdomain "nexus-fulfillment/internal/service/product/domain"
)

// CreateOrderItem 是下单请求中的一行
type CreateOrderItem struct {
	OptionID string `json:"optionId"`
	Quantity int64  `json:"quantity"`
}

// CreateOrderCommand 是创建订单用例的输入数据
type CreateOrderCommand struct {
	UserID         string            `json:"-"`
	Items          []CreateOrderItem `json:"items"`
	ExpectedAmount int64             `json:"expectedAmount"`
	UserCouponID   *string           `json:"userCouponId,omitempty"`
}

// lines 校验并合并重复的规格，结果按 OptionID 排序以固定加锁顺序
func (c CreateOrderCommand) lines() ([]saga.Line, error) {
	if len(c.Items) == 0 {
		return nil, errors.WithStack(domain.ErrEmptyOrder)
	}

	merged := make(map[string]int64, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			return nil, errors.WithStack(productdomain.ErrInvalidQuantity)
		}
		merged[item.OptionID] += item.Quantity
	}

	lines := make([]saga.Line, 0, len(merged))
	for optionID, quantity := range merged {
		lines = append(lines, saga.Line{OptionID: optionID, Quantity: quantity})
	}
	slices.SortFunc(lines, func(a, b saga.Line) int {
		return strings.Compare(a.OptionID, b.OptionID)
	})
	return lines, nil
}

// internal/service/order/domain/state.go
package domain

import "nexus-fulfillment/internal/pkg/apperr"

// State 定义了订单的生命周期状态：PENDING 只能流转到 COMPLETED 或 CANCELLED，二者都是终态。
type State string

const (
	StatePending   State = "PENDING"   // 已下单，资源已扣减
	StateCompleted State = "COMPLETED" // 已完成
	StateCancelled State = "CANCELLED" // 已取消，资源已归还
)

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// ParseTargetState 解析状态变更请求的目标状态，只接受终态
func ParseTargetState(s string) (State, error) {
	switch State(s) {
	case StateCompleted, StateCancelled:
		return State(s), nil
	default:
		return "", apperr.BadRequest("invalid target status %q", s)
	}
}

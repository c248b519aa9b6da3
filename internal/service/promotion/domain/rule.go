// internal/service/promotion/domain/rule.go
package domain

import "time"

// Fact 是规则引擎评估时可以使用的事实
type Fact struct {
	UserID      string
	OrderAmount int64
	ItemCount   int64
	OptionIDs   []string
	Now         time.Time
}

// RuleEngine 评估券上附带的使用条件，具体实现位于基础设施层。
type RuleEngine interface {
	Evaluate(rule string, fact Fact) (bool, error)
}

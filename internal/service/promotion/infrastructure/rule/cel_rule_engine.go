// internal/service/promotion/infrastructure/rule/cel_rule_engine.go
package rule

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"nexus-fulfillment/internal/service/promotion/domain"
)

// CELRuleEngine 是 domain.RuleEngine 基于 cel-go 的实现。
// 规则是一个返回 bool 的 CEL 表达式，例如：
//
//	order_amount >= 30000 && item_count >= 2
//	"opt-vip" in option_ids
//	now.getHours() < 12
//
// 编译后的程序按规则文本缓存，同一张券的规则只编译一次。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELRuleEngine 创建规则引擎并声明可用的事实变量
func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.StringType),
		cel.Variable("order_amount", cel.IntType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("option_ids", cel.ListType(cel.StringType)),
		cel.Variable("now", cel.TimestampType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}
	return &CELRuleEngine{env: env, programs: make(map[string]cel.Program)}, nil
}

// Evaluate 实现了 domain.RuleEngine 接口，空规则视为满足。
func (e *CELRuleEngine) Evaluate(rule string, fact domain.Fact) (bool, error) {
	if rule == "" {
		return true, nil
	}

	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}

	optionIDs := fact.OptionIDs
	if optionIDs == nil {
		optionIDs = []string{}
	}
	out, _, err := prg.Eval(map[string]any{
		"user_id":      fact.UserID,
		"order_amount": fact.OrderAmount,
		"item_count":   fact.ItemCount,
		"option_ids":   optionIDs,
		"now":          fact.Now,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate rule %q", rule)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("rule %q did not evaluate to bool", rule)
	}
	return result, nil
}

// Validate 编译规则但不执行，创建券时用于提前发现语法错误
func (e *CELRuleEngine) Validate(rule string) error {
	if rule == "" {
		return nil
	}
	_, err := e.program(rule)
	return err
}

func (e *CELRuleEngine) program(rule string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[rule]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(rule)
	if iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile rule %q", rule)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("rule %q must return bool, got %s", rule, ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build program for rule %q", rule)
	}

	e.mu.Lock()
	e.programs[rule] = prg
	e.mu.Unlock()
	return prg, nil
}

// Gated 在开关关闭时跳过规则评估，开关可以随配置中心推送实时变化。
type Gated struct {
	engine  domain.RuleEngine
	enabled func() bool
}

func NewGated(engine domain.RuleEngine, enabled func() bool) *Gated {
	return &Gated{engine: engine, enabled: enabled}
}

func (g *Gated) Evaluate(rule string, fact domain.Fact) (bool, error) {
	if !g.enabled() {
		return true, nil
	}
	return g.engine.Evaluate(rule, fact)
}

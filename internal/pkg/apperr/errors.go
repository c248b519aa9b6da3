// internal/pkg/apperr/errors.go
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind 是业务错误的分类，接口层据此映射为稳定的状态码。
type Kind int

const (
	KindNotFound   Kind = iota + 1 // 资源不存在（订单、优惠券、商品选项、余额、充值请求）
	KindBadRequest                 // 业务规则被违反（库存不足、余额不足、优惠券不可用……）
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindBadRequest:
		return "BAD_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Error 是核心层唯一对外暴露的业务错误类型。
// 对于同一个 *Error 值，errors.Is 成立，因此领域层可以把它当作哨兵错误来声明。
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound 构造一个带调用栈的 NotFound 错误
func NotFound(format string, args ...any) error {
	return errors.WithStack(&Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)})
}

// BadRequest 构造一个带调用栈的 BadRequest 错误
func BadRequest(format string, args ...any) error {
	return errors.WithStack(&Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)})
}

// NewNotFound 和 NewBadRequest 用于声明包级哨兵，不携带调用栈。
func NewNotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func NewBadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

// KindOf 返回错误链中第一个 *Error 的分类，不是业务错误时返回 0。
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsBadRequest(err error) bool { return KindOf(err) == KindBadRequest }

// Message 返回面向调用方的错误信息：业务错误原样透出，其余错误统一隐藏细节。
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker/v2"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/httpclient"
	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/service/point/domain"
)

var _ domain.PaymentGateway = (*PaymentHTTPAdapter)(nil)

// paymentResponse 是支付网关 GET /payments/{id} 的响应体
type paymentResponse struct {
	PaymentID string    `json:"paymentId"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	PaidAt    time.Time `json:"paidAt"`
}

// PaymentHTTPAdapter 实现了 domain.PaymentGateway 接口。
// 网关连续失败时熔断，熔断期间直接返回错误而不再请求网关。
type PaymentHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker[*domain.PaymentInfo]
}

// NewPaymentHTTPAdapter 创建一个新的支付网关适配器
func NewPaymentHTTPAdapter(client *httpclient.Client, baseURL string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: gobreaker.NewCircuitBreaker[*domain.PaymentInfo](gobreaker.Settings{
			Name:        "payment-gateway",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// 业务错误（支付不存在）说明网关是健康的
			IsSuccessful: func(err error) bool {
				return err == nil || apperr.KindOf(err) != 0
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.L().Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

// GetPaymentInfo 查询支付结果
func (a *PaymentHTTPAdapter) GetPaymentInfo(ctx context.Context, paymentID string) (*domain.PaymentInfo, error) {
	info, err := a.breaker.Execute(func() (*domain.PaymentInfo, error) {
		return a.fetch(ctx, paymentID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(err, "payment gateway unavailable")
	}
	return info, err
}

func (a *PaymentHTTPAdapter) fetch(ctx context.Context, paymentID string) (*domain.PaymentInfo, error) {
	var resp paymentResponse
	err := a.client.GetJSON(ctx, a.baseURL+"/payments/"+url.PathEscape(paymentID), &resp)
	if httpclient.StatusCode(err) == http.StatusNotFound {
		return nil, apperr.NotFound("payment %s not found", paymentID)
	}
	if err != nil {
		return nil, err
	}
	return &domain.PaymentInfo{
		PaymentID: resp.PaymentID,
		Amount:    resp.Amount,
		Status:    domain.PaymentStatus(resp.Status),
		PaidAt:    resp.PaidAt,
	}, nil
}

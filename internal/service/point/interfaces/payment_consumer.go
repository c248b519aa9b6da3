package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/logger"
)

// PaymentConfirmed 是支付网关在支付完成后投递的消息
type PaymentConfirmed struct {
	ChargeRequestID string `json:"chargeRequestId"`
	PaymentID       string `json:"paymentId"`
}

// PaymentConfirmedHandler 把支付完成消息转换为充值确认。
// 业务错误（申请不存在、金额不符等）重试也不会成功，只记录日志；
// 其余错误返回给消费者，由它转入死信队列。
type PaymentConfirmedHandler struct {
	service ChargeService
}

func NewPaymentConfirmedHandler(service ChargeService) *PaymentConfirmedHandler {
	return &PaymentConfirmedHandler{service: service}
}

// Handle 满足 mq.HandlerFunc
func (h *PaymentConfirmedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var event PaymentConfirmed
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "decode payment confirmed message")
	}
	if event.ChargeRequestID == "" || event.PaymentID == "" {
		return errors.Errorf("payment confirmed message missing ids: %s", msg.Value)
	}

	result, err := h.service.VerifyAndCompleteCharge(ctx, event.ChargeRequestID, event.PaymentID)
	if err != nil {
		if apperr.KindOf(err) != 0 {
			logger.Ctx(ctx).Warn().Err(err).
				Str("charge_request_id", event.ChargeRequestID).
				Str("payment_id", event.PaymentID).
				Msg("payment confirmation rejected")
			return nil
		}
		return err
	}

	logger.Ctx(ctx).Info().
		Str("charge_request_id", result.ChargeRequestID).
		Int64("amount", result.Amount).
		Int64("balance", result.CurrentBalance).
		Msg("charge completed from payment confirmation")
	return nil
}

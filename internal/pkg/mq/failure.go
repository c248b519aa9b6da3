// internal/pkg/mq/failure.go
package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"nexus-fulfillment/internal/pkg/logger"
)

// 死信消息携带的头，记录原始位置和失败原因
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
)

// DLTSuffix 是死信 topic 的后缀
const DLTSuffix = ".dlt"

// MessageWriter 是 kafka.Writer 的最小子集
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// FailureHandler 把处理失败的消息转投到 <topic>.dlt，由人工或 DLT 消费者跟进。
type FailureHandler struct {
	writer MessageWriter
}

func NewFailureHandler(writer MessageWriter) *FailureHandler {
	return &FailureHandler{writer: writer}
}

// Handle 投递死信；投递本身失败时只能记录日志，消息内容一并打出以便人工恢复。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	dead := DeadLetter(msg, cause)
	if err := h.writer.WriteMessages(ctx, dead); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("original_topic", msg.Topic).
			Int64("original_offset", msg.Offset).
			Str("value", string(msg.Value)).
			Msg("failed to write dead letter")
		return
	}
	logger.Ctx(ctx).Warn().Err(cause).
		Str("original_topic", msg.Topic).
		Int64("original_offset", msg.Offset).
		Str("dlt", dead.Topic).
		Msg("message moved to dead letter topic")
}

// DeadLetter 构造 msg 对应的死信消息，保留原始的 key、value 和链路头。
func DeadLetter(msg kafka.Message, cause error) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", errors.Cause(cause)))},
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
	)
	return kafka.Message{
		Topic:   msg.Topic + DLTSuffix,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// internal/pkg/mq/publisher.go
package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/pkg/metrics"
)

// Publisher 把领域事件投递到消息中间件
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// KafkaPublisher 使用一个不绑定 topic 的 Writer，topic 由每条消息指定。
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: NewKafkaWriter(brokers, "")}
}

// NewKafkaWriter 创建 Writer；topic 为空时由消息自身携带 topic。
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // 同一个 key 的事件落在同一分区，保证顺序
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal event for topic %s", topic)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	InjectTraceContext(ctx, &msg)

	err = p.writer.WriteMessages(ctx, msg)
	metrics.EventsPublishedTotal.WithLabelValues(topic, metrics.Outcome(err)).Inc()
	if err != nil {
		return errors.Wrapf(err, "write message to topic %s", topic)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// InjectTraceContext 把当前链路信息写入消息头，消费方可以接上同一条 trace。
func InjectTraceContext(ctx context.Context, msg *kafka.Message) {
	carrier := KafkaHeaderCarrier(msg.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = carrier
}

// LogPublisher 在没有配置 Kafka 时使用，只记录事件
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	logger.Ctx(ctx).Info().Str("topic", topic).Str("key", key).Interface("event", event).Msg("event published")
	metrics.EventsPublishedTotal.WithLabelValues(topic, "logged").Inc()
	return nil
}

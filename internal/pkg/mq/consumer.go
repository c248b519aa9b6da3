// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"nexus-fulfillment/internal/pkg/logger"
)

// MessageReader 是 kafka.Reader 的最小子集
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc 处理一条消息，ctx 已经接上了生产方的链路
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Consumer 是一个驱动适配器：拉取消息、交给 handler 处理、再提交 offset。
// handler 返回错误时消息交给 FailureHandler，然后照常提交，不阻塞后续消息。
type Consumer struct {
	name     string
	reader   MessageReader
	handler  HandlerFunc
	failures *FailureHandler
	backoff  time.Duration

	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewConsumer 创建消费者；failures 为 nil 时失败消息只记录日志。
func NewConsumer(name string, reader MessageReader, handler HandlerFunc, failures *FailureHandler) *Consumer {
	return &Consumer{
		name:     name,
		reader:   reader,
		handler:  handler,
		failures: failures,
		backoff:  time.Second,
	}
}

// NewKafkaReader 创建一个消费组 Reader
func NewKafkaReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
}

// Start 开始消费，是一个长期运行的后台协程，ctx 结束或 Stop 后退出。
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("kafka consumer started")
		for !c.stopped.Load() {
			// 使用 FetchMessage 而不是 ReadMessage，处理完成后再手动提交
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || c.stopped.Load() {
					logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("kafka consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("could not fetch message, retrying")
				select {
				case <-time.After(c.backoff):
				case <-ctx.Done():
					return
				}
				continue
			}

			c.process(ctx, msg)

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("failed to commit message")
			}
		}
	}()
	return nil
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	carrier := KafkaHeaderCarrier(msg.Headers)
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)

	err := c.handler(msgCtx, msg)
	if err == nil {
		return
	}
	if c.failures != nil {
		c.failures.Handle(msgCtx, msg, err)
		return
	}
	logger.Ctx(msgCtx).Error().Err(err).
		Str("consumer", c.name).
		Str("topic", msg.Topic).
		Int64("offset", msg.Offset).
		Msg("failed to process message")
}

// Stop 关闭 reader 并等待消费协程退出
func (c *Consumer) Stop(ctx context.Context) {
	c.stopped.Store(true)
	if err := c.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("consumer", c.name).Msg("close kafka reader")
	}
	c.wg.Wait()
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("kafka consumer stopped")
}

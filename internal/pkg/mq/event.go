// internal/pkg/mq/event.go
package mq

import (
	"context"
	"time"

	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/pkg/txctx"
)

// Event 是所有领域事件的信封
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// PublishAfterCommit 在环境事务提交后投递事件。投递失败只记录日志：
// 业务结果已经提交，事件是尽力而为的通知。
func PublishAfterCommit(ctx context.Context, p Publisher, topic, key string, event Event) {
	txctx.AfterCommit(ctx, func(ctx context.Context) {
		if err := p.Publish(ctx, topic, key, event); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("topic", topic).
				Str("event_type", event.Type).
				Msg("failed to publish domain event")
		}
	})
}

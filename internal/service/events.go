package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/sirupsen/logrus"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *model.DomainEvent) error { return nil }

// publish 发布领域事件,失败只记录日志,不影响已提交的写入
func publish(ctx context.Context, publisher EventPublisher, logger *logrus.Logger, clock Clock, eventType model.EventType, aggregateID string, payload map[string]interface{}) {
	evt := &model.DomainEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  clock.Now(),
		Payload:     payload,
	}
	if err := publisher.Publish(ctx, evt); err != nil {
		logger.WithFields(logrus.Fields{
			"event_type":   eventType,
			"aggregate_id": aggregateID,
		}).WithError(err).Error("failed to publish domain event")
	}
}

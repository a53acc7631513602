package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eventsite-service/internal/bucketing"
	"eventsite-service/internal/client"
	"eventsite-service/internal/model"
	"eventsite-service/internal/util"
)

// Publisher fans security events out to Kafka (stream consumers) and
// ClickHouse (long-term audit). Both sinks are best-effort: an audit outage
// must never fail the auth request that produced the event.
type Publisher struct {
	kafka      *client.KafkaProducer
	clickhouse *client.ClickHouseClient
	buckets    *bucketing.Manager
}

func NewPublisher(kafka *client.KafkaProducer, clickhouse *client.ClickHouseClient, buckets *bucketing.Manager) *Publisher {
	return &Publisher{
		kafka:      kafka,
		clickhouse: clickhouse,
		buckets:    buckets,
	}
}

// Publish records one security event. Runs synchronously but swallows sink
// errors after logging them.
func (p *Publisher) Publish(ctx context.Context, eventType model.SecurityEventType, phoneHash, userID, detail string) {
	event := &model.SecurityEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		PhoneHash:  phoneHash,
		UserID:     userID,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if p.buckets != nil {
		if phoneHash != "" {
			event.EventBucket = p.buckets.EventBucket(phoneHash)
		} else {
			event.EventBucket = p.buckets.UserBucket(userID)
		}
	}

	if p.kafka != nil {
		if err := p.kafka.PublishSecurityEvent(ctx, event); err != nil {
			util.Warn("failed to publish security event to kafka",
				zap.String("event_type", string(eventType)),
				util.ErrorField(err))
		}
	}

	if p.clickhouse != nil {
		if err := p.clickhouse.InsertSecurityEvent(ctx, event); err != nil {
			util.Warn("failed to insert security event into clickhouse",
				zap.String("event_type", string(eventType)),
				util.ErrorField(err))
		}
	}
}

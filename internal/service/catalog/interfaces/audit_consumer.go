// internal/service/catalog/interfaces/audit_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/pkg/mq"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/ecom2122/ecom/internal/service/catalog/infrastructure"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"sync"
	"sync/atomic"
)

// MessageReader 是 *kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditConsumer 监听目录变更事件并记录审计日志
type AuditConsumer struct {
	reader  MessageReader
	topic   string
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewAuditConsumer(reader MessageReader, topic string) *AuditConsumer {
	return &AuditConsumer{reader: reader, topic: topic}
}

func (a *AuditConsumer) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("audit consumer started")
		for {
			if a.stopped.Load() {
				return
			}
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || a.stopped.Load() {
					logger.Ctx(ctx).Info().Msg("audit consumer shutting down")
					return
				}
				logger.Ctx(ctx).Warn().Err(err).Msg("failed to fetch catalog event")
				continue
			}

			logCatalogEvent(ctx, msg)

			// 审计只记录日志，不论消息能否解析都提交 offset
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Int64("offset", msg.Offset).Msg("failed to commit offset")
			}
		}
	}()
	return nil
}

func (a *AuditConsumer) Stop(ctx context.Context) {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("audit consumer stopped")
}

func logCatalogEvent(ctx context.Context, msg kafka.Message) {
	ctx = mq.ExtractTraceContext(ctx, msg)
	ctx, span := otel.Tracer("catalog-audit").Start(ctx, "audit.CatalogEvent")
	defer span.End()

	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().
			Err(err).
			Str("key", string(msg.Key)).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("unreadable catalog event")
		return
	}

	span.SetAttributes(
		attribute.String("catalog.event_type", string(event.Type)),
		attribute.String("catalog.entity", event.Entity),
		attribute.Int64("catalog.id", event.EntityID),
	)
	var headerType string
	for _, h := range msg.Headers {
		if h.Key == infrastructure.HeaderEventType {
			headerType = string(h.Value)
		}
	}

	entry := logger.Ctx(ctx).Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("header_type", headerType).
		Str("entity", event.Entity).
		Int64("entity_id", event.EntityID).
		Time("occurred_at", event.OccurredAt).
		Int64("offset", msg.Offset)
	if event.Relation != "" {
		entry = entry.Str("relation", event.Relation).Int64("related_id", event.RelatedID)
	}
	entry.Msg("catalog event")
}

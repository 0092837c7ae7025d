package infrastructure

import (
	"context"
	"encoding/json"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/pkg/metrics"
	"github.com/ecom2122/ecom/internal/pkg/mq"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const HeaderEventType = "event-type"

// KafkaEventPublisher 把目录变更事件写入 Kafka，分区键为 entity:id
type KafkaEventPublisher struct {
	writer mq.MessageWriter
}

func NewKafkaEventPublisher(writer mq.MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal catalog event")
	}
	err = mq.ProduceMessage(ctx, p.writer, []byte(event.Key()), body,
		kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)})
	return errors.Wrapf(err, "produce %s event for %s", event.Type, event.Key())
}

// NamedPublisher 给发布通道起名，用于指标和日志
type NamedPublisher struct {
	Name      string
	Publisher domain.EventPublisher
}

// FanoutPublisher 依次投递到所有通道。单个通道失败只记录日志，不影响其他通道。
type FanoutPublisher struct {
	sinks []NamedPublisher
}

func NewFanoutPublisher(sinks ...NamedPublisher) *FanoutPublisher {
	return &FanoutPublisher{sinks: sinks}
}

func (f *FanoutPublisher) Publish(ctx context.Context, event domain.Event) error {
	var failed error
	for _, s := range f.sinks {
		if err := s.Publisher.Publish(ctx, event); err != nil {
			metrics.EventsPublished.WithLabelValues(s.Name, "error").Inc()
			logger.Ctx(ctx).Error().Err(err).Str("sink", s.Name).Str("event_id", event.ID).Msg("failed to publish catalog event")
			if failed == nil {
				failed = err
			}
			continue
		}
		metrics.EventsPublished.WithLabelValues(s.Name, "ok").Inc()
	}
	return failed
}

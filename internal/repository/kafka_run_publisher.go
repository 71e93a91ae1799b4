package repository

import (
	"context"

	"GridCast/internal/domain/models"
	pkgkafka "GridCast/pkg/kafka"
	applogger "GridCast/pkg/logger"
)

// KafkaRunPublisher announces stored runs on a Kafka topic. The message
// key is the run's date key so downstream consumers with key-hashed
// partitions see at most one partition per date.
type KafkaRunPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

// SetLogger injects a structured logger.
func (p *KafkaRunPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaRunPublisher) PublishRun(ctx context.Context, run *models.ForecastRun) error {
	key := run.DateKey()
	if err := p.producer.Publish(ctx, p.topic, []byte(key), run); err != nil {
		if p.l != nil {
			p.l.Error("kafka publish_run error",
				applogger.String("topic", p.topic),
				applogger.String("date", key),
				applogger.Error(err),
			)
		}
		return err
	}
	if p.l != nil {
		p.l.Info("kafka publish_run ok",
			applogger.String("topic", p.topic),
			applogger.String("date", key),
			applogger.Int("entries", len(run.Entries)),
		)
	}
	return nil
}

func (p *KafkaRunPublisher) Close() error {
	return p.producer.Close()
}

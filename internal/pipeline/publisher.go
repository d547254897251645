package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/config"
	"github.com/sanspareilsmyn/sweeplens/internal/stats"
)

type kafkaZapLogger struct {
	log *zap.Logger
}

func (l kafkaZapLogger) Printf(msg string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(msg, args...))
}

type kafkaZapErrorLogger struct {
	log *zap.Logger
}

func (l kafkaZapErrorLogger) Printf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

// SnapshotEvent announces a newly saved snapshot.
type SnapshotEvent struct {
	RunID    string         `json:"run_id"`
	SN       string         `json:"sn"`
	SavedAt  time.Time      `json:"saved_at"`
	Snapshot stats.Snapshot `json:"snapshot"`
}

// Publisher delivers snapshot events downstream.
type Publisher interface {
	Publish(ctx context.Context, ev SnapshotEvent) error
	Close() error
}

// NewPublisher returns a Kafka publisher when enabled, a no-op one otherwise.
func NewPublisher(cfg config.PublisherConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		logger.Debug("Snapshot publishing disabled")
		return NopPublisher{}, nil
	}
	return NewKafkaPublisher(cfg, logger)
}

// KafkaPublisher writes snapshot events to a topic, keyed by SN so that the
// events of one machine stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(cfg config.PublisherConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		logger.Error("Publisher configuration validation failed",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
		)
		return nil, ErrInvalidPublisherConfig
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Logger:       kafkaZapLogger{logger.Named("kafka-writer").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger:  kafkaZapErrorLogger{logger.Named("kafka-writer-error").WithOptions(zap.AddCallerSkip(1))},
	}

	logger.Info("Kafka publisher created",
		zap.String("topic", cfg.Topic),
		zap.Strings("brokers", cfg.Brokers),
	)
	return &KafkaPublisher{writer: w, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev SnapshotEvent) error {
	msg, err := newMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	p.logger.Debug("Snapshot event published", zap.String("sn", ev.SN), zap.String("run_id", ev.RunID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher...")
	return p.writer.Close()
}

func newMessage(ev SnapshotEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return kafka.Message{
		Key:   []byte(ev.SN),
		Value: value,
		Time:  ev.SavedAt,
	}, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SnapshotEvent) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

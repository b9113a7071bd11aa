package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"skillswap-auth/internal/models"
	"skillswap-auth/internal/util"
)

type Sink interface {
	Name() string
	Write(ctx context.Context, event models.SecurityEvent) error
	HealthCheck(ctx context.Context) error
}

// LogSink writes events as structured log entries with the email masked
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, event models.SecurityEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.Time("event_time", event.EventTime),
		zap.String("action", event.Action),
		zap.String("outcome", event.Outcome),
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", util.MaskEmail(event.Email)))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip", event.IPAddress))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}

	if event.Outcome == models.OutcomeFailure {
		s.logger.Warn("Security event", fields...)
	} else {
		s.logger.Info("Security event", fields...)
	}
	return nil
}

func (s *LogSink) HealthCheck(context.Context) error { return nil }

type producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
	HealthCheck(ctx context.Context) error
}

// KafkaSink publishes JSON events keyed by subject so one account's events
// stay ordered within a partition.
type KafkaSink struct {
	producer producer
	topic    string
}

func NewKafkaSink(p producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, event models.SecurityEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode security event: %w", err)
	}
	return s.producer.ProduceMessage(ctx, s.topic, []byte(event.Subject()), value, map[string]string{
		"action":  event.Action,
		"outcome": event.Outcome,
	})
}

func (s *KafkaSink) HealthCheck(ctx context.Context) error {
	return s.producer.HealthCheck(ctx)
}

type indexer interface {
	IndexDocument(ctx context.Context, index, id string, document interface{}) error
	HealthCheck(ctx context.Context) error
}

type ElasticsearchSink struct {
	indexer indexer
	index   string
}

func NewElasticsearchSink(ix indexer, index string) *ElasticsearchSink {
	return &ElasticsearchSink{indexer: ix, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Write(ctx context.Context, event models.SecurityEvent) error {
	return s.indexer.IndexDocument(ctx, s.index, event.EventID, event)
}

func (s *ElasticsearchSink) HealthCheck(ctx context.Context) error {
	return s.indexer.HealthCheck(ctx)
}

// MultiSink writes each event to every sink concurrently
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string { return "multi" }

func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) Write(ctx context.Context, event models.SecurityEvent) error {
	return m.each(func(s Sink) error {
		if err := s.Write(ctx, event); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		return nil
	})
}

func (m *MultiSink) HealthCheck(ctx context.Context) error {
	return m.each(func(s Sink) error {
		if err := s.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		return nil
	})
}

// each runs fn for every sink without cancelling siblings on failure
func (m *MultiSink) each(fn func(Sink) error) error {
	errs := make([]error, len(m.sinks))
	var g errgroup.Group
	for i, s := range m.sinks {
		i, s := i, s
		g.Go(func() error {
			errs[i] = fn(s)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

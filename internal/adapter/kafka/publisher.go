package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/imonbus/safety-data-etl/internal/config"
	"github.com/imonbus/safety-data-etl/internal/domain"
)

// Publisher produces one message per neighborhood score to the scores topic,
// so downstream consumers can track risk per quartiere without parsing the
// whole artifact.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured scores topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaScoresTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishScores publishes every neighborhood's score in a single
// WriteMessages call, keyed by label in sorted order so repeated runs
// produce the same sequence.
func (p *Publisher) PublishScores(ctx context.Context, scores map[string]domain.NeighborhoodScore, runID string, generatedAt time.Time) error {
	if len(scores) == 0 {
		return nil
	}

	msgs, err := buildMessages(scores, runID, generatedAt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// buildMessages serializes the scores map into Kafka messages, labels sorted.
func buildMessages(scores map[string]domain.NeighborhoodScore, runID string, generatedAt time.Time) ([]kafkago.Message, error) {
	labels := make([]string, 0, len(scores))
	for label := range scores {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	msgs := make([]kafkago.Message, 0, len(labels))
	for _, label := range labels {
		msg, err := serializeScore(label, scores[label], runID, generatedAt)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeScore marshals one neighborhood score into a Kafka message.
func serializeScore(label string, score domain.NeighborhoodScore, runID string, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(score)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize neighborhood score: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(label),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}

//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imonbus/safety-data-etl/internal/adapter/kafka"
	"github.com/imonbus/safety-data-etl/internal/config"
	"github.com/imonbus/safety-data-etl/internal/dataset"
	"github.com/imonbus/safety-data-etl/internal/domain"
	"github.com/imonbus/safety-data-etl/internal/observability"
	"github.com/imonbus/safety-data-etl/internal/pipeline"
)

const testScoresTopic = "test-neighborhood-scores"

// scoreMessage holds a deserialized message read from the scores topic.
type scoreMessage struct {
	Label   string
	Fields  map[string]float64
	Headers map[string]string
}

// readScore reads a single message from the consumer and deserializes it.
func readScore(ctx context.Context, t *testing.T, consumer *kafkago.Reader) scoreMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from scores topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	fields := make(map[string]float64)
	require.NoError(t, json.Unmarshal(msg.Value, &fields), "unmarshal score message")

	return scoreMessage{
		Label:   string(msg.Key),
		Fields:  fields,
		Headers: headers,
	}
}

func newScoresConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testScoresTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestPublishScores_RoundTrip verifies the adapter layer: kafka.Publisher
// produces one message per neighborhood, keyed by label, and the payload and
// headers survive the trip through a real broker.
func TestPublishScores_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testScoresTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaScoresTopic: testScoresTopic,
	}

	scores := map[string]domain.NeighborhoodScore{
		"Murat": {
			Rates:       map[domain.Problem]float64{domain.ProblemSpaccio: 0.25},
			Intensities: map[domain.Problem]float64{domain.ProblemSpaccio: 0.4},
			RiskScore:   0.062,
			Count:       4,
		},
		"Libertà": {
			Rates:       map[domain.Problem]float64{domain.ProblemSpaccio: 0.667},
			Intensities: map[domain.Problem]float64{domain.ProblemSpaccio: 0.85},
			RiskScore:   0.167,
			Count:       3,
		},
	}
	generatedAt := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.PublishScores(ctx, scores, "run-roundtrip", generatedAt))

	consumer := newScoresConsumer(t, broker)

	// Single partition, so messages arrive in publish order: labels sorted.
	first := readScore(ctx, t, consumer)
	assert.Equal(t, "Libertà", first.Label)
	assert.InDelta(t, 0.667, first.Fields["spaccio_rate"], 1e-9)
	assert.InDelta(t, 0.85, first.Fields["spaccio_intensity"], 1e-9)
	assert.InDelta(t, 0.167, first.Fields["risk_score"], 1e-9)
	assert.InDelta(t, 3, first.Fields["count"], 1e-9)
	assert.Equal(t, "run-roundtrip", first.Headers["run_id"])
	assert.Equal(t, "2026-03-14T09:30:00Z", first.Headers["generated_at"])

	second := readScore(ctx, t, consumer)
	assert.Equal(t, "Murat", second.Label)
	assert.InDelta(t, 0.062, second.Fields["risk_score"], 1e-9)
	assert.InDelta(t, 4, second.Fields["count"], 1e-9)
	assert.Equal(t, "run-roundtrip", second.Headers["run_id"])
}

// TestPipelineToKafka_EndToEnd runs the real pipeline on small tables and
// publishes its scores, verifying the run metadata carried in the headers
// matches the report.
func TestPipelineToKafka_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testScoresTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaScoresTopic: testScoresTopic,
	}

	survey := &dataset.Table{
		Path:    "survey.csv",
		Headers: []string{"quale_quartiere_abita", "problemiquartiere_spaccio_scala_1", "problemiquartiere_spaccio_scala_2"},
		Rows: []map[string]string{
			{"quale_quartiere_abita": "Japigia", "problemiquartiere_spaccio_scala_1": "Sì", "problemiquartiere_spaccio_scala_2": "Molto"},
			{"quale_quartiere_abita": "Japigia", "problemiquartiere_spaccio_scala_1": "No"},
			{"quale_quartiere_abita": "Carrassi", "problemiquartiere_spaccio_scala_1": "No", "problemiquartiere_spaccio_scala_2": "Per nulla"},
		},
	}
	incidents := &dataset.Table{
		Path:    "incidents.csv",
		Headers: []string{"latitudine", "longitudine"},
		Rows: []map[string]string{
			{"latitudine": "41.05", "longitudine": "16.8"},
			{"latitudine": "41.12", "longitudine": "16.87"},
		},
	}
	streets := &dataset.Table{
		Path:    "streets.csv",
		Headers: []string{"denominazione_strada"},
		Rows: []map[string]string{
			{"denominazione_strada": "VIA NAPOLI"},
			{"denominazione_strada": "VIA NAPOLI"},
		},
	}

	params := pipeline.Params{
		Bound:              domain.DefaultBound,
		Grid:               domain.DefaultGrid,
		StreetMinIncidents: 2,
		HeatmapPointCap:    100,
		Scoring:            domain.DefaultScoring(),
	}
	p := pipeline.New(params, discardLogger(), observability.NewMetricsForTesting())

	artifact, report, err := p.Run(ctx, pipeline.Sources{Survey: survey, Incidents: incidents, Streets: streets})
	require.NoError(t, err)
	require.Len(t, artifact.NeighborhoodScores, 2)

	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.PublishScores(ctx, artifact.NeighborhoodScores, report.RunID, report.StartedAt))

	consumer := newScoresConsumer(t, broker)

	first := readScore(ctx, t, consumer)
	assert.Equal(t, "Carrassi", first.Label)
	assert.InDelta(t, 0, first.Fields["risk_score"], 1e-9)
	assert.InDelta(t, 1, first.Fields["count"], 1e-9)
	assert.Equal(t, report.RunID, first.Headers["run_id"])

	second := readScore(ctx, t, consumer)
	assert.Equal(t, "Japigia", second.Label)
	assert.InDelta(t, 0.5, second.Fields["spaccio_rate"], 1e-9)
	assert.InDelta(t, 0.125, second.Fields["risk_score"], 1e-9)
	assert.InDelta(t, 2, second.Fields["count"], 1e-9)
	assert.Equal(t, report.RunID, second.Headers["run_id"])

	generatedAt, err := time.Parse(time.RFC3339, second.Headers["generated_at"])
	require.NoError(t, err, "generated_at should be valid RFC3339")
	assert.WithinDuration(t, report.StartedAt, generatedAt, time.Second)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/imonbus/safety-data-etl/internal/adapter/archive"
	kafkaadapter "github.com/imonbus/safety-data-etl/internal/adapter/kafka"
	"github.com/imonbus/safety-data-etl/internal/config"
	"github.com/imonbus/safety-data-etl/internal/dataset"
	"github.com/imonbus/safety-data-etl/internal/domain"
	"github.com/imonbus/safety-data-etl/internal/observability"
	"github.com/imonbus/safety-data-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = run(ctx, cfg, logger, metrics)
	stop()
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	survey, err := dataset.Load(cfg.SurveyPath())
	if err != nil {
		return fmt.Errorf("load survey: %w", err)
	}
	incidents, err := dataset.Load(cfg.IncidentsPath())
	if err != nil {
		return fmt.Errorf("load incidents: %w", err)
	}
	streets, err := dataset.Load(cfg.StreetsPath())
	if err != nil {
		return fmt.Errorf("load streets: %w", err)
	}

	p := pipeline.New(pipeline.ParamsFromConfig(cfg), logger, metrics)

	artifact, report, err := p.Run(ctx, pipeline.Sources{
		Survey:    survey,
		Incidents: incidents,
		Streets:   streets,
	})
	if err != nil {
		return err
	}

	size, err := artifact.WriteFile(cfg.OutputPath)
	if err != nil {
		return err
	}
	report.ArtifactBytes = size
	metrics.ArtifactBytes.Set(float64(size))

	logger.Info("artifact written",
		"path", cfg.OutputPath,
		"size_kb", fmt.Sprintf("%.1f", float64(size)/1024),
	)

	deliver(ctx, cfg, logger, artifact, report)

	if err := observability.PushMetrics(cfg, metrics, report.RunID); err != nil {
		logger.Error("metrics push failed", "error", err)
	}

	return nil
}

// deliver runs the optional sinks. Sink failures are logged, not fatal: the
// artifact on disk is the product.
func deliver(ctx context.Context, cfg *config.Config, logger *slog.Logger, artifact domain.Artifact, report pipeline.Report) {
	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		if err := publisher.PublishScores(ctx, artifact.NeighborhoodScores, report.RunID, report.StartedAt); err != nil {
			logger.Error("publish scores failed", "error", err)
		} else {
			logger.Info("scores published",
				"topic", cfg.KafkaScoresTopic,
				"neighborhoods", len(artifact.NeighborhoodScores),
			)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if cfg.ArchivePath != "" {
		store, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			logger.Error("open archive failed", "error", err)
			return
		}
		if err := store.SaveRun(ctx, report, artifact.NeighborhoodScores); err != nil {
			logger.Error("archive run failed", "error", err)
		} else {
			logger.Info("run archived", "path", cfg.ArchivePath, "run_id", report.RunID)
		}
		if err := store.Close(); err != nil {
			logger.Error("archive close error", "error", err)
		}
	}
}

package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/imonbus/safety-data-etl/internal/config"
)

// PushMetrics ships the run's registry to the Pushgateway named in
// PUSHGATEWAY_ADDR, grouped by run ID so consecutive runs stay apart.
// A blank address or an unregistered Metrics is a no-op.
func PushMetrics(cfg *config.Config, m *Metrics, runID string) error {
	if cfg.PushgatewayAddr == "" || m.registry == nil {
		return nil
	}

	err := push.New(cfg.PushgatewayAddr, cfg.MetricsJob).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		Push()
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

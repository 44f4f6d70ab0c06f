package worker

import (
	"context"
	"fmt"

	"github.com/driftline/engine/internal/dispatcher"
	"github.com/driftline/engine/internal/telemetry"
	"github.com/driftline/engine/internal/util"
)

// RegisterHandlers registers the worker-owned commands with the dispatcher.
// Everything here is high-volume host metric traffic, so it runs buffered off
// the bridge thread.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":METRIC:", m.handleMetric, dispatcher.Buffered(1000), dispatcher.Logged())
}

// handleMetric parses a host-supplied metric and ships it to InfluxDB.
func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	if m.deps.Telemetry == nil {
		return nil, nil
	}

	bucket, point, err := telemetry.ProcessMetricData(e.Args, util.FixEscapeQuotes, util.TrimQuotes)
	if err != nil {
		return nil, fmt.Errorf("failed to process metric data: %w", err)
	}

	if err := m.deps.Telemetry.WritePoint(context.Background(), bucket, point); err != nil {
		return nil, fmt.Errorf("failed to write metric point: %w", err)
	}

	return nil, nil
}

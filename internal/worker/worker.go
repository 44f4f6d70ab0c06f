// Package worker moves telemetry from the sim thread to the storage and
// metrics sinks. The game loop pushes copies into queues; ticker-driven
// goroutines here drain them, so a slow database never stalls a frame.
package worker

import (
	"context"
	"time"

	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/queue"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/internal/storage"
	"github.com/driftline/engine/internal/telemetry"
	"github.com/driftline/engine/pkg/core"
)

const flushInterval = 1 * time.Second

// Queues buffer telemetry between the sim thread and the writer goroutines.
type Queues struct {
	Samples *queue.Queue[core.TelemetrySample]
	Events  *queue.Queue[core.RunEvent]
}

// NewQueues creates empty worker queues.
func NewQueues() *Queues {
	return &Queues{
		Samples: queue.New[core.TelemetrySample](),
		Events:  queue.New[core.RunEvent](),
	}
}

// Dependencies holds all dependencies for the worker manager.
type Dependencies struct {
	Backend    storage.Backend
	Telemetry  *telemetry.Manager // optional
	Queues     *Queues
	Session    *session.Context
	LogManager *logging.SlogManager
}

// Manager runs the writer goroutines that drain the queues.
type Manager struct {
	deps     Dependencies
	stopChan chan struct{}
	running  bool
}

// NewManager creates a new worker manager.
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps: deps,
	}
}

// Start launches the flush goroutine. Calling Start on a running manager is a no-op.
func (m *Manager) Start() {
	if m.running {
		return
	}
	m.stopChan = make(chan struct{})
	m.running = true

	go func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopChan:
				// Final drain so nothing queued at shutdown is lost.
				m.flush()
				return
			case <-ticker.C:
				m.flush()
			}
		}
	}()
}

// Stop halts the flush goroutine after a final drain.
func (m *Manager) Stop() {
	if !m.running {
		return
	}
	close(m.stopChan)
	m.running = false
}

// flush drains both queues into the storage backend and the metrics sink.
func (m *Manager) flush() {
	log := m.deps.LogManager.WriteLog

	samples := m.deps.Queues.Samples.GetAndEmpty()
	if len(samples) > 0 {
		if err := m.deps.Backend.WriteSamples(samples); err != nil {
			log(":WORKER:", "Error writing telemetry samples: "+err.Error(), "ERROR")
			m.deps.Queues.Samples.Push(samples...)
		} else {
			m.shipToTelemetry(samples)
		}
	}

	events := m.deps.Queues.Events.GetAndEmpty()
	if len(events) > 0 {
		if err := m.deps.Backend.WriteEvents(events); err != nil {
			log(":WORKER:", "Error writing run events: "+err.Error(), "ERROR")
			m.deps.Queues.Events.Push(events...)
		}
	}
}

// shipToTelemetry mirrors the sample batch into InfluxDB, best effort.
func (m *Manager) shipToTelemetry(samples []core.TelemetrySample) {
	if m.deps.Telemetry == nil {
		return
	}

	track := m.deps.Session.GetTrack()
	ctx := context.Background()
	for _, s := range samples {
		if err := m.deps.Telemetry.WriteSample(ctx, track, s); err != nil {
			m.deps.LogManager.WriteLog(":WORKER:", "Error shipping sample to InfluxDB: "+err.Error(), "ERROR")
			return
		}
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.deps.Backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

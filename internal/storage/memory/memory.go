// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/driftline/engine/internal/config"
	"github.com/driftline/engine/pkg/core"
)

// RunRecord groups a run with all its recorded time-series data
type RunRecord struct {
	Meta    core.RunMeta
	Track   core.Track
	Samples []core.TelemetrySample
	Events  []core.RunEvent
	Result  core.RunResult
	Ended   bool
}

// Backend stores run data in memory and exports ghost files to JSON
type Backend struct {
	cfg config.MemoryConfig

	runs      map[uint]*RunRecord // keyed by run ID
	bestTimes map[string]float64  // keyed by track name

	idCounter      uint
	lastRunID      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:       cfg,
		runs:      make(map[uint]*RunRecord),
		bestTimes: make(map[string]float64),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run and returns its locally assigned ID.
func (b *Backend) StartRun(meta *core.RunMeta, track *core.Track) (uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	b.runs[b.idCounter] = &RunRecord{
		Meta:  *meta,
		Track: *track,
	}
	return b.idCounter, nil
}

// EndRun finalizes a run and exports its ghost file.
func (b *Backend) EndRun(runID uint, result core.RunResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.runs[runID]
	if !ok {
		return fmt.Errorf("unknown run %d", runID)
	}

	rec.Result = result
	rec.Ended = true
	b.lastRunID = runID

	return b.exportRun(rec)
}

// WriteSamples appends telemetry samples to their runs. Samples for runs
// this backend never saw are dropped.
func (b *Backend) WriteSamples(samples []core.TelemetrySample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range samples {
		rec, ok := b.runs[s.RunID]
		if !ok {
			continue
		}
		rec.Samples = append(rec.Samples, s)
	}
	return nil
}

// WriteEvents appends run events to their runs.
func (b *Backend) WriteEvents(events []core.RunEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range events {
		rec, ok := b.runs[e.RunID]
		if !ok {
			continue
		}
		rec.Events = append(rec.Events, e)
	}
	return nil
}

// BestTime returns the stored best time for a track.
func (b *Backend) BestTime(track string) (float64, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	elapsed, ok := b.bestTimes[track]
	return elapsed, ok, nil
}

// SaveBestTime stores a new best time for a track.
func (b *Backend) SaveBestTime(track string, elapsed float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bestTimes[track] = elapsed
	return nil
}

// internal/storage/storage.go
package storage

import "github.com/driftline/engine/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run lifecycle. StartRun returns the backend-assigned run ID; memory
	// backends count locally, DB backends use the row ID.
	StartRun(meta *core.RunMeta, track *core.Track) (uint, error)
	EndRun(runID uint, result core.RunResult) error

	// Recording. Batches arrive from the worker's queue drains; samples and
	// events carry their run ID already.
	WriteSamples(samples []core.TelemetrySample) error
	WriteEvents(events []core.RunEvent) error

	// Best times, keyed by track name.
	BestTime(track string) (float64, bool, error)
	SaveBestTime(track string, elapsed float64) error

	// ExportGhost renders a recorded run as a replayable ghost payload.
	ExportGhost(runID uint) ([]byte, error)
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the leaderboard server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

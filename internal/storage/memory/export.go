// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/driftline/engine/internal/storage/export/v1"
	"github.com/driftline/engine/pkg/core"
)

// ExportGhost renders a recorded run as a v1 ghost payload.
func (b *Backend) ExportGhost(runID uint) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.runs[runID]
	if !ok {
		return nil, fmt.Errorf("unknown run %d", runID)
	}

	return json.Marshal(buildExport(rec))
}

// exportRun writes the ghost for a finished run to a JSON file. Callers must
// hold b.mu. Exporting is skipped when no output directory is configured, so
// the backend still works as a pure in-memory store.
func (b *Backend) exportRun(rec *RunRecord) error {
	if b.cfg.OutputDir == "" {
		return nil
	}

	export := buildExport(rec)

	// Build filename
	trackName := strings.ReplaceAll(rec.Track.Name, " ", "_")
	trackName = strings.ReplaceAll(trackName, ":", "_")
	timestamp := rec.Meta.StartedAt.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", trackName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", trackName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func buildExport(rec *RunRecord) v1.Export {
	data := &v1.RunData{
		Meta:    &rec.Meta,
		Track:   &rec.Track,
		Samples: rec.Samples,
		Events:  rec.Events,
	}
	if rec.Ended {
		result := rec.Result
		data.Result = &result
	}
	return v1.Build(data)
}

// GetExportedFilePath returns the path of the last exported ghost file.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last ended run for the leaderboard upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.runs[b.lastRunID]
	if !ok {
		return core.UploadMetadata{}
	}

	return core.UploadMetadata{
		Track:   rec.Track.Name,
		Outcome: rec.Result.Outcome.String(),
		Elapsed: rec.Result.Elapsed,
		Tag:     rec.Meta.Tag,
	}
}

func (b *Backend) writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

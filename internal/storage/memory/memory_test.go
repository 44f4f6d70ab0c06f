// internal/storage/memory/memory_test.go
package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/driftline/engine/internal/config"
	"github.com/driftline/engine/pkg/core"
)

func testMeta() *core.RunMeta {
	return &core.RunMeta{
		Track:         "canyon-sprint",
		StartedAt:     time.Date(2026, 3, 14, 20, 15, 0, 0, time.UTC),
		EngineVersion: "5.1.0",
		Tag:           "weekly",
	}
}

func testTrack() *core.Track {
	return &core.Track{
		Name:    "canyon-sprint",
		FinishZ: -400,
	}
}

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
	if b.runs == nil {
		t.Error("runs map not initialized")
	}
	if b.bestTimes == nil {
		t.Error("bestTimes map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestStartRun(t *testing.T) {
	b := New(config.MemoryConfig{})

	id1, err := b.StartRun(testMeta(), testTrack())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	id2, err := b.StartRun(testMeta(), testTrack())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if id1 != 1 {
		t.Errorf("expected first run ID=1, got %d", id1)
	}
	if id2 != 2 {
		t.Errorf("expected second run ID=2, got %d", id2)
	}

	rec, ok := b.runs[id1]
	if !ok {
		t.Fatal("run record not created")
	}
	if rec.Track.Name != "canyon-sprint" {
		t.Errorf("expected track canyon-sprint, got %s", rec.Track.Name)
	}
	if rec.Meta.Tag != "weekly" {
		t.Errorf("expected tag weekly, got %s", rec.Meta.Tag)
	}
}

func TestWriteSamplesRoutesByRunID(t *testing.T) {
	b := New(config.MemoryConfig{})

	id1, _ := b.StartRun(testMeta(), testTrack())
	id2, _ := b.StartRun(testMeta(), testTrack())

	err := b.WriteSamples([]core.TelemetrySample{
		{RunID: id1, Frame: 1},
		{RunID: id2, Frame: 1},
		{RunID: id1, Frame: 2},
		{RunID: 999, Frame: 1}, // unknown run, dropped
	})
	if err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}

	if len(b.runs[id1].Samples) != 2 {
		t.Errorf("expected 2 samples for run %d, got %d", id1, len(b.runs[id1].Samples))
	}
	if len(b.runs[id2].Samples) != 1 {
		t.Errorf("expected 1 sample for run %d, got %d", id2, len(b.runs[id2].Samples))
	}
}

func TestWriteEvents(t *testing.T) {
	b := New(config.MemoryConfig{})

	id, _ := b.StartRun(testMeta(), testTrack())

	err := b.WriteEvents([]core.RunEvent{
		{RunID: id, Frame: 180, Name: "phase_change"},
		{RunID: id, Frame: 240, Name: "clock_second"},
	})
	if err != nil {
		t.Fatalf("WriteEvents failed: %v", err)
	}

	if len(b.runs[id].Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(b.runs[id].Events))
	}
	if b.runs[id].Events[0].Name != "phase_change" {
		t.Errorf("expected phase_change, got %s", b.runs[id].Events[0].Name)
	}
}

func TestEndRunUnknownRun(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.EndRun(42, core.RunResult{}); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestEndRunWithoutOutputDirSkipsExport(t *testing.T) {
	b := New(config.MemoryConfig{})

	id, _ := b.StartRun(testMeta(), testTrack())

	err := b.EndRun(id, core.RunResult{Outcome: core.PhaseWon, Elapsed: 42.75})
	if err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}

	if !b.runs[id].Ended {
		t.Error("run not marked ended")
	}
	if b.lastExportPath != "" {
		t.Errorf("expected no export path, got %s", b.lastExportPath)
	}
}

func TestBestTime(t *testing.T) {
	b := New(config.MemoryConfig{})

	_, ok, err := b.BestTime("canyon-sprint")
	if err != nil {
		t.Fatalf("BestTime failed: %v", err)
	}
	if ok {
		t.Error("expected no best time before save")
	}

	if err := b.SaveBestTime("canyon-sprint", 42.75); err != nil {
		t.Fatalf("SaveBestTime failed: %v", err)
	}

	elapsed, ok, err := b.BestTime("canyon-sprint")
	if err != nil {
		t.Fatalf("BestTime failed: %v", err)
	}
	if !ok {
		t.Fatal("expected best time after save")
	}
	if elapsed != 42.75 {
		t.Errorf("expected 42.75, got %f", elapsed)
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := New(config.MemoryConfig{})

	id, _ := b.StartRun(testMeta(), testTrack())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = b.WriteSamples([]core.TelemetrySample{{RunID: id, Frame: uint(n)}})
			_ = b.WriteEvents([]core.RunEvent{{RunID: id, Frame: uint(n), Name: "clock_second"}})
			_, _, _ = b.BestTime("canyon-sprint")
			_ = b.SaveBestTime("canyon-sprint", float64(n))
		}(i)
	}
	wg.Wait()

	if len(b.runs[id].Samples) != 10 {
		t.Errorf("expected 10 samples, got %d", len(b.runs[id].Samples))
	}
	if len(b.runs[id].Events) != 10 {
		t.Errorf("expected 10 events, got %d", len(b.runs[id].Events))
	}
}

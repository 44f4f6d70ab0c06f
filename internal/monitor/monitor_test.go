package monitor

import (
	"testing"
	"time"

	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/internal/worker"
	"github.com/driftline/engine/pkg/core"
)

func newTestService() (*Service, *cache.SafeCounter) {
	frames := &cache.SafeCounter{}
	queues := worker.NewQueues()
	s := NewService(Dependencies{
		LogManager:      logging.NewSlogManager(),
		Session:         session.NewContext(),
		WorkerManager:   worker.NewManager(worker.Dependencies{Queues: queues}),
		Queues:          queues,
		FrameCounter:    frames,
		IsDatabaseValid: func() bool { return false },
	})
	return s, frames
}

func TestGetProgramStatus_QueueDepths(t *testing.T) {
	s, _ := newTestService()

	s.deps.Queues.Samples.Push(core.TelemetrySample{}, core.TelemetrySample{})
	s.deps.Queues.Events.Push(core.RunEvent{})

	output, perf := s.GetProgramStatus(true, true)

	if len(output) != 2 {
		t.Fatalf("expected 2 output sections, got %d", len(output))
	}
	if perf.QueueLengths.Samples != 2 {
		t.Errorf("expected 2 queued samples, got %d", perf.QueueLengths.Samples)
	}
	if perf.QueueLengths.Events != 1 {
		t.Errorf("expected 1 queued event, got %d", perf.QueueLengths.Events)
	}
}

func TestTickRate(t *testing.T) {
	s, frames := newTestService()

	// First sample only primes the baseline.
	if rate := s.tickRate(); rate != 0 {
		t.Errorf("expected 0 on first sample, got %v", rate)
	}

	frames.Add(60)
	time.Sleep(50 * time.Millisecond)

	rate := s.tickRate()
	if rate <= 0 {
		t.Errorf("expected positive tick rate after frames advanced, got %v", rate)
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestService()
	s.deps.StatusDir = t.TempDir()

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected monitor to report running")
	}

	s.Stop()

	deadline := time.After(2 * time.Second)
	for s.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for monitor to stop")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

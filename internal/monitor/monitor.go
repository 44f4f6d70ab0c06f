// Package monitor samples engine health once a second: queue depths, tick
// rate, and DB write latency go to a status file and a performance row.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/model"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/internal/worker"

	"gorm.io/gorm"
)

// QueueLengthsProvider is implemented by backends that expose their internal
// write queue depths.
type QueueLengthsProvider interface {
	QueueLengths() (samples, events int)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB            *gorm.DB // optional; perf rows skipped when nil
	LogManager    *logging.SlogManager
	Session       *session.Context
	WorkerManager *worker.Manager
	Queues        *worker.Queues
	Backend       QueueLengthsProvider // optional
	FrameCounter  *cache.SafeCounter
	StatusDir     string

	IsDatabaseValid func() bool
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}

	// tick rate bookkeeping, touched only by the monitor goroutine
	lastFrames int
	lastSample time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current engine status as printable JSON lines
// plus the performance row for storage.
func (s *Service) GetProgramStatus(
	writeQueues bool,
	lastWrite bool,
) (output []string, perfModel model.EnginePerformance) {
	queuesObj := model.QueueLengths{
		Samples: uint16(s.deps.Queues.Samples.Len()),
		Events:  uint16(s.deps.Queues.Events.Len()),
	}
	if s.deps.Backend != nil {
		samples, events := s.deps.Backend.QueueLengths()
		queuesObj.Samples += uint16(samples)
		queuesObj.Events += uint16(events)
	}

	perf := model.EnginePerformance{
		Time:                time.Now(),
		RunID:               s.deps.Session.GetRunID(),
		QueueLengths:        queuesObj,
		TickRate:            s.tickRate(),
		LastWriteDurationMs: float32(s.deps.WorkerManager.GetLastDBWriteDuration().Milliseconds()),
	}

	if writeQueues {
		queuesStr, err := json.MarshalIndent(queuesObj, "", "  ")
		if err != nil {
			queuesStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(queuesStr))
	}
	if lastWrite {
		lastWriteStr, err := json.MarshalIndent(perf.LastWriteDurationMs, "", "  ")
		if err != nil {
			lastWriteStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(lastWriteStr))
	}

	return output, perf
}

// tickRate derives sim ticks per second from the frame counter delta since
// the last sample.
func (s *Service) tickRate() float32 {
	if s.deps.FrameCounter == nil {
		return 0
	}

	now := time.Now()
	frames := s.deps.FrameCounter.Value()

	defer func() {
		s.lastFrames = frames
		s.lastSample = now
	}()

	if s.lastSample.IsZero() || frames < s.lastFrames {
		return 0
	}
	elapsed := now.Sub(s.lastSample).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float32(float64(frames-s.lastFrames) / elapsed)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.txt")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				if s.deps.Session.GetRunID() == 0 {
					continue
				}

				statusStr, perfModel := s.GetProgramStatus(true, true)

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					for _, line := range statusStr {
						statusFile.WriteString(line + "\n")
					}
				}

				// write perf row to the database
				if s.deps.DB != nil && s.deps.IsDatabaseValid() {
					err = s.deps.DB.Create(&perfModel).Error
					if err != nil {
						logger.Error("Error writing perf row to database", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

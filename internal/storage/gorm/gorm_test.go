package gormstorage

import (
	"testing"
	"time"

	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{
		DB:              nil,
		BestTimes:       cache.NewBestTimeCache(),
		LogManager:      logging.NewSlogManager(),
		Session:         session.NewContext(),
		IsDatabaseValid: func() bool { return false },
		ShouldSaveLocal: func() bool { return false },
		DBInsertsPaused: func() bool { return false },
	})
}

func TestNew(t *testing.T) {
	b := newTestBackend()
	require.NotNil(t, b)
}

func TestInitClose(t *testing.T) {
	b := newTestBackend()

	err := b.Init()
	require.NoError(t, err)
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	err = b.Close()
	require.NoError(t, err)
}

func TestStartRun_QueueOnlyAssignsZeroID(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	runID, err := b.StartRun(
		&core.RunMeta{Track: "demo", StartedAt: time.Now()},
		&core.Track{Name: "demo"},
	)
	require.NoError(t, err)
	assert.Zero(t, runID)
}

func TestWriteSamples_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	samples := []core.TelemetrySample{
		{RunID: 1, Frame: 10, SimTime: 0.5, Velocity: 12.5},
		{RunID: 1, Frame: 11, SimTime: 0.55, Velocity: 13.0, IsDrifting: true},
	}
	require.NoError(t, b.WriteSamples(samples))

	queued := b.queues.Samples.GetAndEmpty()
	require.Len(t, queued, 2)
	assert.Equal(t, uint(10), queued[0].Frame)
	assert.Equal(t, float32(12.5), queued[0].Velocity)
	assert.True(t, queued[1].IsDrifting)
	assert.False(t, queued[0].Time.IsZero(), "samples are stamped at enqueue time")
}

func TestWriteEvents_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	events := []core.RunEvent{
		{RunID: 1, Frame: 3, Name: "countdown", Data: map[string]any{"remaining": 2}},
	}
	require.NoError(t, b.WriteEvents(events))

	queued := b.queues.Events.GetAndEmpty()
	require.Len(t, queued, 1)
	assert.Equal(t, "countdown", queued[0].Name)
}

func TestBestTime_AnswersFromWarmedCache(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	b.deps.BestTimes.Warm(map[string]float64{"demo": 20.75})

	elapsed, ok, err := b.BestTime("demo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 20.75, elapsed)

	_, ok, err = b.BestTime("unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueLengths(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.WriteSamples([]core.TelemetrySample{{Frame: 1}, {Frame: 2}}))
	require.NoError(t, b.WriteEvents([]core.RunEvent{{Name: "clock_second"}}))

	samples, events := b.QueueLengths()
	assert.Equal(t, 2, samples)
	assert.Equal(t, 1, events)
}

// Package stream pushes run data over a WebSocket to a spectator or leaderboard
// server instead of persisting it locally. Samples and events are
// fire-and-forget; run lifecycle messages wait for a server acknowledgement.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/driftline/engine/pkg/core"
	"github.com/driftline/engine/pkg/streaming"
)

// Config holds stream backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams run data over WebSocket.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn      *connection
	cfg       Config
	nextRunID atomic.Uint64
}

// New creates a new stream storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newConnection(slog.Default()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartRun sends run metadata with the track layout and waits for server ack.
// Run IDs are assigned locally; the server keys everything off this stream.
func (b *Backend) StartRun(meta *core.RunMeta, track *core.Track) (uint, error) {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Meta: meta, Track: track})
	if err != nil {
		return 0, err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	if err := b.conn.sendAndWait(data, streaming.TypeStartRun, ackTimeout); err != nil {
		return 0, err
	}
	return uint(b.nextRunID.Add(1)), nil
}

// EndRun sends the run outcome and waits for server ack.
func (b *Backend) EndRun(runID uint, result core.RunResult) error {
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{RunID: runID, Result: result})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndRun, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}

// WriteSamples streams a telemetry batch, fire-and-forget.
func (b *Backend) WriteSamples(samples []core.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}
	return b.sendEnvelope(streaming.TypeSamples, samples)
}

// WriteEvents streams a run event batch, fire-and-forget.
func (b *Backend) WriteEvents(events []core.RunEvent) error {
	if len(events) == 0 {
		return nil
	}
	return b.sendEnvelope(streaming.TypeRunEvents, events)
}

// BestTime always misses; record keeping lives on the server side of the stream.
func (b *Backend) BestTime(track string) (float64, bool, error) {
	return 0, false, nil
}

// SaveBestTime announces a new record, fire-and-forget.
func (b *Backend) SaveBestTime(track string, elapsed float64) error {
	return b.sendEnvelope(streaming.TypeBestTime, streaming.BestTimePayload{Track: track, Elapsed: elapsed})
}

// ExportGhost is not supported: the stream keeps no replayable history.
func (b *Backend) ExportGhost(runID uint) ([]byte, error) {
	return nil, fmt.Errorf("stream backend does not store runs")
}

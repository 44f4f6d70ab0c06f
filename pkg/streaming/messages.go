package streaming

import (
	"encoding/json"

	"github.com/driftline/engine/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun  = "start_run"
	TypeEndRun    = "end_run"
	TypeSamples   = "samples"
	TypeRunEvents = "run_events"
	TypeBestTime  = "best_time"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload carries run metadata and the active track layout.
type StartRunPayload struct {
	Meta  *core.RunMeta `json:"meta"`
	Track *core.Track   `json:"track"`
}

// EndRunPayload carries the final outcome of a run.
type EndRunPayload struct {
	RunID  uint           `json:"runId"`
	Result core.RunResult `json:"result"`
}

// BestTimePayload announces a new track record.
type BestTimePayload struct {
	Track   string  `json:"track"`
	Elapsed float64 `json:"elapsed"`
}

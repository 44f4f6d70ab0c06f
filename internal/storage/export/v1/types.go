// Package v1 contains the v1 ghost export format for recorded runs.
// This format is consumed by the browser frontend's ghost playback.
package v1

// Export is the root JSON structure for v1 ghosts
type Export struct {
	EngineVersion string  `json:"engineVersion"`
	HostVersion   string  `json:"hostVersion"`
	Track         string  `json:"track"`
	StartedAt     string  `json:"startedAt"`
	Outcome       string  `json:"outcome"`
	LossReason    string  `json:"lossReason"`
	Elapsed       float64 `json:"elapsed"`
	Tags          string  `json:"tags"`
	EndFrame      uint    `json:"endFrame"`
	Frames        [][]any `json:"frames"`
	Events        [][]any `json:"events"`
}

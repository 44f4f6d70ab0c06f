package hostbridge

import (
	"sync"

	"github.com/driftline/engine/internal/dispatcher"
)

// CallbackFunc receives an event pushed from the engine to the host.
// name identifies the engine instance, function is the event channel
// (e.g. ":RACE:PHASE:") and data is the payload, usually JSON.
type CallbackFunc func(name, function, data string)

// Config is the central configuration used by this library
var Config configStruct = configStruct{}

func init() {
	Config.Init()
}

// configStruct is the central configuration used by this library
type configStruct struct {
	// version is the value returned when the host first probes the engine
	version string

	// dispatcher handles event routing
	dispatcher *dispatcher.Dispatcher

	// callback receives outbound events; nil until the host registers one
	mu       sync.RWMutex
	callback CallbackFunc
}

// Init method initializes the config struct
func (c *configStruct) Init() {
	c.version = "No version set"
}

// SetVersion sets the version string returned when the host first probes the engine
func SetVersion(version string) {
	Config.version = version
}

// Version returns the engine version string for the host's attach probe
func Version() string {
	return Config.version
}

// SetDispatcher sets the event dispatcher for handling commands
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	return Config.dispatcher
}

// RegisterCallback sets the host function that receives outbound events.
// The host registers exactly once, before the first frame.
func RegisterCallback(fn CallbackFunc) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.callback = fn
}

// WriteCallback pushes an event to the host. Returns false when no callback
// is registered, in which case the event is dropped; callers treat outbound
// events as best-effort.
func WriteCallback(name, function, data string) bool {
	Config.mu.RLock()
	fn := Config.callback
	Config.mu.RUnlock()
	if fn == nil {
		return false
	}
	fn(name, function, data)
	return true
}

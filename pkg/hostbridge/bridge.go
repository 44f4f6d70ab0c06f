// Package hostbridge is the string-command surface between a render host and
// the engine. Hosts call the engine with a command name and string args and
// get a bracketed status response back; the engine pushes events the other
// way through a registered callback. The protocol is host-agnostic: the
// browser runtime drives it through a wasm export table and the native shell
// through a shared-library binding, both of which reduce to these two calls.
package hostbridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/driftline/engine/internal/dispatcher"
)

// Call handles a single-string command from the host. Compound commands pack
// args into the command with "|" separators (":INPUT:|w|down"); the hot input
// path uses this form to avoid per-keystroke array marshalling.
func Call(command string) string {
	// Handle built-in timestamp command
	if command == ":TIMESTAMP:" {
		return getTimestamp()
	}

	parts := strings.Split(command, "|")

	d := Config.dispatcher
	if d != nil && d.HasHandler(parts[0]) {
		event := dispatcher.Event{
			Command:   parts[0],
			Args:      parts[1:],
			Timestamp: time.Now(),
		}

		result, err := d.Dispatch(event)
		return formatDispatchResponse(parts[0], result, err)
	}

	// No handler found
	return formatDispatchResponse(command, nil, fmt.Errorf("no handler registered: %s", parts[0]))
}

// CallArgs handles a command with a pre-split argument array from the host.
func CallArgs(command string, args []string) string {
	d := Config.dispatcher
	if d != nil && d.HasHandler(command) {
		event := dispatcher.Event{
			Command:   command,
			Args:      args,
			Timestamp: time.Now(),
		}

		result, err := d.Dispatch(event)
		return formatDispatchResponse(command, result, err)
	}

	// No handler found
	return formatDispatchResponse(command, nil, fmt.Errorf("no handler registered: %s", command))
}

// formatDispatchResponse formats the dispatcher result for the host.
// Strings pass through verbatim; everything else is JSON-encoded.
func formatDispatchResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", "%s"]`, err.Error())
	}
	if result == nil {
		return `["ok"]`
	}
	if s, ok := result.(string); ok {
		return fmt.Sprintf(`["ok", "%s"]`, s)
	}
	encoded, merr := json.Marshal(result)
	if merr != nil {
		return fmt.Sprintf(`["ok", "%v"]`, result)
	}
	return fmt.Sprintf(`["ok", %s]`, encoded)
}

func getTimestamp() string {
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}

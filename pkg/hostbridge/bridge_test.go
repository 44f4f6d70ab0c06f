package hostbridge

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/engine/internal/dispatcher"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...any) {}
func (nopLogger) Info(msg string, keysAndValues ...any)  {}
func (nopLogger) Error(msg string, keysAndValues ...any) {}

func newBridgeDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })
	return d
}

func TestFormatDispatchResponse(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		result   any
		err      error
		expected string
	}{
		{
			name:     "success with string array (VERSION)",
			command:  ":VERSION:",
			result:   []string{"0.3.0", "2026-08-01"},
			err:      nil,
			expected: `["ok", ["0.3.0","2026-08-01"]]`,
		},
		{
			name:     "success with simple string",
			command:  ":INIT:",
			result:   "ok",
			err:      nil,
			expected: `["ok", "ok"]`,
		},
		{
			name:     "success with path string",
			command:  ":TRACK:LOAD:",
			result:   `C:\Games\driftline\courses\demo.json`,
			err:      nil,
			expected: `["ok", "C:\Games\driftline\courses\demo.json"]`,
		},
		{
			name:     "success with nil result",
			command:  ":RACE:RESTART:",
			result:   nil,
			err:      nil,
			expected: `["ok"]`,
		},
		{
			name:     "error response",
			command:  ":BEST:",
			result:   nil,
			err:      errors.New("no handler registered"),
			expected: `["error", "no handler registered"]`,
		},
		{
			name:     "success with int array",
			command:  ":COUNTDOWN:",
			result:   []int{3, 2, 1},
			err:      nil,
			expected: `["ok", [3,2,1]]`,
		},
		{
			name:     "success with nested array",
			command:  ":BEST:ALL:",
			result:   [][]string{{"demo", "42.517"}, {"canyon", "61.003"}},
			err:      nil,
			expected: `["ok", [["demo","42.517"],["canyon","61.003"]]]`,
		},
		{
			name:     "success with map",
			command:  ":STATE:",
			result:   map[string]int{"frame": 42},
			err:      nil,
			expected: `["ok", {"frame":42}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatDispatchResponse(tt.command, tt.result, tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResponseFormatConsistency(t *testing.T) {
	t.Run("success responses start with ok", func(t *testing.T) {
		responses := []struct {
			result any
		}{
			{result: "simple string"},
			{result: []string{"a", "b"}},
			{result: nil},
			{result: 42},
		}

		for _, r := range responses {
			got := formatDispatchResponse(":TICK:", r.result, nil)
			assert.True(t, strings.HasPrefix(got, `["ok"`))
		}
	})

	t.Run("error responses start with error", func(t *testing.T) {
		got := formatDispatchResponse(":TICK:", nil, errors.New("test error"))
		expected := `["error", "test error"]`
		assert.Equal(t, expected, got)
	})
}

func TestCall_RoutesToDispatcher(t *testing.T) {
	d := newBridgeDispatcher(t)

	d.Register(":STATE:", func(e dispatcher.Event) (any, error) {
		return map[string]int{"frame": 7}, nil
	})

	got := Call(":STATE:")
	assert.Equal(t, `["ok", {"frame":7}]`, got)
}

func TestCall_CompoundCommandSplitsArgs(t *testing.T) {
	d := newBridgeDispatcher(t)

	var gotArgs []string
	d.Register(":INPUT:", func(e dispatcher.Event) (any, error) {
		gotArgs = e.Args
		return nil, nil
	})

	got := Call(":INPUT:|w|down")
	assert.Equal(t, `["ok"]`, got)
	assert.Equal(t, []string{"w", "down"}, gotArgs)
}

func TestCall_UnknownCommand(t *testing.T) {
	newBridgeDispatcher(t)

	got := Call(":NITRO:")
	assert.Equal(t, `["error", "no handler registered: :NITRO:"]`, got)
}

func TestCall_NoDispatcher(t *testing.T) {
	SetDispatcher(nil)

	got := Call(":STATE:")
	assert.True(t, strings.HasPrefix(got, `["error"`))
}

func TestCall_Timestamp(t *testing.T) {
	got := Call(":TIMESTAMP:")

	nanos, err := strconv.ParseInt(got, 10, 64)
	require.NoError(t, err)
	assert.Greater(t, nanos, int64(0))
}

func TestCallArgs_RoutesToDispatcher(t *testing.T) {
	d := newBridgeDispatcher(t)

	var gotArgs []string
	d.Register(":TRACK:LOAD:", func(e dispatcher.Event) (any, error) {
		gotArgs = e.Args
		return "demo", nil
	})

	got := CallArgs(":TRACK:LOAD:", []string{"demo", "true"})
	assert.Equal(t, `["ok", "demo"]`, got)
	assert.Equal(t, []string{"demo", "true"}, gotArgs)
}

func TestCallArgs_HandlerErrorSurfaces(t *testing.T) {
	d := newBridgeDispatcher(t)

	d.Register(":BEST:", func(e dispatcher.Event) (any, error) {
		return nil, errors.New("no best time for track canyon")
	})

	got := CallArgs(":BEST:", []string{"canyon"})
	assert.Equal(t, `["error", "no best time for track canyon"]`, got)
}

func TestWriteCallback(t *testing.T) {
	type captured struct {
		name, function, data string
	}
	var events []captured

	RegisterCallback(func(name, function, data string) {
		events = append(events, captured{name, function, data})
	})
	t.Cleanup(func() { RegisterCallback(nil) })

	ok := WriteCallback("driftline", ":RACE:PHASE:", `{"from":"countdown","to":"racing"}`)
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, "driftline", events[0].name)
	assert.Equal(t, ":RACE:PHASE:", events[0].function)
	assert.Equal(t, `{"from":"countdown","to":"racing"}`, events[0].data)
}

func TestWriteCallback_Unregistered(t *testing.T) {
	RegisterCallback(nil)

	ok := WriteCallback("driftline", ":RACE:PHASE:", "{}")
	assert.False(t, ok)
}

func TestVersion(t *testing.T) {
	SetVersion("0.3.0")
	t.Cleanup(func() { SetVersion("No version set") })

	assert.Equal(t, "0.3.0", Version())
}

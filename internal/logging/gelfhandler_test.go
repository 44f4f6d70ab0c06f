package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGELFHandler_RoundTrip(t *testing.T) {
	r, err := gelf.NewReader("127.0.0.1:0")
	require.NoError(t, err)

	w, err := gelf.NewWriter(r.Addr())
	require.NoError(t, err)

	h := NewGELFHandler(w, slog.LevelDebug)
	logger := slog.New(h)
	logger.Info("lap complete", "track", "demo")

	msg, err := r.ReadMessage()
	require.NoError(t, err)

	assert.Equal(t, "1.1", msg.Version)
	assert.Equal(t, "lap complete", msg.Short)
	assert.Equal(t, gelfLevelInfo, msg.Level)
	assert.Equal(t, "demo", msg.Extra["_track"])
	assert.NotEmpty(t, msg.Host)
	assert.InDelta(t, float64(time.Now().Unix()), msg.TimeUnix, 5)
}

func TestGELFHandler_LevelMapping(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  int32
	}{
		{slog.LevelDebug, gelfLevelDebug},
		{slog.LevelInfo, gelfLevelInfo},
		{slog.LevelWarn, gelfLevelWarning},
		{slog.LevelError, gelfLevelError},
		{slog.LevelError + 4, gelfLevelError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gelfLevel(tt.level), "level %v", tt.level)
	}
}

func TestGELFHandler_MinimumLevel(t *testing.T) {
	h := NewGELFHandler(nil, slog.LevelWarn)

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestGELFHandler_GroupsAndAttrs(t *testing.T) {
	base := NewGELFHandler(nil, slog.LevelDebug)
	h := base.WithGroup("race").WithAttrs([]slog.Attr{slog.Int("run", 4)}).(*GELFHandler)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "crossed line", 0)
	r.AddAttrs(slog.String("verdict", "finished"))

	msg := h.message(r)
	assert.Equal(t, int64(4), msg.Extra["_race.run"])
	assert.Equal(t, "finished", msg.Extra["_race.verdict"])
}

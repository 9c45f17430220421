package sync

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelRouter_RoutesByRange(t *testing.T) {
	var info, warn bytes.Buffer
	l := slog.New(levelRouter{
		{slog.LevelInfo, slog.LevelInfo, slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelDebug})},
		{slog.LevelWarn, maxLevel, slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelDebug})},
	}).With("comp", "test")

	l.Debug("dropped")
	l.Info("hello")
	l.Error("boom")

	assert.Contains(t, info.String(), "msg=hello comp=test")
	assert.NotContains(t, info.String(), "boom")
	assert.NotContains(t, info.String(), "dropped")
	assert.Contains(t, warn.String(), "msg=boom comp=test")
	assert.NotContains(t, warn.String(), "hello")
}

func TestErrorRecorder_KeepsNewestWithBoundAttrs(t *testing.T) {
	l := slog.New(&errorRecorder{}).With("comp", "engine")

	l.Warn("not captured")
	for i := 0; i < recentErrorLimit+2; i++ {
		l.Error(fmt.Sprintf("failure %d", i), "run", "r1", "err", "eof")
	}

	got := RecentErrors()
	require.Len(t, got, recentErrorLimit)
	assert.Equal(t, fmt.Sprintf("failure %d", recentErrorLimit+1), got[0].Message)
	assert.Equal(t, "failure 2", got[recentErrorLimit-1].Message)
	assert.Equal(t, "engine", got[0].Comp)
	assert.Equal(t, "r1", got[0].Run)
	assert.Equal(t, "eof", got[0].Error)
}

package history

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/focusmute/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.Record(ctx, engine.Transition{Time: base, PID: 10, App: "game.exe", Action: engine.ActionMute, Reason: engine.ReasonNotForeground})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	s.Transition(engine.Transition{Time: base.Add(time.Second), PID: 11, App: "player.exe", Action: engine.ActionUnmute, Reason: engine.ReasonForeground})
	s.Transition(engine.Transition{Time: base.Add(2 * time.Second), PID: 11, App: "player.exe", Action: engine.ActionVolume, Reason: engine.ReasonVolumeTarget, Volume: 0.5})

	all, err := s.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, engine.ActionVolume, all[0].Action)
	assert.InDelta(t, 0.5, all[0].Volume, 0.0001)
	assert.Equal(t, "game.exe", all[2].App)
	assert.Equal(t, uint32(10), all[2].PID)
	assert.Equal(t, id, all[2].ID)
	assert.WithinDuration(t, base, all[2].Time, time.Millisecond)

	player, err := s.Recent(ctx, 1, "player.exe")
	require.NoError(t, err)
	require.Len(t, player, 1)
	assert.Equal(t, engine.ReasonVolumeTarget, player[0].Reason)
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, engine.Transition{Time: now.Add(-time.Duration(i) * 48 * time.Hour), PID: 1, App: "a.exe", Action: engine.ActionMute, Reason: engine.ReasonNotForeground})
		require.NoError(t, err)
	}

	removed, err := s.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	left, err := s.Recent(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestOpenFile(t *testing.T) {
	path := t.TempDir() + "/nested/history.sqlite"
	s, err := Open(path, nil)
	require.NoError(t, err)
	s.Transition(engine.Transition{PID: 1, App: "a.exe", Action: engine.ActionMute, Reason: engine.ReasonNotForeground})
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.Recent(context.Background(), 5, "a.exe")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

package hotkeys

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/focusmute/internal/platform"
	"github.com/1broseidon/focusmute/internal/policy"
)

type directRunner struct {
	st *policy.State
}

func (r directRunner) Do(_ context.Context, fn func(st *policy.State) error) error {
	return fn(r.st)
}

func TestNewHandler_RequiresX11(t *testing.T) {
	_, err := NewHandler(platform.NewFake(), nil)
	assert.ErrorIs(t, err, ErrNoX11)
}

func TestToggleLock(t *testing.T) {
	st := policy.New(policy.Document{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := directRunner{st: st}

	locked, err := ToggleLock(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.True(t, st.Locked())

	locked, err = ToggleLock(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.False(t, st.Locked())
}

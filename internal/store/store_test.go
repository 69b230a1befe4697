package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/focusmute/internal/policy"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.toml"))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, policy.DefaultExceptions, doc.Exceptions)
	assert.True(t, doc.Flags.KeepLastActiveUnmuted)
	assert.False(t, doc.Locked)
}

func TestLoad_ImportsLegacyExceptions(t *testing.T) {
	dir := t.TempDir()
	legacy := "Spotify.exe\n\n# comment\nvlc.exe\nspotify.exe\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exceptions.txt"), []byte(legacy), 0644))

	doc, err := New(filepath.Join(dir, "state.toml")).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"spotify.exe", "vlc.exe"}, doc.Exceptions)
}

func TestSaveThenLoad_PolicyFromState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.toml")
	s := New(path)

	st := policy.New(policy.DefaultDocument(), s, nil)
	require.NoError(t, st.AddException("spotify.exe"))
	require.NoError(t, st.SetVolume("game.exe", 35))
	require.NoError(t, st.SetOverride("discord.exe", true))
	require.NoError(t, st.AddMuteGroup([]string{"steam.exe", "game.exe"}))
	require.NoError(t, st.AddPIDMatch("code.exe"))
	require.NoError(t, st.SetFlag(policy.FlagMuteForegroundWhenBackgroundActive, true))
	require.NoError(t, st.SetLocked(true))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, st.Document(), doc)
}

func TestLoad_PartialFileKeepsDefaultFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("exceptions = ['foobar.exe']\n"), 0644))

	doc, err := New(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"foobar.exe"}, doc.Exceptions)
	assert.True(t, doc.Flags.KeepLastActiveUnmuted)
	assert.NotNil(t, doc.Volumes)
}

func TestLoad_InvalidTOMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("exceptions = [\n"), 0644))

	_, err := New(path).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), path)
}

func TestLoad_CorruptFileIsKeptAfterSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.toml")
	corrupt := []byte(`exceptions = ["spotify.exe", "vlc.exe"` + "\n")
	require.NoError(t, os.WriteFile(path, corrupt, 0644))

	s := New(path)
	doc, err := s.Load()
	require.ErrorIs(t, err, ErrCorrupt)

	st := policy.New(doc, s, nil)
	require.NoError(t, st.SetLocked(true))

	backups, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	kept, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, corrupt, kept)

	saved, err := s.Load()
	require.NoError(t, err)
	assert.True(t, saved.Locked)
}

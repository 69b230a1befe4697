package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	saves []Document
	err   error
}

func (p *recordingPersister) Save(doc Document) error {
	p.saves = append(p.saves, doc)
	return p.err
}

func TestNew_NormalizesNames(t *testing.T) {
	doc := Document{
		Exceptions: []string{" Chrome.EXE ", "", "spotify.exe"},
		Volumes:    map[string]int{"Game.exe": 150, "music.exe": -5},
		ForceMute:  map[string]bool{"Discord.exe": true},
		PIDMatch:   []string{"Code.exe"},
		MuteGroups: [][]string{{"Launcher.exe", "game.exe", "GAME.exe"}, {"solo.exe"}},
	}
	s := New(doc, nil, nil)

	assert.True(t, s.IsException("chrome.exe"))
	assert.True(t, s.IsException("SPOTIFY.EXE"))
	assert.Equal(t, 100, s.TargetVolume("game.exe"))
	assert.Equal(t, 0, s.TargetVolume("music.exe"))
	assert.Equal(t, DefaultVolume, s.TargetVolume("other.exe"))

	muted, ok := s.Override("discord.exe")
	assert.True(t, ok)
	assert.True(t, muted)

	assert.True(t, s.RequiresPIDMatch("code.exe"))
	assert.True(t, s.SameGroup("launcher.exe", "Game.exe"))
	assert.False(t, s.SameGroup("solo.exe", "game.exe"))
	assert.Len(t, s.Document().MuteGroups, 1)
}

func TestMutators_PersistOnChangeOnly(t *testing.T) {
	p := &recordingPersister{}
	s := New(DefaultDocument(), p, nil)

	require.NoError(t, s.AddException("Spotify.exe"))
	require.NoError(t, s.AddException("spotify.exe"))
	assert.Len(t, p.saves, 1)
	assert.Contains(t, p.saves[0].Exceptions, "spotify.exe")

	require.NoError(t, s.SetVolume("game.exe", 40))
	require.NoError(t, s.SetVolume("game.exe", 40))
	assert.Len(t, p.saves, 2)

	require.NoError(t, s.SetFlag(FlagForceMuteBackground, true))
	require.NoError(t, s.SetFlag(FlagForceMuteBackground, true))
	assert.Len(t, p.saves, 3)
	assert.True(t, p.saves[2].Flags.ForceMuteBackground)

	require.NoError(t, s.ClearOverride("never-set.exe"))
	assert.Len(t, p.saves, 3)
}

func TestMutators_Validation(t *testing.T) {
	s := New(DefaultDocument(), nil, nil)

	assert.ErrorIs(t, s.AddException("  "), ErrEmptyName)
	assert.ErrorIs(t, s.SetVolume("a.exe", 101), ErrVolumeRange)
	assert.ErrorIs(t, s.SetVolume("a.exe", -1), ErrVolumeRange)
	assert.ErrorIs(t, s.AddMuteGroup([]string{"a.exe", "A.EXE"}), ErrGroupTooSmall)
	assert.ErrorIs(t, s.RemoveMuteGroup(0), ErrGroupNotFound)
	assert.ErrorIs(t, s.RemoveException("notepad.exe"), ErrNotAnException)
	assert.ErrorIs(t, s.SetFlag(Flag("bogus"), true), ErrUnknownFlag)
}

func TestExceptionChangesQueueOneShotUnmute(t *testing.T) {
	s := New(DefaultDocument(), nil, nil)

	require.NoError(t, s.RemoveException("firefox.exe"))
	assert.False(t, s.IsException("firefox.exe"))
	assert.True(t, s.PendingUnmute("firefox.exe"))

	require.NoError(t, s.AddException("vlc.exe"))
	assert.True(t, s.PendingUnmute("vlc.exe"))

	s.ClearPendingUnmute()
	assert.False(t, s.PendingUnmute("firefox.exe"))
	assert.False(t, s.PendingUnmute("vlc.exe"))
}

func TestPersistFailureKeepsMemoryAuthoritative(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	s := New(DefaultDocument(), p, nil)

	err := s.SetOverride("game.exe", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	muted, ok := s.Override("game.exe")
	assert.True(t, ok)
	assert.True(t, muted)
}

func TestMuteGroups_AddRemove(t *testing.T) {
	s := New(DefaultDocument(), nil, nil)

	require.NoError(t, s.AddMuteGroup([]string{"Steam.exe", "game.exe"}))
	require.NoError(t, s.AddMuteGroup([]string{"game.exe", "steam.exe"}))
	require.NoError(t, s.AddMuteGroup([]string{"a.exe", "b.exe"}))
	assert.Len(t, s.Document().MuteGroups, 2)

	require.NoError(t, s.RemoveMuteGroup(0))
	groups := s.Document().MuteGroups
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a.exe", "b.exe"}, groups[0])
	assert.False(t, s.SameGroup("steam.exe", "game.exe"))
}

func TestReloadKeepsTransientState(t *testing.T) {
	s := New(DefaultDocument(), nil, nil)
	s.LastForegroundPID = 42
	s.ZeroActivityCount = 7

	doc := DefaultDocument()
	doc.Locked = true
	s.Reload(doc)

	assert.True(t, s.Locked())
	assert.Equal(t, uint32(42), s.LastForegroundPID)
	assert.Equal(t, 7, s.ZeroActivityCount)
}

func TestReloadQueuesUnmuteForExceptionChanges(t *testing.T) {
	s := New(DefaultDocument(), nil, nil)

	doc := DefaultDocument()
	doc.Exceptions = []string{"chrome.exe", "msedge.exe", "Spotify.exe"}
	s.Reload(doc)

	assert.True(t, s.PendingUnmute("firefox.exe"))
	assert.True(t, s.PendingUnmute("spotify.exe"))
	assert.False(t, s.PendingUnmute("chrome.exe"))
	assert.False(t, s.PendingUnmute("msedge.exe"))
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in   string
		want Flag
	}{
		{"force_mute_foreground", FlagForceMuteForeground},
		{"Force-Mute-Background", FlagForceMuteBackground},
		{" keep_last_active_unmuted ", FlagKeepLastActiveUnmuted},
		{"mute-foreground-when-background-active", FlagMuteForegroundWhenBackgroundActive},
	}
	for _, tt := range tests {
		got, err := ParseFlag(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFlag("lock")
	assert.ErrorIs(t, err, ErrUnknownFlag)
}

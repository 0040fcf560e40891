package state

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestClaimUserCreatesAndRejectsDouble(t *testing.T) {
	s := NewStore()

	u, err := s.ClaimUser("alice")
	require.NoError(t, err)
	require.Equal(t, "alice", u.ID)
	require.True(t, u.Online)
	require.Empty(t, u.State)

	_, err = s.ClaimUser("alice")
	require.ErrorIs(t, err, ErrAlreadyOnline)

	s.ReleaseUser("alice")
	_, err = s.ClaimUser("alice")
	require.NoError(t, err)
}

func TestUserStatePersistsAcrossSessions(t *testing.T) {
	s := NewStore()
	_, err := s.ClaimUser("alice")
	require.NoError(t, err)

	s.MergeUserState("alice", map[string]any{"hp": 100})
	s.ReleaseUser("alice")

	u, err := s.ClaimUser("alice")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"hp": 100}, u.State)
	require.Empty(t, u.Room)
}

func TestMergeUserStatePrunes(t *testing.T) {
	s := NewStore()
	_, err := s.ClaimUser("alice")
	require.NoError(t, err)

	s.MergeUserState("alice", map[string]any{"a": map[string]any{"b": 1}})
	s.MergeUserState("alice", map[string]any{"a": map[string]any{"b": nil}})

	st, ok := s.UserState("alice")
	require.True(t, ok)
	require.Equal(t, map[string]any{"a": map[string]any{}}, st)
}

func TestRoomsSurviveEmptyMembership(t *testing.T) {
	s := NewStore()
	s.EnsureRoom("r1")
	s.MergeRoomState("r1", map[string]any{"round": 2})

	// No membership tracking here at all: the record exists until Clear.
	st, ok := s.RoomState("r1")
	require.True(t, ok)
	require.Equal(t, map[string]any{"round": 2}, st)

	_, ok = s.RoomState("missing")
	require.False(t, ok)
}

func TestStateCopiesDoNotAliasStore(t *testing.T) {
	s := NewStore()
	_, err := s.ClaimUser("alice")
	require.NoError(t, err)
	s.MergeUserState("alice", map[string]any{"pos": map[string]any{"x": 1}})

	st, _ := s.UserState("alice")
	st["pos"].(map[string]any)["x"] = 99

	again, _ := s.UserState("alice")
	require.Equal(t, 1, again["pos"].(map[string]any)["x"])
}

func TestSnapshotRoundTripResetsSessionFields(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	s := NewStore()
	_, err := s.ClaimUser("alice")
	require.NoError(t, err)
	s.MergeUserState("alice", map[string]any{"hp": float64(90)})
	s.SetUserRoom("alice", "r1")
	s.EnsureRoom("r1")
	s.MergeRoomState("r1", map[string]any{"round": float64(3)})

	NewSnapshotter(s, dir, time.Minute, &logger).Flush()

	restored := NewStore()
	NewSnapshotter(restored, dir, time.Minute, &logger).Load()

	u, err := restored.ClaimUser("alice")
	require.NoError(t, err, "restored user must not be online")
	require.Equal(t, map[string]any{"hp": float64(90)}, u.State)
	require.Empty(t, u.Room)

	st, ok := restored.RoomState("r1")
	require.True(t, ok)
	require.Equal(t, map[string]any{"round": float64(3)}, st)
}

func TestSnapshotLoadMissingFilesStartsFresh(t *testing.T) {
	logger := zerolog.Nop()
	s := NewStore()
	NewSnapshotter(s, t.TempDir(), time.Minute, &logger).Load()
	require.Empty(t, s.Users())
	require.Empty(t, s.Rooms())
}

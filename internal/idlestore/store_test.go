package idlestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_DefaultsToNotDisabled(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "idle.db"))
	require.NoError(t, err)
	defer s.Close()

	disabled, err := s.IsDisabled("wt-000000")
	require.NoError(t, err)
	require.False(t, disabled)
}

func TestStore_SetAndGetRoundTrips(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "idle.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetDisabled("wt-000000", true))
	disabled, err := s.IsDisabled("wt-000000")
	require.NoError(t, err)
	require.True(t, disabled)

	require.NoError(t, s.SetDisabled("wt-000000", false))
	disabled, err = s.IsDisabled("wt-000000")
	require.NoError(t, err)
	require.False(t, disabled)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SetDisabled("wt-000001", true))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	disabled, err := s2.IsDisabled("wt-000001")
	require.NoError(t, err)
	require.True(t, disabled)
}

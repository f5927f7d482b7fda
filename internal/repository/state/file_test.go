package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns equal snapshots.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	ts := time.Now().UTC().Truncate(time.Second)
	want := map[string]*alarm.Snapshot{
		"LevelAlarm": {
			Name:      "LevelAlarm",
			Timestamp: ts,
			LastActor: &alarm.Actor{
				Hostname: "Oleg Shokin",
				Username: "o.shokin",
			},
			Enabled:        true,
			Retain:         true,
			Acked:          true,
			ConfirmAllowed: true,
			Active:         true,
			LimitState:     "HighHigh",
			Severity:       900,
			Comment:        "draining",
			Value:          93.5,
		},
		"PressureAlarm": {
			Name:     "PressureAlarm",
			Enabled:  false,
			Severity: 1,
		},
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, want["PressureAlarm"], got["PressureAlarm"])

	level := got["LevelAlarm"]
	require.Equal(t, want["LevelAlarm"].Timestamp.Unix(), level.Timestamp.Unix())
	require.Equal(t, want["LevelAlarm"].LastActor, level.LastActor)
	require.Equal(t, "HighHigh", level.LimitState)
	require.Equal(t, uint16(900), level.Severity)
	require.InDelta(t, 93.5, level.Value, 0)
	require.True(t, level.Acked)
	require.False(t, level.Confirmed)

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_Corrupted reports undecodable files.
func TestFileRepository_Corrupted(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(file, []byte("not json"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

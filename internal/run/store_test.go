package run

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := OpenRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	r := NewAnalysisRun("https://example.com/repo.git", "main")
	require.NoError(t, s.Create(r))

	require.NoError(t, r.Transition(StatusRunning))
	r.SetProgress(StageResolve, 40)
	r.FileCount = 12
	r.ChunkCount = 80
	require.NoError(t, s.Update(r))

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, StageResolve, got.Stage)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, 12, got.FileCount)
	assert.Equal(t, 80, got.ChunkCount)
	assert.Equal(t, "main", got.Branch)
	assert.True(t, got.FinishedAt.IsZero())
}

func TestRunStoreTerminalState(t *testing.T) {
	s := openTestStore(t)

	r := NewAnalysisRun("u", "")
	require.NoError(t, s.Create(r))
	require.NoError(t, r.Transition(StatusRunning))
	r.Error = "clone failed"
	require.NoError(t, r.Transition(StatusFailed))
	require.NoError(t, s.Update(r))

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "clone failed", got.Error)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestRunStoreGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("no-such-run")
	require.Error(t, err)
	assert.True(t, scouterr.IsAbsent(err))
}

func TestRunStoreListNewestFirst(t *testing.T) {
	s := openTestStore(t)

	first := NewAnalysisRun("u1", "")
	require.NoError(t, s.Create(first))
	second := NewAnalysisRun("u2", "")
	second.StartedAt = first.StartedAt.Add(time.Second)
	require.NoError(t, s.Create(second))

	runs, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "u2", runs[0].RepoURL)
	assert.Equal(t, "u1", runs[1].RepoURL)

	runs, err = s.List(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunStoreListOrdersSubSecondStarts(t *testing.T) {
	s := openTestStore(t)

	// .5s vs .52s: trailing-zero-trimmed text would sort these backwards.
	base := time.Date(2026, 8, 29, 12, 0, 10, 0, time.UTC)
	earlier := NewAnalysisRun("u1", "")
	earlier.StartedAt = base.Add(500 * time.Millisecond)
	require.NoError(t, s.Create(earlier))
	later := NewAnalysisRun("u2", "")
	later.StartedAt = base.Add(520 * time.Millisecond)
	require.NoError(t, s.Create(later))

	runs, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "u2", runs[0].RepoURL)
	assert.Equal(t, "u1", runs[1].RepoURL)
}

func TestFormatRunTimeFixedWidth(t *testing.T) {
	a := formatRunTime(time.Date(2026, 1, 2, 3, 4, 10, 500_000_000, time.UTC))
	b := formatRunTime(time.Date(2026, 1, 2, 3, 4, 10, 520_000_000, time.UTC))

	assert.Len(t, a, len(b))
	assert.Less(t, a, b, "lexicographic order must match chronological order")
}

package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	heap := filepath.Join(dir, "heap.pprof")

	s, err := Start(cpu, heap)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	cpuInfo, err := os.Stat(cpu)
	require.NoError(t, err)
	assert.Positive(t, cpuInfo.Size())

	heapInfo, err := os.Stat(heap)
	require.NoError(t, err)
	assert.Positive(t, heapInfo.Size())
}

func TestEmptyPathsSkipProfiles(t *testing.T) {
	s, err := Start("", "")
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}

func TestNilSessionStop(t *testing.T) {
	var s *Session
	assert.NoError(t, s.Stop())
}

func TestBadCPUPathFails(t *testing.T) {
	_, err := Start(filepath.Join(t.TempDir(), "missing", "cpu.pprof"), "")
	require.Error(t, err)
}

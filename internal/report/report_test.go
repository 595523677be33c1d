package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscout/vulnscout/internal/chunk"
)

func sample() *Report {
	return &Report{
		RunID:       "run-1",
		RepoURL:     "https://example.com/repo.git",
		GeneratedAt: time.Now().UTC(),
		Findings: []Finding{
			{VulnID: "V-low", Severity: "low", Confidence: 0.9, Location: chunk.Ref{File: "a.go"}},
			{VulnID: "V-crit", Severity: "critical", Confidence: 0.6, Location: chunk.Ref{File: "b.go"}},
			{VulnID: "V-high2", Severity: "high", Confidence: 0.5, Location: chunk.Ref{File: "c.go"}},
			{VulnID: "V-high1", Severity: "high", Confidence: 0.8, Location: chunk.Ref{File: "d.go"}},
		},
	}
}

func TestFinalizeOrdersAndCounts(t *testing.T) {
	rep := sample()
	rep.Finalize()

	ids := make([]string, len(rep.Findings))
	for i, f := range rep.Findings {
		ids[i] = f.VulnID
	}
	assert.Equal(t, []string{"V-crit", "V-high1", "V-high2", "V-low"}, ids)
	assert.Equal(t, 4, rep.Summary.FindingCount)
	assert.Equal(t, map[string]int{"critical": 1, "high": 2, "low": 1}, rep.Summary.BySeverity)
}

func TestWriteAndRead(t *testing.T) {
	rep := sample()
	rep.Finalize()

	path, err := rep.WriteJSON(t.TempDir())
	require.NoError(t, err)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, got.RunID)
	require.Len(t, got.Findings, 4)
	assert.Equal(t, "V-crit", got.Findings[0].VulnID)
}

func TestFinalizeEmpty(t *testing.T) {
	rep := &Report{RunID: "r"}
	rep.Finalize()
	assert.Equal(t, 0, rep.Summary.FindingCount)
	assert.Nil(t, rep.Summary.BySeverity)
	assert.Empty(t, rep.Findings)
}

func TestUnknownSeveritySortsLast(t *testing.T) {
	rep := &Report{Findings: []Finding{
		{VulnID: "V-weird", Severity: "unknown", Confidence: 0.9},
		{VulnID: "V-info", Severity: "info", Confidence: 0.1},
	}}
	rep.Finalize()
	assert.Equal(t, "V-info", rep.Findings[0].VulnID)
}

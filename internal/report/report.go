// Package report assembles validated findings into a machine-readable
// report and renders it for terminals.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vulnscout/vulnscout/internal/chunk"
)

// Finding is a vulnerability record paired with the code location that
// passed validation at or above the confidence threshold.
type Finding struct {
	VulnID      string    `json:"vuln_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CWE         string    `json:"cwe,omitempty"`
	Severity    string    `json:"severity"`
	Confidence  float64   `json:"confidence"`
	Rationale   string    `json:"rationale,omitempty"`
	Location    chunk.Ref `json:"location"`
	Snippet     string    `json:"snippet,omitempty"`
}

// Summary carries the report's headline counts.
type Summary struct {
	FilesScanned  int            `json:"files_scanned"`
	ChunksIndexed int            `json:"chunks_indexed"`
	FindingCount  int            `json:"finding_count"`
	BySeverity    map[string]int `json:"by_severity,omitempty"`
	IndexReused   bool           `json:"index_reused"`
	DurationMS    int64          `json:"duration_ms"`
}

// Report is the full analysis output for one run.
type Report struct {
	RunID       string    `json:"run_id"`
	RepoURL     string    `json:"repo_url"`
	Revision    string    `json:"revision,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Findings    []Finding `json:"findings"`
}

// severityRank orders severities for display, worst first.
var severityRank = map[string]int{
	"critical": 0,
	"high":     1,
	"medium":   2,
	"low":      3,
	"info":     4,
}

// Sort ranks findings by severity, then confidence descending.
func (r *Report) Sort() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		ri, iOK := severityRank[r.Findings[i].Severity]
		rj, jOK := severityRank[r.Findings[j].Severity]
		if !iOK {
			ri = len(severityRank)
		}
		if !jOK {
			rj = len(severityRank)
		}
		if ri != rj {
			return ri < rj
		}
		return r.Findings[i].Confidence > r.Findings[j].Confidence
	})
}

// Finalize fills derived fields: counts, severity histogram, ordering.
func (r *Report) Finalize() {
	r.Sort()
	r.Summary.FindingCount = len(r.Findings)
	if len(r.Findings) > 0 {
		r.Summary.BySeverity = make(map[string]int)
		for _, f := range r.Findings {
			r.Summary.BySeverity[f.Severity]++
		}
	}
}

// WriteJSON persists the report under dir as <runID>.json via a temp file
// rename, and returns the final path.
func (r *Report) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(dir, r.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}

// Read loads a persisted report.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

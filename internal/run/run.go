// Package run drives one analysis from clone to report as a persisted
// state machine, and owns the stores and locks shared across runs.
package run

import (
	"time"

	"github.com/google/uuid"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// Status is the lifecycle state of an analysis run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// canTransition encodes the forward-only lifecycle: pending → running →
// {completed, failed}. Nothing moves backward and terminal states are final.
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalysisRun is one persisted analysis execution. A run identity executes
// exactly once; re-analyzing the same repository is a new run with a new id
// that benefits from the same fingerprint-keyed caches.
type AnalysisRun struct {
	ID      string
	RepoURL string
	Branch  string

	Status   Status
	Stage    string
	Progress int

	FileCount    int
	ChunkCount   int
	FindingCount int

	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// NewAnalysisRun creates a pending run with a fresh identity.
func NewAnalysisRun(repoURL, branch string) *AnalysisRun {
	return &AnalysisRun{
		ID:        uuid.NewString(),
		RepoURL:   repoURL,
		Branch:    branch,
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}
}

// Transition moves the run to a new status, rejecting backward or
// re-entrant moves.
func (r *AnalysisRun) Transition(to Status) error {
	if !r.Status.canTransition(to) {
		return scouterr.New(scouterr.ErrCodeInvalidInput,
			"invalid run transition "+string(r.Status)+" -> "+string(to), nil)
	}
	r.Status = to
	if to.Terminal() {
		r.FinishedAt = time.Now().UTC()
	}
	return nil
}

// SetProgress updates the stage label and percentage. Progress is clamped
// monotone non-decreasing: a stage can never report less than its
// predecessor.
func (r *AnalysisRun) SetProgress(stage string, percent int) {
	r.Stage = stage
	if percent > 100 {
		percent = 100
	}
	if percent > r.Progress {
		r.Progress = percent
	}
}

// Duration returns elapsed wall time, using now for unfinished runs.
func (r *AnalysisRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

package run

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// RunStore persists analysis runs in SQLite.
type RunStore struct {
	db *sql.DB
}

const runSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	repo_url      TEXT NOT NULL,
	branch        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	stage         TEXT NOT NULL DEFAULT '',
	progress      INTEGER NOT NULL DEFAULT 0,
	file_count    INTEGER NOT NULL DEFAULT 0,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	finding_count INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// runTimeLayout is fixed-width UTC (RFC3339Nano trims trailing sub-second
// zeros, which breaks the lexicographic ordering the started_at index
// relies on).
const runTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatRunTime(t time.Time) string {
	return t.UTC().Format(runTimeLayout)
}

// OpenRunStore opens (creating if needed) the run database at path.
func OpenRunStore(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeRunStore, "open run store", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(runSchema); err != nil {
		db.Close()
		return nil, scouterr.New(scouterr.ErrCodeRunStore, "migrate run store", err)
	}
	return &RunStore{db: db}, nil
}

// Create inserts a new run record.
func (s *RunStore) Create(r *AnalysisRun) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, repo_url, branch, status, stage, progress,
			file_count, chunk_count, finding_count, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RepoURL, r.Branch, string(r.Status), r.Stage, r.Progress,
		r.FileCount, r.ChunkCount, r.FindingCount,
		formatRunTime(r.StartedAt), nullableTime(r.FinishedAt), r.Error)
	if err != nil {
		return scouterr.New(scouterr.ErrCodeRunStore, "insert run", err)
	}
	return nil
}

// Update persists the run's current state.
func (s *RunStore) Update(r *AnalysisRun) error {
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, stage = ?, progress = ?,
			file_count = ?, chunk_count = ?, finding_count = ?,
			finished_at = ?, error = ?
		WHERE id = ?`,
		string(r.Status), r.Stage, r.Progress,
		r.FileCount, r.ChunkCount, r.FindingCount,
		nullableTime(r.FinishedAt), r.Error, r.ID)
	if err != nil {
		return scouterr.New(scouterr.ErrCodeRunStore, "update run", err)
	}
	return nil
}

// Get returns the run with the given id, or an absence error.
func (s *RunStore) Get(id string) (*AnalysisRun, error) {
	row := s.db.QueryRow(`
		SELECT id, repo_url, branch, status, stage, progress,
			file_count, chunk_count, finding_count, started_at, finished_at, error
		FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scouterr.Absent("run " + id + " not found")
	}
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeRunStore, "query run", err)
	}
	return r, nil
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, repo_url, branch, status, stage, progress,
			file_count, chunk_count, finding_count, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeRunStore, "list runs", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, scouterr.New(scouterr.ErrCodeRunStore, "scan run", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	var r AnalysisRun
	var status, startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&r.ID, &r.RepoURL, &r.Branch, &status, &r.Stage, &r.Progress,
		&r.FileCount, &r.ChunkCount, &r.FindingCount, &startedAt, &finishedAt, &r.Error)
	if err != nil {
		return nil, err
	}

	r.Status = Status(status)
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		r.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			r.FinishedAt = t
		}
	}
	return &r, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatRunTime(t)
}

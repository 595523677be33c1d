package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// markerFile records that checks passed, so scans do not re-probe the
// environment on every invocation.
const markerFile = ".preflight-passed"

// NeedsCheck reports whether checks should run for the data directory.
func NeedsCheck(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, markerFile))
	return os.IsNotExist(err)
}

// MarkPassed writes the marker file with the current timestamp.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	path := filepath.Join(dataDir, markerFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0o644)
}

// ClearMarker removes the marker, forcing checks on the next scan.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, markerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker: %w", err)
	}
	return nil
}

// Package fingerprint computes a stable identity for a repository tree's
// current state, used as a cache key and never dereferenced.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vulnscout/vulnscout/internal/chunk"
	"github.com/vulnscout/vulnscout/internal/vcsx"
)

// Compute fingerprints the tree at repoPath.
//
// When version-control metadata is present it uses the current revision
// identifier: cheap, immune to file modification times, and identical for
// any checkout of the same commit. Otherwise it falls back to hashing the
// sorted "relative-path:size" pairs of every non-ignored file. The fallback
// is size-based, not content-based: an edit that preserves a file's byte
// count is not detected. That false negative is accepted for the win of
// never content-hashing the whole tree on a reuse check.
func Compute(ctx context.Context, repoPath string) (string, error) {
	if vcsx.IsRepo(repoPath) {
		rev, err := vcsx.HeadRevision(ctx, repoPath)
		if err == nil && rev != "" {
			return rev, nil
		}
		// Broken metadata degrades to the fallback rather than failing.
	}
	return sizeFingerprint(repoPath)
}

// sizeFingerprint hashes the sorted relpath:size pairs of the tree.
func sizeFingerprint(repoPath string) (string, error) {
	var entries []string

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != repoPath && chunk.IgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			rel = path
		}
		entries = append(entries, fmt.Sprintf("%s:%d", filepath.ToSlash(rel), info.Size()))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", repoPath, err)
	}

	sort.Strings(entries)
	sum := sha256.Sum256([]byte(strings.Join(entries, "\n")))
	return hex.EncodeToString(sum[:]), nil
}

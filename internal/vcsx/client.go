// Package vcsx provides a narrow version-control client used to acquire
// source trees for analysis. Only the operations the orchestrator needs are
// exposed; everything else about the VCS stays behind the git binary.
package vcsx

import (
	"context"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// Typed clone failures. NetworkErr is the only retryable one.
var (
	ErrNotFound     = scouterr.New(scouterr.ErrCodeRepoNotFound, "repository not found", nil)
	ErrAuthRequired = scouterr.New(scouterr.ErrCodeAuthRequired, "authentication required", nil)
	ErrNetwork      = scouterr.New(scouterr.ErrCodeCloneNetwork, "network error during clone", nil)
)

// Client acquires a local working copy of a repository.
type Client interface {
	// Clone fetches url into a fresh local directory and returns its path.
	// branch may be empty for the remote default.
	Clone(ctx context.Context, url, branch string) (string, error)

	// HeadRevision returns the current revision identifier of a local tree,
	// or an error when the tree has no version-control metadata.
	HeadRevision(ctx context.Context, repoPath string) (string, error)
}

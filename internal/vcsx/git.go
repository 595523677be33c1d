package vcsx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// GitClient shells out to the git binary. Clones are shallow by default and
// land under BaseDir, which the orchestrator treats as disposable.
type GitClient struct {
	// BaseDir is where working copies are created.
	BaseDir string

	// Depth is the clone depth; 0 means full history.
	Depth int
}

var _ Client = (*GitClient)(nil)

// NewGitClient creates a git-backed client cloning into baseDir.
func NewGitClient(baseDir string, depth int) *GitClient {
	return &GitClient{BaseDir: baseDir, Depth: depth}
}

// Clone fetches url into a fresh directory under BaseDir.
func (g *GitClient) Clone(ctx context.Context, url, branch string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", scouterr.New(scouterr.ErrCodeInvalidInput, "empty repository URL", nil)
	}
	if err := os.MkdirAll(g.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("create clone dir: %w", err)
	}

	dest := filepath.Join(g.BaseDir, uuid.NewString())

	args := []string{"clone", "--quiet"}
	if g.Depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", g.Depth))
	}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Never prompt for credentials; fail fast instead.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=true")

	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(dest)
		return "", classifyGitError(stderr.String(), err)
	}
	return dest, nil
}

// HeadRevision runs rev-parse HEAD against a local tree.
func (g *GitClient) HeadRevision(ctx context.Context, repoPath string) (string, error) {
	return HeadRevision(ctx, repoPath)
}

// HeadRevision returns the HEAD commit of a local git tree.
func HeadRevision(ctx context.Context, repoPath string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "rev-parse", "HEAD")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("rev-parse HEAD: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether path carries git metadata.
func IsRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// classifyGitError maps git stderr output onto the clone error taxonomy.
// Anything unrecognized is treated as a network error so the caller's
// bounded retry gets a chance; genuinely bad inputs match the patterns below.
func classifyGitError(stderr string, cause error) error {
	low := strings.ToLower(stderr)
	switch {
	case strings.Contains(low, "not found") ||
		strings.Contains(low, "does not exist") ||
		strings.Contains(low, "does not appear to be a git repository"):
		return scouterr.New(scouterr.ErrCodeRepoNotFound, "repository not found", cause).
			WithDetail("stderr", strings.TrimSpace(stderr))
	case strings.Contains(low, "authentication failed") ||
		strings.Contains(low, "could not read username") ||
		strings.Contains(low, "permission denied") ||
		strings.Contains(low, "invalid credentials"):
		return scouterr.New(scouterr.ErrCodeAuthRequired, "authentication required", cause).
			WithDetail("stderr", strings.TrimSpace(stderr))
	default:
		return scouterr.New(scouterr.ErrCodeCloneNetwork, "clone failed", cause).
			WithDetail("stderr", strings.TrimSpace(stderr))
	}
}

// LocalClient serves an already-local tree. Clone is a pass-through that
// never copies; the returned path must not be deleted by run cleanup.
type LocalClient struct {
	Path string
}

var _ Client = (*LocalClient)(nil)

// Clone returns the configured local path, ignoring url and branch.
func (l *LocalClient) Clone(ctx context.Context, url, branch string) (string, error) {
	info, err := os.Stat(l.Path)
	if err != nil || !info.IsDir() {
		return "", scouterr.New(scouterr.ErrCodeRepoNotFound, fmt.Sprintf("local path %s is not a directory", l.Path), err)
	}
	return l.Path, nil
}

// HeadRevision returns the HEAD commit of the local tree.
func (l *LocalClient) HeadRevision(ctx context.Context, repoPath string) (string, error) {
	return HeadRevision(ctx, repoPath)
}

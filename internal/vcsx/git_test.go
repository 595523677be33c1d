package vcsx

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

func TestClassifyGitError(t *testing.T) {
	cause := stderrors.New("exit status 128")

	err := classifyGitError("fatal: repository 'https://x/y.git' not found", cause)
	assert.True(t, stderrors.Is(err, ErrNotFound))

	err = classifyGitError("fatal: Authentication failed for 'https://x/y.git'", cause)
	assert.True(t, stderrors.Is(err, ErrAuthRequired))
	assert.False(t, scouterr.IsRetryable(err))

	err = classifyGitError("fatal: unable to access 'https://x/y.git': Could not resolve host", cause)
	assert.True(t, stderrors.Is(err, ErrNetwork))
	assert.True(t, scouterr.IsRetryable(err))
}

func TestGitClient_EmptyURL(t *testing.T) {
	c := NewGitClient(t.TempDir(), 1)
	_, err := c.Clone(context.Background(), "  ", "")
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeInvalidInput, scouterr.GetCode(err))
}

func TestLocalClient_ReturnsPath(t *testing.T) {
	dir := t.TempDir()
	c := &LocalClient{Path: dir}

	got, err := c.Clone(context.Background(), "ignored", "")
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestLocalClient_MissingPath(t *testing.T) {
	c := &LocalClient{Path: filepath.Join(t.TempDir(), "missing")}
	_, err := c.Clone(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeRepoNotFound, scouterr.GetCode(err))
}

func TestIsRepo(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepo(dir))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	assert.True(t, IsRepo(dir))
}

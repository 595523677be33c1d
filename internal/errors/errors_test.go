package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	err := New(ErrCodeRateLimited, "too many requests", nil)

	assert.Equal(t, CategoryProvider, err.Category)
	assert.True(t, err.Retryable)
	assert.Equal(t, SeverityError, err.Severity)
	assert.Equal(t, "[ERR_303_RATE_LIMITED] too many requests", err.Error())
}

func TestNew_InputErrorsAreNotRetryable(t *testing.T) {
	err := New(ErrCodeAuthRequired, "bad credentials", nil)

	assert.Equal(t, CategoryInput, err.Category)
	assert.False(t, err.Retryable)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("disk exploded")
	err := Wrap(ErrCodeFileNotFound, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "disk exploded", err.Message)
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeIndexAbsent, "no index", nil)
	b := New(ErrCodeIndexAbsent, "different message", nil)

	assert.True(t, stderrors.Is(a, b))
}

func TestIsAbsent(t *testing.T) {
	assert.True(t, IsAbsent(Absent("index file empty")))
	assert.False(t, IsAbsent(Transient("timeout", nil)))
	assert.False(t, IsAbsent(fmt.Errorf("plain error")))
	assert.False(t, IsAbsent(nil))
}

func TestIsRetryable_PlainErrorsAreNot(t *testing.T) {
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.True(t, IsRetryable(Transient("flaky upstream", nil)))
	assert.False(t, IsRetryable(Permanent("malformed repo ref", nil)))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeSearchFailed, "search failed", nil).
		WithDetail("query", "sql injection").
		WithDetail("top_k", "10")

	assert.Equal(t, "sql injection", err.Details["query"])
	assert.Equal(t, "10", err.Details["top_k"])
}

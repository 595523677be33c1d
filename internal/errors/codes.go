// Package errors provides structured error handling for vulnscout.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and cache errors
//   - 3XX: Network and provider errors
//   - 4XX: Validation and input errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryProvider indicates network and external-provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryInput indicates input validation errors.
	CategoryInput Category = "INPUT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO and cache errors (200-299)
	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeIndexAbsent   = "ERR_202_INDEX_ABSENT"
	ErrCodeCachePut      = "ERR_203_CACHE_PUT"
	ErrCodeRunStore      = "ERR_204_RUN_STORE"

	// Network and provider errors (300-399) — transient, retryable
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeRateLimited         = "ERR_303_RATE_LIMITED"
	ErrCodeCloneNetwork        = "ERR_304_CLONE_NETWORK"

	// Input errors (400-499) — permanent, never retried
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeRepoNotFound      = "ERR_403_REPO_NOT_FOUND"
	ErrCodeAuthRequired      = "ERR_404_AUTH_REQUIRED"
	ErrCodeNoSupportedFiles  = "ERR_405_NO_SUPPORTED_FILES"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeChunkingFailed  = "ERR_504_CHUNKING_FAILED"
	ErrCodeIndexFailed     = "ERR_505_INDEX_FAILED"
	ErrCodeStageFailed     = "ERR_506_STAGE_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryInput
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Cache and index-absence errors degrade rather than abort.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexAbsent, ErrCodeCachePut:
		return SeverityWarning
	case ErrCodeConfigInvalid, ErrCodeConfigNotFound:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether the code names a transient condition.
// Only provider-category errors are ever retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderUnavailable, ErrCodeRateLimited, ErrCodeCloneNetwork:
		return true
	default:
		return false
	}
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TS01: Construction and chaining
// ============================================================================

func TestNextorError_Unwrap_PreservesCause(t *testing.T) {
	// Given: a write failure from the OS
	cause := errors.New("no space left on device")

	// When: wrapping it as an artifact write error
	err := New(ErrCodeWriteFailed, "write data.bin for cats", cause)

	// Then: the cause stays reachable
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "[ERR_209_WRITE_FAILED] write data.bin for cats", err.Error())
}

func TestNextorError_Is_MatchesByCode(t *testing.T) {
	a := New(ErrCodeUnsupportedFormat, "report.docx", nil)
	b := New(ErrCodeUnsupportedFormat, "slides.pptx", nil)
	c := New(ErrCodeConversionFailed, "report.pdf", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestNextorError_Is_ThroughFmtWrap(t *testing.T) {
	// Given: a coded error wrapped by an intermediate layer
	inner := New(ErrCodeQueryEmpty, "query text is empty", nil)
	outer := fmt.Errorf("search: %w", inner)

	// Then: helpers see through the wrap
	assert.True(t, errors.Is(outer, New(ErrCodeQueryEmpty, "", nil)))
	assert.Equal(t, ErrCodeQueryEmpty, GetCode(outer))
	assert.Equal(t, CategoryValidation, GetCategory(outer))
}

func TestNextorError_DetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeContextLength, "context_length 1024 exceeds model limit 512", nil).
		WithDetail("model", "static-hash").
		WithSuggestion("lower pooling.context_length")

	assert.Equal(t, "static-hash", err.Details["model"])
	assert.Equal(t, "lower pooling.context_length", err.Suggestion)
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf(ErrCodeDimensionMismatch, "document %q has %d dims, corpus has %d", "a", 128, 256)
	assert.Equal(t, `document "a" has 128 dims, corpus has 256`, err.Message)
	assert.Nil(t, err.Cause)
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

// ============================================================================
// TS02: Classification
// ============================================================================

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeContextLength, CategoryConfig},
		{ErrCodeUnsupportedFormat, CategoryIO},
		{ErrCodeWriteFailed, CategoryIO},
		{ErrCodeNetworkUnavailable, CategoryNetwork},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeQueryEmpty, CategoryValidation},
		{ErrCodeIndexIntegrity, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "x", nil).Category)
		})
	}
}

func TestSeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code      string
		severity  Severity
		retryable bool
	}{
		{ErrCodeIndexIntegrity, SeverityFatal, false},
		{ErrCodeDimensionMismatch, SeverityFatal, false},
		{ErrCodeContextLength, SeverityFatal, false},
		{ErrCodeNetworkTimeout, SeverityWarning, true},
		{ErrCodeLocked, SeverityWarning, true},
		{ErrCodeConversionFailed, SeverityError, false},
		{ErrCodeModelNotFound, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "x", nil)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestHelpers_OnPlainAndNilErrors(t *testing.T) {
	plain := errors.New("plain")

	assert.False(t, IsRetryable(plain))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsFatal(plain))
	assert.False(t, IsFatal(nil))
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetCategory(nil))

	assert.True(t, IsFatal(IntegrityError("position 7 has no owning document", nil)))
	assert.True(t, IsRetryable(fmt.Errorf("embed: %w", NetworkError("timeout", nil))))
	assert.Equal(t, CategoryConfig, ConfigError("bad", nil).Category)
	assert.Equal(t, CategoryIO, IOError("missing", nil).Category)
	assert.Equal(t, CategoryValidation, ValidationError("bad", nil).Category)
	assert.Equal(t, CategoryInternal, InternalError("bug", nil).Category)
}

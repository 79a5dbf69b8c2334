package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	err := New(CodeIOError, "disk full", nil)
	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.False(t, err.Retryable)
}

func TestWrap_PreservesCauseAndMessage(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeEmbedNetwork, cause)
	assert.Equal(t, "boom", err.Message)
	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, cause)
}

func TestIs_MatchesByCodeNotMessage(t *testing.T) {
	a := New(CodeCapabilityMissing, "first message", nil)
	b := New(CodeCapabilityMissing, "second message", nil)
	assert.True(t, errors.Is(a, b))
}

func TestIs_DifferentCodesDoNotMatch(t *testing.T) {
	a := New(CodeCapabilityMissing, "x", nil)
	b := New(CodeCancelled, "x", nil)
	assert.False(t, errors.Is(a, b))
}

func TestCancelled_NeverRetryable(t *testing.T) {
	err := Cancelled()
	assert.False(t, err.Retryable)
	assert.True(t, IsCancelled(err))
}

func TestIsRetryable_NonErrorReturnsFalse(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain error")))
}

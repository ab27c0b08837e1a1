package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to DocumentStatus
		allowed  bool
	}{
		{StatusNew, StatusProcessing, true},
		{StatusNew, StatusReady, false},
		{StatusNew, StatusFailed, false},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusNew, false},
		{StatusReady, StatusProcessing, true},
		{StatusReady, StatusFailed, false},
		{StatusFailed, StatusProcessing, true},
		{StatusFailed, StatusReady, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrEmbeddingUnavailable))
	assert.True(t, IsRetryable(ErrIndexUnavailable))
	assert.False(t, IsRetryable(ErrDimensionMismatch))
	assert.False(t, IsRetryable(ErrExtraction))
	assert.False(t, IsRetryable(nil))
}

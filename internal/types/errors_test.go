package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ReasonCode
	}{
		{"nil", nil, ReasonNone},
		{"wrapped navigation", fmt.Errorf("step: %w", ErrNavigationTimeout), ReasonNavigationTimeout},
		{"failed wraps interaction", fmt.Errorf("%w: %w", ErrFailedToUpload, ErrInteractionFailed), ReasonFailedToUpload},
		{"auth", ErrInsufficientAuthentication, ReasonInsufficientAuthentication},
		{"proxy", fmt.Errorf("check: %w", ErrProxyUnreachable), ReasonProxyUnreachable},
		{"invalid", ErrInvalidTask, ReasonInvalidTask},
		{"scheduling", ErrSchedulingMismatch, ReasonSchedulingMismatch},
		{"processing", ErrUploadProcessingTimeout, ReasonUploadProcessingTimeout},
		{"unknown", errors.New("boom"), ReasonFailedToUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonOf(tt.err))
		})
	}
}

func TestOutcomes(t *testing.T) {
	task := VideoTask{Path: "/tmp/a.mp4", Caption: "hi"}

	ok := Success(task, 1)
	assert.True(t, ok.Succeeded())
	assert.Equal(t, 1, ok.Attempts)

	bad := Failure(task, 2, fmt.Errorf("%w: last", ErrFailedToUpload))
	assert.False(t, bad.Succeeded())
	assert.Equal(t, ReasonFailedToUpload, bad.Reason)
	assert.Equal(t, "failed to upload: last", bad.Message)
	assert.Equal(t, task, bad.Task)
}

func TestCookieExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, CookieRecord{Name: "a"}.Expired(now))
	assert.True(t, CookieRecord{Name: "a", Expiry: &past}.Expired(now))
	assert.False(t, CookieRecord{Name: "a", Expiry: &future}.Expired(now))
}

package errors

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestBaseError_WithDetailsStillMatchesSentinel(t *testing.T) {
	err := ErrGoingLimitExceeded.WithDetails("user already holds 3 intentions")

	assert.ErrorIs(t, err, ErrGoingLimitExceeded)
	assert.NotErrorIs(t, err, ErrPromotionInactive)
	assert.Contains(t, err.Error(), "user already holds 3 intentions")
}

func TestBaseError_WrapMessageKeepsAppError(t *testing.T) {
	err := ErrPromotionInactive.WrapMessage("claim rejected")

	appErr, ok := AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "PROMOTION_INACTIVE", appErr.ErrorCode())
	assert.Equal(t, CategoryValidation, appErr.Category())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "remote error", err: NewRemoteError(errors.New("connection reset"), "query"), want: true},
		{name: "transient sentinel", err: ErrClaimTimeout, want: true},
		{name: "validation", err: ErrGoingLimitExceeded, want: false},
		{name: "deadline", err: errors.Wrap(context.DeadlineExceeded, "claim"), want: true},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRemoteError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewRemoteError(cause, "insert live post")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 503, err.HTTPCode())
	assert.Equal(t, "insert live post", err.Details())
}

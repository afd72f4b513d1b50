package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsType_UnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("loading: %w", NewNotFoundError("provider P1 not found"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestUserMessage_SanitizesInternalCauses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", fmt.Errorf("pq: password authentication failed"), "an unexpected error occurred"},
		{"internal", NewInternalError("failed to query", fmt.Errorf("pq: relation missing")), "an unexpected error occurred"},
		{"external", NewExternalError("sync failed", fmt.Errorf("dial tcp: timeout")), "an upstream service is unavailable, please retry later"},
		{"forbidden", NewForbiddenError("access denied"), "access denied"},
		{"validation", NewValidationError("name is required"), "name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewExternalError("sync failed", fmt.Errorf("status 502"))

	assert.Equal(t, "EXTERNAL: sync failed: status 502", err.Error())
	assert.Equal(t, "VALIDATION: bad", NewValidationError("bad").Error())
}

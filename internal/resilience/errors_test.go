package resilience

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/haiwise/knowledge-cli/pkg/dashscope"
)

func TestIsTransient_DashScopeStatus(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{408, true},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{400, false},
		{401, false},
		{404, false},
		{422, false},
	}
	for _, tt := range tests {
		err := &dashscope.APIError{StatusCode: tt.status, Body: "x"}
		assert.Equal(t, tt.transient, IsTransient(err), "status %d", tt.status)
	}
}

func TestIsTransient_WrappedDashScopeError(t *testing.T) {
	inner := &dashscope.APIError{StatusCode: 429, Body: "throttled"}
	wrapped := eris.Wrap(inner, "generation: chat completion")
	assert.True(t, IsTransient(wrapped))

	inner = &dashscope.APIError{StatusCode: 401, Body: "bad key"}
	wrapped = eris.Wrap(inner, "generation: chat completion")
	assert.False(t, IsTransient(wrapped))
}

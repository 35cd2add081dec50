package generation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hitoshi/astroline/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMapProviderError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "rate limited",
			err:      &ProviderError{StatusCode: 429, Code: "rate_limit_exceeded", Message: "slow down"},
			wantCode: model.ErrCodeProviderRateLimited,
			wantMsg:  "Too many requests, please retry shortly",
		},
		{
			name:     "unauthorized",
			err:      &ProviderError{StatusCode: 401, Message: "Incorrect API key provided: sk-abc"},
			wantCode: model.ErrCodeConfiguration,
			wantMsg:  "Server configuration issue, please contact support",
		},
		{
			name:     "forbidden",
			err:      &ProviderError{StatusCode: 403, Message: "forbidden"},
			wantCode: model.ErrCodeConfiguration,
			wantMsg:  "Server configuration issue, please contact support",
		},
		{
			name:     "invalid_api_key code",
			err:      &ProviderError{StatusCode: 400, Code: "invalid_api_key", Message: "bad key"},
			wantCode: model.ErrCodeConfiguration,
			wantMsg:  "Server configuration issue, please contact support",
		},
		{
			name:     "insufficient quota as 429",
			err:      &ProviderError{StatusCode: 429, Code: "insufficient_quota", Message: "quota"},
			wantCode: model.ErrCodeProviderUnavailable,
			wantMsg:  "Service temporarily unavailable, please contact support",
		},
		{
			name:     "billing hard limit",
			err:      &ProviderError{StatusCode: 400, Code: "billing_hard_limit_reached", Message: "billing"},
			wantCode: model.ErrCodeProviderUnavailable,
			wantMsg:  "Service temporarily unavailable, please contact support",
		},
		{
			name:     "payment required",
			err:      &ProviderError{StatusCode: 402, Message: "pay"},
			wantCode: model.ErrCodeProviderUnavailable,
			wantMsg:  "Service temporarily unavailable, please contact support",
		},
		{
			name:     "content policy",
			err:      &ProviderError{StatusCode: 400, Code: "content_policy_violation", Message: "Your request was rejected"},
			wantCode: model.ErrCodeGenerationFailed,
			wantMsg:  "Image generation failed: Your request was rejected",
		},
		{
			name:     "missing api key",
			err:      fmt.Errorf("wrap: %w", ErrMissingAPIKey),
			wantCode: model.ErrCodeConfiguration,
			wantMsg:  "Server configuration issue, please contact support",
		},
		{
			name:     "transport error",
			err:      errors.New("context deadline exceeded"),
			wantCode: model.ErrCodeGenerationFailed,
			wantMsg:  "Image generation failed: context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapProviderError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

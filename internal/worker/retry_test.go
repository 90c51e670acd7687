package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuongbtq/book-ingest/internal/pipeline"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 10 * time.Second},
		{attempt: 5000, want: 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, p.Delays())
	assert.Empty(t, RetryPolicy{MaxAttempts: 1}.Delays())
}

func TestRetryPolicy_WithDefaults(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy(), RetryPolicy{}.WithDefaults())

	p := RetryPolicy{MaxAttempts: 2, Multiplier: 0.5}.WithDefaults()
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, 2.0, p.Multiplier)
}

func TestRetryPolicy_Decide(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 3}

	tests := []struct {
		name    string
		outcome pipeline.Outcome
		attempt int
		want    Decision
	}{
		{name: "success", outcome: pipeline.OutcomeSuccess, attempt: 1, want: Decision{Action: ActionAck}},
		{name: "permanent", outcome: pipeline.OutcomePermanent, attempt: 1, want: Decision{Action: ActionAck}},
		{name: "permanent on last attempt", outcome: pipeline.OutcomePermanent, attempt: 3, want: Decision{Action: ActionAck}},
		{
			name:    "retryable first attempt",
			outcome: pipeline.OutcomeRetryable,
			attempt: 1,
			want:    Decision{Action: ActionRetry, Delay: time.Second, NextAttempt: 2},
		},
		{
			name:    "retryable second attempt",
			outcome: pipeline.OutcomeRetryable,
			attempt: 2,
			want:    Decision{Action: ActionRetry, Delay: 3 * time.Second, NextAttempt: 3},
		},
		{name: "retryable last attempt", outcome: pipeline.OutcomeRetryable, attempt: 3, want: Decision{Action: ActionExhaust}},
		{name: "retryable past the limit", outcome: pipeline.OutcomeRetryable, attempt: 9, want: Decision{Action: ActionExhaust}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Decide(tt.outcome, tt.attempt))
		})
	}
}

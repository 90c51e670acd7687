package worker

import (
	"math"
	"time"

	"github.com/cuongbtq/book-ingest/internal/pipeline"
)

// RetryPolicy bounds how often and how late a retryable job is delivered again.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns five attempts with doubling delays from 5s to 5m.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Second,
		MaxDelay:    5 * time.Minute,
		Multiplier:  2,
	}
}

// WithDefaults fills zero fields from DefaultRetryPolicy.
func (p RetryPolicy) WithDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// Delay returns the wait after the given failed attempt:
// base * multiplier^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if math.IsInf(d, 0) || d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Delays lists the delay of every retry stage, one per attempt that may
// still be followed by another.
func (p RetryPolicy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, p.MaxAttempts-1)
	for i := range delays {
		delays[i] = p.Delay(i + 1)
	}
	return delays
}

// Action is what the scheduler does with a delivery once the pipeline returns.
type Action string

const (
	ActionAck     Action = "ack"
	ActionRetry   Action = "retry"
	ActionExhaust Action = "exhaust"
)

// Decision is the scheduler's verdict for one finished delivery.
type Decision struct {
	Action      Action
	Delay       time.Duration
	NextAttempt int
}

// Decide maps a pipeline outcome on the given attempt to an action. Only the
// outcome matters; error text is never inspected.
func (p RetryPolicy) Decide(outcome pipeline.Outcome, attempt int) Decision {
	if outcome != pipeline.OutcomeRetryable {
		return Decision{Action: ActionAck}
	}
	if attempt >= p.MaxAttempts {
		return Decision{Action: ActionExhaust}
	}
	return Decision{
		Action:      ActionRetry,
		Delay:       p.Delay(attempt),
		NextAttempt: attempt + 1,
	}
}

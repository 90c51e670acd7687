package pipeline

// Outcome tells the scheduler what to do with a delivery.
type Outcome string

const (
	// OutcomeSuccess: acknowledge, nothing left to do.
	OutcomeSuccess Outcome = "success"
	// OutcomeRetryable: the job failed for a transient reason; redeliver later.
	OutcomeRetryable Outcome = "retryable"
	// OutcomePermanent: the job can never succeed; acknowledge without retry.
	OutcomePermanent Outcome = "permanent"
)

// Result is the outcome of one Run.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func success(reason string) Result {
	return Result{Outcome: OutcomeSuccess, Reason: reason}
}

func retryable(reason string, err error) Result {
	return Result{Outcome: OutcomeRetryable, Reason: reason, Err: err}
}

func permanent(reason string, err error) Result {
	return Result{Outcome: OutcomePermanent, Reason: reason, Err: err}
}

package domain

import "slices"

// transitions lists every allowed status change. processing -> processing is a
// redelivery picking up a job whose previous worker never reported back.
var transitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing, JobStatusCanceled},
	JobStatusProcessing: {JobStatusProcessing, JobStatusSucceeded, JobStatusFailed, JobStatusCanceled},
	JobStatusFailed:     {JobStatusProcessing},
}

// CanTransition reports whether a job may move from one status to another.
// It does not know about retry exhaustion; use Job.CanMoveTo for that.
func CanTransition(from, to JobStatus) bool {
	return slices.Contains(transitions[from], to)
}

// SourcesFor returns the statuses from which a job may move to the target, in a
// stable order. Storage uses it to build conditional updates.
func SourcesFor(to JobStatus) []JobStatus {
	var sources []JobStatus
	for _, from := range allStatuses {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

var allStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusProcessing,
	JobStatusSucceeded,
	JobStatusFailed,
	JobStatusCanceled,
}

package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// JobState is the lifecycle of one remote generation job.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobSucceeded  JobState = "succeeded"
	JobFailed     JobState = "failed"
	JobCanceled   JobState = "canceled"
)

// Job is one poll snapshot of a remote generation.
type Job struct {
	ID     string
	State  JobState
	Output []string
	Reason string
}

// Input is a generation request after parameter normalization: the prompt
// with any ratio tag stripped, an optional keyframe image, and parameters
// already mapped onto values the provider family accepts.
type Input struct {
	Prompt        string
	KeyframeImage string
	AspectRatio   string
	Duration      int
}

// Provider is one (provider, model, input-shape) candidate the orchestrator
// can try. Submission is asynchronous: Submit returns a remote job ID that is
// then polled via Status.
type Provider interface {
	Name() string
	Submit(ctx context.Context, in Input) (string, error)
	Status(ctx context.Context, jobID string) (*Job, error)
}

// SubmitError carries the provider's HTTP status so failures can be
// classified. Permanent classes (auth, quota/payment, unprocessable request,
// rate limit) will hit every sibling candidate in the same window, so they
// abort the whole candidate list and trip the circuit breaker.
type SubmitError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s: submission failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Permanent reports whether the failure class is pointless to retry against
// sibling candidates.
func (e *SubmitError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized,
		http.StatusPaymentRequired,
		http.StatusForbidden,
		http.StatusUnprocessableEntity,
		http.StatusTooManyRequests:
		return true
	}
	return false
}

// IsPermanent reports whether err is a permanent-class submission failure.
func IsPermanent(err error) bool {
	var se *SubmitError
	return errors.As(err, &se) && se.Permanent()
}

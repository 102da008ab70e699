package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Emitter receives the synthetic delta frames the orchestrator produces.
// Satisfied by the SSE writer; tests supply a recorder.
type Emitter interface {
	Content(text string) error
	Images(urls []string) error
	Videos(urls []string) error
	Progress(percent int) error
}

// Orchestrator tries an ordered list of video generation candidates,
// polls the winning job, and degrades to the storyboard fallback when no
// candidate can deliver. One candidate is active at a time by design:
// fail fast and switch, never race all.
type Orchestrator struct {
	candidates   []Provider
	breaker      *CircuitBreaker
	fallback     Fallback
	pollInterval time.Duration
	maxAttempts  int

	// sleep is context-aware and injectable so tests run without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(candidates []Provider, breaker *CircuitBreaker, fallback Fallback, pollInterval time.Duration, maxAttempts int) *Orchestrator {
	return &Orchestrator{
		candidates:   candidates,
		breaker:      breaker,
		fallback:     fallback,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		sleep:        sleepCtx,
	}
}

// Run drives one generation request to a terminal frame sequence. It always
// ends by either emitting a videos frame, or delegating to the fallback —
// the caller appends the [DONE] terminator. The only error returns are
// context cancellation and emitter write failures, both of which mean the
// client is gone.
func (o *Orchestrator) Run(ctx context.Context, in Input, emit Emitter) error {
	if o.breaker.Open() {
		slog.Info("Circuit breaker open, skipping video providers", "remaining", o.breaker.Remaining())
		return o.fallback.Deliver(ctx, in, emit)
	}

	if err := emit.Content("Starting video generation..."); err != nil {
		return err
	}

	var active Provider
	var jobID string
	for _, candidate := range o.candidates {
		if err := emit.Content(fmt.Sprintf("\n\nTrying model: %s...", candidate.Name())); err != nil {
			return err
		}
		id, err := candidate.Submit(ctx, in)
		if err == nil {
			active = candidate
			jobID = id
			if err := emit.Content(fmt.Sprintf("\n\nModel %s accepted the job (%s).", candidate.Name(), shortID(id))); err != nil {
				return err
			}
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsPermanent(err) {
			// The same window is likely to hit every sibling, so abandon the
			// whole list and cool the path down.
			o.breaker.Trip()
			slog.Warn("Permanent provider failure, tripping circuit breaker",
				"provider", candidate.Name(), "error", err, "cooldown", o.breaker.Remaining())
			if werr := emit.Content("\n\nModel unavailable or out of credit. Switching to storyboard mode for a while."); werr != nil {
				return werr
			}
			return o.fallback.Deliver(ctx, in, emit)
		}
		slog.Warn("Transient provider failure, trying next candidate", "provider", candidate.Name(), "error", err)
		if werr := emit.Content("\n\nModel unavailable, trying an alternative..."); werr != nil {
			return werr
		}
	}

	if active == nil {
		o.breaker.Trip()
		if err := emit.Content("\n\nNo models are available. Generating a storyboard instead, and pausing new attempts for a while."); err != nil {
			return err
		}
		return o.fallback.Deliver(ctx, in, emit)
	}

	return o.poll(ctx, active, jobID, in, emit)
}

// poll checks the remote job on a fixed interval up to the attempt budget.
// Exhausting the budget is the only timeout mechanism and is treated as a
// failure that triggers the fallback, not an error.
func (o *Orchestrator) poll(ctx context.Context, active Provider, jobID string, in Input, emit Emitter) error {
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			// Client gone: stop consuming the job. The remote side may not
			// support cancellation, so the job itself is left alone.
			return err
		}

		job, err := active.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Status check failed", "provider", active.Name(), "job_id", jobID, "error", err)
			continue
		}

		switch job.State {
		case JobPending, JobProcessing:
			// Estimate derived from elapsed attempts, capped below 100 until
			// actual completion; monotonic because attempt only grows.
			progress := 10 + attempt*2
			if progress > 95 {
				progress = 95
			}
			if err := emit.Progress(progress); err != nil {
				return err
			}

		case JobSucceeded:
			if err := emit.Progress(99); err != nil {
				return err
			}
			if len(job.Output) == 0 {
				if err := emit.Content("\n\nGeneration completed but no video URL was returned."); err != nil {
					return err
				}
				return nil
			}
			if err := emit.Videos(job.Output); err != nil {
				return err
			}
			return emit.Content(fmt.Sprintf("\n\nVideo generated successfully with %s.", active.Name()))

		case JobFailed, JobCanceled:
			reason := job.Reason
			if reason == "" {
				reason = "generation failed"
			}
			slog.Warn("Generation job reached terminal failure", "provider", active.Name(), "job_id", jobID, "reason", reason)
			if err := emit.Content(fmt.Sprintf("\n\nError: %s", reason)); err != nil {
				return err
			}
			return o.fallback.Deliver(ctx, in, emit)
		}
	}

	slog.Warn("Generation polling budget exhausted", "provider", active.Name(), "job_id", jobID, "attempts", o.maxAttempts)
	if err := emit.Content("\n\nTimed out waiting for the video. Generating a storyboard as an alternative..."); err != nil {
		return err
	}
	return o.fallback.Deliver(ctx, in, emit)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

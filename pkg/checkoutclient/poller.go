package checkoutclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	StatusSuccess = "success"
	StatusPending = "pending"
	StatusFailed  = "failed"

	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 10
	DefaultSupportURL  = "https://wa.me/2347018239270"
)

// StatusChecker is satisfied by *Client.
type StatusChecker interface {
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
}

// Poller repeatedly checks a reference until it settles or the attempt budget
// runs out. Attempts counts every check, including the first.
type Poller struct {
	Checker     StatusChecker
	Interval    time.Duration
	MaxAttempts int
	SupportURL  string
}

// PollResult is the last observation of a poll run.
type PollResult struct {
	Reference  string
	Status     string
	Settled    bool
	Attempts   int
	Exhausted  bool
	LastError  error
	SupportURL string
}

// Fallback returns user-facing guidance once polling gave up.
func (r *PollResult) Fallback() string {
	if r == nil || !r.Exhausted {
		return ""
	}
	return fmt.Sprintf(
		"Payment for %s is still being confirmed. Refresh this page in a minute, or contact support at %s with your reference.",
		r.Reference, r.SupportURL,
	)
}

// Poll checks immediately, then waits Interval between checks. It returns on
// success or failed, on ctx cancellation, or after MaxAttempts checks with
// Exhausted set. Checker errors count as an attempt.
func (p Poller) Poll(ctx context.Context, reference string) (*PollResult, error) {
	if p.Checker == nil {
		return nil, errors.New("status checker required")
	}
	if reference == "" {
		return nil, errors.New("reference required")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	supportURL := p.SupportURL
	if supportURL == "" {
		supportURL = DefaultSupportURL
	}

	result := &PollResult{Reference: reference, Status: StatusPending, SupportURL: supportURL}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for result.Attempts < maxAttempts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.Attempts++
		resp, err := p.Checker.Verify(ctx, reference)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.LastError = err
		} else {
			result.LastError = nil
			switch resp.Status {
			case StatusSuccess:
				result.Status = StatusSuccess
				result.Settled = resp.Settled
				return result, nil
			case StatusFailed:
				result.Status = StatusFailed
				return result, nil
			}
		}

		if result.Attempts < maxAttempts {
			timer.Reset(interval)
		}
	}

	result.Status = StatusPending
	result.Exhausted = true
	return result, nil
}

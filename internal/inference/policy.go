// Package inference wraps a single remote inference call with the
// worker's timeout, rate-limit, and retry policy.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/carelens/behavior-worker/internal/ratelimit"
)

// SkipUnit signals that a single unit of work (one segment's detection,
// one span's validation) could not be completed after exhausting its
// retry budget. It is never fatal to the job that raised it.
type SkipUnit struct {
	Label  string
	Reason string
}

func (s *SkipUnit) Error() string {
	return fmt.Sprintf("inference: skip %q: %s", s.Label, s.Reason)
}

// CallError carries the status/code a backend attached to a failure, so
// Policy can classify it without parsing transport-specific errors.
type CallError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference: call failed (status=%d code=%s): %v", e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("inference: call failed (status=%d code=%s): %s", e.Status, e.Code, e.Message)
}

func (e *CallError) Unwrap() error { return e.Err }

// Policy executes inference calls under a shared rate-limit controller,
// a per-call timeout, and a fixed retry budget, matching the two-strike
// rate-limit rule and bounded retryable-error rule of the worker's
// policy-wrapped call.
type Policy struct {
	Controller     *ratelimit.Controller
	CallTimeout    time.Duration
	RateLimitPause time.Duration
	RetryInterval  time.Duration
	MaxRetries     int
	Logger         *slog.Logger
}

// NewPolicy builds a Policy from the worker's timing configuration.
func NewPolicy(controller *ratelimit.Controller, callTimeout, rateLimitPause, retryInterval time.Duration, maxRetries int, logger *slog.Logger) *Policy {
	return &Policy{
		Controller:     controller,
		CallTimeout:    callTimeout,
		RateLimitPause: rateLimitPause,
		RetryInterval:  retryInterval,
		MaxRetries:     maxRetries,
		Logger:         logger,
	}
}

// Thunk performs a single inference attempt. It should return a *CallError
// (or an error wrapping one) when the backend reports a classifiable
// failure, so Policy can distinguish rate-limit / retryable / other.
type Thunk func(ctx context.Context) (any, error)

// Call runs thunk under the policy: wait on the shared rate-limit barrier,
// run with a hard timeout, classify failures, retry per the two-strike
// and fixed-retry-budget rules, and raise SkipUnit once the budget is
// exhausted.
func (p *Policy) Call(ctx context.Context, label string, thunk Thunk) (any, error) {
	rateLimitStrikes := 0
	retryAttempts := 0

	for {
		p.Controller.WaitIfPaused()

		callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
		resp, err := thunk(callCtx)
		cancel()

		if err == nil {
			return resp, nil
		}

		var ce *CallError
		if !errors.As(err, &ce) {
			return nil, &SkipUnit{Label: label, Reason: err.Error()}
		}

		switch {
		case isRateLimited(ce):
			rateLimitStrikes++
			if rateLimitStrikes >= 2 {
				return nil, &SkipUnit{Label: label, Reason: "rate limited twice: " + ce.Error()}
			}
			p.Logger.Warn("inference rate limited, pausing",
				slog.String("label", label),
				slog.Duration("pause", p.RateLimitPause),
			)
			p.Controller.TriggerPause(p.RateLimitPause)
			continue

		case isRetryable(ce):
			retryAttempts++
			if retryAttempts > p.MaxRetries {
				return nil, &SkipUnit{Label: label, Reason: "retry budget exhausted: " + ce.Error()}
			}
			p.Logger.Warn("inference call retryable, waiting",
				slog.String("label", label),
				slog.Int("attempt", retryAttempts),
				slog.Duration("interval", p.RetryInterval),
			)
			select {
			case <-ctx.Done():
				return nil, &SkipUnit{Label: label, Reason: ctx.Err().Error()}
			case <-time.After(p.RetryInterval):
			}
			continue

		default:
			return nil, &SkipUnit{Label: label, Reason: ce.Error()}
		}
	}
}

func isRateLimited(ce *CallError) bool {
	if ce.Status == 429 {
		return true
	}
	msg := strings.ToLower(ce.Code + " " + ce.Message)
	return strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "rate limit")
}

func isRetryable(ce *CallError) bool {
	if ce.Status >= 500 {
		return true
	}
	msg := strings.ToLower(ce.Code + " " + ce.Message)
	for _, needle := range []string{"internal", "unavailable", "deadline exceeded", "timeout"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// AsSkip reports whether err is (or wraps) a SkipUnit.
func AsSkip(err error) (*SkipUnit, bool) {
	var su *SkipUnit
	if errors.As(err, &su) {
		return su, true
	}
	return nil, false
}

// parseStatus turns a numeric status string ("429") into an int suitable
// for a CallError's Status; a non-numeric string ("RESOURCE_EXHAUSTED")
// yields 0.
func parseStatus(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

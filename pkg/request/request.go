package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
)

// FailureCoder is implemented by gateway errors that carry a classifiable
// failure code. Errors without a code are treated as terminal.
type FailureCoder interface {
	FailureCode() string
}

// FailureCode extracts the classifiable code from an error chain, or "" when
// the error carries none.
func FailureCode(err error) string {
	var coder FailureCoder
	if errors.As(err, &coder) {
		return coder.FailureCode()
	}
	return ""
}

// Policy bounds retries to an explicit whitelist of transient failure codes.
type Policy struct {
	CodesToRetry []string
	TryMax       int
	// Delay is an optional pause between attempts. The policy itself
	// prescribes no backoff; callers that need one set it here.
	Delay time.Duration
}

// ShouldRetry reports whether another attempt is allowed after a failure with
// the given code on the given 1-based attempt. Codes outside the whitelist
// never retry; TryMax <= 0 disables retries entirely.
func (p Policy) ShouldRetry(code string, attempt int) bool {
	if p.TryMax <= 0 || attempt >= p.TryMax {
		return false
	}
	if code == "" {
		return false
	}
	for _, candidate := range p.CodesToRetry {
		if candidate == code {
			return true
		}
	}
	return false
}

// TerminalError is the failure returned when the attempt loop ends without a
// successful gateway response.
type TerminalError struct {
	Code     string
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("gateway call failed with code %q after %d attempt(s): %v", e.Code, e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// FailureCode implements FailureCoder so wrapped terminal errors stay classifiable.
func (e *TerminalError) FailureCode() string {
	return e.Code
}

// Hooks receives per-attempt callbacks for metrics.
type Hooks struct {
	OnAttempt func(attempt int, err error)
	OnRetry   func(code string, attempt int)
}

// Executor drives one external call through the attempt loop.
type Executor struct {
	Logger *logger.Logger
	Hooks  Hooks
}

// Do runs call until it succeeds or the policy stops retrying, then invokes
// onSuccess exactly once on the successful response. onSuccess failures
// propagate as-is and are never retried; the policy governs gateway failures
// only. One external call is made per attempt.
func Do[T any](ctx context.Context, ex Executor, policy Policy, call func(context.Context) (T, error), onSuccess func(context.Context, T) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := call(ctx)
		if ex.Hooks.OnAttempt != nil {
			ex.Hooks.OnAttempt(attempt, err)
		}
		if err == nil {
			ex.log(ctx, attempt, "", "gateway call succeeded")
			if onSuccess == nil {
				return nil
			}
			return onSuccess(ctx, resp)
		}

		code := FailureCode(err)
		if !policy.ShouldRetry(code, attempt) {
			ex.log(ctx, attempt, code, "gateway call failed, not retrying")
			return &TerminalError{Code: code, Attempts: attempt, Err: err}
		}

		ex.log(ctx, attempt, code, "gateway call failed, retrying")
		if ex.Hooks.OnRetry != nil {
			ex.Hooks.OnRetry(code, attempt)
		}
		if policy.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
	}
}

func (ex Executor) log(ctx context.Context, attempt int, code, msg string) {
	if ex.Logger == nil {
		return
	}
	fields := map[string]any{"attempt": attempt}
	if code != "" {
		fields["failure_code"] = code
	}
	ex.Logger.Info(ex.Logger.WithFields(ctx, fields), msg)
}

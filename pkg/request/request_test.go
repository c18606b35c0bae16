package request

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type codedError struct {
	code string
}

func (e *codedError) Error() string {
	return fmt.Sprintf("gateway failure %s", e.code)
}

func (e *codedError) FailureCode() string {
	return e.code
}

func defaultPolicy() Policy {
	return Policy{
		CodesToRetry: []string{"10001", "x-timeout", "x-servererror"},
		TryMax:       5,
	}
}

func TestPolicyShouldRetry(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		code    string
		attempt int
		want    bool
	}{
		{"listed code below bound", defaultPolicy(), "10001", 1, true},
		{"listed code at bound", defaultPolicy(), "10001", 5, false},
		{"listed code above bound", defaultPolicy(), "x-timeout", 6, false},
		{"unlisted code", defaultPolicy(), "10417", 1, false},
		{"empty code", defaultPolicy(), "", 1, false},
		{"try max zero", Policy{CodesToRetry: []string{"10001"}, TryMax: 0}, "10001", 1, false},
		{"try max negative", Policy{CodesToRetry: []string{"10001"}, TryMax: -1}, "10001", 1, false},
		{"try max one means single attempt", Policy{CodesToRetry: []string{"10001"}, TryMax: 1}, "10001", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.ShouldRetry(tt.code, tt.attempt); got != tt.want {
				t.Fatalf("ShouldRetry(%q, %d) = %v, want %v", tt.code, tt.attempt, got, tt.want)
			}
		})
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	var seen string
	err := Do(context.Background(), Executor{}, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "resp", nil
		},
		func(ctx context.Context, resp string) error {
			seen = resp
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, "resp", seen)
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	calls := 0
	successRuns := 0
	err := Do(context.Background(), Executor{}, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", &codedError{code: "10001"}
			}
			return fmt.Sprintf("attempt-%d", calls), nil
		},
		func(ctx context.Context, resp string) error {
			successRuns++
			require.Equal(t, "attempt-2", resp)
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, 1, successRuns)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Executor{}, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", &codedError{code: "x-timeout"}
		},
		func(ctx context.Context, resp string) error {
			t.Fatal("onSuccess must not run on exhaustion")
			return nil
		})
	require.Equal(t, 5, calls)

	var terminal *TerminalError
	require.ErrorAs(t, err, &terminal)
	require.Equal(t, "x-timeout", terminal.Code)
	require.Equal(t, 5, terminal.Attempts)
}

func TestDoStopsOnUnlistedCode(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Executor{}, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", &codedError{code: "10417"}
		}, nil)
	require.Equal(t, 1, calls)

	var terminal *TerminalError
	require.ErrorAs(t, err, &terminal)
	require.Equal(t, "10417", terminal.Code)
	require.Equal(t, 1, terminal.Attempts)
}

func TestDoDoesNotRetryOnSuccessFailure(t *testing.T) {
	calls := 0
	persistErr := errors.New("persist failed")
	err := Do(context.Background(), Executor{}, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "resp", nil
		},
		func(ctx context.Context, resp string) error {
			return persistErr
		})
	require.ErrorIs(t, err, persistErr)
	require.Equal(t, 1, calls)

	var terminal *TerminalError
	require.False(t, errors.As(err, &terminal), "continuation failures must not be wrapped as gateway failures")
}

func TestDoErrorWithoutCodeIsTerminal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Executor{}, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("wire melted")
		}, nil)
	require.Equal(t, 1, calls)

	var terminal *TerminalError
	require.ErrorAs(t, err, &terminal)
	require.Empty(t, terminal.Code)
}

func TestDoHooksObserveAttemptsAndRetries(t *testing.T) {
	attempts := []int{}
	retries := []string{}
	ex := Executor{Hooks: Hooks{
		OnAttempt: func(attempt int, err error) { attempts = append(attempts, attempt) },
		OnRetry:   func(code string, attempt int) { retries = append(retries, code) },
	}}

	calls := 0
	_ = Do(context.Background(), ex, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &codedError{code: "10001"}
			}
			return "ok", nil
		}, nil)

	require.Equal(t, []int{1, 2, 3}, attempts)
	require.Equal(t, []string{"10001", "10001"}, retries)
}

func TestDoHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Executor{}, defaultPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", nil
		}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestFailureCodeExtraction(t *testing.T) {
	require.Equal(t, "10001", FailureCode(&codedError{code: "10001"}))
	require.Equal(t, "10001", FailureCode(fmt.Errorf("wrapped: %w", &codedError{code: "10001"})))
	require.Empty(t, FailureCode(errors.New("plain")))
	require.Empty(t, FailureCode(nil))
}

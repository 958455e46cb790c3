package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testPolicy = Policy{Retries: 3, Delay: time.Millisecond, Backoff: 2}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), testPolicy, "op", func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestDo_TransientFailuresThenSuccess(t *testing.T) {
	tests := []struct {
		name          string
		failures      int
		expectedCalls int
	}{
		{name: "one failure then success", failures: 1, expectedCalls: 2},
		{name: "two failures then success", failures: 2, expectedCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			result, err := Do(context.Background(), testPolicy, "op", func(ctx context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", errors.New("connection refused")
				}
				return "ok", nil
			})

			assert.NoError(t, err)
			assert.Equal(t, "ok", result)
			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestDo_TerminalAbortsImmediately(t *testing.T) {
	terminalErr := Terminal(errors.New("user not found"))
	calls := 0

	_, err := Do(context.Background(), testPolicy, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, terminalErr
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, terminalErr, err)
}

func TestDo_ExhaustionPropagatesLastError(t *testing.T) {
	firstErr := errors.New("first failure")
	lastErr := errors.New("last failure")
	calls := 0

	_, err := Do(context.Background(), testPolicy, "op", func(ctx context.Context) (int, error) {
		calls++
		if calls < testPolicy.Retries {
			return 0, firstErr
		}
		return 0, lastErr
	})

	assert.Equal(t, testPolicy.Retries, calls)
	assert.Equal(t, lastErr, err)
}

func TestDo_BackoffGrowsExponentially(t *testing.T) {
	policy := Policy{Retries: 4, Delay: 10 * time.Millisecond, Backoff: 2}
	var attempts []time.Time

	_, err := Do(context.Background(), policy, "op", func(ctx context.Context) (int, error) {
		attempts = append(attempts, time.Now())
		return 0, errors.New("transient")
	})

	assert.Error(t, err)
	assert.Len(t, attempts, 4)
	// delays follow delay0 * backoff^k: 10ms, 20ms, 40ms
	for k := 1; k < len(attempts); k++ {
		expected := policy.Delay * time.Duration(1<<(k-1))
		gap := attempts[k].Sub(attempts[k-1])
		assert.GreaterOrEqual(t, gap, expected)
	}
}

func TestDo_DeadlineReportedAsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	transientErr := errors.New("transient")
	policy := Policy{Retries: 10, Delay: 15 * time.Millisecond, Backoff: 2}

	_, err := Do(ctx, policy, "op", func(ctx context.Context) (int, error) {
		return 0, transientErr
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, transientErr)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "plain error is transient", err: errors.New("boom"), expected: KindTransient},
		{name: "terminal marker", err: Terminal(errors.New("no funds")), expected: KindTerminal},
		{name: "wrapped terminal marker", err: errors.Join(errors.New("ctx"), Terminal(errors.New("no funds"))), expected: KindTerminal},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: KindTimeout},
		{name: "canceled", err: context.Canceled, expected: KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestTerminal_PreservesSentinel(t *testing.T) {
	sentinel := errors.New("insufficient funds")
	err := Terminal(sentinel)

	assert.True(t, IsTerminal(err))
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, sentinel.Error(), err.Error())
	assert.Nil(t, Terminal(nil))
}

func TestUntil_ToleratesErrorsAndUnsuccessfulResults(t *testing.T) {
	policy := UntilPolicy{Delay: time.Millisecond, Backoff: 2, MaxDelay: 4 * time.Millisecond}

	type response struct{ Status string }
	calls := 0
	result, err := Until(context.Background(), policy, "loyalty",
		func(ctx context.Context) (response, error) {
			calls++
			switch calls {
			case 1:
				return response{}, errors.New("connection refused")
			case 2:
				return response{Status: "error"}, nil
			default:
				return response{Status: "success"}, nil
			}
		},
		func(r response) bool { return r.Status == "success" })

	assert.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 3, calls)
}

func TestUntil_DelayNeverExceedsCap(t *testing.T) {
	policy := UntilPolicy{Delay: time.Millisecond, Backoff: 10, MaxDelay: 5 * time.Millisecond}

	var attempts []time.Time
	calls := 0
	_, err := Until(context.Background(), policy, "loyalty",
		func(ctx context.Context) (struct{ Status string }, error) {
			attempts = append(attempts, time.Now())
			calls++
			if calls < 5 {
				return struct{ Status string }{}, errors.New("down")
			}
			return struct{ Status string }{Status: "success"}, nil
		},
		func(r struct{ Status string }) bool { return r.Status == "success" })

	assert.NoError(t, err)
	for k := 1; k < len(attempts); k++ {
		gap := attempts[k].Sub(attempts[k-1])
		assert.Less(t, gap, policy.MaxDelay+50*time.Millisecond)
	}
}

func TestUntil_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := UntilPolicy{Delay: 5 * time.Millisecond, Backoff: 2, MaxDelay: 10 * time.Millisecond}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Until(ctx, policy, "loyalty",
		func(ctx context.Context) (struct{ Status string }, error) {
			return struct{ Status string }{}, errors.New("down")
		},
		func(r struct{ Status string }) bool { return false })

	assert.ErrorIs(t, err, context.Canceled)
}

package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a failure for the retry loop.
type Kind int

const (
	KindTransient Kind = iota
	KindTerminal
	KindTimeout
)

// Policy describes a bounded retry sequence.
type Policy struct {
	Retries int
	Delay   time.Duration
	Backoff float64
}

// UntilPolicy describes an unbounded retry sequence with a delay cap.
type UntilPolicy struct {
	Delay    time.Duration
	Backoff  float64
	MaxDelay time.Duration
}

var (
	DefaultPolicy      = Policy{Retries: 3, Delay: 500 * time.Millisecond, Backoff: 2}
	DefaultUntilPolicy = UntilPolicy{Delay: 500 * time.Millisecond, Backoff: 2, MaxDelay: 120 * time.Second}
)

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal marks err so that the retry loop aborts immediately instead of
// scheduling another attempt.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// Classify maps an error onto the retry taxonomy. Deadline and cancellation
// errors are reported as timeouts so callers can tell them apart from
// exhausted attempts.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case IsTerminal(err):
		return KindTerminal
	default:
		return KindTransient
	}
}

// Do invokes op until it succeeds, the attempt budget runs out, a terminal
// error is returned, or ctx expires. Terminal errors and the last transient
// error propagate unchanged.
func Do[T any](ctx context.Context, p Policy, desc string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := p.Delay

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		switch Classify(err) {
		case KindTerminal:
			zap.L().Warn("operation failed with terminal error",
				zap.String("op", desc), zap.Int("attempt", attempt), zap.Error(err))
			return zero, err
		case KindTimeout:
			zap.L().Warn("operation deadline exceeded",
				zap.String("op", desc), zap.Int("attempt", attempt), zap.Error(err))
			return zero, err
		}

		zap.L().Warn("operation attempt failed",
			zap.String("op", desc), zap.Int("attempt", attempt), zap.Error(err))
		if attempt >= p.Retries {
			zap.L().Error("operation attempts exhausted",
				zap.String("op", desc), zap.Int("attempts", attempt), zap.Error(err))
			return zero, err
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
		delay = time.Duration(float64(delay) * p.Backoff)
	}
}

// Until invokes op until ok reports a successful result or ctx is canceled.
// Returned errors and unsuccessful results are both logged and retried with
// the delay capped at p.MaxDelay.
func Until[T any](ctx context.Context, p UntilPolicy, desc string, op func(ctx context.Context) (T, error), ok func(T) bool) (T, error) {
	var zero T
	delay := p.Delay

	for {
		result, err := op(ctx)
		switch {
		case err != nil:
			if Classify(err) == KindTimeout && ctx.Err() != nil {
				return zero, ctx.Err()
			}
			zap.L().Error("service call failed", zap.String("op", desc), zap.Error(err))
		case ok(result):
			zap.L().Info("service call succeeded", zap.String("op", desc))
			return result, nil
		default:
			zap.L().Warn("service returned unsuccessful result", zap.String("op", desc))
		}

		zap.L().Info("retrying service call",
			zap.String("op", desc), zap.Duration("delay", delay))
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
		delay = time.Duration(float64(delay) * p.Backoff)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package retry provides a bounded retry-with-backoff utility with an
// injectable sleep function, so retry behavior stays deterministic in
// tests. Backoff schedules come from sethvargo/go-retry.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy describes a bounded retry schedule: a fixed number of attempts
// with a constant delay between them.
type Policy struct {
	// Attempts is the total attempt budget, including the first call.
	Attempts uint64
	// Delay is the pause between attempts.
	Delay time.Duration

	// Sleep is called to wait between attempts. Nil means a real
	// context-aware sleep; tests inject a recording stub.
	Sleep func(ctx context.Context, d time.Duration) error
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Retryable marks err as transient so Do schedules another attempt.
// Unmarked errors abort the loop immediately.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Do invokes fn until it succeeds, returns a non-retryable error, the
// attempt budget is exhausted, or ctx is done. fn must wrap transient
// failures with Retryable.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	delay := p.Delay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewConstant(delay))

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var transient *transientError
		if !errors.As(err, &transient) {
			return err
		}

		next, stop := backoff.Next()
		if stop {
			return transient.Unwrap()
		}
		if sleepErr := p.sleep(ctx, next); sleepErr != nil {
			return sleepErr
		}
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

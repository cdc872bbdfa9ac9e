// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package backoff provides jittered backoff timers and retry helpers
package backoff

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy implements a saturating backoff policy with a jitter of
// between 0.5 and 1.5 of the base interval
type Policy struct {
	Millis []int
}

// FiveSecStartGrace is a policy that starts immediately and backs off to 5 seconds
var FiveSecStartGrace = Policy{
	Millis: []int{0, 500, 1000, 2000, 3000, 4000, 5000},
}

// FiveSec is a policy backing off between 500 milliseconds and 5 seconds
var FiveSec = Policy{
	Millis: []int{500, 1000, 2000, 3000, 4000, 5000},
}

// TwentySec is a policy backing off between 500 milliseconds and 20 seconds
var TwentySec = Policy{
	Millis: []int{500, 1000, 2000, 4000, 8000, 12000, 16000, 20000},
}

// Default is the policy used when callers have no specific requirements
var Default = TwentySec

// Duration returns the jittered duration for try n, saturating at the
// last configured interval for large n
func (b Policy) Duration(n int) time.Duration {
	if len(b.Millis) == 0 {
		return 0
	}

	if n >= len(b.Millis) {
		n = len(b.Millis) - 1
	}

	return jitter(b.Millis[n])
}

// Sleep sleeps for the given duration, interruptable by the context
func (b Policy) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySleep sleeps for the policy duration of try n, interruptable by the context
func (b Policy) TrySleep(ctx context.Context, n int) error {
	return b.Sleep(ctx, b.Duration(n))
}

// AfterFunc calls f in its own goroutine after the policy duration of try n
func (b Policy) AfterFunc(n int, f func()) *time.Timer {
	return time.AfterFunc(b.Duration(n), f)
}

// For calls cb with an incrementing try count until it returns nil,
// sleeping the policy duration between tries, the context interrupts
// both the callback loop and the sleeps
func (b Policy) For(ctx context.Context, cb func(try int) error) error {
	try := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		try++

		err := cb(try)
		if err == nil {
			return nil
		}

		err = b.TrySleep(ctx, try)
		if err != nil {
			return err
		}
	}
}

// InterruptableSleep sleeps for the given duration unless the context
// is canceled first in which case an error is returned
func InterruptableSleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return fmt.Errorf("sleep interrupted by context")
	}

	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted by context")
	}
}

func jitter(millis int) time.Duration {
	if millis == 0 {
		return 0
	}

	base := float64(millis)
	jittered := base/2 + rand.Float64()*base

	return time.Duration(jittered) * time.Millisecond
}

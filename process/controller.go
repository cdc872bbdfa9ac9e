// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package process launches operating system processes and tracks their
// lifecycle until a single terminal Result is produced for each
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/choria-io/pexec/model"
)

const (
	// pollInterval is the granularity of deadline bounded waits
	pollInterval = 100 * time.Millisecond

	// killGrace is how long Terminate waits for the OS to reap a
	// process after escalating to KILL
	killGrace = time.Second
)

// Controller is a live handle to a running or finished process. It owns
// the process id and any pipes created at launch and produces exactly one
// Result per process regardless of how many callers wait concurrently
type Controller struct {
	pid       int
	name      string
	command   []string
	startedAt time.Time
	opts      *model.SpawnOptions
	log       model.Logger

	process *os.Process

	// stdin has its own lock so writers never contend with output
	// drains, a child like cat that waits for input before producing
	// output must be writable while a reader blocks
	stdinMu     sync.Mutex
	stdin       *os.File
	stdinClosed bool

	// piped output streams are drained by background goroutines started
	// at launch, bufMu guards only buffer and close state so nothing
	// ever blocks while holding it
	stdout      *os.File
	stderr      *os.File
	bufMu       sync.Mutex
	stdoutBuf   bytes.Buffer
	stderrBuf   bytes.Buffer
	stdoutDone  chan struct{}
	stderrDone  chan struct{}
	pipesClosed bool

	// closed by the reaper goroutine once the process is waited on
	done    chan struct{}
	state   *os.ProcessState
	waitErr error

	mu       sync.Mutex
	timedOut bool
	result   *model.Result
}

// PID is the operating system process id, valid for signaling only until
// a Result has been produced
func (c *Controller) PID() int { return c.pid }

// Name is the optional human readable label given at launch
func (c *Controller) Name() string { return c.name }

// Command is the command line the process was launched with
func (c *Controller) Command() []string {
	out := make([]string, len(c.command))
	copy(out, c.command)

	return out
}

// StartedAt is when the process was launched
func (c *Controller) StartedAt() time.Time { return c.startedAt }

// Elapsed is the wall clock time since the process was launched
func (c *Controller) Elapsed() time.Duration { return time.Since(c.startedAt) }

// Executing determines without blocking if the process is still running
func (c *Controller) Executing() bool {
	c.mu.Lock()
	cached := c.result != nil
	c.mu.Unlock()

	if cached {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Finished is the negation of Executing
func (c *Controller) Finished() bool { return !c.Executing() }

// Kill delivers a signal to the process. Signaling a process that has
// already finished, or one we lack permission for, is an expected race
// in concurrent control code and reports false rather than an error
func (c *Controller) Kill(sig model.Signal) bool {
	err := c.process.Signal(osSignal(sig))
	if err != nil {
		c.log.Debug("Signal delivery failed", "pid", c.pid, "signal", sig.String(), "error", err)

		return false
	}

	c.log.Debug("Delivered signal", "pid", c.pid, "signal", sig.String())

	return true
}

// MarkTimedOut records that a wait deadline elapsed before completion,
// the flag is copied into the Result when it is produced. Calling it
// after a Result exists has no effect, produced Results never change
func (c *Controller) MarkTimedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timedOut = true
}

// Result blocks until the process completes and returns its Result. The
// Result is produced at most once, later and concurrent calls observe
// the identical value. Cancelling the context abandons the wait but
// leaves the process running
func (c *Controller) Result(ctx context.Context) (*model.Result, error) {
	if r := c.cachedResult(); r != nil {
		return r, nil
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.finalize(), nil
}

// ResultTimeout waits up to timeout for the process to complete, polling
// at up to 100ms granularity. When the deadline elapses it returns
// ErrWaitTimeout without killing the process, terminating is the callers
// explicit choice via Terminate
func (c *Controller) ResultTimeout(ctx context.Context, timeout time.Duration) (*model.Result, error) {
	if timeout <= 0 {
		return c.Result(ctx)
	}

	if r := c.cachedResult(); r != nil {
		return r, nil
	}

	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-c.done:
			return c.finalize(), nil
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s after %v", model.ErrWaitTimeout, strings.Join(c.command, " "), timeout)
		}

		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}

		select {
		case <-c.done:
			return c.finalize(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Terminate requests graceful shutdown with TERM and waits up to timeout
// for completion, escalating to KILL with a further 1 second grace when
// the process does not comply. The total wait is bounded by timeout plus
// the grace period
func (c *Controller) Terminate(ctx context.Context, timeout time.Duration) (*model.Result, error) {
	if r := c.cachedResult(); r != nil {
		return r, nil
	}

	c.Kill(model.SignalTerm)

	res, err := c.ResultTimeout(ctx, timeout)
	if err == nil || !errors.Is(err, model.ErrWaitTimeout) {
		return res, err
	}

	c.log.Info("Process did not terminate, escalating", "pid", c.pid, "timeout", timeout)

	c.MarkTimedOut()
	c.Kill(model.SignalKill)

	return c.ResultTimeout(ctx, killGrace)
}

// Write writes to the stdin pipe, optionally closing it afterwards to
// signal end of input. Calling this on a Controller whose stdin was not
// piped is a caller contract violation. Write is safe to call while
// another goroutine blocks in ReadStdout or ReadStderr
func (c *Controller) Write(data []byte, closeAfter bool) (int, error) {
	if c.stdin == nil {
		return 0, model.ErrNoStdinPipe
	}

	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()

	if c.stdinClosed {
		return 0, fmt.Errorf("%w: stdin already closed", model.ErrProcessFinished)
	}

	n, err := c.stdin.Write(data)
	if closeAfter {
		c.stdin.Close()
		c.stdinClosed = true
	}

	return n, err
}

// ReadStdout waits for the stdout stream to be fully drained and returns
// everything captured, nil when stdout was not piped. The drain happens
// in a background goroutine so waiting here never blocks writers
func (c *Controller) ReadStdout() ([]byte, error) {
	if c.stdout == nil {
		return nil, nil
	}

	<-c.stdoutDone

	c.bufMu.Lock()
	defer c.bufMu.Unlock()

	return append([]byte{}, c.stdoutBuf.Bytes()...), nil
}

// ReadStderr waits for the stderr stream to be fully drained and returns
// everything captured, nil when stderr was not piped
func (c *Controller) ReadStderr() ([]byte, error) {
	if c.stderr == nil {
		return nil, nil
	}

	<-c.stderrDone

	c.bufMu.Lock()
	defer c.bufMu.Unlock()

	return append([]byte{}, c.stderrBuf.Bytes()...), nil
}

func (c *Controller) cachedResult() *model.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.result
}

// drainPipe copies a pipe into its capture buffer until end of file,
// signaling completion by closing done. It runs from launch so pipes
// are consumed even when no caller ever reads them
func (c *Controller) drainPipe(pipe *os.File, buf *bytes.Buffer, done chan struct{}) {
	defer close(done)

	chunk := make([]byte, 32*1024)
	for {
		n, err := pipe.Read(chunk)
		if n > 0 {
			c.bufMu.Lock()
			buf.Write(chunk[:n])
			c.bufMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// finalize waits for the drains, closes the pipes and caches the terminal
// Result, callers must only invoke it after the done channel is closed
func (c *Controller) finalize() *model.Result {
	c.drainAndClosePipes()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result != nil {
		return c.result
	}

	duration := time.Since(c.startedAt)

	// piped streams always capture, even when empty
	var stdout, stderr []byte
	c.bufMu.Lock()
	if c.stdout != nil {
		stdout = append([]byte{}, c.stdoutBuf.Bytes()...)
	}
	if c.stderr != nil {
		stderr = append([]byte{}, c.stderrBuf.Bytes()...)
	}
	c.bufMu.Unlock()

	// the Result owns a snapshot of the options so later flag changes
	// can never alter a produced Result
	opts := *c.opts
	opts.TimedOut = c.timedOut

	if c.state == nil {
		c.result = model.NewStartFailureResult(fmt.Errorf("wait failed: %w", c.waitErr), c.command, &opts)
	} else {
		c.result = model.NewResult(c.state, c.command, duration, stdout, stderr, &opts)
	}

	c.log.Debug("Process completed", "pid", c.pid, "status", c.result.String(), "duration", duration)

	return c.result
}

func (c *Controller) drainAndClosePipes() {
	if c.stdout != nil {
		<-c.stdoutDone
	}
	if c.stderr != nil {
		<-c.stderrDone
	}

	c.bufMu.Lock()
	if !c.pipesClosed {
		if c.stdout != nil {
			c.stdout.Close()
		}
		if c.stderr != nil {
			c.stderr.Close()
		}
		c.pipesClosed = true
	}
	c.bufMu.Unlock()

	c.stdinMu.Lock()
	if c.stdin != nil && !c.stdinClosed {
		c.stdin.Close()
		c.stdinClosed = true
	}
	c.stdinMu.Unlock()
}

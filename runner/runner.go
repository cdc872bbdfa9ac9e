// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package runner is the high level interface for executing commands
// and recording their outcomes
package runner

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/choria-io/pexec/history"
	"github.com/choria-io/pexec/metrics"
	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/process"
	"github.com/choria-io/pexec/runtime"
)

// DefaultTerminateGrace is how long a process gets to exit after a
// polite terminate before it is killed
const DefaultTerminateGrace = 5 * time.Second

// Runner executes commands, every run produces a run event that is
// recorded in the history store and optionally published to a reporter
type Runner struct {
	log      model.Logger
	out      model.Logger
	rt       *runtime.Context
	history  model.HistoryStore
	reporter model.Reporter

	environment    []string
	terminateGrace time.Duration
	metricsPort    int

	mu sync.Mutex
}

// NewRunner creates a runner, log receives diagnostics and out receives
// user facing output, by default history is kept in memory only
func NewRunner(log model.Logger, out model.Logger, opts ...Option) (*Runner, error) {
	r := &Runner{
		log:            log,
		out:            out,
		terminateGrace: DefaultTerminateGrace,
	}

	for _, opt := range opts {
		err := opt(r)
		if err != nil {
			return nil, err
		}
	}

	if r.rt == nil {
		r.rt = runtime.Detect(os.Environ(), os.Stdout)
	}

	if r.history == nil {
		store, err := history.NewMemoryStore(log)
		if err != nil {
			return nil, err
		}
		r.history = store
	}

	if r.metricsPort > 0 {
		metrics.RegisterMetrics()
		metrics.ListenAndServe(r.metricsPort, r.log)
	}

	return r, nil
}

// Context is the runtime context the runner was created with
func (r *Runner) Context() *runtime.Context { return r.rt }

// History is the store run events are recorded in
func (r *Runner) History() model.HistoryStore { return r.history }

// OutputLogger is the user facing logger the runner was created with
func (r *Runner) OutputLogger() model.Logger { return r.out }

// NewController starts the process described by opts and hands the
// caller its controller without waiting for it, runs started this way
// are not recorded in history
func (r *Runner) NewController(opts *model.SpawnOptions) (*process.Controller, error) {
	return process.Spawn(r.prepareOptions(opts), r.log)
}

// Run starts the process described by opts and waits for it to finish,
// when opts.Timeout is set the wait is bounded and expiry escalates to
// terminate then kill. Start failures are returned as failed Results
// rather than errors so every run has exactly one recorded outcome.
func (r *Runner) Run(ctx context.Context, opts *model.SpawnOptions) (*model.Result, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	opts = r.prepareOptions(opts)

	var res *model.Result

	ctl, err := process.Spawn(opts, r.log)
	if err != nil {
		r.log.Error("Could not start command", "command", opts.CommandLine(), "error", err)
		res = model.NewStartFailureResult(err, opts.Command, opts)
	} else {
		if len(opts.Stdin) > 0 {
			_, err = ctl.Write(opts.Stdin, true)
			if err != nil {
				r.log.Warn("Could not write to stdin", "command", opts.CommandLine(), "error", err)
			}
		}

		res, err = r.wait(ctx, ctl, opts)
		if err != nil {
			return nil, err
		}
	}

	r.record(ctx, opts.Name, res)

	return res, nil
}

// Shell splits cmdline using shell quoting rules and runs it with both
// output streams captured, no shell is ever invoked
func (r *Runner) Shell(ctx context.Context, cmdline string) (*model.Result, error) {
	words, err := shellquote.Split(cmdline)
	if err != nil {
		return nil, err
	}

	return r.Run(ctx, &model.SpawnOptions{
		Command:    words,
		StdoutMode: model.StreamPipe,
		StderrMode: model.StreamPipe,
	})
}

func (r *Runner) wait(ctx context.Context, ctl *process.Controller, opts *model.SpawnOptions) (*model.Result, error) {
	if opts.Timeout <= 0 {
		return ctl.Result(ctx)
	}

	res, err := ctl.ResultTimeout(ctx, opts.Timeout)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, model.ErrWaitTimeout):
		r.log.Warn("Deadline exceeded, terminating", "command", opts.CommandLine(), "pid", ctl.PID(), "timeout", opts.Timeout)
		// the run exceeded its deadline whether or not the process
		// complies with the polite terminate that follows
		ctl.MarkTimedOut()
		return ctl.Terminate(ctx, r.terminateGrace)
	default:
		return nil, err
	}
}

func (r *Runner) record(ctx context.Context, name string, res *model.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event := model.NewRunEvent(name, res)

	err := r.history.RecordEvent(event)
	if err != nil {
		r.log.Error("Could not record run event", "event", event.EventID, "error", err)
	}

	if r.reporter == nil {
		return
	}

	err = r.reporter.Publish(ctx, event)
	if err != nil {
		r.log.Error("Could not publish run event", "event", event.EventID, "error", err)
	}
}

func (r *Runner) prepareOptions(opts *model.SpawnOptions) *model.SpawnOptions {
	needsStdinPipe := len(opts.Stdin) > 0 && opts.StdinMode != model.StreamPipe

	if len(r.environment) == 0 && !needsStdinPipe {
		return opts
	}

	merged := *opts

	if len(r.environment) > 0 {
		merged.Environment = append(append([]string{}, r.environment...), opts.Environment...)
	}

	if needsStdinPipe {
		merged.StdinMode = model.StreamPipe
	}

	return &merged
}

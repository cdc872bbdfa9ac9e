// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"fmt"
	"time"

	"github.com/choria-io/pexec/history"
	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/report"
	"github.com/choria-io/pexec/runtime"
)

// Option is a functional option for configuring the runner
type Option func(*Runner) error

// WithHistoryDirectory stores run events in a directory with one file per event
func WithHistoryDirectory(path string) Option {
	return func(r *Runner) error {
		store, err := history.NewDirectoryStore(path, r.log)
		if err != nil {
			return err
		}

		r.history = store

		return nil
	}
}

// WithMemoryHistory stores run events in memory for the life of the runner
func WithMemoryHistory() Option {
	return func(r *Runner) error {
		store, err := history.NewMemoryStore(r.log)
		if err != nil {
			return err
		}

		r.history = store

		return nil
	}
}

// WithHistoryStore sets a custom history store
func WithHistoryStore(store model.HistoryStore) Option {
	return func(r *Runner) error {
		if store == nil {
			return fmt.Errorf("a history store is required")
		}

		r.history = store

		return nil
	}
}

// WithNatsContext publishes run events to a subject using a connection
// made from the named NATS context
func WithNatsContext(natsContext string, subject string) Option {
	return func(r *Runner) error {
		reporter, err := report.NewPublisher(natsContext, subject, r.log)
		if err != nil {
			return err
		}

		r.reporter = reporter

		return nil
	}
}

// WithReporter sets a custom run event reporter
func WithReporter(reporter model.Reporter) Option {
	return func(r *Runner) error {
		r.reporter = reporter

		return nil
	}
}

// WithEnvironment adds KEY=VALUE entries to the environment of every run
func WithEnvironment(env ...string) Option {
	return func(r *Runner) error {
		r.environment = append(r.environment, env...)

		return nil
	}
}

// WithContext sets the runtime context, by default one is detected from
// the process environment
func WithContext(rt *runtime.Context) Option {
	return func(r *Runner) error {
		r.rt = rt

		return nil
	}
}

// WithTerminateGrace sets how long a process gets between terminate and kill
func WithTerminateGrace(grace time.Duration) Option {
	return func(r *Runner) error {
		if grace <= 0 {
			return fmt.Errorf("terminate grace must be positive")
		}

		r.terminateGrace = grace

		return nil
	}
}

// WithMetricsPort serves prometheus metrics on the given port
func WithMetricsPort(port int) Option {
	return func(r *Runner) error {
		r.metricsPort = port

		return nil
	}
}

// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/choria-io/pexec/model"
)

var signals = map[model.Signal]syscall.Signal{
	model.SignalTerm: syscall.SIGTERM,
	model.SignalKill: syscall.SIGKILL,
	model.SignalInt:  syscall.SIGINT,
	model.SignalHup:  syscall.SIGHUP,
	model.SignalQuit: syscall.SIGQUIT,
	model.SignalUsr1: syscall.SIGUSR1,
	model.SignalUsr2: syscall.SIGUSR2,
}

// osSignal resolves a signal from the closed enumeration to its OS
// numeric constant, this is the only place that resolution happens
func osSignal(s model.Signal) os.Signal {
	sig, ok := signals[s]
	if !ok {
		return syscall.SIGTERM
	}

	return sig
}

// Spawn launches a process described by opts and returns a Controller
// for it. Spawn does not block beyond process creation, waiting is done
// through the Controller
func Spawn(opts *model.SpawnOptions, log model.Logger) (*Controller, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Env = append(os.Environ(), opts.Environment...)

	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}

	if opts.Path != "" {
		cmd.Path = opts.Path
	}

	c := &Controller{
		name:    opts.Name,
		command: opts.Command,
		opts:    opts,
		log:     log.With("command", opts.Command[0]),
	}

	// child side pipe ends, the parent closes its copies after start
	var childEnds []*os.File

	closeAll := func(files ...*os.File) {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
	}

	switch opts.StdinMode {
	case model.StreamPipe:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		cmd.Stdin = r
		c.stdin = w
		childEnds = append(childEnds, r)
	case model.StreamInherit:
		cmd.Stdin = os.Stdin
	}

	switch opts.StdoutMode {
	case model.StreamPipe:
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(c.stdin)
			closeAll(childEnds...)
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		cmd.Stdout = w
		c.stdout = r
		childEnds = append(childEnds, w)
	case model.StreamInherit:
		cmd.Stdout = os.Stdout
	}

	switch opts.StderrMode {
	case model.StreamPipe:
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(c.stdin, c.stdout)
			closeAll(childEnds...)
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
		cmd.Stderr = w
		c.stderr = r
		childEnds = append(childEnds, w)
	case model.StreamInherit:
		cmd.Stderr = os.Stderr
	}

	err = cmd.Start()
	closeAll(childEnds...)
	if err != nil {
		closeAll(c.stdin, c.stdout, c.stderr)

		return nil, err
	}

	c.pid = cmd.Process.Pid
	c.process = cmd.Process
	c.startedAt = time.Now()
	c.done = make(chan struct{})

	// piped output is drained as it arrives so the child never blocks
	// on a full pipe and readers never block writers
	if c.stdout != nil {
		c.stdoutDone = make(chan struct{})
		go c.drainPipe(c.stdout, &c.stdoutBuf, c.stdoutDone)
	}
	if c.stderr != nil {
		c.stderrDone = make(chan struct{})
		go c.drainPipe(c.stderr, &c.stderrBuf, c.stderrDone)
	}

	// the reaper goroutine is the only waiter, it closes done once the
	// exit status is known so every Result call observes one reap
	go func() {
		state, err := c.process.Wait()
		c.state = state
		c.waitErr = err
		close(c.done)
	}()

	log.Debug("Spawned process", "pid", c.pid, "command", opts.CommandLine(), "name", opts.Name)

	return c, nil
}

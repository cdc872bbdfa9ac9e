// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"strings"
	"time"
)

// StreamMode selects how a standard stream of a spawned process is wired up
type StreamMode int

const (
	// StreamInherit connects the stream to the corresponding stream of the calling process
	StreamInherit StreamMode = iota

	// StreamDiscard connects the stream to the null device
	StreamDiscard

	// StreamPipe connects the stream to a pipe owned by the Controller
	StreamPipe
)

func (m StreamMode) String() string {
	switch m {
	case StreamInherit:
		return "inherit"
	case StreamDiscard:
		return "discard"
	case StreamPipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// ParseStreamMode parses a stream mode name as used on the CLI and in task files
func ParseStreamMode(name string) (StreamMode, error) {
	switch strings.ToLower(name) {
	case "inherit", "":
		return StreamInherit, nil
	case "discard", "null":
		return StreamDiscard, nil
	case "pipe", "capture":
		return StreamPipe, nil
	default:
		return StreamInherit, fmt.Errorf("%w: %q", ErrUnknownStreamMode, name)
	}
}

// Signal is the closed set of signals a Controller can deliver, resolved
// to OS numeric constants only at the process boundary
type Signal int

const (
	SignalTerm Signal = iota
	SignalKill
	SignalInt
	SignalHup
	SignalQuit
	SignalUsr1
	SignalUsr2
)

func (s Signal) String() string {
	switch s {
	case SignalTerm:
		return "TERM"
	case SignalKill:
		return "KILL"
	case SignalInt:
		return "INT"
	case SignalHup:
		return "HUP"
	case SignalQuit:
		return "QUIT"
	case SignalUsr1:
		return "USR1"
	case SignalUsr2:
		return "USR2"
	default:
		return "UNKNOWN"
	}
}

// ParseSignal parses a signal name like "TERM" or "SIGTERM"
func ParseSignal(name string) (Signal, error) {
	switch strings.ToUpper(strings.TrimPrefix(strings.ToUpper(name), "SIG")) {
	case "TERM":
		return SignalTerm, nil
	case "KILL":
		return SignalKill, nil
	case "INT":
		return SignalInt, nil
	case "HUP":
		return SignalHup, nil
	case "QUIT":
		return SignalQuit, nil
	case "USR1":
		return SignalUsr1, nil
	case "USR2":
		return SignalUsr2, nil
	default:
		return SignalTerm, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
}

// SpawnOptions is the launch configuration for a single process
type SpawnOptions struct {
	// Name is an optional human readable label used in logs and events
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Command is the pre-split argument list, never interpreted by a shell
	Command []string `json:"command" yaml:"command"`

	// Cwd is the working directory, inherited when empty
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	// Environment entries in KEY=VALUE form appended to the callers environment
	Environment []string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// Path overrides the resolved executable path
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	StdinMode  StreamMode `json:"-" yaml:"-"`
	StdoutMode StreamMode `json:"-" yaml:"-"`
	StderrMode StreamMode `json:"-" yaml:"-"`

	// Stdin is written to the process after launch and the pipe closed,
	// setting it implies StdinMode pipe
	Stdin []byte `json:"-" yaml:"-"`

	// Timeout bounds high level runs, zero waits forever
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// TimedOut records that a wait deadline elapsed before the process
	// completed, the Controller sets it on the options snapshot held by
	// the Result
	TimedOut bool `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
}

// Validate validates the spawn options
func (o *SpawnOptions) Validate() error {
	if o == nil || len(o.Command) == 0 || o.Command[0] == "" {
		return ErrEmptyCommand
	}

	return nil
}

// CommandLine is the command as a single printable string
func (o *SpawnOptions) CommandLine() string {
	if o == nil {
		return ""
	}

	return strings.Join(o.Command, " ")
}

// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"
)

// StartFailureExitCode is the conventional exit code reported when the
// operating system could not invoke the command at all
const StartFailureExitCode = 127

// overridable in tests, ExitOnFailure terminates the calling process
var (
	exitFunc            = os.Exit
	exitOutput io.Writer = os.Stderr
)

// Result is the immutable outcome of a single process execution. It is
// created exactly once, when the fate of the process is known, and is
// never mutated afterwards
type Result struct {
	command  []string
	pid      *int
	duration *time.Duration
	exitCode *int
	signal   *int
	stdout   []byte
	stderr   []byte
	startErr error
	options  *SpawnOptions
}

// NewResult creates a Result from a reaped process state, classifying the
// outcome as either a normal exit or a signal termination, never both
func NewResult(state *os.ProcessState, command []string, duration time.Duration, stdout []byte, stderr []byte, opts *SpawnOptions) *Result {
	r := &Result{
		command:  command,
		duration: &duration,
		stdout:   stdout,
		stderr:   stderr,
		options:  opts,
	}

	pid := state.Pid()
	r.pid = &pid

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := int(ws.Signal())
		r.signal = &sig

		return r
	}

	code := state.ExitCode()
	r.exitCode = &code

	return r
}

// NewStartFailureResult creates a Result for a process the operating
// system failed to create, the exit code is fixed at 127 and no pid is set
func NewStartFailureResult(err error, command []string, opts *SpawnOptions) *Result {
	code := StartFailureExitCode

	return &Result{
		command:  command,
		exitCode: &code,
		startErr: err,
		options:  opts,
	}
}

// Command is the command line that was executed
func (r *Result) Command() []string {
	out := make([]string, len(r.command))
	copy(out, r.command)

	return out
}

// PID is the process id when the process actually started
func (r *Result) PID() (int, bool) {
	if r.pid == nil {
		return 0, false
	}

	return *r.pid, true
}

// ExitCode is the exit code for processes that exited, 127 for ones that failed to start
func (r *Result) ExitCode() (int, bool) {
	if r.exitCode == nil {
		return 0, false
	}

	return *r.exitCode, true
}

// SignalNumber is the signal that terminated the process
func (r *Result) SignalNumber() (int, bool) {
	if r.signal == nil {
		return 0, false
	}

	return *r.signal, true
}

// Duration is the wall clock time from launch to completion
func (r *Result) Duration() (time.Duration, bool) {
	if r.duration == nil {
		return 0, false
	}

	return *r.duration, true
}

// Stdout is the captured standard output, nil unless the stream was piped
func (r *Result) Stdout() []byte { return r.stdout }

// Stderr is the captured standard error, nil unless the stream was piped
func (r *Result) Stderr() []byte { return r.stderr }

// StartError is the error raised creating the process, nil once a process ran
func (r *Result) StartError() error { return r.startErr }

// Options is the launch configuration the process was started with
func (r *Result) Options() *SpawnOptions { return r.options }

// OK determines if the process exited normally with code 0
func (r *Result) OK() bool {
	return r.startErr == nil && r.signal == nil && r.exitCode != nil && *r.exitCode == 0
}

// Failed is the negation of OK
func (r *Result) Failed() bool { return !r.OK() }

// Signaled determines if the process was terminated by a signal
func (r *Result) Signaled() bool { return r.signal != nil }

// TimedOut determines if the launch options recorded a wait deadline
// having elapsed and termination being escalated
func (r *Result) TimedOut() bool {
	return r.options != nil && r.options.TimedOut
}

// Running determines if this is a mid flight snapshot with no terminal
// outcome recorded yet
func (r *Result) Running() bool {
	return r.pid != nil && r.exitCode == nil && r.signal == nil && r.startErr == nil
}

// Output is the captured standard output followed by standard error,
// nil when neither stream was piped
func (r *Result) Output() []byte {
	if r.stdout == nil && r.stderr == nil {
		return nil
	}

	out := make([]byte, 0, len(r.stdout)+len(r.stderr))
	out = append(out, r.stdout...)
	out = append(out, r.stderr...)

	return out
}

// StdoutLines is the captured standard output split into lines with
// trailing terminators stripped, empty when the stream was not piped
func (r *Result) StdoutLines() []string { return splitLines(r.stdout) }

// StderrLines is the captured standard error split into lines with
// trailing terminators stripped, empty when the stream was not piped
func (r *Result) StderrLines() []string { return splitLines(r.stderr) }

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}

	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// AndThen invokes fn when the result is OK and returns its value, failed
// results short circuit and are returned unchanged without invoking fn
func (r *Result) AndThen(fn func(*Result) *Result) *Result {
	if r.Failed() {
		return r
	}

	return fn(r)
}

// MapOutput invokes fn with the captured standard output when the result
// is OK, failed results report absence without invoking fn
func (r *Result) MapOutput(fn func(stdout []byte) string) (string, bool) {
	if r.Failed() {
		return "", false
	}

	return fn(r.stdout), true
}

// ExitOnFailure prints a diagnostic and terminates the calling process
// with the result exit code when the result failed, defaulting to exit
// code 1 when none is available. OK results are returned unchanged so
// calls can be chained
func (r *Result) ExitOnFailure(message ...string) *Result {
	if r.OK() {
		return r
	}

	diag := strings.Join(message, " ")
	if diag == "" {
		diag = r.failureDiagnostic()
	}

	fmt.Fprintln(exitOutput, diag)

	code := 1
	if r.exitCode != nil && *r.exitCode != 0 {
		code = *r.exitCode
	}

	exitFunc(code)

	return r
}

func (r *Result) failureDiagnostic() string {
	switch {
	case r.startErr != nil:
		return fmt.Sprintf("could not invoke %q: %v", strings.Join(r.command, " "), r.startErr)
	case r.signal != nil:
		return fmt.Sprintf("command %q received signal %d", strings.Join(r.command, " "), *r.signal)
	case r.exitCode != nil:
		return fmt.Sprintf("command %q exited with code %d", strings.Join(r.command, " "), *r.exitCode)
	default:
		return fmt.Sprintf("command %q failed", strings.Join(r.command, " "))
	}
}

func (r *Result) String() string {
	switch {
	case r.OK():
		return "success"
	case r.startErr != nil:
		return fmt.Sprintf("exception: %v", r.startErr)
	case r.signal != nil:
		return fmt.Sprintf("signal %d", *r.signal)
	case r.exitCode != nil:
		return fmt.Sprintf("exit %d", *r.exitCode)
	default:
		return "running"
	}
}

// Report is a multi line description of every present field, for logs
// and debugging rather than machine parsing
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "command: %s\n", strings.Join(r.command, " "))

	if r.options != nil && r.options.Name != "" {
		fmt.Fprintf(&b, "name: %s\n", r.options.Name)
	}
	if r.pid != nil {
		fmt.Fprintf(&b, "pid: %d\n", *r.pid)
	}
	if r.exitCode != nil {
		fmt.Fprintf(&b, "exit code: %d\n", *r.exitCode)
	}
	if r.signal != nil {
		fmt.Fprintf(&b, "signal: %d\n", *r.signal)
	}
	if r.duration != nil {
		fmt.Fprintf(&b, "duration: %v\n", r.duration.Round(time.Millisecond))
	}
	if r.startErr != nil {
		fmt.Fprintf(&b, "start error: %v\n", r.startErr)
	}
	if r.TimedOut() {
		fmt.Fprintf(&b, "timed out: true\n")
	}
	if r.stdout != nil {
		fmt.Fprintf(&b, "stdout: %d bytes\n", len(r.stdout))
	}
	if r.stderr != nil {
		fmt.Fprintf(&b, "stderr: %d bytes\n", len(r.stderr))
	}

	fmt.Fprintf(&b, "status: %s", r.String())

	return b.String()
}

// StructuredResult is the machine serializable form of a Result, absent
// fields are omitted rather than serialized as null placeholders
type StructuredResult struct {
	Command    []string `json:"command" yaml:"command"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	PID        *int     `json:"pid,omitempty" yaml:"pid,omitempty"`
	ExitCode   *int     `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Signal     *int     `json:"signal,omitempty" yaml:"signal,omitempty"`
	Duration   *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Success    bool     `json:"success" yaml:"success"`
	TimedOut   bool     `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	Stdout     string   `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr     string   `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	StartError string   `json:"start_error,omitempty" yaml:"start_error,omitempty"`
}

// Structured is the machine serializable form of the result
func (r *Result) Structured() *StructuredResult {
	s := &StructuredResult{
		Command:  r.Command(),
		PID:      copyIntPtr(r.pid),
		ExitCode: copyIntPtr(r.exitCode),
		Signal:   copyIntPtr(r.signal),
		Success:  r.OK(),
		TimedOut: r.TimedOut(),
		Stdout:   string(r.stdout),
		Stderr:   string(r.stderr),
	}

	if r.options != nil {
		s.Name = r.options.Name
	}

	if r.duration != nil {
		secs := r.duration.Seconds()
		s.Duration = &secs
	}

	if r.startErr != nil {
		s.StartError = r.startErr.Error()
	}

	return s
}

// FromStructured reconstructs a Result from its serialized form,
// preserving the success, exit code and signal classification
func FromStructured(s *StructuredResult) *Result {
	r := &Result{
		command:  s.Command,
		pid:      copyIntPtr(s.PID),
		exitCode: copyIntPtr(s.ExitCode),
		signal:   copyIntPtr(s.Signal),
	}

	if s.Name != "" || s.TimedOut {
		r.options = &SpawnOptions{Name: s.Name, Command: s.Command, TimedOut: s.TimedOut}
	}

	if s.Duration != nil {
		d := time.Duration(*s.Duration * float64(time.Second))
		r.duration = &d
	}

	if s.StartError != "" {
		r.startErr = fmt.Errorf("%s", s.StartError)
	}

	if s.Stdout != "" {
		r.stdout = []byte(s.Stdout)
	}
	if s.Stderr != "" {
		r.stderr = []byte(s.Stderr)
	}

	return r
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}

	out := *v

	return &out
}

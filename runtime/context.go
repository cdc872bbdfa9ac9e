// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package runtime holds the immutable per invocation execution context,
// computed once at startup and passed down rather than read from
// ambient global state
package runtime

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// agentVars are environment variables that indicate an automated agent
// rather than a person is driving the invocation
var agentVars = []string{"PEXEC_AGENT", "CLAUDECODE", "AGENT_MODE"}

// Context describes how the current invocation is being driven
type Context struct {
	interactive bool
	agentMode   bool
	callTree    []string
}

// Detect computes the execution context from the environment and the
// given stdout, typically os.Stdout. The result is immutable
func Detect(environ []string, stdout *os.File) *Context {
	env := make(map[string]string)
	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	c := &Context{}

	for _, v := range agentVars {
		if env[v] != "" {
			c.agentMode = true
			break
		}
	}

	if stdout != nil && env["CI"] == "" {
		c.interactive = term.IsTerminal(int(stdout.Fd()))
	}

	return c
}

// Interactive determines if a person on a terminal is driving this invocation
func (c *Context) Interactive() bool { return c.interactive }

// AgentMode determines if an automated agent is driving this invocation
func (c *Context) AgentMode() bool { return c.agentMode }

// CallTree is the chain of command names that led to the current call
func (c *Context) CallTree() []string {
	out := make([]string, len(c.callTree))
	copy(out, c.callTree)

	return out
}

// WithCall returns a new context with name appended to the call tree,
// the receiver is not modified
func (c *Context) WithCall(name string) *Context {
	out := &Context{
		interactive: c.interactive,
		agentMode:   c.agentMode,
		callTree:    make([]string, 0, len(c.callTree)+1),
	}
	out.callTree = append(out.callTree, c.callTree...)
	out.callTree = append(out.callTree, name)

	return out
}

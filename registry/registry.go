// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the statically registered commands and the
// commands loaded from task files
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/runner"
)

// Handler executes a registered command
type Handler func(ctx context.Context, r *runner.Runner, args []string) (*model.Result, error)

// Command is a single registered command
type Command struct {
	Name    string
	Summary string
	Handler Handler
}

var (
	commands = make(map[string]*Command)
	mu       sync.Mutex
)

// Clear removes all registered commands
func Clear() {
	mu.Lock()
	defer mu.Unlock()

	commands = make(map[string]*Command)
}

// Register registers a command, names are unique across the registry
func Register(cmd *Command) error {
	mu.Lock()
	defer mu.Unlock()

	if cmd == nil || cmd.Name == "" {
		return fmt.Errorf("a command name is required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}

	_, ok := commands[cmd.Name]
	if ok {
		return fmt.Errorf("%w: %s", model.ErrDuplicateCommand, cmd.Name)
	}

	commands[cmd.Name] = cmd

	return nil
}

// MustRegister registers a command and panics if registration fails
func MustRegister(cmd *Command) {
	err := Register(cmd)
	if err != nil {
		panic(err)
	}
}

// Lookup finds a command by name
func Lookup(name string) (*Command, error) {
	mu.Lock()
	defer mu.Unlock()

	cmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNoSuchTask, name)
	}

	return cmd, nil
}

// Names returns the names of all registered commands sorted
func Names() []string {
	mu.Lock()
	defer mu.Unlock()

	var res []string
	for k := range commands {
		res = append(res, k)
	}

	sort.Strings(res)

	return res
}

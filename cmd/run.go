// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"time"

	"github.com/choria-io/fisk"

	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/runner"
	"github.com/choria-io/pexec/runtime"
)

type runCommand struct {
	common commonRunOptions

	name           string
	command        []string
	cwd            string
	env            []string
	input          string
	timeout        time.Duration
	terminateGrace time.Duration
	stdinMode      string
	stdoutMode     string
	stderrMode     string
	jsonOut        bool
	yamlOut        bool
	filter         string
}

func registerRunCommand(app *fisk.Application) {
	cmd := &runCommand{}

	run := app.Command("run", "Run a command and report its outcome").Action(cmd.runAction)
	run.Arg("command", "Command and arguments to run").Required().StringsVar(&cmd.command)
	run.Flag("name", "Name to record the run under").StringVar(&cmd.name)
	run.Flag("cwd", "Working directory to run in").PlaceHolder("DIR").StringVar(&cmd.cwd)
	run.Flag("env", "Environment variables to set as KEY=VALUE").PlaceHolder("KEY=VALUE").StringsVar(&cmd.env)
	run.Flag("timeout", "Maximum time the command may run before being terminated").DurationVar(&cmd.timeout)
	run.Flag("terminate-after", "Time a terminated command gets before being killed").Default("5s").DurationVar(&cmd.terminateGrace)
	run.Flag("input", "Data written to the commands standard input").PlaceHolder("DATA").StringVar(&cmd.input)
	run.Flag("stdin", "Standard input mode: inherit, discard or pipe").Default("inherit").EnumVar(&cmd.stdinMode, "inherit", "discard", "pipe")
	run.Flag("stdout", "Standard output mode: inherit, discard or pipe").Default("pipe").EnumVar(&cmd.stdoutMode, "inherit", "discard", "pipe")
	run.Flag("stderr", "Standard error mode: inherit, discard or pipe").Default("pipe").EnumVar(&cmd.stderrMode, "inherit", "discard", "pipe")
	run.Flag("json", "Render the result as JSON").UnNegatableBoolVar(&cmd.jsonOut)
	run.Flag("yaml", "Render the result as YAML").UnNegatableBoolVar(&cmd.yamlOut)
	run.Flag("filter", "Render a single result field selected by a gjson path").PlaceHolder("PATH").StringVar(&cmd.filter)

	cmd.common.addFlags(run)
}

func (c *runCommand) runAction(_ *fisk.ParseContext) error {
	opts, err := c.spawnOptions()
	if err != nil {
		return err
	}

	rt := runtime.Detect(os.Environ(), os.Stdout)

	r, _, err := newRunner(&c.common, rt, c.env, runner.WithTerminateGrace(c.terminateGrace))
	if err != nil {
		return err
	}

	res, err := r.Run(ctx, opts)
	if err != nil {
		return err
	}

	err = printResult(res, c.jsonOut, c.yamlOut, c.filter)
	if err != nil {
		return err
	}

	exitForResult(res)

	return nil
}

func (c *runCommand) spawnOptions() (*model.SpawnOptions, error) {
	stdin, err := model.ParseStreamMode(c.stdinMode)
	if err != nil {
		return nil, err
	}

	stdout, err := model.ParseStreamMode(c.stdoutMode)
	if err != nil {
		return nil, err
	}

	stderr, err := model.ParseStreamMode(c.stderrMode)
	if err != nil {
		return nil, err
	}

	opts := &model.SpawnOptions{
		Name:       c.name,
		Command:    c.command,
		Cwd:        c.cwd,
		Timeout:    c.timeout,
		StdinMode:  stdin,
		StdoutMode: stdout,
		StderrMode: stderr,
	}

	if c.input != "" {
		opts.Stdin = []byte(c.input)
	}

	return opts, nil
}

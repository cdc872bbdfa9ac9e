// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/choria-io/fisk"

	"github.com/choria-io/pexec/registry"
	"github.com/choria-io/pexec/runtime"
)

type doCommand struct {
	common commonRunOptions

	file    string
	task    string
	jsonOut bool
	yamlOut bool
	filter  string
}

func registerDoCommand(app *fisk.Application) {
	cmd := &doCommand{}

	do := app.Command("do", "Run a task from a task file").Action(cmd.doAction)
	do.Arg("file", "Path to the task file").Required().ExistingFileVar(&cmd.file)
	do.Arg("task", "Name of the task to run").Required().StringVar(&cmd.task)
	do.Flag("json", "Render the result as JSON").UnNegatableBoolVar(&cmd.jsonOut)
	do.Flag("yaml", "Render the result as YAML").UnNegatableBoolVar(&cmd.yamlOut)
	do.Flag("filter", "Render a single result field selected by a gjson path").PlaceHolder("PATH").StringVar(&cmd.filter)

	cmd.common.addFlags(do)
}

func (c *doCommand) doAction(_ *fisk.ParseContext) error {
	tf, err := registry.LoadTaskFile(c.file)
	if err != nil {
		return err
	}

	task, err := tf.Lookup(c.task)
	if err != nil {
		return err
	}

	rt := runtime.Detect(os.Environ(), os.Stdout).WithCall(task.Name)

	env := registry.NewEnv(os.Environ(), rt.CallTree(), nil)

	err = tf.RegisterAll(env)
	if err != nil {
		return err
	}

	cmd, err := registry.Lookup(task.Name)
	if err != nil {
		return err
	}

	r, out, err := newRunner(&c.common, rt, nil)
	if err != nil {
		return err
	}

	res, err := cmd.Handler(ctx, r, nil)
	if err != nil {
		return err
	}

	ok, err := task.Succeeded(res)
	if err != nil {
		return err
	}

	err = printResult(res, c.jsonOut, c.yamlOut, c.filter)
	if err != nil {
		return err
	}

	if !ok {
		out.Error("Task failed", "task", task.Name)
		exitForResult(res)
	}

	return nil
}

type validateCommand struct {
	file string
}

func registerValidateCommand(app *fisk.Application) {
	cmd := &validateCommand{}

	validate := app.Command("validate", "Validate a task file against its schema").Action(cmd.validateAction)
	validate.Arg("file", "Path to the task file").Required().ExistingFileVar(&cmd.file)
}

func (c *validateCommand) validateAction(_ *fisk.ParseContext) error {
	tf, err := registry.LoadTaskFile(c.file)
	if err != nil {
		return err
	}

	fmt.Printf("%s is valid and defines %d tasks:\n\n", c.file, len(tf.Tasks))
	for _, task := range tf.Tasks {
		switch {
		case task.Summary != "":
			fmt.Printf("  %s: %s\n", task.Name, task.Summary)
		default:
			fmt.Printf("  %s\n", task.Name)
		}
	}

	return nil
}

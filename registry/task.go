// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/CloudyKit/jet/v6"
	"github.com/expr-lang/expr"
	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/runner"
)

// TaskFileSchema validates task files before any templating happens
const TaskFileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://choria.io/schemas/pexec/v1/taskfile.json",
  "type": "object",
  "required": ["tasks"],
  "additionalProperties": false,
  "properties": {
    "tasks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "command"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "summary": {"type": "string"},
          "command": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "env": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          },
          "cwd": {"type": "string"},
          "timeout": {"type": "string"},
          "success_when": {"type": "string"}
        }
      }
    }
  }
}`

// Task is a single runnable command defined in a task file, command
// arguments and env values may contain [[ ]] template expressions
type Task struct {
	Name        string            `json:"name" yaml:"name"`
	Summary     string            `json:"summary,omitempty" yaml:"summary,omitempty"`
	Command     []string          `json:"command" yaml:"command"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Cwd         string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Timeout     string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	SuccessWhen string            `json:"success_when,omitempty" yaml:"success_when,omitempty"`
}

// TaskFile is a YAML document holding tasks
type TaskFile struct {
	Tasks []*Task `json:"tasks" yaml:"tasks"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(TaskFileSchema))
		if err != nil {
			schemaErr = err
			return
		}

		compiler := jsonschema.NewCompiler()
		err = compiler.AddResource("taskfile.json", doc)
		if err != nil {
			schemaErr = err
			return
		}

		schema, schemaErr = compiler.Compile("taskfile.json")
	})

	return schema, schemaErr
}

// LoadTaskFile reads and schema validates a YAML task file
func LoadTaskFile(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseTaskFile(data)
}

// ParseTaskFile parses and schema validates task file contents
func ParseTaskFile(data []byte) (*TaskFile, error) {
	err := validateTaskFile(data)
	if err != nil {
		return nil, err
	}

	var tf TaskFile
	err = yaml.Unmarshal(data, &tf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidTaskFile, err)
	}

	seen := make(map[string]struct{}, len(tf.Tasks))
	for _, task := range tf.Tasks {
		_, ok := seen[task.Name]
		if ok {
			return nil, fmt.Errorf("%w: %s", model.ErrDuplicateCommand, task.Name)
		}
		seen[task.Name] = struct{}{}
	}

	return &tf, nil
}

// Lookup finds a task by name
func (f *TaskFile) Lookup(name string) (*Task, error) {
	for _, task := range f.Tasks {
		if task.Name == name {
			return task, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", model.ErrNoSuchTask, name)
}

// Names returns the names of all tasks in file order
func (f *TaskFile) Names() []string {
	names := make([]string, 0, len(f.Tasks))
	for _, task := range f.Tasks {
		names = append(names, task.Name)
	}

	return names
}

// RegisterAll registers every task as a command in the registry
func (f *TaskFile) RegisterAll(env *Env) error {
	for _, task := range f.Tasks {
		err := Register(&Command{
			Name:    task.Name,
			Summary: task.Summary,
			Handler: func(ctx context.Context, r *runner.Runner, _ []string) (*model.Result, error) {
				return task.Run(ctx, r, env)
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SpawnOptions renders the task into launch options, template
// expressions are resolved against env
func (t *Task) SpawnOptions(env *Env) (*model.SpawnOptions, error) {
	opts := &model.SpawnOptions{
		Name:       t.Name,
		Cwd:        t.Cwd,
		StdoutMode: model.StreamPipe,
		StderrMode: model.StreamPipe,
	}

	if t.Timeout != "" {
		timeout, err := time.ParseDuration(t.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout: %w", model.ErrInvalidTaskFile, err)
		}
		opts.Timeout = timeout
	}

	for _, arg := range t.Command {
		rendered, err := renderTemplate(t.Name, arg, env)
		if err != nil {
			return nil, err
		}
		opts.Command = append(opts.Command, rendered)
	}

	for k, v := range t.Env {
		rendered, err := renderTemplate(t.Name, v, env)
		if err != nil {
			return nil, err
		}
		opts.Environment = append(opts.Environment, fmt.Sprintf("%s=%s", k, rendered))
	}

	return opts, nil
}

// Run renders the task and executes it, when success_when is set its
// verdict overrides the exit status based success of the result
func (t *Task) Run(ctx context.Context, r *runner.Runner, env *Env) (*model.Result, error) {
	opts, err := t.SpawnOptions(env)
	if err != nil {
		return nil, err
	}

	res, err := r.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Succeeded evaluates success_when against the structured result, tasks
// without a success_when expression use the results own success
func (t *Task) Succeeded(res *model.Result) (bool, error) {
	if t.SuccessWhen == "" {
		return res.OK(), nil
	}

	env := &resultEnv{Result: res.Structured()}

	program, err := expr.Compile(t.SuccessWhen, expr.Env(env), expr.Function("lookup", env.lookup))
	if err != nil {
		return false, fmt.Errorf("expr compile error for '%s': %w", t.SuccessWhen, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	verdict, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("success_when for task %s did not evaluate to a boolean", t.Name)
	}

	return verdict, nil
}

// resultEnv exposes a structured result to success_when expressions
type resultEnv struct {
	Result *model.StructuredResult `json:"result"`

	envJSON json.RawMessage
	mu      sync.Mutex
}

func (e *resultEnv) lookup(params ...any) (any, error) {
	return jsonLookup(e, &e.envJSON, &e.mu, params...)
}

func renderTemplate(name string, template string, env *Env) (string, error) {
	if !strings.Contains(template, "[[") {
		return template, nil
	}

	set := jet.NewSet(jet.NewInMemLoader(), jet.WithDelims("[[", "]]"))
	tpl, err := set.Parse(name, template)
	if err != nil {
		return "", err
	}

	variables := jet.VarMap{
		"environ": reflect.ValueOf(env.Environ),
		"Environ": reflect.ValueOf(env.Environ),
		"context": reflect.ValueOf(env.Context),
		"Context": reflect.ValueOf(env.Context),
		"data":    reflect.ValueOf(env.Data),
		"Data":    reflect.ValueOf(env.Data),
		"lookup":  reflect.ValueOf(env.Lookup),
	}

	buff := bytes.NewBuffer([]byte{})
	err = tpl.Execute(buff, variables, env)
	if err != nil {
		return "", err
	}

	return buff.String(), nil
}

func validateTaskFile(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	var raw any
	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidTaskFile, err)
	}

	// round trip through JSON so the validator sees JSON native types
	jb, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidTaskFile, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(jb))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidTaskFile, err)
	}

	err = sch.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidTaskFile, err)
	}

	return nil
}

// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/SladkyCitron/slogcolor"
	"github.com/choria-io/fisk"
	"github.com/goccy/go-yaml"
	"github.com/tidwall/gjson"

	iu "github.com/choria-io/pexec/internal/util"
	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/runner"
	"github.com/choria-io/pexec/runtime"
)

// commonRunOptions are the flags shared by every command that executes processes
type commonRunOptions struct {
	historyDir  string
	natsContext string
	subject     string
	metricsPort int
	readEnv     bool
}

func (c *commonRunOptions) addFlags(cmd *fisk.CmdClause) {
	cmd.Flag("history", "Directory to record run events in").PlaceHolder("DIR").StringVar(&c.historyDir)
	cmd.Flag("context", "NATS context to publish run events with").PlaceHolder("NAME").StringVar(&c.natsContext)
	cmd.Flag("subject", "Subject to publish run events to").PlaceHolder("SUBJECT").StringVar(&c.subject)
	cmd.Flag("metrics-port", "Serve prometheus metrics on this port").PlaceHolder("PORT").IntVar(&c.metricsPort)
	cmd.Flag("env-file", "Read environment variables from a .env file").UnNegatableBoolVar(&c.readEnv)
}

func newRunner(common *commonRunOptions, rt *runtime.Context, extraEnv []string, extraOpts ...runner.Option) (*runner.Runner, model.Logger, error) {
	opts := extraOpts

	logger := newLogger()
	out := newOutputLogger()

	if common.historyDir != "" {
		opts = append(opts, runner.WithHistoryDirectory(common.historyDir))
	}

	if common.natsContext != "" {
		opts = append(opts, runner.WithNatsContext(common.natsContext, common.subject))
	}

	if common.metricsPort > 0 {
		opts = append(opts, runner.WithMetricsPort(common.metricsPort))
	}

	env, err := dotEnvEntries(common.readEnv, logger)
	if err != nil {
		return nil, nil, err
	}
	env = append(env, extraEnv...)

	if len(env) > 0 {
		opts = append(opts, runner.WithEnvironment(env...))
	}

	opts = append(opts, runner.WithContext(rt))

	r, err := runner.NewRunner(logger, out, opts...)
	if err != nil {
		return nil, nil, err
	}

	return r, out, nil
}

// dotEnvEntries reads extra KEY=VALUE entries from a .env file in the
// current directory when enabled
func dotEnvEntries(readEnv bool, log model.Logger) ([]string, error) {
	var res []string

	if !readEnv {
		return res, nil
	}

	re := regexp.MustCompile(`^(.+?)="*(.+)"*$`)

	file, err := filepath.Abs(".env")
	if err != nil {
		return nil, err
	}

	if !iu.FileExists(file) {
		return res, nil
	}

	log.With("file", file).Info("Reading environment variables from .env file")

	env, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	scanner := bufio.NewScanner(env)
	for scanner.Scan() {
		line := scanner.Text()
		matches := re.FindStringSubmatch(line)
		if len(matches) == 3 {
			res = append(res, line)
		}
	}

	return res, scanner.Err()
}

// printResult renders a result as text, json, yaml or a gjson filtered value
func printResult(res *model.Result, asJSON bool, asYAML bool, filter string) error {
	structured := res.Structured()

	switch {
	case filter != "":
		jb, err := json.Marshal(structured)
		if err != nil {
			return err
		}

		fmt.Println(gjson.GetBytes(jb, filter).String())
	case asJSON:
		jb, err := json.MarshalIndent(structured, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(jb))
	case asYAML:
		yb, err := yaml.Marshal(structured)
		if err != nil {
			return err
		}

		fmt.Print(string(yb))
	default:
		fmt.Print(res.Report())
	}

	return nil
}

// exitForResult terminates the process mirroring the child exit status,
// start failures and signals use the conventional 127 and 128+n codes
func exitForResult(res *model.Result) {
	if res.OK() {
		os.Exit(0)
	}

	if code, ok := res.ExitCode(); ok {
		os.Exit(code)
	}

	if sig, ok := res.SignalNumber(); ok {
		os.Exit(128 + sig)
	}

	os.Exit(1)
}

func newOutputLogger() model.Logger {
	var level slog.Level

	switch {
	case debug:
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}

	return runner.NewSlogLogger(slog.New(slogcolor.NewHandler(os.Stdout, &slogcolor.Options{Level: level})))
}

func newLogger() model.Logger {
	var level slog.Level

	switch {
	case debug:
		level = slog.LevelDebug
	case info:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return runner.NewSlogLogger(logger)
}

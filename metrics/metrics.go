// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/choria-io/pexec/model"
)

var (
	NameSpace = "choria"
	Subsystem = "pexec"

	// RunTime is a summary of the wall clock time commands ran for
	RunTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "run_duration_seconds"),
		Help: "Wall clock time commands ran for",
	}, []string{"name"})

	// RunsTotal counts how many commands were executed
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "runs_total_count"),
		Help: "How many commands were executed",
	}, []string{"name"})

	// RunsFailed counts how many commands finished unsuccessfully
	RunsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "runs_failed_count"),
		Help: "How many commands finished unsuccessfully",
	}, []string{"name"})

	// RunsSignaled counts how many commands were terminated by a signal
	RunsSignaled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "runs_signaled_count"),
		Help: "How many commands were terminated by a signal",
	}, []string{"name"})

	// RunsTimedOut counts how many commands had their wait deadline elapse
	RunsTimedOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "runs_timeout_count"),
		Help: "How many commands had their wait deadline elapse",
	}, []string{"name"})

	// LaunchFailures counts how many commands could not be started at all
	LaunchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "launch_failure_count"),
		Help: "How many commands could not be started at all",
	}, []string{"name"})
)

func RegisterMetrics() {
	prometheus.MustRegister(RunTime)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunsFailed)
	prometheus.MustRegister(RunsSignaled)
	prometheus.MustRegister(RunsTimedOut)
	prometheus.MustRegister(LaunchFailures)
}

func ListenAndServe(port int, log model.Logger) {
	if port <= 0 {
		return
	}

	go func() {
		log.Info("Starting monitoring server", "port", port)
		http.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
		if err != nil {
			log.Error("HTTP Listener failed", "error", err)
		}
	}()
}

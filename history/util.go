// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"github.com/choria-io/pexec/metrics"
	"github.com/choria-io/pexec/model"
)

func updateMetrics(event *model.RunEvent) {
	res := event.Result
	if res == nil {
		return
	}

	metrics.RunsTotal.WithLabelValues(event.Name).Inc()

	if res.Duration != nil {
		metrics.RunTime.WithLabelValues(event.Name).Observe(*res.Duration)
	}

	if !res.Success {
		metrics.RunsFailed.WithLabelValues(event.Name).Inc()
	}

	if res.Signal != nil {
		metrics.RunsSignaled.WithLabelValues(event.Name).Inc()
	}

	if res.TimedOut {
		metrics.RunsTimedOut.WithLabelValues(event.Name).Inc()
	}

	if res.StartError != "" {
		metrics.LaunchFailures.WithLabelValues(event.Name).Inc()
	}
}

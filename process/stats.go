// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package process

import (
	gops "github.com/shirou/gopsutil/v4/process"

	"github.com/choria-io/pexec/model"
)

// ProcessStats is a point in time resource usage snapshot of a running process
type ProcessStats struct {
	PID        int     `json:"pid" yaml:"pid"`
	CPUPercent float64 `json:"cpu_percent" yaml:"cpu_percent"`
	RSS        uint64  `json:"rss" yaml:"rss"`
}

// Stats samples cpu and memory usage of the process while it is
// executing, finished processes report ErrProcessFinished
func (c *Controller) Stats() (*ProcessStats, error) {
	if !c.Executing() {
		return nil, model.ErrProcessFinished
	}

	proc, err := gops.NewProcess(int32(c.pid))
	if err != nil {
		return nil, err
	}

	stats := &ProcessStats{PID: c.pid}

	stats.CPUPercent, err = proc.CPUPercent()
	if err != nil {
		return nil, err
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, err
	}
	if mem != nil {
		stats.RSS = mem.RSS
	}

	return stats, nil
}

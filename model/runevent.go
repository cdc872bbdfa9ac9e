// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const RunEventProtocol = "io.choria.pexec.v1.run.event"

// RunEvent is the durable record of a single process execution
type RunEvent struct {
	Protocol  string            `json:"protocol" yaml:"protocol"`
	EventID   string            `json:"event_id" yaml:"event_id"`
	TimeStamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Command   []string          `json:"command" yaml:"command"`
	Result    *StructuredResult `json:"result" yaml:"result"`
}

// NewRunEvent creates a run event for a terminal result
func NewRunEvent(name string, result *Result) *RunEvent {
	return &RunEvent{
		Protocol:  RunEventProtocol,
		EventID:   ksuid.New().String(),
		TimeStamp: time.Now().UTC(),
		Name:      name,
		Command:   result.Command(),
		Result:    result.Structured(),
	}
}

func (e *RunEvent) String() string {
	return fmt.Sprintf("run %s %q %s", e.EventID, strings.Join(e.Command, " "), FromStructured(e.Result).String())
}

// HistoryStore stores run events
type HistoryStore interface {
	RecordEvent(*RunEvent) error
	AllEvents() ([]*RunEvent, error)
	Prune() (int, error)
}

// Reporter publishes run events to an external system
type Reporter interface {
	Publish(ctx context.Context, event *RunEvent) error
}

// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"sync"

	"github.com/choria-io/pexec/model"
)

// MemoryStore stores run events in memory for the lifetime of a process
type MemoryStore struct {
	events []*model.RunEvent
	log    model.Logger
	mu     sync.Mutex
}

var _ model.HistoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory history store
func NewMemoryStore(logger model.Logger) (*MemoryStore, error) {
	return &MemoryStore{
		log:    logger.With("store", "memory"),
		events: make([]*model.RunEvent, 0),
	}, nil
}

func (s *MemoryStore) RecordEvent(event *model.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updateMetrics(event)

	s.events = append(s.events, event)

	return nil
}

func (s *MemoryStore) AllEvents() ([]*model.RunEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.RunEvent, len(s.events))
	copy(out, s.events)

	return out, nil
}

func (s *MemoryStore) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.events)
	s.events = make([]*model.RunEvent, 0)

	return removed, nil
}

// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package history stores the run events produced by executed commands
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"

	iu "github.com/choria-io/pexec/internal/util"
	"github.com/choria-io/pexec/model"
)

// DirectoryStore stores run events in a directory with one file per event
type DirectoryStore struct {
	directory string
	log       model.Logger
	mu        sync.Mutex
}

var _ model.HistoryStore = (*DirectoryStore)(nil)

// NewDirectoryStore creates a new directory of files based history store
func NewDirectoryStore(directory string, logger model.Logger) (*DirectoryStore, error) {
	if directory == "" {
		return nil, fmt.Errorf("history directory path cannot be empty")
	}

	// Clean and make the directory path absolute to prevent path traversal
	absDir, err := filepath.Abs(filepath.Clean(directory))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory path: %w", err)
	}

	err = os.MkdirAll(absDir, 0755)
	if err != nil {
		return nil, err
	}

	return &DirectoryStore{
		directory: absDir,
		log:       logger.With("store", "directory", "path", absDir),
	}, nil
}

func (s *DirectoryStore) RecordEvent(event *model.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updateMetrics(event)

	// Validate EventID is a valid ksuid to prevent directory traversal,
	// valid ksuids contain only base62 characters and no path separators
	_, err := ksuid.Parse(event.EventID)
	if err != nil {
		return fmt.Errorf("invalid event ID: %w", err)
	}

	if !iu.IsDirectory(s.directory) {
		return fmt.Errorf("history store %s does not exist", s.directory)
	}

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return err
	}

	filename := filepath.Join(s.directory, event.EventID+".event")
	s.log.Debug("Recording event", "filename", filename)

	return os.WriteFile(filename, data, 0644)
}

// AllEvents returns all recorded events sorted oldest first, ksuids sort
// lexically in time order so the file name is the sort key
func (s *DirectoryStore) AllEvents() ([]*model.RunEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*model.RunEvent

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return events, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".event") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		filename := filepath.Join(s.directory, name)

		data, err := os.ReadFile(filename)
		if err != nil {
			s.log.Error("Failed to read event file", "filename", filename, "error", err)
			continue
		}

		var event model.RunEvent
		err = json.Unmarshal(data, &event)
		if err != nil {
			s.log.Error("Failed to parse event file", "filename", filename, "error", err)
			continue
		}

		if event.Protocol != model.RunEventProtocol {
			s.log.Warn("Unknown event protocol", "filename", filename, "protocol", event.Protocol)
			continue
		}

		events = append(events, &event)
	}

	return events, nil
}

// Prune removes all recorded events and reports how many were removed
func (s *DirectoryStore) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".event") {
			continue
		}

		err = os.Remove(filepath.Join(s.directory, entry.Name()))
		if err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

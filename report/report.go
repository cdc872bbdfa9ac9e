// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package report publishes run events to NATS
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/synadia-io/orbit.go/natscontext"

	"github.com/choria-io/pexec/internal/backoff"
	"github.com/choria-io/pexec/model"
)

// DefaultSubject is the subject events are published to when none is configured
const DefaultSubject = "pexec.events"

// connectTries bounds how often a single publish will retry the connection
const connectTries = 3

// Publisher publishes run events to a NATS subject using a connection
// made from a NATS context, the connection is cached across publishes
type Publisher struct {
	natsContext string
	subject     string
	log         model.Logger

	nc *nats.Conn
	mu sync.Mutex
}

var _ model.Reporter = (*Publisher)(nil)

// NewPublisher creates a publisher for the named NATS context
func NewPublisher(natsContext string, subject string, log model.Logger) (*Publisher, error) {
	if natsContext == "" {
		return nil, fmt.Errorf("a NATS context name is required")
	}

	if subject == "" {
		subject = DefaultSubject
	}

	return &Publisher{
		natsContext: natsContext,
		subject:     subject,
		log:         log.With("context", natsContext, "subject", subject),
	}, nil
}

// Publish publishes the event as JSON, connection failures are retried
// a few times with jittered backoff before giving up
func (p *Publisher) Publish(ctx context.Context, event *model.RunEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	nc, err := p.connect(ctx)
	if err != nil {
		return err
	}

	p.log.Debug("Publishing run event", "event", event.EventID)

	err = nc.Publish(p.subject, data)
	if err != nil {
		return err
	}

	return nc.Flush()
}

// Close drains the cached connection if one was made
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc == nil {
		return nil
	}

	err := p.nc.Drain()
	p.nc = nil

	return err
}

func (p *Publisher) connect(ctx context.Context) (*nats.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil && p.nc.IsConnected() {
		return p.nc, nil
	}

	var lastErr error

	err := backoff.FiveSec.For(ctx, func(try int) error {
		if try > connectTries {
			return nil
		}

		nc, _, err := natscontext.Connect(p.natsContext, nats.MaxReconnects(-1))
		if err != nil {
			p.log.Warn("Could not connect to NATS", "try", try, "error", err)
			lastErr = err
			return err
		}

		p.nc = nc
		lastErr = nil

		return nil
	})
	if err != nil {
		return nil, err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("could not connect to NATS context %s: %w", p.natsContext, lastErr)
	}

	return p.nc, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"go.uber.org/zap"
)

// DefaultInterval is how often a Sender polls its source when idle
const DefaultInterval = 10 * time.Millisecond

// Source hands out admitted commands in order without blocking.
// ok is false when nothing is queued.
type Source interface {
	RetrieveInto(dst *charger.Command) (ok bool, err error)
}

// Sender is the consumer side of the dispatch pool: it drains queued
// commands onto a Port. A failed write drops the command; there are no
// retries.
type Sender struct {
	Source   Source
	Port     Port
	Interval time.Duration
	Logger   *zap.Logger

	// Optional hooks, called from the sending goroutine
	OnSent  func(cmd charger.Command)
	OnError func(cmd charger.Command, err error)

	sent   atomic.Uint64
	failed atomic.Uint64
}

// Run drains the source every Interval until ctx is done. Commands still
// queued at cancellation are flushed before returning. A source error
// (e.g. the pool was shut down) ends the loop and is returned.
func (s *Sender) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Drain(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			_, err := s.Drain()
			return err
		case <-ticker.C:
		}
	}
}

// Drain sends every queued command and returns how many were taken from
// the source, including those whose write failed.
func (s *Sender) Drain() (int, error) {
	var (
		cmd charger.Command
		n   int
	)

	for {
		ok, err := s.Source.RetrieveInto(&cmd)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
		s.send(cmd)
	}
}

func (s *Sender) send(cmd charger.Command) {
	if err := s.Port.WriteCommand(cmd); err != nil {
		s.failed.Add(1)
		s.logger().Warn("failed to transmit command",
			zap.String("port", s.Port.Name()),
			zap.Stringer("command", cmd),
			zap.Error(err))
		if s.OnError != nil {
			s.OnError(cmd, err)
		}
		return
	}

	s.sent.Add(1)
	s.logger().Debug("command transmitted",
		zap.String("port", s.Port.Name()),
		zap.Stringer("command", cmd))
	if s.OnSent != nil {
		s.OnSent(cmd)
	}
}

func (s *Sender) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Sent returns the number of commands written successfully
func (s *Sender) Sent() uint64 {
	return s.sent.Load()
}

// Failed returns the number of commands dropped on write errors
func (s *Sender) Failed() uint64 {
	return s.failed.Load()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dispatch stages validated charger commands between producers and
// the goroutine that transmits them.
//
// A Pool holds PoolSize reusable slots split between two FIFO queues: unused
// (free slots) and active (admitted commands, oldest first). Admit moves one
// slot from unused to active, Retrieve moves it back. Both moves happen under
// a single mutex; validation runs before the lock is taken.
//
// Retrieval never blocks. A consumer such as transport.Sender polls the pool
// and writes each command to the transport port returned by Port.
package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"github.com/Thermoquad/chargeport/pkg/transport"
	"go.uber.org/zap"
)

// Pool is a fixed-capacity dual-queue command pool bound to one transport
// port. The zero value is not usable; construct with New.
type Pool struct {
	opener transport.Opener
	logger *zap.Logger
	stats  *Statistics

	// lifecycle serializes Init and Deinit
	lifecycle sync.Mutex

	// mu guards arena and port
	mu          sync.Mutex
	arena       *arena
	port        transport.Port
	initialized atomic.Bool
}

// Option configures a Pool
type Option func(*Pool)

// WithLogger sets the logger used for admission and lifecycle records
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStatistics shares an existing statistics tracker with the pool
func WithStatistics(stats *Statistics) Option {
	return func(p *Pool) {
		if stats != nil {
			p.stats = stats
		}
	}
}

// New creates an uninitialized pool that opens its port through opener
func New(opener transport.Opener, opts ...Option) *Pool {
	p := &Pool{
		opener: opener,
		logger: zap.NewNop(),
		stats:  NewStatistics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init opens the transport port and allocates the slots. On any failure no
// state is kept and the pool stays uninitialized.
func (p *Pool) Init(portName string, speed transport.Baud) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.initialized.Load() {
		return p.reject(ErrAlreadyInitialized)
	}
	if portName == "" {
		return p.reject(ErrNoPortName)
	}
	if n := utf8.RuneCountInString(portName); n > MaxPortName {
		return p.reject(fmt.Errorf("%w: %d characters (max %d)", ErrPortNameTooLong, n, MaxPortName))
	}
	if !speed.Valid() {
		return p.reject(fmt.Errorf("%w: %d", ErrInvalidBaud, speed))
	}
	if p.opener == nil {
		return p.reject(fmt.Errorf("failed to open %s: no transport configured", portName))
	}

	port, err := p.opener.Open(portName, speed)
	if err != nil {
		return p.reject(fmt.Errorf("failed to open %s: %w", portName, err))
	}

	a := newArena(PoolSize)

	p.mu.Lock()
	p.arena = a
	p.port = port
	p.initialized.Store(true)
	p.mu.Unlock()

	p.logger.Info("pool initialized",
		zap.String("port", portName),
		zap.Int("baud", int(speed)),
		zap.Int("capacity", PoolSize))
	return nil
}

// Deinit closes the port and releases the slots. A close error is returned
// after teardown completes; the pool is uninitialized either way.
func (p *Pool) Deinit() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.initialized.Load() {
		return p.reject(ErrNotInitialized)
	}

	p.mu.Lock()
	port := p.port
	pending := p.arena.active.len()
	p.initialized.Store(false)
	p.arena = nil
	p.port = nil
	err := port.Close()
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("failed to close port", zap.String("port", port.Name()), zap.Error(err))
		return fmt.Errorf("failed to close %s: %w", port.Name(), err)
	}

	p.logger.Info("pool deinitialized",
		zap.String("port", port.Name()),
		zap.Int("discarded", pending))
	return nil
}

// Admit validates cmd and appends a copy to the active queue. The caller
// keeps ownership of cmd.
func (p *Pool) Admit(cmd *charger.Command) error {
	if !p.initialized.Load() {
		return p.reject(ErrNotInitialized)
	}
	if err := charger.Validate(cmd); err != nil {
		return p.reject(err)
	}

	if err := p.admit(cmd); err != nil {
		return p.reject(err)
	}

	p.stats.recordAdmit()
	p.logger.Debug("command admitted", zap.Stringer("command", cmd))
	return nil
}

func (p *Pool) admit(cmd *charger.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Deinit may have run since the fast check
	if !p.initialized.Load() {
		return ErrNotInitialized
	}
	if !p.arena.admit(cmd) {
		return ErrPoolFull
	}
	return nil
}

// RetrieveInto copies the oldest admitted command into dst and frees its
// slot. ok is false when the active queue is empty; that is not an error.
func (p *Pool) RetrieveInto(dst *charger.Command) (ok bool, err error) {
	if !p.initialized.Load() {
		return false, p.reject(ErrNotInitialized)
	}
	if dst == nil {
		return false, p.reject(ErrNoDestination)
	}

	ok, err = p.retrieve(dst)
	if err != nil {
		return false, p.reject(err)
	}

	p.stats.recordRetrieve(ok)
	if ok {
		p.logger.Debug("command retrieved", zap.Stringer("command", dst))
	}
	return ok, nil
}

func (p *Pool) retrieve(dst *charger.Command) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized.Load() {
		return false, ErrNotInitialized
	}
	return p.arena.retrieve(dst), nil
}

// Retrieve is RetrieveInto returning the command by value
func (p *Pool) Retrieve() (charger.Command, bool, error) {
	var cmd charger.Command
	ok, err := p.RetrieveInto(&cmd)
	return cmd, ok, err
}

// ActiveCount returns the number of commands awaiting retrieval, or 0 when
// the pool is not initialized.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.arena == nil {
		return 0
	}
	return p.arena.active.len()
}

// UnusedCount returns the number of free slots, or 0 when the pool is not
// initialized.
func (p *Pool) UnusedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.arena == nil {
		return 0
	}
	return p.arena.unused.len()
}

// counts returns both queue lengths from one critical section
func (p *Pool) counts() (active, unused int, ok bool) {
	o, ok := p.occupancy()
	return o.active, o.unused, ok
}

type occupancy struct {
	port           string
	active, unused int
}

// occupancy reads both queue lengths and the port name in one critical section
func (p *Pool) occupancy() (occupancy, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.arena == nil || p.port == nil {
		return occupancy{}, false
	}
	return occupancy{
		port:   p.port.Name(),
		active: p.arena.active.len(),
		unused: p.arena.unused.len(),
	}, true
}

// Capacity returns PoolSize
func (p *Pool) Capacity() int {
	return PoolSize
}

// Initialized reports whether Init has succeeded without a later Deinit
func (p *Pool) Initialized() bool {
	return p.initialized.Load()
}

// Port returns the open transport port, or nil when not initialized
func (p *Pool) Port() transport.Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}

// Stats returns a copy of the pool's counters
func (p *Pool) Stats() Snapshot {
	return p.stats.Snapshot()
}

// Statistics returns the live statistics tracker
func (p *Pool) Statistics() *Statistics {
	return p.stats
}

// reject records err in the statistics and logs it. Pool-full is logged at
// debug.
func (p *Pool) reject(err error) error {
	p.stats.recordReject(err)

	var ve *charger.ValidationError
	switch {
	case errors.Is(err, ErrPoolFull):
		p.logger.Debug("command rejected", zap.Error(err))
	case errors.As(err, &ve):
		p.logger.Warn("command rejected",
			zap.String("kind", ve.Kind.String()),
			zap.Any("details", ve.Details),
			zap.Error(err))
	default:
		p.logger.Warn("operation rejected", zap.Error(err))
	}
	return err
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"sync/atomic"

	"github.com/Thermoquad/chargeport/pkg/charger"
)

// NullPort discards every command. It stands in for the device when the
// port name is /dev/null.
type NullPort struct {
	name    string
	written atomic.Uint64
	closed  atomic.Bool
}

// NewNullPort creates a discard port with the given name
func NewNullPort(name string) *NullPort {
	return &NullPort{name: name}
}

// WriteCommand counts and drops the command
func (n *NullPort) WriteCommand(cmd charger.Command) error {
	if n.closed.Load() {
		return ErrPortClosed
	}
	n.written.Add(1)
	return nil
}

// Close marks the port closed
func (n *NullPort) Close() error {
	n.closed.Store(true)
	return nil
}

// Name returns the port name
func (n *NullPort) Name() string {
	return n.name
}

// Written returns the number of commands accepted so far
func (n *NullPort) Written() uint64 {
	return n.written.Load()
}

// NullOpener opens a NullPort for any name
var NullOpener = OpenerFunc(func(name string, speed Baud) (Port, error) {
	return NewNullPort(name), nil
})

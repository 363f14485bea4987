// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport carries charger commands from the dispatch pool to the
// device: the Port/Opener contract, serial and websocket implementations,
// a discard port for tests, and the Sender that drains a pool onto a port.
package transport

import (
	"errors"

	"github.com/Thermoquad/chargeport/pkg/charger"
)

// NullPortName selects the discard port instead of a real device
const NullPortName = "/dev/null"

// ErrPortClosed is returned when writing to a port after Close
var ErrPortClosed = errors.New("port closed")

// Port is an open link to the charger
type Port interface {
	// WriteCommand transmits one command
	WriteCommand(cmd charger.Command) error
	Close() error
	// Name returns the device or endpoint the port was opened on
	Name() string
}

// Opener opens a Port on the named device at the given speed
type Opener interface {
	Open(name string, speed Baud) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(name string, speed Baud) (Port, error)

// Open calls f(name, speed)
func (f OpenerFunc) Open(name string, speed Baud) (Port, error) {
	return f(name, speed)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"go.bug.st/serial"
)

// SerialPort writes command records to a serial device
type SerialPort struct {
	name string
	port io.WriteCloser

	mu     sync.Mutex
	buf    [charger.RecordSize]byte
	closed bool
}

// WriteCommand writes the command's binary record
func (s *SerialPort) WriteCommand(cmd charger.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrPortClosed
	}

	cmd.PutRecord(s.buf[:])
	n, err := s.port.Write(s.buf[:])
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.name, err)
	}
	if n != charger.RecordSize {
		return fmt.Errorf("short write to %s: %d of %d bytes", s.name, n, charger.RecordSize)
	}
	return nil
}

// Close closes the underlying device
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// Name returns the device path
func (s *SerialPort) Name() string {
	return s.name
}

// SerialOpener opens serial devices in 8N1 mode. The name /dev/null opens
// a NullPort without touching the OS.
type SerialOpener struct{}

// Open opens the serial device at the given speed
func (SerialOpener) Open(name string, speed Baud) (Port, error) {
	if name == NullPortName {
		return NewNullPort(name), nil
	}

	mode := &serial.Mode{
		BaudRate: int(speed),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	return &SerialPort{name: name, port: port}, nil
}

// newSerialPort wraps an already open device
func newSerialPort(name string, w io.WriteCloser) *SerialPort {
	return &SerialPort{name: name, port: w}
}

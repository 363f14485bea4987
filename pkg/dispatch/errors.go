// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import "errors"

const (
	// PoolSize is the fixed number of command slots in a pool
	PoolSize = 32

	// MaxPortName is the longest accepted port name, in characters
	MaxPortName = 30
)

// Configuration errors
var (
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrNoPortName         = errors.New("no port name supplied")
	ErrPortNameTooLong    = errors.New("port name too long")
	ErrInvalidBaud        = errors.New("invalid baud rate")
)

// ErrPoolFull is returned by Admit when every slot holds a pending command.
// Callers should back off or drop the command.
var ErrPoolFull = errors.New("pool full")

// ErrNoDestination is returned by RetrieveInto when dst is nil
var ErrNoDestination = errors.New("no destination supplied")

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package charger provides the command model of the multi-channel battery
// charger: the three device commands, their validity rules, and the byte
// images written to the device by the transports.
package charger

// Command types (Controller → Charger)
const (
	CmdSetParams = 0x63
	CmdOnOff     = 0x64
	CmdEmergency = 0x65
)

// SET_PARAMS limits
const (
	MaxLevel   = 100 // percent
	MinTime    = 1   // minutes
	MaxTime    = 240 // minutes
	MaxChannel = 7
)

// ON_OFF switch values
const (
	SwitchOff = 0
	SwitchOn  = 1
)

// RecordSize is the size of a command's binary image: type byte + 3 payload bytes.
const RecordSize = 4

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package charger

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCommand is returned when no command was supplied at all.
	ErrNoCommand = errors.New("no command supplied")

	// ErrInvalidCommand matches every *ValidationError via errors.Is.
	ErrInvalidCommand = errors.New("invalid command")
)

// ValidationKind identifies which rule a command violated
type ValidationKind int

const (
	InvalidLevel ValidationKind = iota
	InvalidTime
	LevelOrder
	InvalidSwitch
	InvalidChannel
	UnknownType
)

// String returns the kind name
func (k ValidationKind) String() string {
	switch k {
	case InvalidLevel:
		return "invalid_level"
	case InvalidTime:
		return "invalid_time"
	case LevelOrder:
		return "level_order"
	case InvalidSwitch:
		return "invalid_switch"
	case InvalidChannel:
		return "invalid_channel"
	case UnknownType:
		return "unknown_type"
	default:
		return "unknown"
	}
}

// ValidationError represents a command validation failure
type ValidationError struct {
	Kind    ValidationKind
	Type    uint8
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Is makes every ValidationError match ErrInvalidCommand
func (v *ValidationError) Is(target error) bool {
	return target == ErrInvalidCommand
}

// IsValid reports whether cmd passes Validate.
func IsValid(cmd *Command) bool {
	return Validate(cmd) == nil
}

// Validate checks a command against the charger's parameter rules.
// Returns nil if the command is valid, ErrNoCommand for a nil command,
// or a *ValidationError describing the first violated rule.
func Validate(cmd *Command) error {
	if cmd == nil {
		return ErrNoCommand
	}

	switch cmd.Type {
	case CmdSetParams:
		return validateSetParams(cmd.SetParams)
	case CmdOnOff:
		return validateOnOff(cmd.OnOff)
	case CmdEmergency:
		return nil
	default:
		return &ValidationError{
			Kind:    UnknownType,
			Type:    cmd.Type,
			Message: fmt.Sprintf("Unknown command type: 0x%02X", cmd.Type),
			Details: map[string]interface{}{"type": cmd.Type},
		}
	}
}

// validateSetParams validates a SET_PARAMS payload
func validateSetParams(p SetParams) error {
	var kind ValidationKind
	switch {
	case p.MinLevel > MaxLevel || p.MaxLevel > MaxLevel:
		kind = InvalidLevel
	case p.MaxTime < MinTime || p.MaxTime > MaxTime:
		kind = InvalidTime
	case p.MinLevel > p.MaxLevel:
		kind = LevelOrder
	default:
		return nil
	}

	return &ValidationError{
		Kind: kind,
		Type: CmdSetParams,
		Message: fmt.Sprintf("Invalid SET_PARAMS command: min_level=%d, max_level=%d, max_time=%d",
			p.MinLevel, p.MaxLevel, p.MaxTime),
		Details: map[string]interface{}{
			"min_level": p.MinLevel,
			"max_level": p.MaxLevel,
			"max_time":  p.MaxTime,
		},
	}
}

// validateOnOff validates an ON_OFF payload
func validateOnOff(p OnOff) error {
	var kind ValidationKind
	switch {
	case p.OnOff != SwitchOff && p.OnOff != SwitchOn:
		kind = InvalidSwitch
	case p.Channel > MaxChannel:
		kind = InvalidChannel
	default:
		return nil
	}

	return &ValidationError{
		Kind:    kind,
		Type:    CmdOnOff,
		Message: fmt.Sprintf("Invalid ON_OFF command: on_off=%d, channel=%d", p.OnOff, p.Channel),
		Details: map[string]interface{}{
			"on_off":  p.OnOff,
			"channel": p.Channel,
		},
	}
}

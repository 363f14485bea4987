// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package charger

// SetParams holds the charging parameters of a SET_PARAMS command.
type SetParams struct {
	MinLevel uint8 // Minimum battery level percentage (0-100)
	MaxLevel uint8 // Maximum battery level percentage (0-100)
	MaxTime  uint8 // Maximum charging time in minutes (1-240)
}

// OnOff holds the payload of an ON_OFF command.
type OnOff struct {
	OnOff   uint8 // 0=off, 1=on
	Channel uint8 // 0-7
}

// Command is a charger command. Type selects which payload field is
// meaningful; the payload of the other variant is ignored.
type Command struct {
	Type      uint8
	SetParams SetParams
	OnOff     OnOff
}

// Command builder functions. They do not validate; use Validate before
// handing a command to a dispatcher.

// NewSetParams creates a SET_PARAMS command (0x63).
func NewSetParams(minLevel, maxLevel, maxTime uint8) Command {
	return Command{
		Type: CmdSetParams,
		SetParams: SetParams{
			MinLevel: minLevel,
			MaxLevel: maxLevel,
			MaxTime:  maxTime,
		},
	}
}

// NewOnOff creates an ON_OFF command (0x64) for the given channel.
func NewOnOff(onOff, channel uint8) Command {
	return Command{
		Type:  CmdOnOff,
		OnOff: OnOff{OnOff: onOff, Channel: channel},
	}
}

// NewEmergency creates an EMERGENCY command (0x65). It has no payload.
func NewEmergency() Command {
	return Command{Type: CmdEmergency}
}

// Payload returns the three payload bytes of the selected variant.
// Unused positions are zero.
func (c Command) Payload() [3]uint8 {
	switch c.Type {
	case CmdSetParams:
		return [3]uint8{c.SetParams.MinLevel, c.SetParams.MaxLevel, c.SetParams.MaxTime}
	case CmdOnOff:
		return [3]uint8{c.OnOff.OnOff, c.OnOff.Channel, 0}
	}
	return [3]uint8{}
}

// Equal reports whether two commands carry the same type and the same
// meaningful payload. Payload fields of the unselected variant are ignored.
func (c Command) Equal(o Command) bool {
	return c.Type == o.Type && c.Payload() == o.Payload()
}

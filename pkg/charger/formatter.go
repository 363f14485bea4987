// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package charger

import "fmt"

// FormatType returns the command type name
func FormatType(t uint8) string {
	switch t {
	case CmdSetParams:
		return "SET_PARAMS"
	case CmdOnOff:
		return "ON_OFF"
	case CmdEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand formats a command as a single human-readable line
func FormatCommand(c Command) string {
	name := FormatType(c.Type)

	switch c.Type {
	case CmdSetParams:
		return fmt.Sprintf("%s (0x%02X) min_level=%d%% max_level=%d%% max_time=%d min",
			name, c.Type, c.SetParams.MinLevel, c.SetParams.MaxLevel, c.SetParams.MaxTime)
	case CmdOnOff:
		state := "OFF"
		switch c.OnOff.OnOff {
		case SwitchOn:
			state = "ON"
		case SwitchOff:
		default:
			state = fmt.Sprintf("0x%02X", c.OnOff.OnOff)
		}
		return fmt.Sprintf("%s (0x%02X) channel=%d %s", name, c.Type, c.OnOff.Channel, state)
	default:
		return fmt.Sprintf("%s (0x%02X)", name, c.Type)
	}
}

// String implements fmt.Stringer
func (c Command) String() string {
	return FormatCommand(c)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package charger

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCommand builds a command from its textual form:
//
//	emergency
//	onoff <0|1|on|off> <channel>
//	setparams <min_level> <max_level> <max_time>
//
// Each value must fit in a byte. Range rules are not applied here; the
// result still has to pass Validate.
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	name := strings.ToLower(args[0])
	values := args[1:]

	switch name {
	case "emergency", "estop":
		if len(values) != 0 {
			return Command{}, fmt.Errorf("emergency takes no arguments, got %d", len(values))
		}
		return NewEmergency(), nil

	case "onoff", "on_off":
		if len(values) != 2 {
			return Command{}, fmt.Errorf("onoff expects <on|off> <channel>, got %d arguments", len(values))
		}
		state, err := parseSwitch(values[0])
		if err != nil {
			return Command{}, err
		}
		channel, err := parseByte("channel", values[1])
		if err != nil {
			return Command{}, err
		}
		return NewOnOff(state, channel), nil

	case "setparams", "set_params":
		if len(values) != 3 {
			return Command{}, fmt.Errorf("setparams expects <min_level> <max_level> <max_time>, got %d arguments", len(values))
		}
		minLevel, err := parseByte("min_level", values[0])
		if err != nil {
			return Command{}, err
		}
		maxLevel, err := parseByte("max_level", values[1])
		if err != nil {
			return Command{}, err
		}
		maxTime, err := parseByte("max_time", values[2])
		if err != nil {
			return Command{}, err
		}
		return NewSetParams(minLevel, maxLevel, maxTime), nil
	}

	return Command{}, fmt.Errorf("unknown command %q (use emergency, onoff or setparams)", args[0])
}

// ParseCommandLine splits a line on whitespace and parses it
func ParseCommandLine(line string) (Command, error) {
	return ParseCommand(strings.Fields(line))
}

func parseSwitch(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "on":
		return SwitchOn, nil
	case "off":
		return SwitchOff, nil
	}
	return parseByte("on_off", s)
}

func parseByte(field, s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be 0-255", field, s)
	}
	return uint8(v), nil
}

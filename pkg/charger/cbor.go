// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package charger

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Payload map keys
const (
	keyMinLevel = 0
	keyMaxLevel = 1
	keyMaxTime  = 2

	keyOnOff   = 0
	keyChannel = 1
)

// EncodeCBOR encodes a command as a CBOR message: [type, payload_map].
// EMERGENCY and unknown types carry a nil payload.
func EncodeCBOR(c Command) ([]byte, error) {
	var payload map[int]interface{}
	switch c.Type {
	case CmdSetParams:
		payload = map[int]interface{}{
			keyMinLevel: uint64(c.SetParams.MinLevel),
			keyMaxLevel: uint64(c.SetParams.MaxLevel),
			keyMaxTime:  uint64(c.SetParams.MaxTime),
		}
	case CmdOnOff:
		payload = map[int]interface{}{
			keyOnOff:   uint64(c.OnOff.OnOff),
			keyChannel: uint64(c.OnOff.Channel),
		}
	}

	var msg interface{}
	if len(payload) == 0 {
		msg = []interface{}{uint64(c.Type), nil}
	} else {
		msg = []interface{}{uint64(c.Type), payload}
	}

	data, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR command: %w", err)
	}
	return data, nil
}

// DecodeCBOR parses a CBOR message produced by EncodeCBOR.
func DecodeCBOR(data []byte) (Command, error) {
	if len(data) == 0 {
		return Command{}, fmt.Errorf("empty CBOR payload")
	}

	var msg []interface{}
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return Command{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	if len(msg) != 2 {
		return Command{}, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	msgType, ok := msg[0].(uint64)
	if !ok {
		return Command{}, fmt.Errorf("expected uint for command type, got %T", msg[0])
	}
	if msgType > 255 {
		return Command{}, fmt.Errorf("command type out of range: %d", msgType)
	}

	cmd := Command{Type: uint8(msgType)}
	if msg[1] == nil {
		return cmd, nil
	}

	raw, ok := msg[1].(map[interface{}]interface{})
	if !ok {
		return Command{}, fmt.Errorf("expected map or nil for payload, got %T", msg[1])
	}

	payload := make(map[int]uint8, len(raw))
	for key, val := range raw {
		k, ok := key.(uint64)
		if !ok {
			return Command{}, fmt.Errorf("expected integer map key, got %T", key)
		}
		v, ok := val.(uint64)
		if !ok || v > 255 {
			return Command{}, fmt.Errorf("invalid value for key %d: %v", k, val)
		}
		payload[int(k)] = uint8(v)
	}

	switch cmd.Type {
	case CmdSetParams:
		cmd.SetParams = SetParams{
			MinLevel: payload[keyMinLevel],
			MaxLevel: payload[keyMaxLevel],
			MaxTime:  payload[keyMaxTime],
		}
	case CmdOnOff:
		cmd.OnOff = OnOff{
			OnOff:   payload[keyOnOff],
			Channel: payload[keyChannel],
		}
	}

	return cmd, nil
}

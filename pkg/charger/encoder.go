// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package charger

import "fmt"

// MarshalBinary encodes the command as its fixed-size record:
// [type, payload0, payload1, payload2]. Unused payload bytes are zero.
// The record carries no framing; it is written to the device as-is.
func (c Command) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	c.PutRecord(buf)
	return buf, nil
}

// PutRecord writes the command record into buf, which must hold at least
// RecordSize bytes.
func (c Command) PutRecord(buf []byte) {
	payload := c.Payload()
	buf[0] = c.Type
	copy(buf[1:RecordSize], payload[:])
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
// The command type is not validated; use Validate for that.
func (c *Command) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("invalid record length: %d (expected %d)", len(data), RecordSize)
	}

	*c = Command{Type: data[0]}
	switch c.Type {
	case CmdSetParams:
		c.SetParams = SetParams{MinLevel: data[1], MaxLevel: data[2], MaxTime: data[3]}
	case CmdOnOff:
		c.OnOff = OnOff{OnOff: data[1], Channel: data[2]}
	}

	return nil
}

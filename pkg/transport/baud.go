// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import "fmt"

// Baud is a serial line speed. Only the enumerated constants are accepted.
type Baud int

// Supported line speeds
const (
	Baud1200   Baud = 1200
	Baud2400   Baud = 2400
	Baud4800   Baud = 4800
	Baud9600   Baud = 9600
	Baud19200  Baud = 19200
	Baud38400  Baud = 38400
	Baud57600  Baud = 57600
	Baud115200 Baud = 115200
	Baud230400 Baud = 230400
)

// DefaultBaud is the charger's factory line speed
const DefaultBaud = Baud115200

var supportedBauds = []Baud{
	Baud1200, Baud2400, Baud4800, Baud9600, Baud19200,
	Baud38400, Baud57600, Baud115200, Baud230400,
}

// Valid reports whether b is one of the enumerated speeds
func (b Baud) Valid() bool {
	for _, s := range supportedBauds {
		if b == s {
			return true
		}
	}
	return false
}

// ParseBaud converts an integer rate into a Baud
func ParseBaud(rate int) (Baud, error) {
	b := Baud(rate)
	if !b.Valid() {
		return 0, fmt.Errorf("unsupported baud rate %d (supported: %v)", rate, supportedBauds)
	}
	return b, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Chargeport - Multi-channel battery charger driver
//
// A CLI tool for validating, queueing and sending commands to a
// multi-channel battery charger over a serial or WebSocket link.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/chargeport/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

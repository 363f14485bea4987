// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/chargeport/pkg/charger"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the charger",
	Long: `Control the charger via an interactive terminal UI.

Features:
  - Command entry (emergency, onoff <on|off> <ch>, setparams <min> <max> <min>)
  - Channel list: select a channel and press space to toggle it
  - Pool occupancy bar (active commands out of 32 slots)
  - Live dispatch statistics
  - Event log of transmitted and rejected commands

Keys: Tab switches between the command line and the channel list,
ctrl+e queues an EMERGENCY stop, ctrl+c or esc quits.

Log records go to --log-file when set; otherwise they are discarded while the
TUI owns the terminal.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// Messages delivered from the sender goroutine
type (
	commandSentMsg struct {
		cmd charger.Command
	}

	commandFailedMsg struct {
		cmd charger.Command
		err error
	}

	senderStoppedMsg struct {
		err error
	}
)

func runControl(cmd *cobra.Command, args []string) error {
	// Logging to stderr would corrupt the alt screen
	if cfg.Logging.File == "" {
		logger = zap.NewNop()
	}

	pool, err := openPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Deinit()

	stopMetrics, err := startMetrics(cfg.Metrics.Addr, pool)
	if err != nil {
		return err
	}
	defer stopMetrics()

	m := initialControlModel(pool, connectionInfo(cfg))

	// Create TUI program with alt screen
	p := tea.NewProgram(m, tea.WithAltScreen())

	sender := newSender(cfg, pool)
	sender.OnSent = func(c charger.Command) {
		p.Send(commandSentMsg{cmd: c})
	}
	sender.OnError = func(c charger.Command, err error) {
		p.Send(commandFailedMsg{cmd: c, err: err})
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	done := make(chan error, 1)
	go func() {
		err := sender.Run(ctx)
		if err != nil {
			p.Send(senderStoppedMsg{err: err})
		}
		done <- err
	}()

	_, runErr := p.Run()

	// Flush anything still queued before closing the port
	cancel()
	senderErr := <-done

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return senderErr
}

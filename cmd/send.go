// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"github.com/Thermoquad/chargeport/pkg/dispatch"
	"github.com/spf13/cobra"
)

var sendThen []string

var sendCmd = &cobra.Command{
	Use:   "send <command...> [; <command...>]",
	Short: "Send one or more commands to the charger",
	Long: `Validate, queue and transmit charger commands, then exit.

Commands:
  emergency                            Stop all channels
  onoff <on|off|1|0> <channel>         Switch a channel (0-7)
  setparams <min> <max> <minutes>      Set charge window (0-100%, 1-240 min)

Several commands can be given, separated by a quoted ";" or with --then:
  chargeport send setparams 20 80 60 ";" onoff on 3
  chargeport send setparams 20 80 60 --then "onoff on 3"

Commands are transmitted in the order given. The exit status is non-zero if
any command was rejected or failed to transmit.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringArrayVar(&sendThen, "then", nil, "Additional command to send after the first (repeatable)")
}

// splitCommands turns the positional arguments and --then values into
// individual parsed commands
func splitCommands(args, then []string) ([]charger.Command, error) {
	var groups [][]string
	var current []string
	for _, arg := range args {
		if arg == ";" {
			groups = append(groups, current)
			current = nil
			continue
		}
		current = append(current, arg)
	}
	groups = append(groups, current)
	for _, line := range then {
		groups = append(groups, strings.Fields(line))
	}

	cmds := make([]charger.Command, 0, len(groups))
	for i, group := range groups {
		cmd, err := charger.ParseCommand(group)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	cmds, err := splitCommands(args, sendThen)
	if err != nil {
		return err
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

	sender := newSender(cfg, pool)
	var failed int
	sender.OnSent = func(c charger.Command) {
		fmt.Printf("SENT: %s\n", charger.FormatCommand(c))
	}
	sender.OnError = func(c charger.Command, err error) {
		failed++
		fmt.Printf("FAILED: %s: %v\n", charger.FormatCommand(c), err)
	}

	fmt.Printf("Chargeport - Send\n")
	fmt.Printf("Connection: %s\n\n", connectionInfo(cfg))

	rejected := 0
	for i := range cmds {
		err := pool.Admit(&cmds[i])
		if errors.Is(err, dispatch.ErrPoolFull) {
			// make room and retry once
			if _, derr := sender.Drain(); derr != nil {
				return derr
			}
			err = pool.Admit(&cmds[i])
		}
		if err != nil {
			rejected++
			fmt.Printf("REJECTED: %s: %v\n", charger.FormatCommand(cmds[i]), err)
		}
	}

	if _, err := sender.Drain(); err != nil {
		return err
	}

	if rejected > 0 || failed > 0 {
		return fmt.Errorf("%d rejected, %d failed of %d command(s)", rejected, failed, len(cmds))
	}
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/chargeport/pkg/dispatch"
	"github.com/spf13/cobra"
)

var checkTimeout int

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the charger link by opening and closing it",
	Long: `Open the configured link through the dispatch pool, verify the pool is
empty with all 32 slots free, then close it again. Nothing is sent.

Exit codes:
  0 - Link opened and closed cleanly
  1 - Timeout reached while opening the link
  2 - Connection error

Useful for testing serial permissions or WebSocket bridge credentials.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().IntVar(&checkTimeout, "timeout", 10, "Timeout in seconds to open the link")
}

type checkResult struct {
	pool *dispatch.Pool
	err  error
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Printf("Chargeport - Link Check\n")
	fmt.Printf("Connection: %s\n", connectionInfo(cfg))
	fmt.Printf("Timeout: %d seconds\n\n", checkTimeout)

	resultChan := make(chan checkResult, 1)
	start := time.Now()

	go func() {
		pool, err := openPool(cfg)
		resultChan <- checkResult{pool: pool, err: err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", res.err)
			os.Exit(2)
		}

		pool := res.pool
		fmt.Printf("SUCCESS: Link opened in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Port: %s\n", pool.Port().Name())
		fmt.Printf("  Slots: %d active, %d unused, %d capacity\n",
			pool.ActiveCount(), pool.UnusedCount(), pool.Capacity())

		if err := pool.Deinit(); err != nil {
			fmt.Fprintf(os.Stderr, "Close error: %v\n", err)
			os.Exit(2)
		}
		os.Exit(0)

	case <-time.After(time.Duration(checkTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: Link not opened within %d seconds\n", checkTimeout)
		os.Exit(1)
	}

	return nil
}

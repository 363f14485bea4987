// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"github.com/Thermoquad/chargeport/pkg/config"
	"github.com/Thermoquad/chargeport/pkg/dispatch"
	"github.com/Thermoquad/chargeport/pkg/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	stressProducers    int
	stressPerProducer  int
	stressConsumers    int
	stressInvalidEvery int
	stressSeed         int64
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Load the dispatch pool with concurrent producers and consumers",
	Long: `Run concurrent producers against the dispatch pool while senders drain it
onto the configured link.

Each producer admits --per-producer random valid commands, retrying when the
pool is full. With --invalid-every N, every Nth command is deliberately
malformed and must be rejected. Use --port /dev/null (the default) to
exercise the pool without a device.

Several consumers only run against /dev/null: concurrent senders on one link
would put commands on the wire out of admission order, so a real serial port
or WebSocket bridge always gets a single sender.

At the end the statistics are printed and the capacity invariant
(active + unused == 32) is checked.`,
	RunE: runStress,
}

func init() {
	rootCmd.AddCommand(stressCmd)
	stressCmd.Flags().IntVar(&stressProducers, "producers", 8, "Number of producer goroutines")
	stressCmd.Flags().IntVar(&stressPerProducer, "per-producer", 1000, "Commands admitted by each producer")
	stressCmd.Flags().IntVar(&stressConsumers, "consumers", 2, "Number of sender goroutines")
	stressCmd.Flags().IntVar(&stressInvalidEvery, "invalid-every", 0, "Inject an invalid command every N commands (0 disables)")
	stressCmd.Flags().Int64Var(&stressSeed, "seed", 0, "Random seed (0 uses current time)")
}

// randomCommand returns a random command that passes validation
func randomCommand(rng *rand.Rand) charger.Command {
	switch rng.Intn(3) {
	case 0:
		return charger.NewEmergency()
	case 1:
		return charger.NewOnOff(uint8(rng.Intn(2)), uint8(rng.Intn(charger.MaxChannel+1)))
	default:
		maxLevel := uint8(rng.Intn(charger.MaxLevel + 1))
		minLevel := uint8(rng.Intn(int(maxLevel) + 1))
		maxTime := uint8(charger.MinTime + rng.Intn(charger.MaxTime-charger.MinTime+1))
		return charger.NewSetParams(minLevel, maxLevel, maxTime)
	}
}

// invalidCommand returns a command that always fails validation
func invalidCommand(rng *rand.Rand) charger.Command {
	switch rng.Intn(3) {
	case 0:
		return charger.NewOnOff(charger.SwitchOn, charger.MaxChannel+1)
	case 1:
		return charger.NewSetParams(80, 20, 0)
	default:
		return charger.Command{Type: 0xFF}
	}
}

// produce admits n commands, retrying on a full pool. It returns the number
// admitted and the number of injected invalid commands.
func produce(ctx context.Context, pool *dispatch.Pool, rng *rand.Rand, n, invalidEvery int) (admitted, invalid int, err error) {
	for i := 1; i <= n; i++ {
		cmd := randomCommand(rng)
		if invalidEvery > 0 && i%invalidEvery == 0 {
			cmd = invalidCommand(rng)
		}

		for {
			if err := ctx.Err(); err != nil {
				return admitted, invalid, err
			}
			err := pool.Admit(&cmd)
			if errors.Is(err, dispatch.ErrPoolFull) {
				runtime.Gosched()
				continue
			}
			if errors.Is(err, charger.ErrInvalidCommand) {
				invalid++
				break
			}
			if err != nil {
				return admitted, invalid, err
			}
			admitted++
			break
		}
	}
	return admitted, invalid, nil
}

// senderCount limits concurrent senders to one unless the link is the
// null test port
func senderCount(c *config.Config, requested int) int {
	if c.Transport.Kind == config.TransportSerial && c.Transport.Port == transport.NullPortName {
		return requested
	}
	return 1
}

func runStress(cmd *cobra.Command, args []string) error {
	if stressProducers < 1 || stressConsumers < 1 || stressPerProducer < 1 {
		return fmt.Errorf("--producers, --consumers and --per-producer must be positive")
	}
	seed := stressSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
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

	consumerCount := senderCount(cfg, stressConsumers)

	fmt.Printf("Chargeport - Stress Test\n")
	fmt.Printf("Connection: %s\n", connectionInfo(cfg))
	if consumerCount != stressConsumers {
		fmt.Printf("Using 1 consumer to keep commands in order on a real link\n")
	}
	fmt.Printf("Producers: %d x %d commands, Consumers: %d, Seed: %d\n\n",
		stressProducers, stressPerProducer, consumerCount, seed)

	start := time.Now()
	senderCtx, stopSenders := context.WithCancel(cmd.Context())
	defer stopSenders()

	senders := make([]*transport.Sender, consumerCount)
	consumers, consumerCtx := errgroup.WithContext(senderCtx)
	for i := range senders {
		s := newSender(cfg, pool)
		senders[i] = s
		consumers.Go(func() error {
			return s.Run(consumerCtx)
		})
	}

	producers, producerCtx := errgroup.WithContext(cmd.Context())
	admitted := make([]int, stressProducers)
	invalid := make([]int, stressProducers)
	for i := 0; i < stressProducers; i++ {
		i := i
		rng := rand.New(rand.NewSource(seed + int64(i)))
		producers.Go(func() error {
			var err error
			admitted[i], invalid[i], err = produce(producerCtx, pool, rng, stressPerProducer, stressInvalidEvery)
			return err
		})
	}

	produceErr := producers.Wait()
	stopSenders()
	if err := consumers.Wait(); err != nil {
		return err
	}
	if produceErr != nil {
		return produceErr
	}
	elapsed := time.Since(start)

	var totalAdmitted, totalInvalid int
	for i := range admitted {
		totalAdmitted += admitted[i]
		totalInvalid += invalid[i]
	}
	var sent, failed uint64
	for _, s := range senders {
		sent += s.Sent()
		failed += s.Failed()
	}

	fmt.Print(pool.Stats().String())
	fmt.Printf("\nAdmitted: %d  Invalid: %d  Sent: %d  Failed: %d  (%.2fs, %.0f cmds/sec)\n",
		totalAdmitted, totalInvalid, sent, failed, elapsed.Seconds(), float64(totalAdmitted)/elapsed.Seconds())

	active, unused := pool.ActiveCount(), pool.UnusedCount()
	fmt.Printf("Pool: active=%d unused=%d capacity=%d\n", active, unused, pool.Capacity())

	if active+unused != pool.Capacity() {
		return fmt.Errorf("capacity invariant violated: %d + %d != %d", active, unused, pool.Capacity())
	}
	if uint64(totalAdmitted) != sent+failed {
		return fmt.Errorf("lost commands: admitted %d, transmitted %d", totalAdmitted, sent+failed)
	}
	fmt.Println("OK")
	return nil
}

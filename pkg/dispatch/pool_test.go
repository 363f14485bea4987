// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Thermoquad/chargeport/pkg/charger"
	"github.com/Thermoquad/chargeport/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// ============================================================
// Helpers
// ============================================================

// fakePort tracks closes and can fail on Close
type fakePort struct {
	name     string
	closed   atomic.Int32
	closeErr error
}

func (f *fakePort) WriteCommand(charger.Command) error { return nil }
func (f *fakePort) Name() string                       { return f.name }
func (f *fakePort) Close() error {
	f.closed.Add(1)
	return f.closeErr
}

// fakeOpener hands out fakePorts and records every open
type fakeOpener struct {
	opened   []*fakePort
	openErr  error
	closeErr error
}

func (o *fakeOpener) Open(name string, _ transport.Baud) (transport.Port, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	p := &fakePort{name: name, closeErr: o.closeErr}
	o.opened = append(o.opened, p)
	return p, nil
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p := New(transport.NullOpener)
	require.NoError(t, p.Init(transport.NullPortName, transport.DefaultBaud))
	t.Cleanup(func() {
		if p.Initialized() {
			_ = p.Deinit()
		}
	})
	return p
}

func assertCounts(t *testing.T, p *Pool, active, unused int) {
	t.Helper()
	assert.Equal(t, active, p.ActiveCount(), "active count")
	assert.Equal(t, unused, p.UnusedCount(), "unused count")
}

// ============================================================
// Capacity Tests
// ============================================================

func TestPool_InitialCounts(t *testing.T) {
	p := newTestPool(t)
	assertCounts(t, p, 0, PoolSize)
	assert.Equal(t, PoolSize, p.Capacity())
	assert.Equal(t, 32, PoolSize)
}

func TestPool_CountsTrackAdmits(t *testing.T) {
	p := newTestPool(t)
	cmd := charger.NewEmergency()

	for n := 1; n <= PoolSize; n++ {
		require.NoError(t, p.Admit(&cmd), "admit %d", n)
		assertCounts(t, p, n, PoolSize-n)
	}

	err := p.Admit(&cmd)
	assert.ErrorIs(t, err, ErrPoolFull)
	assertCounts(t, p, PoolSize, 0)

	s := p.Stats()
	assert.Equal(t, uint64(PoolSize), s.Admitted)
	assert.Equal(t, uint64(1), s.RejectedFull)
}

func TestPool_FullPoolRecoversAfterRetrieve(t *testing.T) {
	p := newTestPool(t)
	cmd := charger.NewOnOff(1, 0)
	for i := 0; i < PoolSize; i++ {
		require.NoError(t, p.Admit(&cmd))
	}
	require.ErrorIs(t, p.Admit(&cmd), ErrPoolFull)

	_, ok, err := p.Retrieve()
	require.NoError(t, err)
	require.True(t, ok)

	assert.NoError(t, p.Admit(&cmd))
	assertCounts(t, p, PoolSize, 0)
}

// ============================================================
// Ordering Tests
// ============================================================

func TestPool_FIFO(t *testing.T) {
	p := newTestPool(t)

	want := []charger.Command{
		charger.NewEmergency(),
		charger.NewOnOff(1, 1),
		charger.NewSetParams(20, 80, 60),
	}
	for i := range want {
		require.NoError(t, p.Admit(&want[i]))
	}

	for i, w := range want {
		got, ok, err := p.Retrieve()
		require.NoError(t, err)
		require.True(t, ok, "retrieve %d", i)
		assert.Equal(t, w, got, "retrieve %d", i)
	}

	_, ok, err := p.Retrieve()
	require.NoError(t, err)
	assert.False(t, ok, "fourth retrieve should be empty")
	assertCounts(t, p, 0, PoolSize)
}

func TestPool_RoundTrip(t *testing.T) {
	p := newTestPool(t)

	var cmds []charger.Command
	cmds = append(cmds, charger.NewEmergency())
	for ch := uint8(0); ch <= charger.MaxChannel; ch++ {
		cmds = append(cmds, charger.NewOnOff(charger.SwitchOn, ch), charger.NewOnOff(charger.SwitchOff, ch))
	}
	cmds = append(cmds,
		charger.NewSetParams(0, 0, 1),
		charger.NewSetParams(100, 100, 240),
		charger.NewSetParams(15, 85, 120),
	)

	for _, cmd := range cmds {
		in := cmd
		require.NoError(t, p.Admit(&in))

		var out charger.Command
		ok, err := p.RetrieveInto(&out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, cmd, out)
	}
}

func TestPool_AdmitCopiesCommand(t *testing.T) {
	p := newTestPool(t)
	cmd := charger.NewSetParams(20, 80, 60)
	require.NoError(t, p.Admit(&cmd))

	cmd.SetParams.MinLevel = 50

	got, ok, err := p.Retrieve()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint8(20), got.SetParams.MinLevel)
}

// ============================================================
// Validation Tests
// ============================================================

func TestPool_AdmitRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		cmd  charger.Command
	}{
		{"min level over 100", charger.NewSetParams(101, 100, 60)},
		{"max level over 100", charger.NewSetParams(0, 101, 60)},
		{"zero time", charger.NewSetParams(0, 100, 0)},
		{"time over 240", charger.NewSetParams(0, 100, 241)},
		{"min above max", charger.NewSetParams(80, 20, 60)},
		{"bad switch", charger.NewOnOff(2, 0)},
		{"bad channel", charger.NewOnOff(1, 8)},
		{"unknown type", charger.Command{Type: 0xFF}},
	}

	p := newTestPool(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Admit(&tt.cmd)
			require.Error(t, err)
			assert.ErrorIs(t, err, charger.ErrInvalidCommand)

			var ve *charger.ValidationError
			assert.ErrorAs(t, err, &ve)
			assertCounts(t, p, 0, PoolSize)
		})
	}

	assert.Equal(t, uint64(len(tests)), p.Stats().RejectedInvalid)
}

func TestPool_AdmitNil(t *testing.T) {
	p := newTestPool(t)
	assert.ErrorIs(t, p.Admit(nil), charger.ErrNoCommand)
	assertCounts(t, p, 0, PoolSize)
}

func TestPool_RetrieveNilDestination(t *testing.T) {
	p := newTestPool(t)
	ok, err := p.RetrieveInto(nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoDestination)
}

// ============================================================
// Lifecycle Tests
// ============================================================

func TestPool_BeforeInit(t *testing.T) {
	p := New(transport.NullOpener)
	cmd := charger.NewEmergency()

	assert.False(t, p.Initialized())
	assert.ErrorIs(t, p.Admit(&cmd), ErrNotInitialized)
	_, _, err := p.Retrieve()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assertCounts(t, p, 0, 0)
	assert.Nil(t, p.Port())
	assert.ErrorIs(t, p.Deinit(), ErrNotInitialized)

	s := p.Stats()
	assert.Equal(t, uint64(3), s.RejectedUninitialized)
	assert.Equal(t, ErrNotInitialized.Error(), s.LastError)
}

func TestPool_StateMachine(t *testing.T) {
	p := New(transport.NullOpener)
	cmd := charger.NewOnOff(1, 3)

	require.NoError(t, p.Init(transport.NullPortName, transport.Baud9600))
	assert.True(t, p.Initialized())
	assert.ErrorIs(t, p.Init(transport.NullPortName, transport.Baud9600), ErrAlreadyInitialized)

	require.NoError(t, p.Admit(&cmd))
	require.NoError(t, p.Deinit())
	assert.False(t, p.Initialized())
	assert.ErrorIs(t, p.Deinit(), ErrNotInitialized)

	// no access after deinit
	assert.ErrorIs(t, p.Admit(&cmd), ErrNotInitialized)
	_, _, err := p.Retrieve()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assertCounts(t, p, 0, 0)

	// reusable; pending commands were discarded
	require.NoError(t, p.Init(transport.NullPortName, transport.Baud9600))
	assertCounts(t, p, 0, PoolSize)
	_, ok, err := p.Retrieve()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, p.Deinit())
}

func TestPool_InitPortName(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantErr error
	}{
		{"empty", "", ErrNoPortName},
		{"31 characters", "/dev/" + strings.Repeat("x", 26), ErrPortNameTooLong},
		{"30 characters", "/dev/" + strings.Repeat("x", 25), nil},
		{"usb", "/dev/ttyUSB0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &fakeOpener{}
			p := New(opener)
			err := p.Init(tt.port, transport.DefaultBaud)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, opener.opened, "opener must not be called")
				assert.False(t, p.Initialized())
				return
			}
			require.NoError(t, err)
			require.Len(t, opener.opened, 1)
			assert.Equal(t, tt.port, p.Port().Name())
			require.NoError(t, p.Deinit())
		})
	}
}

func TestPool_InitInvalidBaud(t *testing.T) {
	p := New(&fakeOpener{})
	assert.ErrorIs(t, p.Init("/dev/ttyUSB0", transport.Baud(14400)), ErrInvalidBaud)
	assert.False(t, p.Initialized())
}

func TestPool_InitOpenFailureLeavesNoState(t *testing.T) {
	openErr := errors.New("permission denied")
	opener := &fakeOpener{openErr: openErr}
	p := New(opener)

	err := p.Init("/dev/ttyUSB0", transport.DefaultBaud)
	require.Error(t, err)
	assert.ErrorIs(t, err, openErr)
	assert.Contains(t, err.Error(), "/dev/ttyUSB0")

	assert.False(t, p.Initialized())
	assert.Nil(t, p.Port())
	assertCounts(t, p, 0, 0)

	// recovers once the port opens
	opener.openErr = nil
	require.NoError(t, p.Init("/dev/ttyUSB0", transport.DefaultBaud))
	require.NoError(t, p.Deinit())
}

func TestPool_InitFailuresCountedAsConfig(t *testing.T) {
	opener := &fakeOpener{openErr: errors.New("no such device")}
	p := New(opener)

	assert.Error(t, p.Init("", transport.DefaultBaud))
	assert.Error(t, p.Init("/dev/"+strings.Repeat("x", 26), transport.DefaultBaud))
	assert.Error(t, p.Init("/dev/ttyUSB0", transport.Baud(14400)))
	assert.Error(t, p.Init("/dev/ttyUSB0", transport.DefaultBaud))

	opener.openErr = nil
	require.NoError(t, p.Init("/dev/ttyUSB0", transport.DefaultBaud))
	assert.ErrorIs(t, p.Init("/dev/ttyUSB0", transport.DefaultBaud), ErrAlreadyInitialized)
	require.NoError(t, p.Deinit())

	s := p.Stats()
	assert.Equal(t, uint64(5), s.RejectedConfig)
	assert.Equal(t, uint64(5), s.Rejected())
	assert.Contains(t, s.LastError, "already initialized")
}

func TestPool_InitWithoutOpener(t *testing.T) {
	p := New(nil)
	assert.Error(t, p.Init(transport.NullPortName, transport.DefaultBaud))
	assert.False(t, p.Initialized())
}

func TestPool_DeinitClosesPort(t *testing.T) {
	opener := &fakeOpener{}
	p := New(opener)
	require.NoError(t, p.Init("/dev/ttyUSB0", transport.DefaultBaud))
	require.NoError(t, p.Deinit())

	require.Len(t, opener.opened, 1)
	assert.Equal(t, int32(1), opener.opened[0].closed.Load())
}

func TestPool_DeinitCloseError(t *testing.T) {
	closeErr := errors.New("device busy")
	p := New(&fakeOpener{closeErr: closeErr})
	require.NoError(t, p.Init("/dev/ttyUSB0", transport.DefaultBaud))

	err := p.Deinit()
	assert.ErrorIs(t, err, closeErr)

	// torn down anyway
	assert.False(t, p.Initialized())
	assert.Nil(t, p.Port())
	require.NoError(t, p.Init("/dev/ttyUSB0", transport.DefaultBaud))
}

func TestPool_IndependentInstances(t *testing.T) {
	a := newTestPool(t)
	b := newTestPool(t)

	cmd := charger.NewEmergency()
	require.NoError(t, a.Admit(&cmd))

	assertCounts(t, a, 1, PoolSize-1)
	assertCounts(t, b, 0, PoolSize)
}

// ============================================================
// Logging Tests
// ============================================================

func TestPool_LogsRejections(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := New(transport.NullOpener, WithLogger(zap.New(core)))
	require.NoError(t, p.Init(transport.NullPortName, transport.DefaultBaud))
	defer p.Deinit()

	bad := charger.NewOnOff(1, 9)
	require.Error(t, p.Admit(&bad))

	assert.Equal(t, 1, logs.FilterMessage("pool initialized").Len())
	rejected := logs.FilterMessage("command rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zap.WarnLevel, rejected[0].Level)
	assert.Equal(t, "invalid_channel", rejected[0].ContextMap()["kind"])
}

// ============================================================
// Concurrency Tests
// ============================================================

func TestPool_ConcurrentAdmitsNeverExceedCapacity(t *testing.T) {
	p := newTestPool(t)

	const producers = 2 * PoolSize
	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
		full     atomic.Int32
	)
	start := make(chan struct{})

	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := charger.NewOnOff(uint8(i%2), uint8(i%8))
			<-start
			switch err := p.Admit(&cmd); {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, ErrPoolFull):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(PoolSize), admitted.Load())
	assert.Equal(t, int32(producers-PoolSize), full.Load())
	assertCounts(t, p, PoolSize, 0)
}

func TestPool_ConcurrentProducersAndConsumers(t *testing.T) {
	p := newTestPool(t)

	const (
		producers   = 8
		perProducer = 500
		consumers   = 4
	)

	var (
		admitted  atomic.Int64
		retrieved atomic.Int64
		producing sync.WaitGroup
		consuming sync.WaitGroup
		done      atomic.Bool
	)

	for i := 0; i < producers; i++ {
		producing.Add(1)
		go func(ch uint8) {
			defer producing.Done()
			cmd := charger.NewOnOff(charger.SwitchOn, ch)
			for n := 0; n < perProducer; {
				err := p.Admit(&cmd)
				if errors.Is(err, ErrPoolFull) {
					continue
				}
				if err != nil {
					t.Errorf("admit: %v", err)
					return
				}
				admitted.Add(1)
				n++
			}
		}(uint8(i % 8))
	}

	for i := 0; i < consumers; i++ {
		consuming.Add(1)
		go func() {
			defer consuming.Done()
			var cmd charger.Command
			for {
				ok, err := p.RetrieveInto(&cmd)
				if err != nil {
					t.Errorf("retrieve: %v", err)
					return
				}
				if ok {
					if !charger.IsValid(&cmd) {
						t.Errorf("retrieved invalid command %v", cmd)
					}
					retrieved.Add(1)
					continue
				}
				if done.Load() {
					return
				}
			}
		}()
	}

	producing.Wait()
	done.Store(true)
	consuming.Wait()

	// consumers may exit between the last admit and the done flag
	for {
		_, ok, err := p.Retrieve()
		require.NoError(t, err)
		if !ok {
			break
		}
		retrieved.Add(1)
	}

	assert.Equal(t, int64(producers*perProducer), admitted.Load())
	assert.Equal(t, admitted.Load(), retrieved.Load())
	assertCounts(t, p, 0, PoolSize)
}

func TestPool_CountsConsistentUnderLoad(t *testing.T) {
	p := newTestPool(t)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		cmd := charger.NewEmergency()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = p.Admit(&cmd)
			_, _, _ = p.Retrieve()
		}
	}()

	for i := 0; i < 1000; i++ {
		active, unused, ok := p.counts()
		require.True(t, ok)
		require.Equal(t, PoolSize, active+unused)
	}
	close(stop)
	wg.Wait()
}

func TestPool_DeinitDuringTraffic(t *testing.T) {
	p := New(transport.NullOpener)
	require.NoError(t, p.Init(transport.NullPortName, transport.DefaultBaud))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd := charger.NewEmergency()
			for n := 0; n < 1000; n++ {
				err := p.Admit(&cmd)
				if err != nil && !errors.Is(err, ErrPoolFull) && !errors.Is(err, ErrNotInitialized) {
					t.Errorf("admit: %v", err)
					return
				}
				if _, _, err := p.Retrieve(); err != nil && !errors.Is(err, ErrNotInitialized) {
					t.Errorf("retrieve: %v", err)
					return
				}
			}
		}()
	}

	require.NoError(t, p.Deinit())
	wg.Wait()
	assertCounts(t, p, 0, 0)
}

// ============================================================
// Consumer Tests
// ============================================================

func TestPool_DrainedBySender(t *testing.T) {
	p := newTestPool(t)
	for _, cmd := range []charger.Command{
		charger.NewSetParams(20, 80, 60),
		charger.NewOnOff(charger.SwitchOn, 2),
		charger.NewEmergency(),
	} {
		require.NoError(t, p.Admit(&cmd))
	}

	s := &transport.Sender{Source: p, Port: p.Port()}
	n, err := s.Drain()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(3), p.Port().(*transport.NullPort).Written())
	assertCounts(t, p, 0, PoolSize)

	require.NoError(t, p.Deinit())
	_, err = s.Drain()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

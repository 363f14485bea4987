// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/chargeport/pkg/charger"
)

// Snapshot is a copy of the pool's counters at one instant
type Snapshot struct {
	StartTime time.Time

	// Counters
	Admitted              uint64
	Retrieved             uint64
	EmptyPolls            uint64
	RejectedInvalid       uint64
	RejectedNoCommand     uint64
	RejectedFull          uint64
	RejectedUninitialized uint64
	RejectedConfig        uint64

	// Last rejection
	LastError     string
	LastErrorTime time.Time

	// Rates (calculated)
	AdmitRate  float64 // commands/sec
	RejectRate float64 // rejections/sec
}

// Rejected returns the total number of rejected operations
func (s Snapshot) Rejected() uint64 {
	return s.RejectedInvalid + s.RejectedNoCommand + s.RejectedFull +
		s.RejectedUninitialized + s.RejectedConfig
}

// Statistics tracks admission and retrieval outcomes. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	s  Snapshot
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{s: Snapshot{StartTime: time.Now()}}
}

func (st *Statistics) recordAdmit() {
	st.mu.Lock()
	st.s.Admitted++
	st.mu.Unlock()
}

func (st *Statistics) recordRetrieve(ok bool) {
	st.mu.Lock()
	if ok {
		st.s.Retrieved++
	} else {
		st.s.EmptyPolls++
	}
	st.mu.Unlock()
}

// recordReject classifies err and remembers it as the last error
func (st *Statistics) recordReject(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch {
	case errors.Is(err, ErrPoolFull):
		st.s.RejectedFull++
	case errors.Is(err, ErrNotInitialized):
		st.s.RejectedUninitialized++
	case errors.Is(err, charger.ErrNoCommand), errors.Is(err, ErrNoDestination):
		st.s.RejectedNoCommand++
	case errors.Is(err, charger.ErrInvalidCommand):
		st.s.RejectedInvalid++
	default:
		// Init failures: already initialized, bad port name or baud, open errors
		st.s.RejectedConfig++
	}
	st.s.LastError = err.Error()
	st.s.LastErrorTime = time.Now()
}

// Snapshot returns a copy of the counters with rates filled in
func (st *Statistics) Snapshot() Snapshot {
	st.mu.Lock()
	s := st.s
	st.mu.Unlock()

	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.AdmitRate = float64(s.Admitted) / elapsed
		s.RejectRate = float64(s.Rejected()) / elapsed
	}
	return s
}

// Reset resets all counters
func (st *Statistics) Reset() {
	st.mu.Lock()
	st.s = Snapshot{StartTime: time.Now()}
	st.mu.Unlock()
}

// String returns a formatted statistics summary
func (s Snapshot) String() string {
	var admittedPercent, rejectedPercent float64
	total := s.Admitted + s.Rejected()
	if total > 0 {
		admittedPercent = float64(s.Admitted) * 100.0 / float64(total)
		rejectedPercent = float64(s.Rejected()) * 100.0 / float64(total)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Admitted:        %8d (%.1f%%)\n", s.Admitted, admittedPercent)
	result += fmt.Sprintf("Retrieved:       %8d\n", s.Retrieved)

	if s.Rejected() > 0 {
		result += fmt.Sprintf("Rejected:        %8d (%.1f%%)\n", s.Rejected(), rejectedPercent)
		if s.RejectedFull > 0 {
			result += fmt.Sprintf("  Pool Full:        %5d\n", s.RejectedFull)
		}
		if s.RejectedInvalid > 0 {
			result += fmt.Sprintf("  Invalid:          %5d\n", s.RejectedInvalid)
		}
		if s.RejectedNoCommand > 0 {
			result += fmt.Sprintf("  Missing:          %5d\n", s.RejectedNoCommand)
		}
		if s.RejectedUninitialized > 0 {
			result += fmt.Sprintf("  Not Initialized:  %5d\n", s.RejectedUninitialized)
		}
		if s.RejectedConfig > 0 {
			result += fmt.Sprintf("  Configuration:    %5d\n", s.RejectedConfig)
		}
	}
	if s.LastError != "" {
		result += fmt.Sprintf("Last Error:      %s (%s)\n", s.LastError, s.LastErrorTime.Format("15:04:05.000"))
	}

	result += fmt.Sprintf("Admit Rate:      %8.1f cmds/sec\n", s.AdmitRate)
	result += fmt.Sprintf("Reject Rate:     %8.1f rejects/sec\n", s.RejectRate)
	result += "================================\n"

	return result
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import (
	"fmt"

	"github.com/Thermoquad/chargeport/pkg/charger"
)

// membership records which queue a slot currently belongs to
type membership uint8

const (
	inUnused membership = iota
	inActive
	moving
)

// slot is one fixed-identity storage cell
type slot struct {
	cmd   charger.Command
	queue membership
}

// indexQueue is a bounded FIFO of slot indices backed by a ring
type indexQueue struct {
	buf  []int
	head int
	size int
}

func newIndexQueue(capacity int) indexQueue {
	return indexQueue{buf: make([]int, capacity)}
}

func (q *indexQueue) len() int {
	return q.size
}

func (q *indexQueue) push(idx int) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.size)%len(q.buf)] = idx
	q.size++
	return true
}

func (q *indexQueue) pop() (int, bool) {
	if q.size == 0 {
		return 0, false
	}
	idx := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return idx, true
}

// arena owns the slots and the two queues every slot moves between.
// Not safe for concurrent use; the Pool serializes access.
type arena struct {
	slots  []slot
	unused indexQueue
	active indexQueue
}

// newArena allocates n slots, all of them in the unused queue
func newArena(n int) *arena {
	a := &arena{
		slots:  make([]slot, n),
		unused: newIndexQueue(n),
		active: newIndexQueue(n),
	}
	for i := range a.slots {
		a.slots[i].queue = inUnused
		a.unused.push(i)
	}
	return a
}

// admit copies cmd into the oldest unused slot and appends it to the
// active queue. Returns false when no slot is free.
func (a *arena) admit(cmd *charger.Command) bool {
	idx, ok := a.unused.pop()
	if !ok {
		return false
	}
	s := &a.slots[idx]
	s.queue = moving
	s.cmd = *cmd
	a.mustPush(&a.active, idx, inActive)
	return true
}

// retrieve copies the oldest active command into dst and returns its slot
// to the unused queue. Returns false when nothing is active.
func (a *arena) retrieve(dst *charger.Command) bool {
	idx, ok := a.active.pop()
	if !ok {
		return false
	}
	s := &a.slots[idx]
	s.queue = moving
	*dst = s.cmd
	a.mustPush(&a.unused, idx, inUnused)
	return true
}

// mustPush moves slot idx into q. Both queues are sized for every slot, so
// a failure means a slot was linked twice.
func (a *arena) mustPush(q *indexQueue, idx int, m membership) {
	if !q.push(idx) {
		panic(fmt.Sprintf("dispatch: slot %d pushed into a full queue", idx))
	}
	a.slots[idx].queue = m
}

/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */


package queue

import (
	libshm "github.com/sabouaram/zeroipc/shm"
	liberr "github.com/sabouaram/zeroipc/errors"
)

// SPSC layout, offsets in bytes. Head and tail live on distinct cache
// lines so the producer and the consumer do not false-share.
const (
	spscHeadOff     = 0
	spscTailOff     = 64
	spscDetachedOff = 128
	spscCapOff      = 192
	spscSlotsOff    = 256
)

func attachSPSC(mem []byte, capacity uint32, init bool) (*SPSC, liberr.Error) {
	cap64 := uint64(roundPow2(capacity))

	if uint64(len(mem)) < spscSlotsOff+cap64*8 {
		return nil, ErrorRegionTooSmall.Error(nil)
	}

	q := &SPSC{mem: mem, mask: cap64 - 1}

	if init {
		libshm.U64(mem, spscHeadOff).Store(0)
		libshm.U64(mem, spscTailOff).Store(0)
		libshm.U64(mem, spscDetachedOff).Store(0)
		libshm.U64(mem, spscCapOff).Store(cap64)
	} else if got := libshm.U64(mem, spscCapOff).Load(); got != cap64 {
		return nil, ErrorCapacityMismatch.ErrorMessage(
			"queue capacity in shared memory disagrees with the attach request")
	}

	return q, nil
}

// Cap returns the queue capacity.
func (q *SPSC) Cap() uint64 {
	return q.mask + 1
}

// Len returns the current number of queued values. The result is a
// snapshot and may be stale by the time it is read.
func (q *SPSC) Len() uint64 {
	t := libshm.U64(q.mem, spscTailOff).Load()
	h := libshm.U64(q.mem, spscHeadOff).Load()

	if t <= h {
		return 0
	}

	return t - h
}

func (q *SPSC) slot(i uint64) uint64 {
	return spscSlotsOff + (i&q.mask)*8
}

// Push appends v. Returns false when the queue is full. Producer only.
func (q *SPSC) Push(v uint64) bool {
	tail := libshm.U64(q.mem, spscTailOff).Load()
	head := libshm.U64(q.mem, spscHeadOff).Load()

	if tail-head > q.mask {
		return false
	}

	libshm.U64(q.mem, q.slot(tail)).Store(v)
	// Release: the slot value is visible before the new tail.
	libshm.U64(q.mem, spscTailOff).Store(tail + 1)

	return true
}

// PushOverwrite appends v, displacing the oldest value when the queue is
// full. The displaced value and true are returned in that case so the
// producer can release the resources it references. Producer only.
func (q *SPSC) PushOverwrite(v uint64) (displaced uint64, wasFull bool) {
	tail := libshm.U64(q.mem, spscTailOff).Load()

	for {
		head := libshm.U64(q.mem, spscHeadOff).Load()
		if tail-head <= q.mask {
			break
		}

		// Displace the oldest entry. Head moves by CAS because the
		// consumer races for the same slot; whoever wins owns the value.
		if libshm.U64(q.mem, spscHeadOff).CompareAndSwap(head, head+1) {
			displaced = libshm.U64(q.mem, q.slot(head)).Load()
			wasFull = true
			break
		}
	}

	libshm.U64(q.mem, q.slot(tail)).Store(v)
	libshm.U64(q.mem, spscTailOff).Store(tail + 1)

	return displaced, wasFull
}

// Pop removes and returns the oldest value. Consumer only, but head is
// CAS'd because a producer in overwrite mode may displace concurrently.
func (q *SPSC) Pop() (uint64, bool) {
	for {
		head := libshm.U64(q.mem, spscHeadOff).Load()
		tail := libshm.U64(q.mem, spscTailOff).Load()

		if head >= tail {
			return 0, false
		}

		v := libshm.U64(q.mem, q.slot(head)).Load()

		if libshm.U64(q.mem, spscHeadOff).CompareAndSwap(head, head+1) {
			return v, true
		}
	}
}

// MarkDetached sets the given detached flag bit (producer or consumer
// gone). Peers observe it once the queue drains.
func (q *SPSC) MarkDetached(flag uint64) {
	for {
		cur := libshm.U64(q.mem, spscDetachedOff).Load()
		if cur&flag != 0 {
			return
		}
		if libshm.U64(q.mem, spscDetachedOff).CompareAndSwap(cur, cur|flag) {
			return
		}
	}
}

// IsDetached reports whether the given detached flag bit is set.
func (q *SPSC) IsDetached(flag uint64) bool {
	return libshm.U64(q.mem, spscDetachedOff).Load()&flag != 0
}

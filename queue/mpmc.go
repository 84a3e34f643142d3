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
	liberr "github.com/sabouaram/zeroipc/errors"
	libshm "github.com/sabouaram/zeroipc/shm"
)

// MPMC layout, offsets in bytes. Each slot is a (sequence, value) pair
// of 16 bytes; the sequence counter realizes the Vyukov reservation
// protocol guaranteeing linearizable bounded FIFO behavior.
const (
	mpmcEnqOff   = 0
	mpmcDeqOff   = 64
	mpmcCapOff   = 128
	mpmcSlotsOff = 192
)

func attachMPMC(mem []byte, capacity uint32, init bool) (*MPMC, liberr.Error) {
	cap64 := uint64(roundPow2(capacity))

	if uint64(len(mem)) < mpmcSlotsOff+cap64*16 {
		return nil, ErrorRegionTooSmall.Error(nil)
	}

	q := &MPMC{mem: mem, mask: cap64 - 1}

	if init {
		libshm.U64(mem, mpmcEnqOff).Store(0)
		libshm.U64(mem, mpmcDeqOff).Store(0)
		libshm.U64(mem, mpmcCapOff).Store(cap64)

		for i := uint64(0); i < cap64; i++ {
			libshm.U64(mem, q.seqOff(i)).Store(i)
		}
	} else if got := libshm.U64(mem, mpmcCapOff).Load(); got != cap64 {
		return nil, ErrorCapacityMismatch.ErrorMessage(
			"queue capacity in shared memory disagrees with the attach request")
	}

	return q, nil
}

func (q *MPMC) seqOff(i uint64) uint64 {
	return mpmcSlotsOff + (i&q.mask)*16
}

func (q *MPMC) valOff(i uint64) uint64 {
	return mpmcSlotsOff + (i&q.mask)*16 + 8
}

// Cap returns the queue capacity.
func (q *MPMC) Cap() uint64 {
	return q.mask + 1
}

// Len returns a snapshot of the number of queued values; it may be
// stale by the time it is read.
func (q *MPMC) Len() uint64 {
	e := libshm.U64(q.mem, mpmcEnqOff).Load()
	d := libshm.U64(q.mem, mpmcDeqOff).Load()

	if e <= d {
		return 0
	}

	return e - d
}

// Push appends v. Returns false when the queue is full. Safe for any
// number of concurrent producers in any process.
func (q *MPMC) Push(v uint64) bool {
	pos := libshm.U64(q.mem, mpmcEnqOff).Load()

	for {
		seq := libshm.U64(q.mem, q.seqOff(pos)).Load()

		switch {
		case seq == pos:
			if libshm.U64(q.mem, mpmcEnqOff).CompareAndSwap(pos, pos+1) {
				libshm.U64(q.mem, q.valOff(pos)).Store(v)
				// Release: the value is visible before the sequence.
				libshm.U64(q.mem, q.seqOff(pos)).Store(pos + 1)
				return true
			}
			pos = libshm.U64(q.mem, mpmcEnqOff).Load()

		case seq < pos:
			return false // full: the slot still holds a value one lap behind

		default:
			pos = libshm.U64(q.mem, mpmcEnqOff).Load()
		}
	}
}

// Pop removes and returns the oldest value. Returns false when the
// queue is empty. Safe for any number of concurrent consumers.
func (q *MPMC) Pop() (uint64, bool) {
	pos := libshm.U64(q.mem, mpmcDeqOff).Load()

	for {
		seq := libshm.U64(q.mem, q.seqOff(pos)).Load()

		switch {
		case seq == pos+1:
			if libshm.U64(q.mem, mpmcDeqOff).CompareAndSwap(pos, pos+1) {
				v := libshm.U64(q.mem, q.valOff(pos)).Load()
				libshm.U64(q.mem, q.seqOff(pos)).Store(pos + q.mask + 1)
				return v, true
			}
			pos = libshm.U64(q.mem, mpmcDeqOff).Load()

		case seq <= pos:
			return 0, false // empty

		default:
			pos = libshm.U64(q.mem, mpmcDeqOff).Load()
		}
	}
}

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


// Package queue provides the lock-free primitives living inside shared
// memory segments: a bounded single-producer single-consumer index queue
// used by publisher-to-subscriber and server-to-client connections, a
// bounded multi-producer multi-consumer queue used for active-request
// dispatch on servers, and a cross-process wakeup signal backed by a
// named pipe.
//
// Both queues operate on caller-provided memory (the payload area of a
// shm.Segment) and store 64-bit values only, typically a packed sample
// slot reference. Indices are monotonically increasing 64-bit counters,
// making index reuse (ABA) impossible at realistic rates. Publication
// uses release ordering on the tail or slot sequence; consumption uses
// acquire loads, so all payload bytes referenced by a value are visible
// once the value is observed.
package queue

import (
	liberr "github.com/sabouaram/zeroipc/errors"
)

// Detached flag bits kept next to a connection's queue, letting each
// side observe that its peer is gone (end-of-stream).
const (
	DetachedProducer uint64 = 1 << 0
	DetachedConsumer uint64 = 1 << 1
)

// SPSC is a view over a single-producer single-consumer bounded queue
// laid out in shared memory. The zero value is invalid; use AttachSPSC.
type SPSC struct {
	mem  []byte
	mask uint64
}

// MPMC is a view over a multi-producer multi-consumer bounded queue
// laid out in shared memory. The zero value is invalid; use AttachMPMC.
type MPMC struct {
	mem  []byte
	mask uint64
}

// SPSCSize returns the number of bytes a SPSC queue of the given
// capacity occupies. The capacity rounds up to a power of two.
func SPSCSize(capacity uint32) uint64 {
	return spscSlotsOff + uint64(roundPow2(capacity))*8
}

// MPMCSize returns the number of bytes a MPMC queue of the given
// capacity occupies. The capacity rounds up to a power of two.
func MPMCSize(capacity uint32) uint64 {
	return mpmcSlotsOff + uint64(roundPow2(capacity))*16
}

// AttachSPSC maps a SPSC view over mem. When init is true the queue
// state is reset; exactly one process initializes, before the enclosing
// segment is marked ready.
func AttachSPSC(mem []byte, capacity uint32, init bool) (*SPSC, liberr.Error) {
	return attachSPSC(mem, capacity, init)
}

// AttachMPMC maps a MPMC view over mem. When init is true the queue
// state and the per-slot sequence counters are reset.
func AttachMPMC(mem []byte, capacity uint32, init bool) (*MPMC, liberr.Error) {
	return attachMPMC(mem, capacity, init)
}

func roundPow2(v uint32) uint32 {
	if v < 2 {
		return 2
	}

	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16

	return v + 1
}

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


// Package conn manages the shared-memory connection segments linking
// one producer port to one consumer port: a bounded lock-free queue of
// sample slot references plus a consumer-side borrow ledger.
//
// The ledger records every reference the consumer popped and has not
// yet released. It makes crash reclamation exact: a survivor cleaning a
// dead consumer drains the queue for undelivered references and the
// ledger for delivered-but-unreleased ones, so no in-flight sample
// stays pinned by a dead process.
package conn

import (
	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
	libque "github.com/sabouaram/zeroipc/queue"
	libshm "github.com/sabouaram/zeroipc/shm"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// Conn is one producer-to-consumer connection segment.
type Conn interface {
	// Queue returns the slot reference queue.
	Queue() *libque.SPSC

	// RecordBorrow notes a popped reference in the ledger. Consumer only.
	RecordBorrow(ref uint64)
	// ClearBorrow removes a released reference from the ledger.
	ClearBorrow(ref uint64)
	// Borrows iterates the outstanding references until fct returns
	// false. Used by reclamation.
	Borrows(fct func(ref uint64) bool)

	// MarkDetached publishes that one side is gone.
	MarkDetached(flag uint64)
	// IsDetached reports whether the given side is gone.
	IsDetached(flag uint64) bool

	// Segment returns the backing segment.
	Segment() libshm.Segment
	// Close unmaps the segment.
	Close() error
	// Unlink removes the backing file.
	Unlink() error
}

// RequiredSize returns the payload size a connection segment needs for
// the given queue capacity and borrow ledger capacity.
func RequiredSize(capacity, borrowCap uint32) libsiz.Size {
	return libsiz.Size(queueOff(roundLedger(borrowCap)) + libque.SPSCSize(capacity))
}

// Create builds the connection segment at path. Either side may create;
// initialization races resolve through the segment init flag.
func Create(path string, capacity, borrowCap uint32, timeout libdur.Duration) (Conn, liberr.Error) {
	return connOpenOrCreate(path, capacity, borrowCap, timeout)
}

// Open attaches to an existing connection segment.
func Open(path string, timeout libdur.Duration) (Conn, liberr.Error) {
	return connOpen(path, timeout)
}

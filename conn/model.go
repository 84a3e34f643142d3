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


package conn

import (
	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
	libque "github.com/sabouaram/zeroipc/queue"
	libshm "github.com/sabouaram/zeroipc/shm"
)

// Connection header offsets inside the segment payload area.
const (
	hdrCapOff       = 0
	hdrBorrowCapOff = 8
	hdrSize         = 64
)

// Ledger entries hold ref+1 so that zero means empty.
func ledgerOff() uint64 {
	return hdrSize
}

func roundLedger(borrowCap uint32) uint32 {
	if borrowCap == 0 {
		return 1
	}
	return borrowCap
}

type cnx struct {
	seg       libshm.Segment
	mem       []byte
	q         *libque.SPSC
	borrowCap uint32
}

func connOpenOrCreate(path string, capacity, borrowCap uint32, timeout libdur.Duration) (Conn, liberr.Error) {
	borrowCap = roundLedger(borrowCap)

	seg, created, err := libshm.OpenOrCreate(path, RequiredSize(capacity, borrowCap), 0, timeout)
	if err != nil {
		return nil, err
	}

	if !created {
		return attach(seg)
	}

	mem := seg.Bytes()

	libshm.U64(mem, hdrCapOff).Store(uint64(capacity))
	libshm.U64(mem, hdrBorrowCapOff).Store(uint64(borrowCap))

	for i := uint32(0); i < borrowCap; i++ {
		libshm.U64(mem, ledgerOff()+uint64(i)*8).Store(0)
	}

	q, qerr := libque.AttachSPSC(mem[queueOff(borrowCap):], capacity, true)
	if qerr != nil {
		_ = seg.Close()
		return nil, qerr
	}

	seg.MarkReady()

	return &cnx{seg: seg, mem: mem, q: q, borrowCap: borrowCap}, nil
}

func connOpen(path string, timeout libdur.Duration) (Conn, liberr.Error) {
	seg, err := libshm.Open(path, timeout)
	if err != nil {
		return nil, err
	}

	return attach(seg)
}

func attach(seg libshm.Segment) (Conn, liberr.Error) {
	mem := seg.Bytes()

	capacity := uint32(libshm.U64(mem, hdrCapOff).Load())
	borrowCap := uint32(libshm.U64(mem, hdrBorrowCapOff).Load())

	if capacity == 0 || borrowCap == 0 {
		_ = seg.Close()
		return nil, libshm.ErrorSegmentCorrupted.Error(nil)
	}

	q, qerr := libque.AttachSPSC(mem[queueOff(borrowCap):], capacity, false)
	if qerr != nil {
		_ = seg.Close()
		return nil, qerr
	}

	return &cnx{seg: seg, mem: mem, q: q, borrowCap: borrowCap}, nil
}

func queueOff(borrowCap uint32) uint64 {
	off := ledgerOff() + uint64(borrowCap)*8
	return (off + 63) &^ 63
}

func (c *cnx) Queue() *libque.SPSC {
	return c.q
}

func (c *cnx) RecordBorrow(ref uint64) {
	for i := uint32(0); i < c.borrowCap; i++ {
		slot := libshm.U64(c.mem, ledgerOff()+uint64(i)*8)

		if slot.Load() == 0 && slot.CompareAndSwap(0, ref+1) {
			return
		}
	}
	// Ledger full: the consumer holds more than its borrow capacity,
	// which the port-level counter prevents; nothing to record.
}

func (c *cnx) ClearBorrow(ref uint64) {
	for i := uint32(0); i < c.borrowCap; i++ {
		slot := libshm.U64(c.mem, ledgerOff()+uint64(i)*8)

		if slot.Load() == ref+1 && slot.CompareAndSwap(ref+1, 0) {
			return
		}
	}
}

func (c *cnx) Borrows(fct func(ref uint64) bool) {
	for i := uint32(0); i < c.borrowCap; i++ {
		v := libshm.U64(c.mem, ledgerOff()+uint64(i)*8).Load()

		if v == 0 {
			continue
		}

		if !fct(v - 1) {
			return
		}
	}
}

func (c *cnx) MarkDetached(flag uint64) {
	c.q.MarkDetached(flag)
}

func (c *cnx) IsDetached(flag uint64) bool {
	return c.q.IsDetached(flag)
}

func (c *cnx) Segment() libshm.Segment {
	return c.seg
}

func (c *cnx) Close() error {
	return c.seg.Close()
}

func (c *cnx) Unlink() error {
	return c.seg.Unlink()
}

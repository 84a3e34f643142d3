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


// Package sample manages the pools of payload slots living inside a
// producer port's data segment, and the per-slot borrow accounting that
// decides when a slot returns to its free list.
//
// A pool is a fixed array of slots, each laid out as
// [system header | user header | payload], preceded by a lock-free
// free list holding the indices of unborrowed slots. The free list is a
// multi-producer multi-consumer queue because releases happen from any
// consumer process while loans happen in the producer.
//
// A slot reference travels through connection queues as a packed 64-bit
// value carrying the segment generation and the slot index, so growable
// payload segments keep older generations addressable while samples
// referencing them are still in flight.
package sample

import (
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libshm "github.com/sabouaram/zeroipc/shm"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// Layout describes the fixed geometry of one pool.
type Layout struct {
	// SlotCount is the number of payload slots.
	SlotCount uint32
	// ElemSize and ElemAlign describe one payload element.
	ElemSize  uint64
	ElemAlign uint64
	// MaxElems is the payload element capacity per slot (1 for plain
	// payloads, the slice capacity for slice payloads).
	MaxElems uint64
	// UserHdrSize is the optional user header size (0 when absent).
	UserHdrSize uint64
}

// Pool is the slot pool of one data segment generation.
type Pool interface {
	// Layout returns the pool geometry.
	Layout() Layout
	// Generation returns the generation of the backing segment.
	Generation() uint32
	// Segment returns the backing segment.
	Segment() libshm.Segment

	// Loan pops a free slot. ErrorPoolExhausted when none is available.
	// The returned slot carries one reference owned by the caller.
	Loan() (Slot, liberr.Error)
	// Get returns a view of the given slot index without touching the
	// reference count.
	Get(idx uint32) (Slot, liberr.Error)

	// AddRef adds n references to the slot, one per receiver reached.
	AddRef(idx uint32, n uint64)
	// Release drops one reference; the slot returns to the free list
	// when the count reaches zero. Reports whether it was freed.
	Release(idx uint32) bool

	// FreeCount returns a snapshot of the free list length.
	FreeCount() uint64

	// Close closes the backing segment.
	Close() error
}

// RequiredSize returns the payload-area size a segment needs to host a
// pool of the given layout.
func RequiredSize(l Layout) libsiz.Size {
	return libsiz.Size(poolSlotsOff(l) + uint64(l.SlotCount)*slotStride(l))
}

// Create lays a pool out inside a freshly created segment. The caller
// marks the segment ready afterwards.
func Create(seg libshm.Segment, l Layout) (Pool, liberr.Error) {
	return poolCreate(seg, l)
}

// Attach maps the pool of an already initialized segment.
func Attach(seg libshm.Segment) (Pool, liberr.Error) {
	return poolAttach(seg)
}

// Ref packs a (generation, slot index) pair into the 64-bit value
// traveling through connection queues.
func Ref(generation, idx uint32) uint64 {
	return uint64(generation)<<32 | uint64(idx)
}

// SplitRef unpacks a connection queue value.
func SplitRef(ref uint64) (generation, idx uint32) {
	return uint32(ref >> 32), uint32(ref)
}

// Slot is a view over one payload slot.
type Slot struct {
	mem []byte // slot bytes inside the segment
	l   Layout
	idx uint32
}

// Idx returns the slot index inside its pool.
func (s Slot) Idx() uint32 {
	return s.idx
}

// Origin returns the id of the port that produced the slot.
func (s Slot) Origin() libid.PortId {
	var id libid.PortId
	copy(id[:], s.mem[slotOriginOff:slotOriginOff+16])
	return id
}

// SetOrigin stamps the producing port id.
func (s Slot) SetOrigin(id libid.PortId) {
	copy(s.mem[slotOriginOff:slotOriginOff+16], id[:])
}

// MsgNo returns the monotonic message number stamped by the producer.
func (s Slot) MsgNo() uint64 {
	return libshm.U64(s.mem, slotMsgNoOff).Load()
}

// SetMsgNo stamps the message number.
func (s Slot) SetMsgNo(n uint64) {
	libshm.U64(s.mem, slotMsgNoOff).Store(n)
}

// Corr returns the request correlation tag (request-response only).
func (s Slot) Corr() uint64 {
	return libshm.U64(s.mem, slotCorrOff).Load()
}

// SetCorr stamps the request correlation tag.
func (s Slot) SetCorr(c uint64) {
	libshm.U64(s.mem, slotCorrOff).Store(c)
}

// Count returns the payload element count.
func (s Slot) Count() uint64 {
	return libshm.U64(s.mem, slotCountOff).Load()
}

// SetCount stamps the payload element count.
func (s Slot) SetCount(n uint64) {
	libshm.U64(s.mem, slotCountOff).Store(n)
}

// UserHeader returns the user header bytes, empty when the service has
// no user header type.
func (s Slot) UserHeader() []byte {
	if s.l.UserHdrSize == 0 {
		return nil
	}
	off := slotUserHdrOff()
	return s.mem[off : off+s.l.UserHdrSize]
}

// Payload returns the payload bytes for n elements.
func (s Slot) Payload(n uint64) []byte {
	if n > s.l.MaxElems {
		n = s.l.MaxElems
	}
	off := slotPayloadOff(s.l)
	return s.mem[off : off+n*s.l.ElemSize]
}

// PayloadAll returns the full payload capacity bytes.
func (s Slot) PayloadAll() []byte {
	return s.Payload(s.l.MaxElems)
}

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


package sample

import (
	liberr "github.com/sabouaram/zeroipc/errors"
	libque "github.com/sabouaram/zeroipc/queue"
	libshm "github.com/sabouaram/zeroipc/shm"
)

// Pool header offsets inside the segment payload area.
const (
	poolSlotCountOff = 0
	poolElemSizeOff  = 8
	poolElemAlignOff = 16
	poolMaxElemsOff  = 24
	poolUserHdrOff   = 32
	poolHdrSize      = 64
)

// Slot system header offsets, 64 bytes total.
const (
	slotRefOff    = 0
	slotOriginOff = 8
	slotMsgNoOff  = 24
	slotCorrOff   = 32
	slotCountOff  = 40
	slotHdrSize   = 64
)

func alignUp(v, a uint64) uint64 {
	if a == 0 {
		a = 8
	}
	return (v + a - 1) &^ (a - 1)
}

func slotUserHdrOff() uint64 {
	return slotHdrSize
}

func slotPayloadOff(l Layout) uint64 {
	off := slotHdrSize + alignUp(l.UserHdrSize, 8)
	return alignUp(off, l.ElemAlign)
}

func slotStride(l Layout) uint64 {
	return alignUp(slotPayloadOff(l)+l.MaxElems*l.ElemSize, 64)
}

func freeListOff() uint64 {
	return poolHdrSize
}

func poolSlotsOff(l Layout) uint64 {
	return alignUp(freeListOff()+libque.MPMCSize(l.SlotCount), 64)
}

type pool struct {
	seg  libshm.Segment
	mem  []byte
	l    Layout
	free *libque.MPMC
}

func poolCreate(seg libshm.Segment, l Layout) (Pool, liberr.Error) {
	if l.SlotCount == 0 || l.ElemSize == 0 {
		return nil, ErrorLayoutInvalid.Error(nil)
	}

	mem := seg.Bytes()

	if RequiredSize(l).Uint64() > uint64(len(mem)) {
		return nil, ErrorLayoutInvalid.ErrorMessage(
			"segment smaller than the pool layout requires")
	}

	libshm.U64(mem, poolSlotCountOff).Store(uint64(l.SlotCount))
	libshm.U64(mem, poolElemSizeOff).Store(l.ElemSize)
	libshm.U64(mem, poolElemAlignOff).Store(l.ElemAlign)
	libshm.U64(mem, poolMaxElemsOff).Store(l.MaxElems)
	libshm.U64(mem, poolUserHdrOff).Store(l.UserHdrSize)

	free, err := libque.AttachMPMC(mem[freeListOff():poolSlotsOff(l)], l.SlotCount, true)
	if err != nil {
		return nil, err
	}

	p := &pool{seg: seg, mem: mem, l: l, free: free}

	for i := uint32(0); i < l.SlotCount; i++ {
		libshm.U64(mem, p.slotOff(i)+slotRefOff).Store(0)
		free.Push(uint64(i))
	}

	return p, nil
}

func poolAttach(seg libshm.Segment) (Pool, liberr.Error) {
	mem := seg.Bytes()

	if uint64(len(mem)) < poolHdrSize {
		return nil, ErrorLayoutInvalid.Error(nil)
	}

	l := Layout{
		SlotCount:   uint32(libshm.U64(mem, poolSlotCountOff).Load()),
		ElemSize:    libshm.U64(mem, poolElemSizeOff).Load(),
		ElemAlign:   libshm.U64(mem, poolElemAlignOff).Load(),
		MaxElems:    libshm.U64(mem, poolMaxElemsOff).Load(),
		UserHdrSize: libshm.U64(mem, poolUserHdrOff).Load(),
	}

	if l.SlotCount == 0 || l.ElemSize == 0 ||
		RequiredSize(l).Uint64() > uint64(len(mem)) {
		return nil, ErrorLayoutInvalid.Error(nil)
	}

	free, err := libque.AttachMPMC(mem[freeListOff():poolSlotsOff(l)], l.SlotCount, false)
	if err != nil {
		return nil, err
	}

	return &pool{seg: seg, mem: mem, l: l, free: free}, nil
}

func (p *pool) slotOff(idx uint32) uint64 {
	return poolSlotsOff(p.l) + uint64(idx)*slotStride(p.l)
}

func (p *pool) Layout() Layout {
	return p.l
}

func (p *pool) Generation() uint32 {
	return p.seg.Generation()
}

func (p *pool) Segment() libshm.Segment {
	return p.seg
}

func (p *pool) Loan() (Slot, liberr.Error) {
	v, ok := p.free.Pop()
	if !ok {
		return Slot{}, ErrorPoolExhausted.Error(nil)
	}

	idx := uint32(v)

	libshm.U64(p.mem, p.slotOff(idx)+slotRefOff).Store(1)

	return p.view(idx), nil
}

func (p *pool) Get(idx uint32) (Slot, liberr.Error) {
	if idx >= p.l.SlotCount {
		return Slot{}, ErrorSlotOutOfRange.Error(nil)
	}

	return p.view(idx), nil
}

func (p *pool) view(idx uint32) Slot {
	off := p.slotOff(idx)
	return Slot{mem: p.mem[off : off+slotStride(p.l)], l: p.l, idx: idx}
}

func (p *pool) AddRef(idx uint32, n uint64) {
	if idx >= p.l.SlotCount || n == 0 {
		return
	}

	libshm.U64(p.mem, p.slotOff(idx)+slotRefOff).Add(n)
}

func (p *pool) Release(idx uint32) bool {
	if idx >= p.l.SlotCount {
		return false
	}

	ref := libshm.U64(p.mem, p.slotOff(idx)+slotRefOff)

	for {
		cur := ref.Load()
		if cur == 0 {
			// Already free: release races are absorbed so reclamation
			// stays idempotent.
			return false
		}

		if ref.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				p.free.Push(uint64(idx))
				return true
			}
			return false
		}
	}
}

func (p *pool) FreeCount() uint64 {
	var n uint64

	for i := uint32(0); i < p.l.SlotCount; i++ {
		if libshm.U64(p.mem, p.slotOff(i)+slotRefOff).Load() == 0 {
			n++
		}
	}

	return n
}

func (p *pool) Close() error {
	return p.seg.Close()
}

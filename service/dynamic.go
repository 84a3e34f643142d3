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


package service

import (
	libcfg "github.com/sabouaram/zeroipc/config"
	libdur "github.com/sabouaram/zeroipc/duration"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libshm "github.com/sabouaram/zeroipc/shm"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// Dynamic is the shared-memory registry of one service: the nodes
// attached to it and the live ports of each kind. Every field is
// single-writer (the owning port or node) and multi-reader; records are
// claimed and released with compare-and-swap on their state word.
type Dynamic struct {
	seg      libshm.Segment
	mem      []byte
	maxNodes uint32
	maxA     uint32
	maxB     uint32
}

// Dynamic header offsets.
const (
	dynEpochOff    = 0
	dynCountAOff   = 8
	dynCountBOff   = 16
	dynNodeCntOff  = 24
	dynMaxNodesOff = 32
	dynMaxAOff     = 40
	dynMaxBOff     = 48
	dynHdrSize     = 64

	nodeRecSize = 32
	portRecSize = 64

	// Record states.
	recFree     = 0
	recClaiming = 1
	recLive     = 2
)

// Port record field offsets.
const (
	portRecStateOff  = 0
	portRecIdOff     = 8
	portRecNodeOff   = 24
	portRecExtraOff  = 40
)

// DynRequiredSize returns the payload size the dynamic segment needs.
func DynRequiredSize(maxNodes, maxA, maxB uint32) libsiz.Size {
	return libsiz.Size(dynHdrSize +
		uint64(maxNodes)*nodeRecSize +
		uint64(maxA+maxB)*portRecSize)
}

func dynCreate(seg libshm.Segment, s *StaticConfig) (*Dynamic, liberr.Error) {
	a, b := s.maxPorts()

	d := &Dynamic{
		seg:      seg,
		mem:      seg.Bytes(),
		maxNodes: s.MaxNodes(),
		maxA:     a,
		maxB:     b,
	}

	if DynRequiredSize(d.maxNodes, a, b).Uint64() > uint64(len(d.mem)) {
		return nil, ErrorInternal.ErrorMessage("dynamic segment too small")
	}

	libshm.U64(d.mem, dynMaxNodesOff).Store(uint64(d.maxNodes))
	libshm.U64(d.mem, dynMaxAOff).Store(uint64(a))
	libshm.U64(d.mem, dynMaxBOff).Store(uint64(b))

	return d, nil
}

func dynAttach(seg libshm.Segment) (*Dynamic, liberr.Error) {
	mem := seg.Bytes()

	if uint64(len(mem)) < dynHdrSize {
		return nil, ErrorCorrupted.Error(nil)
	}

	d := &Dynamic{
		seg:      seg,
		mem:      mem,
		maxNodes: uint32(libshm.U64(mem, dynMaxNodesOff).Load()),
		maxA:     uint32(libshm.U64(mem, dynMaxAOff).Load()),
		maxB:     uint32(libshm.U64(mem, dynMaxBOff).Load()),
	}

	if DynRequiredSize(d.maxNodes, d.maxA, d.maxB).Uint64() > uint64(len(mem)) {
		return nil, ErrorCorrupted.Error(nil)
	}

	return d, nil
}

func (d *Dynamic) nodeOff(i uint32) uint64 {
	return dynHdrSize + uint64(i)*nodeRecSize
}

func (d *Dynamic) portOff(table int, i uint32) uint64 {
	base := dynHdrSize + uint64(d.maxNodes)*nodeRecSize

	if table == 1 {
		base += uint64(d.maxA) * portRecSize
	}

	return base + uint64(i)*portRecSize
}

func (d *Dynamic) tableLen(table int) uint32 {
	if table == 0 {
		return d.maxA
	}
	return d.maxB
}

// Epoch returns the connection epoch, bumped on every attach or detach
// so that ports rescan their peers lazily.
func (d *Dynamic) Epoch() uint64 {
	return libshm.U64(d.mem, dynEpochOff).Load()
}

func (d *Dynamic) bumpEpoch() {
	libshm.U64(d.mem, dynEpochOff).Add(1)
}

// RegisterNode adds the node to the service. Registering a node twice
// is a no-op. ErrorExceedsMaxNodes when the node table is full.
func (d *Dynamic) RegisterNode(id libid.Id) liberr.Error {
	if d.findNode(id) >= 0 {
		return nil
	}

	for i := uint32(0); i < d.maxNodes; i++ {
		off := d.nodeOff(i)
		st := libshm.U64(d.mem, off)

		if st.Load() != recFree {
			continue
		}

		if !st.CompareAndSwap(recFree, recClaiming) {
			continue
		}

		copy(d.mem[off+8:off+24], id[:])
		st.Store(recLive)
		libshm.U64(d.mem, dynNodeCntOff).Add(1)
		d.bumpEpoch()

		return nil
	}

	return ErrorExceedsMaxNodes.Error(nil)
}

// DeregisterNode removes the node. Removing an absent node is a no-op.
func (d *Dynamic) DeregisterNode(id libid.Id) {
	i := d.findNode(id)
	if i < 0 {
		return
	}

	off := d.nodeOff(uint32(i))
	st := libshm.U64(d.mem, off)

	if st.CompareAndSwap(recLive, recFree) {
		libshm.U64(d.mem, dynNodeCntOff).Add(^uint64(0))
		d.bumpEpoch()
	}
}

func (d *Dynamic) findNode(id libid.Id) int {
	for i := uint32(0); i < d.maxNodes; i++ {
		off := d.nodeOff(i)

		if libshm.U64(d.mem, off).Load() != recLive {
			continue
		}

		var got libid.Id
		copy(got[:], d.mem[off+8:off+24])

		if got == id {
			return int(i)
		}
	}

	return -1
}

// NodeCount returns the number of attached nodes.
func (d *Dynamic) NodeCount() uint64 {
	return libshm.U64(d.mem, dynNodeCntOff).Load()
}

// Nodes iterates the attached node ids until fct returns false.
func (d *Dynamic) Nodes(fct func(libid.Id) bool) {
	for i := uint32(0); i < d.maxNodes; i++ {
		off := d.nodeOff(i)

		if libshm.U64(d.mem, off).Load() != recLive {
			continue
		}

		var id libid.Id
		copy(id[:], d.mem[off+8:off+24])

		if !fct(id) {
			return
		}
	}
}

// AddPort claims a record for the port and returns its table slot.
// ErrorExceedsMaxPorts when the table for its kind is full.
func (d *Dynamic) AddPort(k PortKind, portId, nodeId libid.Id, extra uint64) (uint32, liberr.Error) {
	t := k.table()

	for i := uint32(0); i < d.tableLen(t); i++ {
		off := d.portOff(t, i)
		st := libshm.U64(d.mem, off+portRecStateOff)

		if st.Load() != recFree {
			continue
		}

		if !st.CompareAndSwap(recFree, recClaiming) {
			continue
		}

		copy(d.mem[off+portRecIdOff:off+portRecIdOff+16], portId[:])
		copy(d.mem[off+portRecNodeOff:off+portRecNodeOff+16], nodeId[:])
		libshm.U64(d.mem, off+portRecExtraOff).Store(extra)
		st.Store(recLive)

		d.countRef(t).Add(1)
		d.bumpEpoch()

		return i, nil
	}

	return 0, ErrorExceedsMaxPorts.Error(nil)
}

// PortAt returns the record at one table slot when it is live.
func (d *Dynamic) PortAt(k PortKind, slot uint32) (portId, nodeId libid.Id, extra uint64, ok bool) {
	t := k.table()

	if slot >= d.tableLen(t) {
		return portId, nodeId, 0, false
	}

	off := d.portOff(t, slot)

	if libshm.U64(d.mem, off+portRecStateOff).Load() != recLive {
		return portId, nodeId, 0, false
	}

	copy(portId[:], d.mem[off+portRecIdOff:off+portRecIdOff+16])
	copy(nodeId[:], d.mem[off+portRecNodeOff:off+portRecNodeOff+16])

	return portId, nodeId, libshm.U64(d.mem, off+portRecExtraOff).Load(), true
}

// SetPortExtraAt atomically updates the extra field of a live record.
// The extra field is single-writer: only the owning port stores to it.
func (d *Dynamic) SetPortExtraAt(k PortKind, slot uint32, extra uint64) {
	t := k.table()

	if slot >= d.tableLen(t) {
		return
	}

	off := d.portOff(t, slot)

	if libshm.U64(d.mem, off+portRecStateOff).Load() == recLive {
		libshm.U64(d.mem, off+portRecExtraOff).Store(extra)
	}
}

// RemovePort releases the port's record. Absent ports are a no-op so
// that reclamation stays idempotent.
func (d *Dynamic) RemovePort(k PortKind, portId libid.Id) {
	t := k.table()

	for i := uint32(0); i < d.tableLen(t); i++ {
		off := d.portOff(t, i)
		st := libshm.U64(d.mem, off+portRecStateOff)

		if st.Load() != recLive {
			continue
		}

		var got libid.Id
		copy(got[:], d.mem[off+portRecIdOff:off+portRecIdOff+16])

		if got != portId {
			continue
		}

		if st.CompareAndSwap(recLive, recFree) {
			d.countRef(t).Add(^uint64(0))
			d.bumpEpoch()
		}

		return
	}
}

// Ports iterates the live ports of one kind until fct returns false.
func (d *Dynamic) Ports(k PortKind, fct func(portId, nodeId libid.Id, extra uint64) bool) {
	t := k.table()

	for i := uint32(0); i < d.tableLen(t); i++ {
		off := d.portOff(t, i)

		if libshm.U64(d.mem, off+portRecStateOff).Load() != recLive {
			continue
		}

		var pid, nid libid.Id
		copy(pid[:], d.mem[off+portRecIdOff:off+portRecIdOff+16])
		copy(nid[:], d.mem[off+portRecNodeOff:off+portRecNodeOff+16])

		if !fct(pid, nid, libshm.U64(d.mem, off+portRecExtraOff).Load()) {
			return
		}
	}
}

// Count returns the number of live ports of one kind.
func (d *Dynamic) Count(k PortKind) uint64 {
	return d.countRef(k.table()).Load()
}

func (d *Dynamic) countRef(table int) interface {
	Load() uint64
	Add(uint64) uint64
} {
	if table == 0 {
		return libshm.U64(d.mem, dynCountAOff)
	}
	return libshm.U64(d.mem, dynCountBOff)
}

// Segment exposes the backing segment.
func (d *Dynamic) Segment() libshm.Segment {
	return d.seg
}

// OpenDynamic attaches the dynamic registry of a service by hex id
// without opening the service itself. Used by stale-resource
// reclamation and diagnostics.
func OpenDynamic(cfg libcfg.Config, sid string, timeout libdur.Duration) (*Dynamic, liberr.Error) {
	seg, err := libshm.Open(cfg.DynamicSegmentName(sid), timeout)
	if err != nil {
		return nil, ErrorCorrupted.Error(err)
	}

	d, derr := dynAttach(seg)
	if derr != nil {
		_ = seg.Close()
		return nil, derr
	}

	return d, nil
}

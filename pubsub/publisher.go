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


package pubsub

import (
	"sync"
	"time"
	"unsafe"

	libcnx "github.com/sabouaram/zeroipc/conn"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libque "github.com/sabouaram/zeroipc/queue"
	libsmp "github.com/sabouaram/zeroipc/sample"
	libsvc "github.com/sabouaram/zeroipc/service"
	libshm "github.com/sabouaram/zeroipc/shm"
	libsiz "github.com/sabouaram/zeroipc/size"
)

// blockBackoff caps the sleep between retries of a blocking send.
const blockBackoff = time.Millisecond

type pubConn struct {
	sub libid.PortId
	cx  libcnx.Conn
}

type pub[T any] struct {
	m   sync.Mutex
	svc libsvc.Service
	id  libid.PortId

	chain    *libsmp.Chain
	strategy UnableToDeliver

	maxLoaned uint32
	loaned    uint32

	msgNo   uint64
	epoch   uint64
	conns   []pubConn
	history []histEntry
	histCap uint32

	unreg  func()
	closed bool
}

type histEntry struct {
	pool libsmp.Pool
	idx  uint32
}

func newPublisher[T any](s libsvc.Service, o PublisherOptions) (Publisher[T], liberr.Error) {
	if err := verifyPayload[T](s); err != nil {
		return nil, err
	}

	ps := s.Static().PubSub
	cfg := s.Config()
	nid := s.Binding().NodeId()
	pid := libid.MintPortId(nid, s.Binding().NextPortCounter())

	maxLoaned := o.MaxLoanedSamples
	if maxLoaned == 0 {
		maxLoaned = ps.MaxLoanedSamples
	}

	// The pool must cover every simultaneously pinned slot: all
	// subscriber buffers, the retained history and the loans.
	slots := ps.MaxSubscribers*ps.SubscriberMaxBufferSize +
		ps.HistorySize + maxLoaned + 1

	detail := libid.DetailOf[T]()

	layout := libsmp.Layout{
		SlotCount:   slots,
		ElemSize:    detail.Size,
		ElemAlign:   detail.Alignment,
		MaxElems:    ps.MaxSliceLen,
		UserHdrSize: s.Static().UserHeader.Size,
	}

	open := func(gen uint32, maxElems uint64, create bool) (libsmp.Pool, liberr.Error) {
		path := cfg.DataSegmentName(s.Id().String(), pid.String(), gen)

		if !create {
			seg, err := libshm.Open(path, cfg.CreationTimeout())
			if err != nil {
				return nil, err
			}
			return libsmp.Attach(seg)
		}

		l := layout
		l.MaxElems = maxElems

		seg, err := libshm.Create(path, libsiz.Size(libsmp.RequiredSize(l)), gen)
		if err != nil {
			return nil, err
		}

		p, perr := libsmp.Create(seg, l)
		if perr != nil {
			_ = seg.Close()
			return nil, perr
		}

		seg.MarkReady()
		return p, nil
	}

	root, err := open(0, layout.MaxElems, true)
	if err != nil {
		return nil, ErrorDataSegment.Error(err)
	}

	if _, err = s.Dynamic().AddPort(libsvc.KindPublisher, pid, nid.Encode(), 0); err != nil {
		_ = root.Close()
		if err.IsCode(libsvc.ErrorExceedsMaxPorts) {
			return nil, ErrorExceedsMaxPorts.Error(err)
		}
		return nil, ErrorInternal.Error(err)
	}

	p := &pub[T]{
		svc: s,
		id:  pid,
		chain: libsmp.NewChain(root, open, s.Static().AllocationStrategy(),
			cfg.Defaults().SegmentChunkSize),
		strategy:  o.UnableToDeliverStrategy,
		maxLoaned: maxLoaned,
		histCap:   ps.HistorySize,
	}

	p.unreg = s.Binding().RegisterCloser(p)

	return p, nil
}

func (p *pub[T]) Id() libid.PortId {
	return p.id
}

func (p *pub[T]) UnableToDeliverStrategy() UnableToDeliver {
	return p.strategy
}

func (p *pub[T]) loan(n uint64, clear bool) (libsmp.Pool, libsmp.Slot, liberr.Error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.closed {
		return nil, libsmp.Slot{}, ErrorPortClosed.Error(nil)
	}

	if p.loaned >= p.maxLoaned {
		return nil, libsmp.Slot{}, libsmp.ErrorExceedsMaxLoanedSamples.Error(nil)
	}

	pool, slot, err := p.chain.LoanElems(n)
	if err != nil {
		return nil, libsmp.Slot{}, err
	}

	p.loaned++

	slot.SetOrigin(p.id)
	slot.SetCount(n)

	if clear {
		b := slot.Payload(n)
		for i := range b {
			b[i] = 0
		}
	}

	return pool, slot, nil
}

// Loan borrows a zero-initialized single-element sample.
func (p *pub[T]) Loan() (*Sample[T], liberr.Error) {
	pool, slot, err := p.loan(1, true)
	if err != nil {
		return nil, err
	}

	return &Sample[T]{p: p, pool: pool, slot: slot}, nil
}

func (p *pub[T]) LoanUninit() (*Sample[T], liberr.Error) {
	pool, slot, err := p.loan(1, false)
	if err != nil {
		return nil, err
	}

	return &Sample[T]{p: p, pool: pool, slot: slot}, nil
}

func (p *pub[T]) LoanSlice(n uint64) (*SampleSlice[T], liberr.Error) {
	pool, slot, err := p.loan(n, true)
	if err != nil {
		return nil, err
	}

	return &SampleSlice[T]{p: p, pool: pool, slot: slot, n: n}, nil
}

func (p *pub[T]) LoanSliceUninit(n uint64) (*SampleSlice[T], liberr.Error) {
	pool, slot, err := p.loan(n, false)
	if err != nil {
		return nil, err
	}

	return &SampleSlice[T]{p: p, pool: pool, slot: slot, n: n}, nil
}

func (p *pub[T]) SendCopy(v T) (uint64, liberr.Error) {
	s, err := p.LoanUninit()
	if err != nil {
		return 0, err
	}

	*s.Payload() = v

	return s.Send()
}

func (p *pub[T]) SendSliceCopy(vs []T) (uint64, liberr.Error) {
	s, err := p.LoanSliceUninit(uint64(len(vs)))
	if err != nil {
		return 0, err
	}

	copy(s.Elems(), vs)

	return s.Send()
}

// UpdateConnections synchronizes with the subscriber table and replays
// retained history to subscribers connected since the last scan.
func (p *pub[T]) UpdateConnections() liberr.Error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.closed {
		return ErrorPortClosed.Error(nil)
	}

	return p.refreshConnections()
}

// refreshConnections is called under the port lock.
func (p *pub[T]) refreshConnections() liberr.Error {
	dyn := p.svc.Dynamic()

	epoch := dyn.Epoch()
	if epoch == p.epoch && p.epoch != 0 {
		return nil
	}

	cfg := p.svc.Config()
	ps := p.svc.Static().PubSub
	sid := p.svc.Id().String()

	live := map[libid.PortId]uint64{}

	dyn.Ports(libsvc.KindSubscriber, func(pid, _ libid.Id, extra uint64) bool {
		live[pid] = extra
		return true
	})

	// Drop connections of detached subscribers.
	kept := p.conns[:0]

	for _, c := range p.conns {
		if _, ok := live[c.sub]; ok {
			kept = append(kept, c)
			delete(live, c.sub)
			continue
		}

		c.cx.MarkDetached(libque.DetachedProducer)
		_ = c.cx.Close()
	}

	p.conns = kept

	// Connect new subscribers and replay history in sending order.
	for sub, bufSize := range live {
		capacity := uint32(bufSize)
		if capacity == 0 || capacity > ps.SubscriberMaxBufferSize {
			capacity = ps.SubscriberMaxBufferSize
		}

		cx, err := libcnx.Create(
			cfg.ConnSegmentName(sid, p.id.String(), sub.String()),
			capacity,
			ps.SubscriberMaxBorrowedSamples,
			cfg.CreationTimeout(),
		)
		if err != nil {
			return ErrorConnection.Error(err)
		}

		for _, h := range p.history {
			h.pool.AddRef(h.idx, 1)

			if !cx.Queue().Push(libsmp.Ref(h.pool.Generation(), h.idx)) {
				h.pool.Release(h.idx)
			}
		}

		p.conns = append(p.conns, pubConn{sub: sub, cx: cx})
	}

	p.epoch = epoch

	return nil
}

// send publishes a loaned slot to every connected subscriber.
func (p *pub[T]) send(pool libsmp.Pool, slot libsmp.Slot) (uint64, liberr.Error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.closed {
		return 0, ErrorPortClosed.Error(nil)
	}

	if err := p.refreshConnections(); err != nil {
		return 0, err
	}

	p.msgNo++
	slot.SetMsgNo(p.msgNo)

	ref := libsmp.Ref(pool.Generation(), slot.Idx())
	safe := p.svc.Static().PubSub.EnableSafeOverflow

	var delivered uint64

	for _, c := range p.conns {
		pool.AddRef(slot.Idx(), 1)

		if safe {
			if displaced, wasFull := c.cx.Queue().PushOverwrite(ref); wasFull {
				p.releaseRef(displaced, pool)
			}
			delivered++
			continue
		}

		if c.cx.Queue().Push(ref) {
			delivered++
			continue
		}

		if p.strategy == DeliverBlock {
			if p.blockPush(c.cx, ref) {
				delivered++
				continue
			}
		}

		pool.Release(slot.Idx())
	}

	// The producer reference either retires into history or drops.
	if p.histCap > 0 {
		p.history = append(p.history, histEntry{pool: pool, idx: slot.Idx()})

		if uint32(len(p.history)) > p.histCap {
			old := p.history[0]
			p.history = p.history[1:]
			old.pool.Release(old.idx)
		}
	} else {
		pool.Release(slot.Idx())
	}

	p.loaned--

	return delivered, nil
}

// releaseRef returns a displaced reference to its generation's pool.
func (p *pub[T]) releaseRef(ref uint64, hint libsmp.Pool) {
	gen, idx := libsmp.SplitRef(ref)

	if hint.Generation() == gen {
		hint.Release(idx)
		return
	}

	if pool, err := p.chain.Resolve(gen); err == nil {
		pool.Release(idx)
	}
}

// blockPush busy-waits with back-off until the queue accepts the
// reference or the consumer detaches. It runs under the port lock held
// by send, so a concurrent Close waits until it returns.
func (p *pub[T]) blockPush(cx libcnx.Conn, ref uint64) bool {
	wait := 10 * time.Microsecond

	for !p.closed {
		if cx.IsDetached(libque.DetachedConsumer) {
			return false
		}

		if cx.Queue().Push(ref) {
			return true
		}

		time.Sleep(wait)

		if wait < blockBackoff {
			wait *= 2
		}
	}

	return false
}

// releaseLoan drops a loaned slot without sending.
func (p *pub[T]) releaseLoan(pool libsmp.Pool, slot libsmp.Slot) {
	p.m.Lock()
	defer p.m.Unlock()

	pool.Release(slot.Idx())

	if p.loaned > 0 {
		p.loaned--
	}
}

func (p *pub[T]) Close() error {
	p.m.Lock()

	if p.closed {
		p.m.Unlock()
		return nil
	}

	p.closed = true

	for _, c := range p.conns {
		c.cx.MarkDetached(libque.DetachedProducer)

		if c.cx.IsDetached(libque.DetachedConsumer) {
			_ = c.cx.Unlink()
		}

		_ = c.cx.Close()
	}

	p.conns = nil

	for _, h := range p.history {
		h.pool.Release(h.idx)
	}

	p.history = nil
	p.m.Unlock()

	if p.unreg != nil {
		p.unreg()
	}

	p.svc.Dynamic().RemovePort(libsvc.KindPublisher, p.id)

	return p.chain.Close()
}

// Sample is a loaned single-element sample. Send or Release exactly
// once.
type Sample[T any] struct {
	p    *pub[T]
	pool libsmp.Pool
	slot libsmp.Slot
	done bool
}

// Payload returns the payload living in shared memory.
func (s *Sample[T]) Payload() *T {
	b := s.slot.Payload(1)
	return (*T)(unsafe.Pointer(&b[0]))
}

// UserHeader returns the raw user header bytes.
func (s *Sample[T]) UserHeader() []byte {
	return s.slot.UserHeader()
}

// Send publishes the sample and consumes the handle. Returns the
// number of subscribers that received it.
func (s *Sample[T]) Send() (uint64, liberr.Error) {
	if s.done {
		return 0, ErrorSampleConsumed.Error(nil)
	}

	s.done = true

	return s.p.send(s.pool, s.slot)
}

// Release drops the loan without sending.
func (s *Sample[T]) Release() {
	if s.done {
		return
	}

	s.done = true
	s.p.releaseLoan(s.pool, s.slot)
}

// SampleSlice is a loaned slice sample of n elements.
type SampleSlice[T any] struct {
	p    *pub[T]
	pool libsmp.Pool
	slot libsmp.Slot
	n    uint64
	done bool
}

// Elems returns the payload elements living in shared memory.
func (s *SampleSlice[T]) Elems() []T {
	b := s.slot.Payload(s.n)
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), s.n)
}

// UserHeader returns the raw user header bytes.
func (s *SampleSlice[T]) UserHeader() []byte {
	return s.slot.UserHeader()
}

// Send publishes the sample and consumes the handle.
func (s *SampleSlice[T]) Send() (uint64, liberr.Error) {
	if s.done {
		return 0, ErrorSampleConsumed.Error(nil)
	}

	s.done = true

	return s.p.send(s.pool, s.slot)
}

// Release drops the loan without sending.
func (s *SampleSlice[T]) Release() {
	if s.done {
		return
	}

	s.done = true
	s.p.releaseLoan(s.pool, s.slot)
}

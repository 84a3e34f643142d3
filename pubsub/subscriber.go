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
	"unsafe"

	libcnx "github.com/sabouaram/zeroipc/conn"
	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libque "github.com/sabouaram/zeroipc/queue"
	libsmp "github.com/sabouaram/zeroipc/sample"
	libsvc "github.com/sabouaram/zeroipc/service"
	libshm "github.com/sabouaram/zeroipc/shm"
)

type subConn struct {
	pub libid.PortId
	cx  libcnx.Conn
}

type poolKey struct {
	pub libid.PortId
	gen uint32
}

type sub[T any] struct {
	m   sync.Mutex
	svc libsvc.Service
	id  libid.PortId

	bufSize     uint32
	maxBorrowed uint32
	borrowed    uint32

	epoch uint64
	conns []subConn
	pools map[poolKey]libsmp.Pool

	unreg  func()
	closed bool
}

func newSubscriber[T any](s libsvc.Service, o SubscriberOptions) (Subscriber[T], liberr.Error) {
	if err := verifyPayload[T](s); err != nil {
		return nil, err
	}

	ps := s.Static().PubSub
	nid := s.Binding().NodeId()
	pid := libid.MintPortId(nid, s.Binding().NextPortCounter())

	bufSize := o.BufferSize
	if bufSize == 0 || bufSize > ps.SubscriberMaxBufferSize {
		bufSize = ps.SubscriberMaxBufferSize
	}

	// The buffer size rides in the port record so publishers size the
	// connection queue for this subscriber.
	if _, err := s.Dynamic().AddPort(libsvc.KindSubscriber, pid, nid.Encode(), uint64(bufSize)); err != nil {
		if err.IsCode(libsvc.ErrorExceedsMaxPorts) {
			return nil, ErrorExceedsMaxPorts.Error(err)
		}
		return nil, ErrorInternal.Error(err)
	}

	b := &sub[T]{
		svc:         s,
		id:          pid,
		bufSize:     bufSize,
		maxBorrowed: ps.SubscriberMaxBorrowedSamples,
		pools:       map[poolKey]libsmp.Pool{},
	}

	b.unreg = s.Binding().RegisterCloser(b)

	return b, nil
}

func (b *sub[T]) Id() libid.PortId {
	return b.id
}

// refreshConnections is called under the port lock.
func (b *sub[T]) refreshConnections() liberr.Error {
	dyn := b.svc.Dynamic()

	epoch := dyn.Epoch()
	if epoch == b.epoch && b.epoch != 0 {
		return nil
	}

	cfg := b.svc.Config()
	ps := b.svc.Static().PubSub
	sid := b.svc.Id().String()

	live := map[libid.PortId]bool{}

	dyn.Ports(libsvc.KindPublisher, func(pid, _ libid.Id, _ uint64) bool {
		live[pid] = true
		return true
	})

	kept := b.conns[:0]

	for _, c := range b.conns {
		// Detached producers stay until their queue drains so pending
		// samples are still delivered.
		if live[c.pub] || c.cx.Queue().Len() > 0 {
			kept = append(kept, c)
			delete(live, c.pub)
			continue
		}

		c.cx.MarkDetached(libque.DetachedConsumer)
		_ = c.cx.Close()
	}

	b.conns = kept

	for pub := range live {
		cx, err := libcnx.Create(
			cfg.ConnSegmentName(sid, pub.String(), b.id.String()),
			b.bufSize,
			ps.SubscriberMaxBorrowedSamples,
			cfg.CreationTimeout(),
		)
		if err != nil {
			return ErrorConnection.Error(err)
		}

		b.conns = append(b.conns, subConn{pub: pub, cx: cx})
	}

	b.epoch = epoch

	return nil
}

func (b *sub[T]) resolvePool(pub libid.PortId, gen uint32) (libsmp.Pool, liberr.Error) {
	k := poolKey{pub: pub, gen: gen}

	if p, ok := b.pools[k]; ok {
		return p, nil
	}

	cfg := b.svc.Config()

	seg, err := libshm.Open(
		cfg.DataSegmentName(b.svc.Id().String(), pub.String(), gen),
		cfg.CreationTimeout(),
	)
	if err != nil {
		return nil, ErrorConnection.Error(err)
	}

	p, perr := libsmp.Attach(seg)
	if perr != nil {
		_ = seg.Close()
		return nil, ErrorConnection.Error(perr)
	}

	b.pools[k] = p

	return p, nil
}

func (b *sub[T]) Receive() (*Recv[T], bool, liberr.Error) {
	b.m.Lock()
	defer b.m.Unlock()

	if b.closed {
		return nil, false, ErrorPortClosed.Error(nil)
	}

	if err := b.refreshConnections(); err != nil {
		return nil, false, err
	}

	if b.borrowed >= b.maxBorrowed {
		return nil, false, libsmp.ErrorExceedsMaxBorrowedSamples.Error(nil)
	}

	for i := range b.conns {
		c := &b.conns[i]

		ref, ok := c.cx.Queue().Pop()
		if !ok {
			continue
		}

		gen, idx := libsmp.SplitRef(ref)

		pool, err := b.resolvePool(c.pub, gen)
		if err != nil {
			return nil, false, err
		}

		slot, serr := pool.Get(idx)
		if serr != nil {
			return nil, false, ErrorConnection.Error(serr)
		}

		c.cx.RecordBorrow(ref)
		b.borrowed++

		return &Recv[T]{sub: b, cx: c.cx, pool: pool, slot: slot, ref: ref}, true, nil
	}

	return nil, false, nil
}

func (b *sub[T]) HasSamples() (bool, liberr.Error) {
	b.m.Lock()
	defer b.m.Unlock()

	if b.closed {
		return false, ErrorPortClosed.Error(nil)
	}

	if err := b.refreshConnections(); err != nil {
		return false, err
	}

	for i := range b.conns {
		if b.conns[i].cx.Queue().Len() > 0 {
			return true, nil
		}
	}

	return false, nil
}

// release returns one borrowed sample to its pool.
func (b *sub[T]) release(cx libcnx.Conn, pool libsmp.Pool, ref uint64) {
	b.m.Lock()
	defer b.m.Unlock()

	_, idx := libsmp.SplitRef(ref)

	pool.Release(idx)
	cx.ClearBorrow(ref)

	if b.borrowed > 0 {
		b.borrowed--
	}
}

func (b *sub[T]) Close() error {
	b.m.Lock()

	if b.closed {
		b.m.Unlock()
		return nil
	}

	b.closed = true

	for _, c := range b.conns {
		c.cx.MarkDetached(libque.DetachedConsumer)

		if c.cx.IsDetached(libque.DetachedProducer) {
			_ = c.cx.Unlink()
		}

		_ = c.cx.Close()
	}

	b.conns = nil

	var last error

	for _, p := range b.pools {
		if e := p.Close(); e != nil {
			last = e
		}
	}

	b.pools = map[poolKey]libsmp.Pool{}
	b.m.Unlock()

	if b.unreg != nil {
		b.unreg()
	}

	b.svc.Dynamic().RemovePort(libsvc.KindSubscriber, b.id)

	return last
}

// Recv is a received sample borrowed from a publisher's pool. The
// payload stays valid after the publisher is dropped, until Release.
type Recv[T any] struct {
	sub  *sub[T]
	cx   libcnx.Conn
	pool libsmp.Pool
	slot libsmp.Slot
	ref  uint64
	done bool
}

// Payload returns the received payload in shared memory.
func (r *Recv[T]) Payload() *T {
	b := r.slot.Payload(1)
	return (*T)(unsafe.Pointer(&b[0]))
}

// Elems returns the received slice payload.
func (r *Recv[T]) Elems() []T {
	n := r.slot.Count()
	b := r.slot.Payload(n)
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

// UserHeader returns the raw user header bytes.
func (r *Recv[T]) UserHeader() []byte {
	return r.slot.UserHeader()
}

// Origin returns the id of the publishing port.
func (r *Recv[T]) Origin() libid.PortId {
	return r.slot.Origin()
}

// MsgNo returns the publisher's monotonic message number.
func (r *Recv[T]) MsgNo() uint64 {
	return r.slot.MsgNo()
}

// Release returns the borrow. Safe to call twice.
func (r *Recv[T]) Release() {
	if r.done {
		return
	}

	r.done = true
	r.sub.release(r.cx, r.pool, r.ref)
}

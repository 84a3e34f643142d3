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


package reqres

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

type srvConn struct {
	srv libid.PortId
	cx  libcnx.Conn   // server → client response stream
	rq  *libque.MPMC  // server's dispatch queue
	rqs libshm.Segment
}

type cli[Req any, Res any] struct {
	m    sync.Mutex
	svc  libsvc.Service
	id   libid.PortId
	slot uint32

	pool     libsmp.Pool
	strategy UnableToDeliver

	corrCtr uint64
	epoch   uint64
	conns   []srvConn
	pending map[uint64]*pend[Res]
	resPool map[poolKey]libsmp.Pool

	unreg  func()
	closed bool
}

type poolKey struct {
	srv libid.PortId
	gen uint32
}

type pend[Res any] struct {
	corr      uint64
	remaining int
	buffered  []*Response[Res]
}

func newClient[Req any, Res any](s libsvc.Service, o ClientOptions) (Client[Req, Res], liberr.Error) {
	if err := verifyTypes[Req, Res](s); err != nil {
		return nil, err
	}

	rr := s.Static().ReqRes
	cfg := s.Config()
	nid := s.Binding().NodeId()
	pid := libid.MintPortId(nid, s.Binding().NextPortCounter())

	req := libid.DetailOf[Req]()

	layout := libsmp.Layout{
		SlotCount:   rr.MaxServers*rr.MaxActiveRequestsPerClient + rr.MaxLoanedRequests + 1,
		ElemSize:    req.Size,
		ElemAlign:   req.Alignment,
		MaxElems:    1,
		UserHdrSize: s.Static().RequestHeader.Size,
	}

	seg, err := libshm.Create(
		cfg.DataSegmentName(s.Id().String(), pid.String(), 0),
		libsiz.Size(libsmp.RequiredSize(layout)),
		0,
	)
	if err != nil {
		return nil, ErrorDataSegment.Error(err)
	}

	pool, perr := libsmp.Create(seg, layout)
	if perr != nil {
		_ = seg.Close()
		return nil, ErrorDataSegment.Error(perr)
	}

	seg.MarkReady()

	slot, aerr := s.Dynamic().AddPort(libsvc.KindClient, pid, nid.Encode(), 0)
	if aerr != nil {
		_ = pool.Close()

		if aerr.IsCode(libsvc.ErrorExceedsMaxPorts) {
			return nil, ErrorExceedsMaxPorts.Error(aerr)
		}
		return nil, ErrorInternal.Error(aerr)
	}

	c := &cli[Req, Res]{
		svc:      s,
		id:       pid,
		slot:     slot,
		pool:     pool,
		strategy: o.UnableToDeliverStrategy,
		pending:  map[uint64]*pend[Res]{},
		resPool:  map[poolKey]libsmp.Pool{},
	}

	c.unreg = s.Binding().RegisterCloser(c)

	return c, nil
}

func (c *cli[Req, Res]) Id() libid.PortId {
	return c.id
}

// refreshConnections is called under the port lock.
func (c *cli[Req, Res]) refreshConnections() liberr.Error {
	dyn := c.svc.Dynamic()

	epoch := dyn.Epoch()
	if epoch == c.epoch && c.epoch != 0 {
		return nil
	}

	cfg := c.svc.Config()
	rr := c.svc.Static().ReqRes
	sid := c.svc.Id().String()

	live := map[libid.PortId]bool{}

	dyn.Ports(libsvc.KindServer, func(pid, _ libid.Id, _ uint64) bool {
		live[pid] = true
		return true
	})

	kept := c.conns[:0]

	for _, cx := range c.conns {
		if live[cx.srv] {
			kept = append(kept, cx)
			delete(live, cx.srv)
			continue
		}

		cx.cx.MarkDetached(libque.DetachedConsumer)
		_ = cx.cx.Close()
		_ = cx.rqs.Close()
	}

	c.conns = kept

	for srv := range live {
		rqSeg, err := libshm.Open(cfg.RequestQueueName(sid, srv.String()), cfg.CreationTimeout())
		if err != nil {
			continue // server mid-creation
		}

		rq, qerr := libque.AttachMPMC(rqSeg.Bytes(),
			rr.MaxClients*rr.MaxActiveRequestsPerClient, false)
		if qerr != nil {
			_ = rqSeg.Close()
			continue
		}

		cx, cerr := libcnx.Create(
			cfg.ConnSegmentName(sid, srv.String(), c.id.String()),
			rr.MaxResponseBufferSize,
			rr.MaxResponseBufferSize,
			cfg.CreationTimeout(),
		)
		if cerr != nil {
			_ = rqSeg.Close()
			return ErrorConnection.Error(cerr)
		}

		c.conns = append(c.conns, srvConn{srv: srv, cx: cx, rq: rq, rqs: rqSeg})
	}

	c.epoch = epoch

	return nil
}

func (c *cli[Req, Res]) Loan() (*Request[Req, Res], liberr.Error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return nil, ErrorPortClosed.Error(nil)
	}

	slot, err := c.pool.Loan()
	if err != nil {
		return nil, err
	}

	slot.SetOrigin(c.id)
	slot.SetCount(1)

	return &Request[Req, Res]{c: c, idx: slot.Idx(), gen: c.pool.Generation()}, nil
}

// Payload returns the request payload living in shared memory.
func (r *Request[Req, Res]) Payload() *Req {
	s, _ := r.c.pool.Get(r.idx)
	b := s.Payload(1)
	return (*Req)(unsafe.Pointer(&b[0]))
}

// UserHeader returns the raw request header bytes.
func (r *Request[Req, Res]) UserHeader() []byte {
	s, _ := r.c.pool.Get(r.idx)
	return s.UserHeader()
}

// Send dispatches the request to every connected server and returns
// the pending response stream.
func (r *Request[Req, Res]) Send() (PendingResponse[Res], liberr.Error) {
	if r.done {
		return nil, ErrorRequestConsumed.Error(nil)
	}

	r.done = true

	return r.c.send(r.idx, r.gen, false)
}

// Release drops the loan without sending.
func (r *Request[Req, Res]) Release() {
	if r.done {
		return
	}

	r.done = true
	r.c.pool.Release(r.idx)
}

func (c *cli[Req, Res]) SendCopy(v Req) (PendingResponse[Res], liberr.Error) {
	r, err := c.Loan()
	if err != nil {
		return nil, err
	}

	*r.Payload() = v

	return r.Send()
}

func (c *cli[Req, Res]) FireAndForget(v Req) liberr.Error {
	if !c.svc.Static().ReqRes.EnableFireAndForget {
		return ErrorFireAndForgetOff.Error(nil)
	}

	r, err := c.Loan()
	if err != nil {
		return err
	}

	*r.Payload() = v
	r.done = true

	_, serr := c.send(r.idx, r.gen, true)

	return serr
}

func (c *cli[Req, Res]) send(idx, gen uint32, fireForget bool) (PendingResponse[Res], liberr.Error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return nil, ErrorPortClosed.Error(nil)
	}

	if err := c.refreshConnections(); err != nil {
		return nil, err
	}

	slot, gerr := c.pool.Get(idx)
	if gerr != nil {
		return nil, ErrorInternal.Error(gerr)
	}

	var corr uint64

	if !fireForget {
		c.corrCtr++
		corr = c.corrCtr & corrMask
	}

	slot.SetCorr(corr)

	safe := c.svc.Static().ReqRes.EnableSafeOverflowRequests
	entry := packDispatch(c.slot, gen, idx)

	var delivered int

	for _, cx := range c.conns {
		c.pool.AddRef(idx, 1)

		if cx.rq.Push(entry) {
			delivered++
			continue
		}

		if safe {
			// Displace the oldest dispatched request of any client.
			if old, ok := cx.rq.Pop(); ok {
				c.releaseDispatch(old)

				if cx.rq.Push(entry) {
					delivered++
					continue
				}
			}
		} else if c.strategy == DeliverBlock {
			wait := 10 * time.Microsecond
			ok := false

			for !c.closed {
				if ok = cx.rq.Push(entry); ok {
					break
				}

				time.Sleep(wait)

				if wait < time.Millisecond {
					wait *= 2
				}
			}

			if ok {
				delivered++
				continue
			}
		}

		c.pool.Release(idx)
	}

	// The loan reference drops; delivered references keep the slot
	// pinned until every server releases it.
	c.pool.Release(idx)

	if fireForget {
		return nil, nil
	}

	p := &pend[Res]{corr: corr, remaining: delivered}
	c.pending[corr] = p

	return &PendingResponse_[Req, Res]{c: c, p: p}, nil
}

// releaseDispatch returns a displaced dispatch entry's slot reference
// when it belongs to this client; foreign entries cannot be resolved
// here and their producer reclaims them through the borrow ledger.
func (c *cli[Req, Res]) releaseDispatch(v uint64) {
	clientSlot, _, idx, ok := splitDispatch(v)

	if ok && clientSlot == c.slot {
		c.pool.Release(idx)
	}
}

func (c *cli[Req, Res]) IsConnected() bool {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return false
	}

	_ = c.refreshConnections()

	return len(c.conns) > 0
}

func (c *cli[Req, Res]) SetDisconnectHint() {
	c.svc.Dynamic().SetPortExtraAt(libsvc.KindClient, c.slot, hintDisconnect)
}

// drainResponses moves buffered response entries into their pending
// streams. Called under the lock.
func (c *cli[Req, Res]) drainResponses() liberr.Error {
	for i := range c.conns {
		cx := &c.conns[i]

		for {
			v, ok := cx.cx.Queue().Pop()
			if !ok {
				break
			}

			if v&entryMarkerBit != 0 {
				if p, ok2 := c.pending[v&corrMask]; ok2 && p.remaining > 0 {
					p.remaining--
				}
				continue
			}

			gen, idx := libsmp.SplitRef(v)

			pool, err := c.resolveResPool(cx.srv, gen)
			if err != nil {
				continue
			}

			slot, serr := pool.Get(idx)
			if serr != nil {
				continue
			}

			p, ok2 := c.pending[slot.Corr()]
			if !ok2 {
				// Stream abandoned: hand the slot straight back.
				pool.Release(idx)
				continue
			}

			p.buffered = append(p.buffered, &Response[Res]{
				pool: pool, idx: idx, origin: slot.Origin(), msgNo: slot.MsgNo(),
			})
		}
	}

	return nil
}

func (c *cli[Req, Res]) resolveResPool(srv libid.PortId, gen uint32) (libsmp.Pool, liberr.Error) {
	k := poolKey{srv: srv, gen: gen}

	if p, ok := c.resPool[k]; ok {
		return p, nil
	}

	cfg := c.svc.Config()

	seg, err := libshm.Open(
		cfg.DataSegmentName(c.svc.Id().String(), srv.String(), gen),
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

	c.resPool[k] = p

	return p, nil
}

func (c *cli[Req, Res]) Close() error {
	c.m.Lock()

	if c.closed {
		c.m.Unlock()
		return nil
	}

	c.closed = true

	for _, cx := range c.conns {
		cx.cx.MarkDetached(libque.DetachedConsumer)
		_ = cx.cx.Close()
		_ = cx.rqs.Close()
	}

	c.conns = nil

	for _, p := range c.resPool {
		_ = p.Close()
	}

	c.resPool = map[poolKey]libsmp.Pool{}
	c.m.Unlock()

	if c.unreg != nil {
		c.unreg()
	}

	c.svc.Dynamic().RemovePort(libsvc.KindClient, c.id)

	return c.pool.Close()
}

// PendingResponse_ is the concrete pending response stream.
type PendingResponse_[Req any, Res any] struct {
	c *cli[Req, Res]
	p *pend[Res]
}

// Receive returns the next buffered response, draining the connection
// queues first.
func (pr *PendingResponse_[Req, Res]) Receive() (*Response[Res], bool, liberr.Error) {
	c := pr.c

	c.m.Lock()
	defer c.m.Unlock()

	if err := c.drainResponses(); err != nil {
		return nil, false, err
	}

	if len(pr.p.buffered) == 0 {
		return nil, false, nil
	}

	r := pr.p.buffered[0]
	pr.p.buffered = pr.p.buffered[1:]

	return r, true, nil
}

// IsDone reports whether every server closed its response stream and
// no buffered response remains.
func (pr *PendingResponse_[Req, Res]) IsDone() bool {
	c := pr.c

	c.m.Lock()
	defer c.m.Unlock()

	_ = c.drainResponses()

	return pr.p.remaining == 0 && len(pr.p.buffered) == 0
}

// IsConnected reports whether at least one server still holds the
// request.
func (pr *PendingResponse_[Req, Res]) IsConnected() bool {
	c := pr.c

	c.m.Lock()
	defer c.m.Unlock()

	_ = c.drainResponses()

	return pr.p.remaining > 0
}

// Close abandons the stream: buffered responses release and late ones
// are dropped on arrival.
func (pr *PendingResponse_[Req, Res]) Close() error {
	c := pr.c

	c.m.Lock()
	defer c.m.Unlock()

	for _, r := range pr.p.buffered {
		r.Release()
	}

	pr.p.buffered = nil
	delete(c.pending, pr.p.corr)

	return nil
}

// Response is one received response sample.
type Response[Res any] struct {
	pool   libsmp.Pool
	idx    uint32
	origin libid.PortId
	msgNo  uint64
	done   bool
}

// Payload returns the response payload living in shared memory.
func (r *Response[Res]) Payload() *Res {
	s, _ := r.pool.Get(r.idx)
	b := s.Payload(1)
	return (*Res)(unsafe.Pointer(&b[0]))
}

// Origin returns the answering server's port id.
func (r *Response[Res]) Origin() libid.PortId {
	return r.origin
}

// MsgNo returns the server's monotonic message number.
func (r *Response[Res]) MsgNo() uint64 {
	return r.msgNo
}

// Release returns the response slot to the server's pool.
func (r *Response[Res]) Release() {
	if r.done {
		return
	}

	r.done = true
	r.pool.Release(r.idx)
}

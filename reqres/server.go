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

// blockBackoff caps the sleep between retries of a blocking response
// delivery.
const blockBackoff = time.Millisecond

type srv[Req any, Res any] struct {
	m    sync.Mutex
	svc  libsvc.Service
	id   libid.PortId
	slot uint32

	pool     libsmp.Pool   // response pool
	rq       *libque.MPMC  // dispatch queue
	rqSeg    libshm.Segment
	strategy UnableToDeliver

	msgNo   uint64
	epoch   uint64
	conns   map[libid.PortId]libcnx.Conn
	reqPool map[reqPoolKey]libsmp.Pool

	unreg  func()
	closed bool
}

type reqPoolKey struct {
	cli libid.PortId
	gen uint32
}

func newServer[Req any, Res any](s libsvc.Service, o ServerOptions) (Server[Req, Res], liberr.Error) {
	if err := verifyTypes[Req, Res](s); err != nil {
		return nil, err
	}

	rr := s.Static().ReqRes
	cfg := s.Config()
	nid := s.Binding().NodeId()
	pid := libid.MintPortId(nid, s.Binding().NextPortCounter())

	res := libid.DetailOf[Res]()

	layout := libsmp.Layout{
		SlotCount:   rr.MaxClients*rr.MaxResponseBufferSize + rr.MaxLoanedRequests + 1,
		ElemSize:    res.Size,
		ElemAlign:   res.Alignment,
		MaxElems:    1,
		UserHdrSize: s.Static().ResponseHeader.Size,
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

	// The dispatch queue rides in its own segment so clients attach it
	// without touching the response pool.
	rqCap := rr.MaxClients * rr.MaxActiveRequestsPerClient

	rqSeg, err := libshm.Create(
		cfg.RequestQueueName(s.Id().String(), pid.String()),
		libsiz.Size(libque.MPMCSize(rqCap)),
		0,
	)
	if err != nil {
		_ = pool.Close()
		return nil, ErrorDataSegment.Error(err)
	}

	rq, qerr := libque.AttachMPMC(rqSeg.Bytes(), rqCap, true)
	if qerr != nil {
		_ = rqSeg.Close()
		_ = pool.Close()
		return nil, ErrorDataSegment.Error(qerr)
	}

	rqSeg.MarkReady()

	slot, aerr := s.Dynamic().AddPort(libsvc.KindServer, pid, nid.Encode(), 0)
	if aerr != nil {
		_ = rqSeg.Close()
		_ = pool.Close()

		if aerr.IsCode(libsvc.ErrorExceedsMaxPorts) {
			return nil, ErrorExceedsMaxPorts.Error(aerr)
		}
		return nil, ErrorInternal.Error(aerr)
	}

	v := &srv[Req, Res]{
		svc:      s,
		id:       pid,
		slot:     slot,
		pool:     pool,
		rq:       rq,
		rqSeg:    rqSeg,
		strategy: o.UnableToDeliverStrategy,
		conns:    map[libid.PortId]libcnx.Conn{},
		reqPool:  map[reqPoolKey]libsmp.Pool{},
	}

	v.unreg = s.Binding().RegisterCloser(v)

	return v, nil
}

func (v *srv[Req, Res]) Id() libid.PortId {
	return v.id
}

// clientConn resolves the response connection to one client, creating
// it on first use. Called under the lock.
func (v *srv[Req, Res]) clientConn(cli libid.PortId) (libcnx.Conn, liberr.Error) {
	if cx, ok := v.conns[cli]; ok {
		return cx, nil
	}

	cfg := v.svc.Config()
	rr := v.svc.Static().ReqRes

	cx, err := libcnx.Create(
		cfg.ConnSegmentName(v.svc.Id().String(), v.id.String(), cli.String()),
		rr.MaxResponseBufferSize,
		rr.MaxResponseBufferSize,
		cfg.CreationTimeout(),
	)
	if err != nil {
		return nil, ErrorConnection.Error(err)
	}

	v.conns[cli] = cx

	return cx, nil
}

func (v *srv[Req, Res]) resolveReqPool(cli libid.PortId, gen uint32) (libsmp.Pool, liberr.Error) {
	k := reqPoolKey{cli: cli, gen: gen}

	if p, ok := v.reqPool[k]; ok {
		return p, nil
	}

	cfg := v.svc.Config()

	seg, err := libshm.Open(
		cfg.DataSegmentName(v.svc.Id().String(), cli.String(), gen),
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

	v.reqPool[k] = p

	return p, nil
}

func (v *srv[Req, Res]) Receive() (*ActiveRequest[Req, Res], bool, liberr.Error) {
	v.m.Lock()
	defer v.m.Unlock()

	if v.closed {
		return nil, false, ErrorPortClosed.Error(nil)
	}

	for {
		entry, ok := v.rq.Pop()
		if !ok {
			return nil, false, nil
		}

		clientSlot, gen, idx, valid := splitDispatch(entry)
		if !valid {
			continue
		}

		cliId, _, _, live := v.svc.Dynamic().PortAt(libsvc.KindClient, clientSlot)
		if !live {
			// The client vanished between dispatch and receive; its
			// reclamation returns the slot.
			continue
		}

		pool, err := v.resolveReqPool(cliId, gen)
		if err != nil {
			return nil, false, err
		}

		slot, serr := pool.Get(idx)
		if serr != nil {
			continue
		}

		return &ActiveRequest[Req, Res]{
			v:          v,
			cliId:      cliId,
			cliSlot:    clientSlot,
			reqPool:    pool,
			reqIdx:     idx,
			corr:       slot.Corr(),
			fireForget: slot.Corr() == 0,
		}, true, nil
	}
}

func (v *srv[Req, Res]) HasRequests() bool {
	// A dispatch entry may still reference a vanished client; Receive
	// filters those, the peek stays cheap.
	v.m.Lock()
	defer v.m.Unlock()

	return !v.closed && v.rq.Len() > 0
}

// respond delivers one response slot to the requesting client.
func (v *srv[Req, Res]) respond(ar *ActiveRequest[Req, Res], idx uint32) liberr.Error {
	v.m.Lock()
	defer v.m.Unlock()

	if v.closed {
		return ErrorPortClosed.Error(nil)
	}

	cx, err := v.clientConn(ar.cliId)
	if err != nil {
		return err
	}

	v.msgNo++

	slot, serr := v.pool.Get(idx)
	if serr != nil {
		return ErrorInternal.Error(serr)
	}

	slot.SetMsgNo(v.msgNo)
	slot.SetCorr(ar.corr)

	ref := libsmp.Ref(v.pool.Generation(), idx)

	if v.svc.Static().ReqRes.EnableSafeOverflowResponse {
		if displaced, wasFull := cx.Queue().PushOverwrite(ref); wasFull {
			_, oldIdx := libsmp.SplitRef(displaced)
			v.pool.Release(oldIdx)
		}
		return nil
	}

	if cx.Queue().Push(ref) {
		return nil
	}

	if v.strategy == DeliverBlock {
		wait := 10 * time.Microsecond

		for !v.closed {
			if cx.IsDetached(libque.DetachedConsumer) {
				break
			}

			if cx.Queue().Push(ref) {
				return nil
			}

			time.Sleep(wait)

			if wait < blockBackoff {
				wait *= 2
			}
		}
	}

	v.pool.Release(idx)

	return ErrorUnableToDeliver.Error(nil)
}

// closeStream publishes the end-of-stream marker for one correlation.
func (v *srv[Req, Res]) closeStream(ar *ActiveRequest[Req, Res]) {
	v.m.Lock()
	defer v.m.Unlock()

	ar.reqPool.Release(ar.reqIdx)

	if ar.fireForget || v.closed {
		return
	}

	if cx, ok := v.conns[ar.cliId]; ok {
		// Markers ride the same queue; a full queue drops the marker
		// and the client falls back on observing the dead connection.
		_ = cx.Queue().Push(entryMarkerBit | (ar.corr & corrMask))
	}
}

func (v *srv[Req, Res]) Close() error {
	v.m.Lock()

	if v.closed {
		v.m.Unlock()
		return nil
	}

	v.closed = true

	for _, cx := range v.conns {
		cx.MarkDetached(libque.DetachedProducer)
		_ = cx.Close()
	}

	v.conns = map[libid.PortId]libcnx.Conn{}

	for _, p := range v.reqPool {
		_ = p.Close()
	}

	v.reqPool = map[reqPoolKey]libsmp.Pool{}
	v.m.Unlock()

	if v.unreg != nil {
		v.unreg()
	}

	v.svc.Dynamic().RemovePort(libsvc.KindServer, v.id)

	_ = v.rqSeg.Close()

	return v.pool.Close()
}

// ActiveRequest ties one received request to its response stream. Drop
// it with Close to end the stream.
type ActiveRequest[Req any, Res any] struct {
	v          *srv[Req, Res]
	cliId      libid.PortId
	cliSlot    uint32
	reqPool    libsmp.Pool
	reqIdx     uint32
	corr       uint64
	fireForget bool
	closed     bool
}

// Payload returns the request payload living in the client's segment.
func (ar *ActiveRequest[Req, Res]) Payload() *Req {
	s, _ := ar.reqPool.Get(ar.reqIdx)
	b := s.Payload(1)
	return (*Req)(unsafe.Pointer(&b[0]))
}

// UserHeader returns the raw request header bytes.
func (ar *ActiveRequest[Req, Res]) UserHeader() []byte {
	s, _ := ar.reqPool.Get(ar.reqIdx)
	return s.UserHeader()
}

// Origin returns the requesting client's port id.
func (ar *ActiveRequest[Req, Res]) Origin() libid.PortId {
	return ar.cliId
}

// IsConnected reports whether the requesting client still exists and
// did not hint a disconnect.
func (ar *ActiveRequest[Req, Res]) IsConnected() bool {
	id, _, extra, ok := ar.v.svc.Dynamic().PortAt(libsvc.KindClient, ar.cliSlot)

	return ok && id == ar.cliId && extra&hintDisconnect == 0
}

// HasDisconnectHint reports whether the client signaled graceful
// shutdown.
func (ar *ActiveRequest[Req, Res]) HasDisconnectHint() bool {
	id, _, extra, ok := ar.v.svc.Dynamic().PortAt(libsvc.KindClient, ar.cliSlot)

	return ok && id == ar.cliId && extra&hintDisconnect != 0
}

// SendCopy loans a response slot, copies v into it and streams it back
// to the client. Fire-and-forget requests have no back-channel.
func (ar *ActiveRequest[Req, Res]) SendCopy(res Res) liberr.Error {
	if ar.closed {
		return ErrorRequestConsumed.Error(nil)
	}

	if ar.fireForget {
		return ErrorNoBackChannel.Error(nil)
	}

	slot, err := ar.v.loanResponse()
	if err != nil {
		return err
	}

	b := slot.Payload(1)
	*(*Res)(unsafe.Pointer(&b[0])) = res

	return ar.v.respond(ar, slot.Idx())
}

// Loan borrows a response slot bound to this request.
func (ar *ActiveRequest[Req, Res]) Loan() (*ResponseMut[Req, Res], liberr.Error) {
	if ar.closed {
		return nil, ErrorRequestConsumed.Error(nil)
	}

	if ar.fireForget {
		return nil, ErrorNoBackChannel.Error(nil)
	}

	slot, err := ar.v.loanResponse()
	if err != nil {
		return nil, err
	}

	return &ResponseMut[Req, Res]{ar: ar, idx: slot.Idx()}, nil
}

// Close drops the active request: the borrowed request slot returns to
// the client's pool and the response stream ends.
func (ar *ActiveRequest[Req, Res]) Close() error {
	if ar.closed {
		return nil
	}

	ar.closed = true
	ar.v.closeStream(ar)

	return nil
}

func (v *srv[Req, Res]) loanResponse() (libsmp.Slot, liberr.Error) {
	v.m.Lock()
	defer v.m.Unlock()

	slot, err := v.pool.Loan()
	if err != nil {
		return libsmp.Slot{}, err
	}

	slot.SetOrigin(v.id)
	slot.SetCount(1)

	return slot, nil
}

// ResponseMut is a loaned response slot. Send or Release exactly once.
type ResponseMut[Req any, Res any] struct {
	ar   *ActiveRequest[Req, Res]
	idx  uint32
	done bool
}

// Payload returns the response payload living in shared memory.
func (r *ResponseMut[Req, Res]) Payload() *Res {
	s, _ := r.ar.v.pool.Get(r.idx)
	b := s.Payload(1)
	return (*Res)(unsafe.Pointer(&b[0]))
}

// UserHeader returns the raw response header bytes.
func (r *ResponseMut[Req, Res]) UserHeader() []byte {
	s, _ := r.ar.v.pool.Get(r.idx)
	return s.UserHeader()
}

// Send streams the response back to the requesting client.
func (r *ResponseMut[Req, Res]) Send() liberr.Error {
	if r.done {
		return ErrorResponseConsumed.Error(nil)
	}

	r.done = true

	return r.ar.v.respond(r.ar, r.idx)
}

// Release drops the loan without sending.
func (r *ResponseMut[Req, Res]) Release() {
	if r.done {
		return
	}

	r.done = true
	r.ar.v.pool.Release(r.idx)
}

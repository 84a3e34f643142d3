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


// Package reqres implements the request-response ports: clients loan
// request slots from their own data segment and fan them out to every
// connected server's dispatch queue; servers answer with zero or more
// response samples streamed back over per-pair connections under one
// correlation tag.
//
// Dispatch on the server side rides on the linearizable bounded MPMC
// queue, so any number of clients enqueue concurrently. The response
// stream of one request is closed by an explicit end-of-stream marker
// the server publishes when it drops the active request.
package reqres

import (
	"io"

	liberr "github.com/sabouaram/zeroipc/errors"
	libid "github.com/sabouaram/zeroipc/ident"
	libsvc "github.com/sabouaram/zeroipc/service"
)

// UnableToDeliver selects what a port does on a full peer queue when
// safe overflow is disabled.
type UnableToDeliver uint8

const (
	// DeliverDiscard drops the message for that peer.
	DeliverDiscard UnableToDeliver = iota
	// DeliverBlock busy-waits with back-off until the queue drains.
	DeliverBlock
)

// ClientOptions tunes one client port.
type ClientOptions struct {
	// UnableToDeliverStrategy applies to request queues when safe
	// overflow for requests is off.
	UnableToDeliverStrategy UnableToDeliver
}

// ServerOptions tunes one server port.
type ServerOptions struct {
	// UnableToDeliverStrategy applies to response streams when safe
	// overflow for responses is off.
	UnableToDeliverStrategy UnableToDeliver
}

// Client is the requesting endpoint of a request-response service.
// Req is the request payload type, Res the response payload type; both
// must match the identities frozen in the service.
type Client[Req any, Res any] interface {
	io.Closer

	// Id returns the unique port id.
	Id() libid.PortId

	// Loan borrows a request slot.
	Loan() (*Request[Req, Res], liberr.Error)
	// SendCopy loans, copies v and sends, returning the pending
	// response stream.
	SendCopy(v Req) (PendingResponse[Res], liberr.Error)
	// FireAndForget loans, copies v and sends without keeping a
	// response stream. Requires the service to enable it.
	FireAndForget(v Req) liberr.Error

	// IsConnected reports whether at least one server is attached.
	IsConnected() bool

	// SetDisconnectHint signals a graceful shutdown intent to servers.
	SetDisconnectHint()
}

// Request is a loaned request slot. Send or Release exactly once.
type Request[Req any, Res any] struct {
	c    *cli[Req, Res]
	idx  uint32
	gen  uint32
	done bool
}

// PendingResponse is the client-side lazy stream of responses to one
// request, interleaving across servers, per-server FIFO.
type PendingResponse[Res any] interface {
	// Receive returns the next response, or ok=false when none is
	// buffered right now. Err is nil at a plain empty stream.
	Receive() (*Response[Res], bool, liberr.Error)
	// IsDone reports whether every server closed its stream and no
	// buffered response remains.
	IsDone() bool
	// IsConnected reports whether at least one server still holds the
	// request.
	IsConnected() bool
	// Close abandons the stream and releases the request loan.
	Close() error
}

// Server is the answering endpoint of a request-response service.
type Server[Req any, Res any] interface {
	io.Closer

	// Id returns the unique port id.
	Id() libid.PortId

	// Receive pops the oldest dispatched request, or ok=false when the
	// queue is empty.
	Receive() (*ActiveRequest[Req, Res], bool, liberr.Error)
	// HasRequests peeks whether a request is pending.
	HasRequests() bool
}

// NewClient creates a client port on the service.
func NewClient[Req any, Res any](s libsvc.Service, o ClientOptions) (Client[Req, Res], liberr.Error) {
	return newClient[Req, Res](s, o)
}

// NewServer creates a server port on the service.
func NewServer[Req any, Res any](s libsvc.Service, o ServerOptions) (Server[Req, Res], liberr.Error) {
	return newServer[Req, Res](s, o)
}

// Request dispatch entries pack (client slot, generation, slot index);
// response entries are plain refs, end-of-stream markers carry the
// correlation tag under the marker bit.
const (
	entryMarkerBit = uint64(1) << 63
	corrMask       = entryMarkerBit - 1

	hintDisconnect = uint64(1)
)

func packDispatch(clientSlot uint32, gen uint32, idx uint32) uint64 {
	return uint64(clientSlot+1)<<48 | uint64(gen&0xffff)<<32 | uint64(idx)
}

func splitDispatch(v uint64) (clientSlot uint32, gen uint32, idx uint32, ok bool) {
	cs := uint32(v >> 48)
	if cs == 0 {
		return 0, 0, 0, false
	}

	return cs - 1, uint32(v>>32) & 0xffff, uint32(v), true
}

func verifyTypes[Req any, Res any](s libsvc.Service) liberr.Error {
	if s.Pattern() != libsvc.PatternRequestResponse {
		return ErrorWrongPattern.Error(nil)
	}

	st := s.Static()
	req := libid.DetailOf[Req]()
	res := libid.DetailOf[Res]()

	if st.Request.Size != req.Size || st.Request.Alignment != req.Alignment {
		return ErrorRequestMismatch.Error(nil)
	}

	if st.Response.Size != res.Size || st.Response.Alignment != res.Alignment {
		return ErrorResponseMismatch.Error(nil)
	}

	return nil
}
